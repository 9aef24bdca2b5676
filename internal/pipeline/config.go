package pipeline

import (
	"errors"
	"fmt"

	"github.com/ayusman/gridwatch/internal/capture"
)

// Frame-skip interval bounds; SetFrameSkipInterval clamps into this range.
const (
	MinFrameSkipInterval = 1
	MaxFrameSkipInterval = 10
)

// ErrInvalidConfig marks configuration rejected before a session starts.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config is the immutable per-session pipeline configuration. Validate
// rejects out-of-range values before the session is allowed to start;
// runtime adjustments go through the scheduler setters instead.
type Config struct {
	// TargetFPS bounds both capture pacing and inference throughput.
	TargetFPS float64

	// FrameSkipInterval runs inference on every n-th frame.
	FrameSkipInterval int

	// ConfidenceThreshold and IOUThreshold are passed to the detector
	// on every inference call.
	ConfidenceThreshold float64
	IOUThreshold        float64

	// MaxDetections caps simultaneous detections per frame.
	MaxDetections int

	// QueueCapacity sizes the acquisition-to-inference frame queue.
	QueueCapacity int

	// ProcessingEnabled starts the session with inference on or off.
	ProcessingEnabled bool

	// MotionGating skips inference on frames without scene change.
	MotionGating bool

	// MotionThreshold is the percent-change cutoff for the motion gate.
	MotionThreshold float64
}

// DefaultConfig returns the settings the inspection rig ships with.
func DefaultConfig() Config {
	return Config{
		TargetFPS:           30,
		FrameSkipInterval:   3,
		ConfidenceThreshold: 0.25,
		IOUThreshold:        0.45,
		MaxDetections:       6,
		QueueCapacity:       capture.DefaultQueueCapacity,
		ProcessingEnabled:   true,
		MotionGating:        false,
		MotionThreshold:     capture.DefaultMotionThreshold,
	}
}

// Validate checks every field range. All violations are reported under
// ErrInvalidConfig so callers can treat them uniformly as fatal.
func (c Config) Validate() error {
	if c.TargetFPS < 1 || c.TargetFPS > 120 {
		return fmt.Errorf("%w: target FPS %.1f outside [1, 120]", ErrInvalidConfig, c.TargetFPS)
	}
	if c.FrameSkipInterval < MinFrameSkipInterval || c.FrameSkipInterval > MaxFrameSkipInterval {
		return fmt.Errorf("%w: frame skip interval %d outside [%d, %d]",
			ErrInvalidConfig, c.FrameSkipInterval, MinFrameSkipInterval, MaxFrameSkipInterval)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %.2f outside [0, 1]", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	if c.IOUThreshold < 0 || c.IOUThreshold > 1 {
		return fmt.Errorf("%w: IOU threshold %.2f outside [0, 1]", ErrInvalidConfig, c.IOUThreshold)
	}
	if c.MaxDetections < 1 {
		return fmt.Errorf("%w: max detections %d below 1", ErrInvalidConfig, c.MaxDetections)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: queue capacity %d below 1", ErrInvalidConfig, c.QueueCapacity)
	}
	return nil
}
