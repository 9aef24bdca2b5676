package pipeline

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/detector"
)

// Scheduler decides, per frame, whether to run inference and maintains the
// published State. Frames that skip inference (frame-skip counter, motion
// gate, processing disabled) are forwarded with the last published state so
// the overlay never blanks between inference calls.
//
// The published state is swapped atomically; presentation reads always see
// a complete record. A stalled or failing detector only stalls this
// scheduler's caller, never acquisition or presentation.
type Scheduler struct {
	det detector.Detector
	sim *detector.TemperatureSimulator

	mu       sync.Mutex
	opts     detector.Options
	skip     int
	counter  uint64
	enabled  bool
	gate     *capture.MotionGate
	lastCost time.Duration

	budget *capture.Pacer
	state  atomic.Pointer[State]
	rate   *capture.RateCounter

	inferences atomic.Uint64
	failures   atomic.Uint64
}

// NewScheduler wraps the detector with the session's skip/threshold
// settings. cfg must already be validated.
func NewScheduler(det detector.Detector, sim *detector.TemperatureSimulator, cfg Config) *Scheduler {
	s := &Scheduler{
		det: det,
		sim: sim,
		opts: detector.Options{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			IOUThreshold:        cfg.IOUThreshold,
			MaxDetections:       cfg.MaxDetections,
		},
		skip:    clampSkipInterval(cfg.FrameSkipInterval),
		enabled: cfg.ProcessingEnabled,
		budget:  capture.NewPacer(cfg.TargetFPS),
		rate:    capture.NewRateCounter(),
	}
	if cfg.MotionGating {
		s.gate = capture.NewMotionGate(cfg.MotionThreshold)
	}

	initial := NoDetection(time.Now())
	s.state.Store(&initial)
	return s
}

// Process runs one frame through the scheduling decision and returns the
// state to present with it. Fresh reports whether this call produced a new
// inference result (and therefore should be persisted).
func (s *Scheduler) Process(f capture.Frame) (st State, fresh bool) {
	start := time.Now()
	defer func() {
		// Honor the processing budget even on cheap frames so throughput
		// stays bounded by the target rate.
		if rem := s.budget.Remaining(time.Since(start)); rem > 0 {
			time.Sleep(rem)
		}
		s.rate.Tick()
	}()

	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return s.Current(), false
	}

	s.counter++
	eligible := s.counter%uint64(s.skip) == 0
	gate := s.gate
	opts := s.opts
	s.mu.Unlock()

	if !eligible {
		return s.Current(), false
	}
	if gate != nil {
		if moved, _ := gate.Changed(f); !moved {
			return s.Current(), false
		}
	}

	inferStart := time.Now()
	dets, err := s.det.Detect(&f.Mat, opts)
	cost := time.Since(inferStart)

	s.mu.Lock()
	s.lastCost = cost
	s.mu.Unlock()

	if err != nil {
		// Keep showing the previous state; a bad inference never
		// surfaces as a frame error.
		s.failures.Add(1)
		log.Printf("Inference error (keeping previous state): %v", err)
		return s.Current(), false
	}
	s.inferences.Add(1)

	width, height := f.Width(), f.Height()
	for i := range dets {
		dets[i].Box = detector.ClampBox(dets[i].Box, width, height)
	}
	if s.sim != nil {
		s.sim.Apply(dets)
	}

	next := Aggregate(dets, time.Now())
	s.state.Store(&next)
	return next, true
}

// Current returns the last published state.
func (s *Scheduler) Current() State {
	return *s.state.Load()
}

// SetFrameSkipInterval changes the inference cadence. The value is clamped
// to [MinFrameSkipInterval, MaxFrameSkipInterval] and the frame counter is
// reset so the new modulus starts a clean cycle.
func (s *Scheduler) SetFrameSkipInterval(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = clampSkipInterval(n)
	s.counter = 0
	log.Printf("Detection interval set to %d", s.skip)
}

// FrameSkipInterval returns the current inference cadence.
func (s *Scheduler) FrameSkipInterval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}

// SetProcessingEnabled toggles inference. Disabling immediately publishes
// the sentinel so stale boxes are not shown while processing is off.
func (s *Scheduler) SetProcessingEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	if !enabled {
		sentinel := NoDetection(time.Now())
		s.state.Store(&sentinel)
		log.Printf("Processing disabled")
		return
	}
	log.Printf("Processing enabled")
}

// ProcessingEnabled reports whether inference is running.
func (s *Scheduler) ProcessingEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetThresholds updates the per-call detector parameters. Values outside
// [0, 1] are rejected.
func (s *Scheduler) SetThresholds(confidence, iou float64) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence threshold %.2f outside [0, 1]", ErrInvalidConfig, confidence)
	}
	if iou < 0 || iou > 1 {
		return fmt.Errorf("%w: IOU threshold %.2f outside [0, 1]", ErrInvalidConfig, iou)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.ConfidenceThreshold = confidence
	s.opts.IOUThreshold = iou
	return nil
}

// Thresholds returns the current per-call detector parameters.
func (s *Scheduler) Thresholds() (confidence, iou float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.ConfidenceThreshold, s.opts.IOUThreshold
}

// ProcessingRate returns frames processed per second over the last
// one-second window.
func (s *Scheduler) ProcessingRate() float64 {
	return s.rate.Rate()
}

// LastInferenceCost returns how long the most recent detector call took.
func (s *Scheduler) LastInferenceCost() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCost
}

// Inferences returns how many detector calls succeeded.
func (s *Scheduler) Inferences() uint64 { return s.inferences.Load() }

// Failures returns how many detector calls errored.
func (s *Scheduler) Failures() uint64 { return s.failures.Load() }

// Reset republishes the sentinel and restarts the skip cycle. Called on
// session stop so a new session never starts from stale state.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.counter = 0
	if s.gate != nil {
		s.gate.Reset()
	}
	s.mu.Unlock()

	sentinel := NoDetection(time.Now())
	s.state.Store(&sentinel)
	s.rate.Reset()
}

// Close releases scheduler resources, including the wrapped detector.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.gate != nil {
		s.gate.Close()
	}
	s.mu.Unlock()
	return s.det.Close()
}

func clampSkipInterval(n int) int {
	if n < MinFrameSkipInterval {
		return MinFrameSkipInterval
	}
	if n > MaxFrameSkipInterval {
		return MaxFrameSkipInterval
	}
	return n
}
