// Package detector defines the defect detection contract for the gridwatch
// inspection pipeline and its implementations: a subprocess-backed YOLO
// adapter and a scripted mock. The inference kernel itself is opaque to the
// pipeline; everything upstream only sees Detections.
package detector

import (
	"image"

	"gocv.io/x/gocv"
)

// Detection is a single defect found in one frame. Box coordinates are in
// pixel space with Min strictly above-left of Max, clamped to the frame.
type Detection struct {
	ClassID     int             `json:"class_id"`
	Label       string          `json:"label"`
	Confidence  float64         `json:"confidence"`
	Box         image.Rectangle `json:"box"`
	Temperature float64         `json:"temperature"`
}

// Options are the per-call inference parameters.
type Options struct {
	// ConfidenceThreshold filters detections below this score (0.0-1.0).
	ConfidenceThreshold float64

	// IOUThreshold is the overlap threshold for duplicate suppression (0.0-1.0).
	IOUThreshold float64

	// MaxDetections caps how many boxes one call may return.
	MaxDetections int
}

// DefaultOptions returns the inference parameters the inspection rig ships
// with.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.25,
		IOUThreshold:        0.45,
		MaxDetections:       6,
	}
}

// Detector is the opaque inference capability consumed by the scheduler.
// Implementations must be safe to call repeatedly; each call is synchronous
// and single-threaded.
type Detector interface {
	// Detect analyzes a video frame and returns the defects found.
	// Returns an empty slice when the frame is clean.
	Detect(frame *gocv.Mat, opts Options) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// ClampBox forces a box into the frame bounds with Min < Max on both axes.
// Detector backends occasionally emit coordinates a pixel or two outside
// the frame; downstream drawing and persistence rely on sane boxes.
func ClampBox(box image.Rectangle, width, height int) image.Rectangle {
	b := box.Canon()

	if b.Min.X < 0 {
		b.Min.X = 0
	}
	if b.Min.Y < 0 {
		b.Min.Y = 0
	}
	if b.Max.X > width {
		b.Max.X = width
	}
	if b.Max.Y > height {
		b.Max.Y = height
	}

	// Degenerate after clamping: collapse to a minimal valid box inside.
	if b.Max.X <= b.Min.X {
		if b.Min.X >= width {
			b.Min.X = width - 1
		}
		b.Max.X = b.Min.X + 1
	}
	if b.Max.Y <= b.Min.Y {
		if b.Min.Y >= height {
			b.Min.Y = height - 1
		}
		b.Max.Y = b.Min.Y + 1
	}

	return b
}
