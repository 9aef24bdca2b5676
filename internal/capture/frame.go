// Package capture provides video frame acquisition for the gridwatch
// power-line inspection pipeline: camera/file sources, frame pacing,
// and the bounded handoff queue between acquisition and inference.
package capture

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is a single captured video frame. The Mat pixel buffer is owned by
// exactly one stage at a time; crossing a stage boundary requires Clone so
// producer and consumer never alias the same buffer.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	Seq       uint64
}

// Clone returns a deep copy of the frame with its own pixel buffer.
func (f Frame) Clone() Frame {
	return Frame{
		Mat:       f.Mat.Clone(),
		Timestamp: f.Timestamp,
		Seq:       f.Seq,
	}
}

// Close releases the underlying pixel buffer. Safe to call on a zero-valued
// frame that never held one.
func (f *Frame) Close() {
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
}

// Width returns the frame width in pixels.
func (f Frame) Width() int { return f.Mat.Cols() }

// Height returns the frame height in pixels.
func (f Frame) Height() int { return f.Mat.Rows() }

// Empty reports whether the frame carries no pixel data.
func (f Frame) Empty() bool { return f.Mat.Empty() }
