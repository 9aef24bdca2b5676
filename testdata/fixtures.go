// Package testdata builds synthetic video frames for tests. Frames are
// generated rather than embedded so tests do not depend on binary assets.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FrameWidth and FrameHeight match the capture defaults.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// SolidFrame returns a single-color BGR frame.
func SolidFrame(b, g, r float64) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	return &mat
}

// JointFrame returns a dark frame with a bright block where a wedge joint
// would sit, roughly matching the box a detector fixture reports.
func JointFrame(box image.Rectangle) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&mat, box, color.RGBA{R: 220, G: 200, B: 160, A: 255}, -1)
	return &mat
}

// Sequence returns n frames of stepped brightness, useful for exercising
// frame-skip cadence and motion gating.
func Sequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		v := float64(20 + (i*25)%200)
		frames[i] = SolidFrame(v, v, v)
	}
	return frames
}

// CloseFrames releases every frame in the slice.
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
