package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate tuning. Differencing runs on a downscaled grayscale copy so
// the gate costs a fraction of an inference call.
const (
	motionScaleWidth = 160
	motionBlurKernel = 9
	motionDiffCutoff = 25
	// DefaultMotionThreshold is the percentage of pixels that must change
	// between frames for the scene to count as moving.
	DefaultMotionThreshold = 1.0
)

// MotionGate decides whether anything in the scene changed enough to be
// worth running inference on. Aerial inspection footage is mostly static
// pans; gating lets the scheduler reuse the previous detection state on
// dead frames.
type MotionGate struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewMotionGate creates a gate with the given percent-change threshold.
// Non-positive thresholds use DefaultMotionThreshold.
func NewMotionGate(threshold float64) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionGate{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Changed compares the frame against the previous one and reports whether
// the changed-pixel percentage crossed the threshold, along with the
// measured percentage. The first frame primes the baseline and reports no
// motion.
func (g *MotionGate) Changed(f Frame) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f.Empty() {
		return false, 0
	}

	small := g.downscaleGray(f.Mat)
	defer small.Close()

	if !g.primed {
		small.CopyTo(&g.prev)
		g.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(small, g.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, motionDiffCutoff, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(mask)
	total := mask.Rows() * mask.Cols()
	small.CopyTo(&g.prev)

	if total == 0 {
		return false, 0
	}
	percent := float64(changed) / float64(total) * 100.0
	return percent > g.threshold, percent
}

// downscaleGray produces the blurred grayscale thumbnail differencing runs on.
func (g *MotionGate) downscaleGray(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}
	defer gray.Close()

	w := motionScaleWidth
	h := 1
	if gray.Cols() > 0 {
		h = gray.Rows() * w / gray.Cols()
	}
	if h < 1 {
		h = 1
	}
	small := gocv.NewMat()
	gocv.Resize(gray, &small, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationArea)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(small, &blurred, image.Point{X: motionBlurKernel, Y: motionBlurKernel}, 0, 0, gocv.BorderDefault)
	small.Close()

	return blurred
}

// SetThreshold adjusts the percent-change threshold; non-positive values
// are ignored.
func (g *MotionGate) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = threshold
}

// Reset discards the baseline so the next frame primes a fresh one. Used
// when the source restarts and the scene may have cut.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.prev.Empty() {
		g.prev.Close()
		g.prev = gocv.NewMat()
	}
	g.primed = false
}

// Close releases gate resources.
func (g *MotionGate) Close() {
	g.Reset()
}
