package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func solidFrame(t *testing.T, value float64) Frame {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(value, value, value, 0), 120, 160, gocv.MatTypeCV8UC3)
	return Frame{Mat: mat}
}

func TestMotionGate_FirstFramePrimes(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	f := solidFrame(t, 128)
	defer f.Close()

	moved, percent := g.Changed(f)
	if moved {
		t.Error("first frame should never report motion")
	}
	if percent != 0 {
		t.Errorf("percent = %v on first frame, want 0", percent)
	}
}

func TestMotionGate_StaticScene(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	a := solidFrame(t, 128)
	b := solidFrame(t, 128)
	defer a.Close()
	defer b.Close()

	g.Changed(a)
	if moved, _ := g.Changed(b); moved {
		t.Error("identical frames should not report motion")
	}
}

func TestMotionGate_SceneChange(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	dark := solidFrame(t, 20)
	bright := solidFrame(t, 230)
	defer dark.Close()
	defer bright.Close()

	g.Changed(dark)
	moved, percent := g.Changed(bright)
	if !moved {
		t.Errorf("full-frame change should report motion (percent = %v)", percent)
	}
	if percent <= 50 {
		t.Errorf("percent = %v, want most of the frame changed", percent)
	}
}

func TestMotionGate_ResetReprimes(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	dark := solidFrame(t, 20)
	bright := solidFrame(t, 230)
	defer dark.Close()
	defer bright.Close()

	g.Changed(dark)
	g.Reset()

	// After Reset the bright frame only primes the new baseline.
	if moved, _ := g.Changed(bright); moved {
		t.Error("frame after Reset should prime, not report motion")
	}
}

func TestMotionGate_EmptyFrame(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	if moved, _ := g.Changed(Frame{}); moved {
		t.Error("empty frame should not report motion")
	}
}

func TestMotionGate_SetThreshold(t *testing.T) {
	g := NewMotionGate(1.0)
	defer g.Close()

	g.SetThreshold(-5)  // ignored
	g.SetThreshold(101) // nothing can cross this

	dark := solidFrame(t, 20)
	bright := solidFrame(t, 230)
	defer dark.Close()
	defer bright.Close()

	g.Changed(dark)
	if moved, _ := g.Changed(bright); moved {
		t.Error("no change percentage can cross a threshold above 100")
	}

	g.Reset()
	g.SetThreshold(1.0)
	g.Changed(dark)
	if moved, _ := g.Changed(bright); !moved {
		t.Error("full-frame change should cross the restored threshold")
	}
}
