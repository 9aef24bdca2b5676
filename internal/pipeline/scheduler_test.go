package pipeline

import (
	"errors"
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/detector"
)

func testFrame(t *testing.T, seq uint64) capture.Frame {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 480, 640, gocv.MatTypeCV8UC3)
	f := capture.Frame{Mat: mat, Timestamp: time.Now(), Seq: seq}
	t.Cleanup(f.Close)
	return f
}

func testConfig() Config {
	cfg := DefaultConfig()
	// Keep the per-frame budget sleep negligible in tests.
	cfg.TargetFPS = 120
	return cfg
}

func TestSchedulerEveryNthFrame(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{
		ClassID:    detector.ClassFiredWedgeBare,
		Label:      detector.ClassName(detector.ClassFiredWedgeBare),
		Confidence: 0.8,
		Box:        image.Rect(0, 0, 50, 50),
	}})

	cfg := testConfig()
	cfg.FrameSkipInterval = 3
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	var freshAt []uint64
	for i := uint64(1); i <= 9; i++ {
		if _, fresh := s.Process(testFrame(t, i)); fresh {
			freshAt = append(freshAt, i)
		}
	}

	if mock.Calls() != 3 {
		t.Errorf("detector calls = %d, want 3", mock.Calls())
	}
	want := []uint64{3, 6, 9}
	if len(freshAt) != len(want) {
		t.Fatalf("fresh frames = %v, want %v", freshAt, want)
	}
	for i := range want {
		if freshAt[i] != want[i] {
			t.Fatalf("fresh frames = %v, want %v", freshAt, want)
		}
	}
}

func TestSchedulerSkippedFramesReuseState(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{Label: "A", Confidence: 0.7, Box: image.Rect(0, 0, 10, 10)}})

	cfg := testConfig()
	cfg.FrameSkipInterval = 2
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	// Frame 1 skips inference and must surface the initial sentinel.
	st, fresh := s.Process(testFrame(t, 1))
	if fresh || st.PrimaryLabel != NoDetectionLabel {
		t.Fatalf("frame 1: fresh=%v label=%q, want stale sentinel", fresh, st.PrimaryLabel)
	}

	// Frame 2 infers; frame 3 skips but must keep frame 2's result.
	if _, fresh := s.Process(testFrame(t, 2)); !fresh {
		t.Fatal("frame 2 did not infer")
	}
	st, fresh = s.Process(testFrame(t, 3))
	if fresh {
		t.Error("frame 3 inferred, want skip")
	}
	if st.PrimaryLabel != "A" {
		t.Errorf("frame 3 label = %q, want retained %q", st.PrimaryLabel, "A")
	}
}

func TestSchedulerDisablePublishesSentinel(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{Label: "A", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)}})

	cfg := testConfig()
	cfg.FrameSkipInterval = 1
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	if st, _ := s.Process(testFrame(t, 1)); st.PrimaryLabel != "A" {
		t.Fatalf("label = %q, want A", st.PrimaryLabel)
	}

	s.SetProcessingEnabled(false)
	if got := s.Current().PrimaryLabel; got != NoDetectionLabel {
		t.Errorf("after disable: label = %q, want %q", got, NoDetectionLabel)
	}

	calls := mock.Calls()
	st, fresh := s.Process(testFrame(t, 2))
	if fresh || st.PrimaryLabel != NoDetectionLabel {
		t.Errorf("disabled frame: fresh=%v label=%q", fresh, st.PrimaryLabel)
	}
	if mock.Calls() != calls {
		t.Error("detector invoked while processing disabled")
	}

	// Re-enable and confirm inference resumes.
	s.SetProcessingEnabled(true)
	if st, _ := s.Process(testFrame(t, 3)); st.PrimaryLabel != "A" {
		t.Errorf("after re-enable: label = %q, want A", st.PrimaryLabel)
	}
}

func TestSchedulerErrorRetainsState(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{Label: "A", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)}})
	mock.FailOnCall(2, errors.New("inference backend gone"))

	cfg := testConfig()
	cfg.FrameSkipInterval = 1
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	if _, fresh := s.Process(testFrame(t, 1)); !fresh {
		t.Fatal("frame 1 did not infer")
	}

	st, fresh := s.Process(testFrame(t, 2))
	if fresh {
		t.Error("failed inference reported as fresh")
	}
	if st.PrimaryLabel != "A" {
		t.Errorf("after failure: label = %q, want retained A", st.PrimaryLabel)
	}
	if s.Failures() != 1 {
		t.Errorf("failures = %d, want 1", s.Failures())
	}

	// The call after the failure recovers normally.
	if st, fresh := s.Process(testFrame(t, 3)); !fresh || st.PrimaryLabel != "A" {
		t.Errorf("frame 3: fresh=%v label=%q", fresh, st.PrimaryLabel)
	}
	if s.Inferences() != 2 {
		t.Errorf("successful inferences = %d, want 2", s.Inferences())
	}
}

func TestSchedulerSetFrameSkipInterval(t *testing.T) {
	mock := detector.NewMockDetector()
	s := NewScheduler(mock, nil, testConfig())
	defer s.Close()

	clamps := []struct{ in, want int }{
		{0, 1},
		{-3, 1},
		{1, 1},
		{10, 10},
		{11, 10},
		{99, 10},
		{5, 5},
	}
	for _, c := range clamps {
		s.SetFrameSkipInterval(c.in)
		if got := s.FrameSkipInterval(); got != c.want {
			t.Errorf("SetFrameSkipInterval(%d): got %d, want %d", c.in, got, c.want)
		}
	}

	// Changing the interval restarts the cycle: two frames in, switch to
	// 3, then exactly the third subsequent frame infers.
	s.SetFrameSkipInterval(10)
	s.Process(testFrame(t, 1))
	s.Process(testFrame(t, 2))
	s.SetFrameSkipInterval(3)

	before := mock.Calls()
	s.Process(testFrame(t, 3))
	s.Process(testFrame(t, 4))
	if mock.Calls() != before {
		t.Fatal("inferred before new cycle completed")
	}
	s.Process(testFrame(t, 5))
	if mock.Calls() != before+1 {
		t.Errorf("calls = %d, want %d after third frame of new cycle", mock.Calls(), before+1)
	}
}

func TestSchedulerSetThresholds(t *testing.T) {
	mock := detector.NewMockDetector()
	cfg := testConfig()
	cfg.FrameSkipInterval = 1
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	if err := s.SetThresholds(0.5, 0.6); err != nil {
		t.Fatalf("valid thresholds rejected: %v", err)
	}
	s.Process(testFrame(t, 1))
	opts := mock.LastOptions()
	if opts.ConfidenceThreshold != 0.5 || opts.IOUThreshold != 0.6 {
		t.Errorf("detector saw conf=%v iou=%v, want 0.5/0.6", opts.ConfidenceThreshold, opts.IOUThreshold)
	}

	for _, bad := range [][2]float64{{-0.1, 0.5}, {1.1, 0.5}, {0.5, -0.1}, {0.5, 1.1}} {
		err := s.SetThresholds(bad[0], bad[1])
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("SetThresholds(%v, %v) = %v, want ErrInvalidConfig", bad[0], bad[1], err)
		}
	}

	// Rejected values must not stick.
	if conf, iou := s.Thresholds(); conf != 0.5 || iou != 0.6 {
		t.Errorf("thresholds after rejects: conf=%v iou=%v", conf, iou)
	}
}

func TestSchedulerClampsBoxesAndAppliesTemperature(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{
		ClassID:    detector.ClassHammerWedgeBare,
		Label:      detector.ClassName(detector.ClassHammerWedgeBare),
		Confidence: 0.75,
		Box:        image.Rect(-40, 100, 900, 600),
	}})

	cfg := testConfig()
	cfg.FrameSkipInterval = 1
	s := NewScheduler(mock, detector.NewSeededTemperatureSimulator(7), cfg)
	defer s.Close()

	st, fresh := s.Process(testFrame(t, 1))
	if !fresh {
		t.Fatal("expected inference")
	}

	box := st.Detail[0].Box
	if box.Min.X < 0 || box.Min.Y < 0 || box.Max.X > 640 || box.Max.Y > 480 {
		t.Errorf("box %v exceeds 640x480 frame", box)
	}
	if st.PrimaryTemperature == 0 {
		t.Error("temperature not simulated")
	}
	if st.PrimaryTemperature != st.Detail[0].Temperature {
		t.Error("primary temperature diverges from detail")
	}
}

func TestSchedulerReset(t *testing.T) {
	mock := detector.NewMockDetector()
	mock.SetDetections([]detector.Detection{{Label: "A", Confidence: 0.9, Box: image.Rect(0, 0, 10, 10)}})

	cfg := testConfig()
	cfg.FrameSkipInterval = 1
	s := NewScheduler(mock, nil, cfg)
	defer s.Close()

	s.Process(testFrame(t, 1))
	if !s.Current().HasDetections() {
		t.Fatal("no state published")
	}

	s.Reset()
	if got := s.Current().PrimaryLabel; got != NoDetectionLabel {
		t.Errorf("after reset: label = %q, want %q", got, NoDetectionLabel)
	}
}
