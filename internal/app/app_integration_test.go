package app

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/detector"
	"github.com/ayusman/gridwatch/internal/pipeline"
	"github.com/ayusman/gridwatch/internal/store"
)

func testFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		mat := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(i*20), 80, 80, 0), 480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &mat
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func testSessionConfig(t *testing.T, src capture.Source, det detector.Detector) Config {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := pipeline.DefaultConfig()
	cfg.TargetFPS = 60
	cfg.FrameSkipInterval = 3

	return Config{
		Store:    s,
		Pipeline: cfg,
		Source:   src,
		Detector: det,
		Metadata: store.Metadata{
			LineNumber:    "L-204",
			PoleNumber:    "P-17",
			InspectorName: "R. Varma",
		},
	}
}

func TestSession_ProcessAndPersist(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	src := capture.NewMockSource(testFrames(t, 10), true)
	src.SetTargetFPS(60)

	mockDet := detector.NewMockDetector()
	mockDet.SetDetections([]detector.Detection{{
		ClassID:    detector.ClassFiredWedgeBare,
		Label:      detector.ClassName(detector.ClassFiredWedgeBare),
		Confidence: 0.88,
		Box:        image.Rect(100, 100, 300, 250),
	}})

	cfg := testSessionConfig(t, src, mockDet)
	session, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let the loops run long enough for several inference cycles.
	time.Sleep(500 * time.Millisecond)
	session.Stop()

	if mockDet.Calls() < 2 {
		t.Fatalf("detector calls = %d, want at least 2", mockDet.Calls())
	}

	// Every third acquired frame runs inference; the rest are skipped.
	if reads := src.Reads(); uint64(mockDet.Calls()*2) > reads {
		t.Errorf("detector calls %d too high for %d reads at skip interval 3", mockDet.Calls(), reads)
	}

	snap := session.Latest()
	if snap == nil {
		t.Fatal("no snapshot published")
	}
	if len(snap.JPEG) == 0 {
		t.Error("snapshot has no encoded frame")
	}

	// One record per successful inference, stamped with the operator form.
	records, err := cfg.Store.Records().List()
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("no inspection records persisted")
	}
	if records[0].DefectType != detector.ClassName(detector.ClassFiredWedgeBare) {
		t.Errorf("record defect = %q", records[0].DefectType)
	}
	if records[0].LineNumber != "L-204" || records[0].InspectorName != "R. Varma" {
		t.Errorf("record missing operator form: %+v", records[0])
	}
	if session.Detections() != uint64(len(records)) {
		t.Errorf("detection counter %d != %d persisted records", session.Detections(), len(records))
	}
}

func TestSession_DetectorFailureKeepsState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	src := capture.NewMockSource(testFrames(t, 4), true)
	src.SetTargetFPS(60)

	mockDet := detector.NewMockDetector()
	mockDet.SetDetections([]detector.Detection{{
		Label: "A", Confidence: 0.9, Box: image.Rect(0, 0, 50, 50),
	}})
	mockDet.FailOnCall(2, errors.New("inference backend gone"))

	session, err := New(testSessionConfig(t, src, mockDet))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	session.Stop()

	if mockDet.Calls() < 3 {
		t.Fatalf("detector calls = %d, want the failure to be surrounded by successes", mockDet.Calls())
	}
	if session.Scheduler().Failures() != 1 {
		t.Errorf("failures = %d, want 1", session.Scheduler().Failures())
	}
	// The failed call retained the previous result, so successes dominate.
	if session.Scheduler().Inferences() != uint64(mockDet.Calls())-1 {
		t.Errorf("successful inferences = %d with %d calls", session.Scheduler().Inferences(), mockDet.Calls())
	}
}

func TestSession_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	src := capture.NewMockSource(testFrames(t, 2), true)
	src.SetTargetFPS(60)

	session, err := New(testSessionConfig(t, src, detector.NewMockDetector()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer session.Close()

	if got := session.State(); got != StateIdle {
		t.Errorf("initial state = %v, want idle", got)
	}
	if err := session.Pause(); !errors.Is(err, ErrSessionNotRunning) {
		t.Errorf("Pause() while idle = %v, want ErrSessionNotRunning", err)
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := session.State(); got != StateRunning {
		t.Errorf("state after start = %v, want running", got)
	}
	if err := session.Start(); !errors.Is(err, ErrSessionRunning) {
		t.Errorf("second Start() = %v, want ErrSessionRunning", err)
	}

	if err := session.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if got := session.State(); got != StatePaused {
		t.Errorf("state after pause = %v, want paused", got)
	}

	// Acquisition freezes while paused.
	time.Sleep(50 * time.Millisecond)
	pausedReads := src.Reads()
	time.Sleep(100 * time.Millisecond)
	if got := src.Reads(); got != pausedReads {
		t.Errorf("source reads advanced while paused: %d -> %d", pausedReads, got)
	}

	if err := session.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got := session.State(); got != StateRunning {
		t.Errorf("state after resume = %v, want running", got)
	}

	// Acquisition picks back up after resume.
	deadline := time.Now().Add(2 * time.Second)
	for src.Reads() == pausedReads {
		if time.Now().After(deadline) {
			t.Fatal("acquisition did not resume")
		}
		time.Sleep(10 * time.Millisecond)
	}

	session.Stop()
	if got := session.State(); got != StateIdle {
		t.Errorf("state after stop = %v, want idle", got)
	}
	if src.IsOpen() {
		t.Error("source still open after stop")
	}

	// Stop is idempotent.
	session.Stop()

	// The session can be restarted after a stop.
	if err := session.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	session.Stop()
}

func TestSession_PauseRetainsState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	src := capture.NewMockSource(testFrames(t, 4), true)
	src.SetTargetFPS(60)

	mockDet := detector.NewMockDetector()
	mockDet.SetDetections([]detector.Detection{{
		ClassID:    detector.ClassHammerWedgeBare,
		Label:      detector.ClassName(detector.ClassHammerWedgeBare),
		Confidence: 0.81,
		Box:        image.Rect(40, 40, 200, 180),
	}})

	session, err := New(testSessionConfig(t, src, mockDet))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for session.CurrentState().PrimaryLabel == pipeline.NoDetectionLabel {
		if time.Now().After(deadline) {
			t.Fatal("no detection published before pause")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := session.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	// Let in-flight reads and inference drain.
	time.Sleep(50 * time.Millisecond)

	// The last detection stays on display instead of blanking out.
	want := detector.ClassName(detector.ClassHammerWedgeBare)
	if got := session.CurrentState().PrimaryLabel; got != want {
		t.Errorf("paused state label = %q, want %q", got, want)
	}

	calls := mockDet.Calls()
	reads := src.Reads()
	time.Sleep(100 * time.Millisecond)
	if got := mockDet.Calls(); got != calls {
		t.Errorf("detector ran while paused: %d -> %d calls", calls, got)
	}
	if got := src.Reads(); got != reads {
		t.Errorf("acquisition ran while paused: %d -> %d reads", reads, got)
	}

	if err := session.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	session.Stop()
}

func TestSession_SourceLostAbortsSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	src := capture.NewMockSource(testFrames(t, 2), true)
	src.SetTargetFPS(500)

	session, err := New(testSessionConfig(t, src, detector.NewMockDetector()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer session.Close()

	if err := session.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	src.SetReadError(errors.New("usb device yanked"))

	// Read failures pile up until the session aborts itself.
	deadline := time.Now().Add(3 * time.Second)
	for session.State() != StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("session still %v after source loss", session.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := session.Err(); !errors.Is(err, capture.ErrSourceLost) {
		t.Errorf("terminal error = %v, want ErrSourceLost", err)
	}

	// A restart clears the terminal error.
	src.SetReadError(nil)
	if err := session.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if err := session.Err(); err != nil {
		t.Errorf("Err() after restart = %v, want nil", err)
	}
	session.Stop()
}

func TestSession_RejectsInvalidConfig(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.FrameSkipInterval = 0

	_, err := New(Config{Pipeline: cfg})
	if !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Errorf("New() = %v, want ErrInvalidConfig", err)
	}
}
