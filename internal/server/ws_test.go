package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/gorilla/websocket"

	"github.com/ayusman/gridwatch/internal/app"
	"github.com/ayusman/gridwatch/internal/capture"
	"github.com/ayusman/gridwatch/internal/detector"
	"github.com/ayusman/gridwatch/internal/pipeline"
)

func newWSTestSession(t *testing.T) *app.Session {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })
	src := capture.NewMockSource([]*gocv.Mat{&mat}, true)
	src.SetTargetFPS(60)

	session, err := app.New(app.Config{
		Pipeline: pipeline.DefaultConfig(),
		Source:   src,
		Detector: detector.NewMockDetector(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestDetectionsHandler_BroadcastAndDisconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := NewDetectionsHandler(newWSTestSession(t))
	defer h.Close()

	ts := httptest.NewServer(h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error = %v", err)
	}

	var msg struct {
		Detection pipeline.State `json:"detection"`
		Stats     map[string]any `json:"stats"`
		Timestamp int64          `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("broadcast is not valid JSON: %v", err)
	}
	if msg.Detection.PrimaryLabel != pipeline.NoDetectionLabel {
		t.Errorf("idle broadcast label = %q", msg.Detection.PrimaryLabel)
	}
	if _, ok := msg.Stats["capture_fps"]; !ok {
		t.Error("broadcast missing capture_fps stat")
	}

	if got := h.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}

	// A departed client gets cleaned up rather than lingering.
	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d after disconnect, want 0", h.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDetectionsHandler_CloseDisconnectsClients(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	h := NewDetectionsHandler(newWSTestSession(t))

	ts := httptest.NewServer(h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	h.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count = %d after Close, want 0", got)
	}
}
