package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/gridwatch/internal/app"
)

// streamFrameInterval paces the MJPEG stream at roughly 15 FPS.
const streamFrameInterval = 66 * time.Millisecond

// StreamHandler serves the annotated frames as an MJPEG stream.
type StreamHandler struct {
	session *app.Session
}

// NewStreamHandler creates a new StreamHandler for the given session.
func NewStreamHandler(session *app.Session) *StreamHandler {
	return &StreamHandler{session: session}
}

// ServeHTTP streams MJPEG frames to connected clients. Frames come from
// the session's published snapshots, so streaming never touches the
// capture device directly.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		snap := h.session.Latest()
		if snap == nil || snap.Seq == lastSeq {
			time.Sleep(streamFrameInterval)
			continue
		}
		lastSeq = snap.Seq

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(snap.JPEG))
		if _, err := w.Write(snap.JPEG); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(streamFrameInterval)
	}
}
