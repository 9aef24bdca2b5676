package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/gridwatch/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// detectionsBroadcastInterval matches the stream pace.
const detectionsBroadcastInterval = 66 * time.Millisecond

// DetectionsHandler broadcasts the live detection state via WebSocket.
type DetectionsHandler struct {
	session *app.Session
	done    chan struct{}

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

// NewDetectionsHandler creates a new DetectionsHandler for the given
// session and starts its broadcast loop.
func NewDetectionsHandler(session *app.Session) *DetectionsHandler {
	h := &DetectionsHandler{
		session: session,
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// Close ends the broadcast loop and disconnects all clients.
func (h *DetectionsHandler) Close() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// ClientCount reports how many clients are connected.
func (h *DetectionsHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Drain reads until the peer goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends the current detection state and live statistics to all
// connected clients.
func (h *DetectionsHandler) broadcast() {
	ticker := time.NewTicker(detectionsBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if h.ClientCount() == 0 {
			continue
		}

		stats := h.session.Stats()
		msg, err := json.Marshal(map[string]any{
			"detection": h.session.CurrentState(),
			"stats": map[string]any{
				"capture_fps":      stats.CaptureFPS,
				"processing_fps":   stats.ProcessingFPS,
				"total_detections": stats.TotalDetections,
				"queue_drops":      h.session.QueueDrops(),
			},
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			log.Printf("Error encoding detection broadcast: %v", err)
			continue
		}

		// Collect failed writes, then drop those connections instead of
		// leaving them to linger until their read loop notices.
		var dead []*websocket.Conn
		h.mu.RLock()
		for conn := range h.clients {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				dead = append(dead, conn)
			}
		}
		h.mu.RUnlock()

		if len(dead) == 0 {
			continue
		}
		h.mu.Lock()
		for _, conn := range dead {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	}
}
