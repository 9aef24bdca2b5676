package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/gridwatch/internal/app"
	"github.com/ayusman/gridwatch/internal/report"
	"github.com/ayusman/gridwatch/internal/store"
)

// SessionHandler exposes the inspection session lifecycle and its runtime
// settings over HTTP.
type SessionHandler struct {
	session *app.Session
	store   *store.Store

	// dataDir receives saved reports and snapshots.
	dataDir string
}

// NewSessionHandler creates a new SessionHandler for the given session.
// Reports and snapshots are written to dataDir. When st is non-nil,
// settings changes are persisted across restarts.
func NewSessionHandler(session *app.Session, dataDir string, st *store.Store) *SessionHandler {
	return &SessionHandler{session: session, dataDir: dataDir, store: st}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/session plus /start, /stop, /pause, /resume,
	// /settings, /metadata, /report, /snapshot
	path := strings.TrimPrefix(r.URL.Path, "/api/session")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.status(w, r)

	case "start":
		h.lifecycle(w, r, h.session.Start)

	case "stop":
		h.lifecycle(w, r, func() error {
			h.session.Stop()
			return nil
		})

	case "pause":
		h.lifecycle(w, r, h.session.Pause)

	case "resume":
		h.lifecycle(w, r, h.session.Resume)

	case "settings":
		switch r.Method {
		case http.MethodGet:
			h.getSettings(w, r)
		case http.MethodPut:
			h.updateSettings(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case "metadata":
		switch r.Method {
		case http.MethodGet:
			h.getMetadata(w, r)
		case http.MethodPut:
			h.updateMetadata(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case "report":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.saveReport(w, r)

	case "snapshot":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.saveSnapshot(w, r)

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// Request and response types

type sessionStatusResponse struct {
	State             string  `json:"state"`
	CaptureFPS        float64 `json:"capture_fps"`
	ProcessingFPS     float64 `json:"processing_fps"`
	DetectionInterval int     `json:"detection_interval"`
	ProcessingEnabled bool    `json:"processing_enabled"`
	TotalDetections   uint64  `json:"total_detections"`
	QueueDrops        uint64  `json:"queue_drops"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Error             string  `json:"error,omitempty"`
}

type sessionSettings struct {
	DetectionInterval   *int     `json:"detection_interval,omitempty"`
	ProcessingEnabled   *bool    `json:"processing_enabled,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	IOUThreshold        *float64 `json:"iou_threshold,omitempty"`
}

type metadataRequest struct {
	Distance           float64 `json:"distance"`
	LineNumber         string  `json:"line_number"`
	PoleNumber         string  `json:"pole_number"`
	AmbientTemperature float64 `json:"ambient_temperature"`
	WeatherConditions  string  `json:"weather_conditions"`
	InspectorName      string  `json:"inspector_name"`
}

type savedFileResponse struct {
	Path string `json:"path"`
}

// lifecycle runs a session transition and reports conflicts as 409.
func (h *SessionHandler) lifecycle(w http.ResponseWriter, r *http.Request, fn func() error) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := fn(); err != nil {
		if errors.Is(err, app.ErrSessionRunning) || errors.Is(err, app.ErrSessionNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.status(w, r)
}

// status handles GET /api/session.
func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	stats := h.session.Stats()
	resp := sessionStatusResponse{
		State:             h.session.State().String(),
		CaptureFPS:        stats.CaptureFPS,
		ProcessingFPS:     stats.ProcessingFPS,
		DetectionInterval: stats.DetectionInterval,
		ProcessingEnabled: stats.ProcessingEnabled,
		TotalDetections:   h.session.Detections(),
		QueueDrops:        h.session.QueueDrops(),
		DurationSeconds:   stats.Duration.Seconds(),
	}
	if err := h.session.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// getSettings handles GET /api/session/settings.
func (h *SessionHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	sched := h.session.Scheduler()
	interval := sched.FrameSkipInterval()
	enabled := sched.ProcessingEnabled()
	conf, iou := sched.Thresholds()

	writeJSON(w, http.StatusOK, sessionSettings{
		DetectionInterval:   &interval,
		ProcessingEnabled:   &enabled,
		ConfidenceThreshold: &conf,
		IOUThreshold:        &iou,
	})
}

// updateSettings handles PUT /api/session/settings. Absent fields keep
// their current values.
func (h *SessionHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req sessionSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sched := h.session.Scheduler()

	if req.DetectionInterval != nil {
		sched.SetFrameSkipInterval(*req.DetectionInterval)
	}
	if req.ProcessingEnabled != nil {
		sched.SetProcessingEnabled(*req.ProcessingEnabled)
	}
	if req.ConfidenceThreshold != nil || req.IOUThreshold != nil {
		conf, iou := sched.Thresholds()
		if req.ConfidenceThreshold != nil {
			conf = *req.ConfidenceThreshold
		}
		if req.IOUThreshold != nil {
			iou = *req.IOUThreshold
		}
		if err := sched.SetThresholds(conf, iou); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	h.persistSettings()
	h.getSettings(w, r)
}

// persistSettings saves the scheduler's current settings so they
// survive a restart.
func (h *SessionHandler) persistSettings() {
	if h.store == nil {
		return
	}

	sched := h.session.Scheduler()
	conf, iou := sched.Thresholds()
	settings := h.store.Settings()

	pairs := map[string]string{
		"detection_interval":   strconv.Itoa(sched.FrameSkipInterval()),
		"processing_enabled":   strconv.FormatBool(sched.ProcessingEnabled()),
		"confidence_threshold": strconv.FormatFloat(conf, 'f', -1, 64),
		"iou_threshold":        strconv.FormatFloat(iou, 'f', -1, 64),
	}
	for key, value := range pairs {
		if err := settings.Set(key, value); err != nil {
			log.Printf("Failed to persist setting %s: %v", key, err)
		}
	}
}

// getMetadata handles GET /api/session/metadata.
func (h *SessionHandler) getMetadata(w http.ResponseWriter, r *http.Request) {
	m := h.session.Metadata()
	writeJSON(w, http.StatusOK, metadataRequest{
		Distance:           m.Distance,
		LineNumber:         m.LineNumber,
		PoleNumber:         m.PoleNumber,
		AmbientTemperature: m.AmbientTemperature,
		WeatherConditions:  m.WeatherConditions,
		InspectorName:      m.InspectorName,
	})
}

// updateMetadata handles PUT /api/session/metadata.
func (h *SessionHandler) updateMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	h.session.SetMetadata(store.Metadata{
		Distance:           req.Distance,
		LineNumber:         req.LineNumber,
		PoleNumber:         req.PoleNumber,
		AmbientTemperature: req.AmbientTemperature,
		WeatherConditions:  req.WeatherConditions,
		InspectorName:      req.InspectorName,
	})

	h.getMetadata(w, r)
}

// saveReport handles POST /api/session/report.
func (h *SessionHandler) saveReport(w http.ResponseWriter, r *http.Request) {
	path, err := report.Save(h.dataDir, h.session.Report())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save report")
		return
	}
	writeJSON(w, http.StatusCreated, savedFileResponse{Path: path})
}

// saveSnapshot handles POST /api/session/snapshot.
func (h *SessionHandler) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	path, err := h.session.SaveSnapshot(h.dataDir)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, savedFileResponse{Path: path})
}
