// Package api provides HTTP API handlers for the power line inspection
// system.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/gridwatch/internal/store"
)

// RecordsHandler handles HTTP requests for inspection record resources.
type RecordsHandler struct {
	store *store.Store
}

// NewRecordsHandler creates a new RecordsHandler with the given store.
func NewRecordsHandler(s *store.Store) *RecordsHandler {
	return &RecordsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/records, /api/records/export, /api/records/stats,
	// /api/records/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/records")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "":
		// Collection endpoint: /api/records
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return

	case "export":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.export(w, r)
		return

	case "stats":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stats(w, r)
		return
	}

	// Item endpoint: /api/records/{id}
	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type recordResponse struct {
	ID                 string  `json:"id"`
	Timestamp          string  `json:"timestamp"`
	DefectType         string  `json:"defect_type"`
	Confidence         float64 `json:"confidence"`
	Temperature        float64 `json:"temperature"`
	Distance           float64 `json:"distance"`
	LineNumber         string  `json:"line_number"`
	PoleNumber         string  `json:"pole_number"`
	AmbientTemperature float64 `json:"ambient_temperature"`
	WeatherConditions  string  `json:"weather_conditions"`
	InspectorName      string  `json:"inspector_name"`
}

type listRecordsResponse struct {
	Records []recordResponse `json:"records"`
}

type recordStatsResponse struct {
	Total    int            `json:"total"`
	ByDefect map[string]int `json:"by_defect"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.InspectionRecord to a recordResponse.
func toResponse(rec *store.InspectionRecord) recordResponse {
	return recordResponse{
		ID:                 rec.ID,
		Timestamp:          rec.Timestamp.Format(time.RFC3339),
		DefectType:         rec.DefectType,
		Confidence:         rec.Confidence,
		Temperature:        rec.Temperature,
		Distance:           rec.Distance,
		LineNumber:         rec.LineNumber,
		PoleNumber:         rec.PoleNumber,
		AmbientTemperature: rec.AmbientTemperature,
		WeatherConditions:  rec.WeatherConditions,
		InspectorName:      rec.InspectorName,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/records, optionally limited via ?limit=n.
func (h *RecordsHandler) list(w http.ResponseWriter, r *http.Request) {
	var records []*store.InspectionRecord
	var err error

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		records, err = h.store.Records().Recent(limit)
	} else {
		records, err = h.store.Records().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	response := listRecordsResponse{
		Records: make([]recordResponse, 0, len(records)),
	}
	for _, rec := range records {
		response.Records = append(response.Records, toResponse(rec))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/records/{id}.
func (h *RecordsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Records().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get record")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(rec))
}

// delete handles DELETE /api/records/{id}.
func (h *RecordsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Records().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// clear handles DELETE /api/records and removes every record.
func (h *RecordsHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Records().Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear records")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// stats handles GET /api/records/stats.
func (h *RecordsHandler) stats(w http.ResponseWriter, r *http.Request) {
	total, err := h.store.Records().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count records")
		return
	}
	byDefect, err := h.store.Records().CountByDefect()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count records")
		return
	}

	writeJSON(w, http.StatusOK, recordStatsResponse{Total: total, ByDefect: byDefect})
}

// export handles GET /api/records/export and streams a CSV download.
func (h *RecordsHandler) export(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("inspection_data_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.store.Records().ExportCSV(w); err != nil {
		// Headers are already written, so the download just ends short.
		return
	}
}
