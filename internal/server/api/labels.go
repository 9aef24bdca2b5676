package api

import (
	"net/http"

	"github.com/ayusman/gridwatch/internal/store"
)

// LabelsHandler serves the defect class catalog.
type LabelsHandler struct {
	store *store.Store
}

// NewLabelsHandler creates a new LabelsHandler with the given store.
func NewLabelsHandler(s *store.Store) *LabelsHandler {
	return &LabelsHandler{store: s}
}

type labelResponse struct {
	ClassID int     `json:"class_id"`
	Label   string  `json:"label"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

type listLabelsResponse struct {
	Labels []labelResponse `json:"labels"`
}

// ServeHTTP handles GET /api/labels.
func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	labels, err := h.store.Labels().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list labels")
		return
	}

	response := listLabelsResponse{Labels: make([]labelResponse, 0, len(labels))}
	for _, l := range labels {
		response.Labels = append(response.Labels, labelResponse{
			ClassID: l.ClassID,
			Label:   l.Label,
			TempMin: l.TempMin,
			TempMax: l.TempMax,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
