package rest

import (
	"fmt"
	"net/http"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

type reindexResponse struct {
	Success    bool                   `json:"success"`
	Tracks     int                    `json:"tracks"`
	Categories map[domain.Emotion]int `json:"categories"`
	ElapsedMS  int64                  `json:"elapsed_ms"`
}

// Reindex handles POST /api/library/reindex
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.svc.Indexer == nil {
		writeServiceError(w, r, fmt.Errorf("library indexer: %w", domain.ErrNotConfigured))
		return
	}
	report, err := h.svc.Indexer.Reindex(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reindexResponse{
		Success:    true,
		Tracks:     report.Tracks,
		Categories: report.Categories,
		ElapsedMS:  report.Elapsed.Milliseconds(),
	})
}
