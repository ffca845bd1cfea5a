package rest

import (
	"net/http"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

type recordInteractionRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	SongID  string `json:"song_id" validate:"required"`
	Emotion string `json:"emotion" validate:"required"`
	Action  string `json:"action" validate:"required"`
	Rating  *int   `json:"rating" validate:"omitempty,min=0"`
	Mode    string `json:"mode"`
}

type userStatsResponse struct {
	Success      bool                 `json:"success"`
	Summary      *domain.UserSummary  `json:"summary"`
	EmotionStats []domain.EmotionStat `json:"emotion_stats"`
	Preferences  []domain.Preference  `json:"preferences"`
}

// RecordInteraction handles POST /api/record-interaction
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	var req recordInteractionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	err := h.svc.Feedback.Record(r.Context(), domain.Interaction{
		UserID:  req.UserID,
		SongID:  req.SongID,
		Emotion: domain.ParseEmotion(req.Emotion),
		Action:  domain.Action(req.Action),
		Rating:  req.Rating,
		Mode:    req.Mode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "recorded"})
}

// GetUserStats handles GET /api/user-stats
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Feedback.UserStats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userStatsResponse{
		Success:      true,
		Summary:      stats.Summary,
		EmotionStats: stats.EmotionStats,
		Preferences:  stats.Preferences,
	})
}
