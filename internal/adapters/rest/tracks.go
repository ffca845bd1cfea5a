package rest

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/services"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

type recommendationsResponse struct {
	Success         bool           `json:"success"`
	Emotion         domain.Emotion `json:"emotion"`
	Recommendations []domain.Track `json:"recommendations"`
	Description     string         `json:"description"`
}

type popularResponse struct {
	Success      bool           `json:"success"`
	PopularSongs []domain.Track `json:"popular_songs"`
}

// GetRecommendations handles GET /api/recommendations
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	emotion := domain.ParseEmotion(q.Get("emotion"))
	if emotion == "" {
		writeError(w, http.StatusBadRequest, "emotion is required")
		return
	}
	limit, err := queryLimit(q.Get("limit"), defaultRecommendationLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	mode := strings.TrimSpace(q.Get("mode"))
	if mode == "" {
		mode = domain.ModeAuto
	}

	recs := h.svc.Recommender.Recommend(r.Context(), emotion, q.Get("user_id"), limit, mode)
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Success:         true,
		Emotion:         emotion,
		Recommendations: recs,
		Description:     emotion.Description(),
	})
}

// GetPopularSongs handles GET /api/popular-songs
func (h *Handler) GetPopularSongs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	emotion := domain.ParseEmotion(q.Get("emotion"))
	if emotion == "" {
		writeError(w, http.StatusBadRequest, "emotion is required")
		return
	}
	limit, err := queryLimit(q.Get("limit"), defaultPopularLimit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	songs, err := h.svc.Recommender.Popular(r.Context(), emotion, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, popularResponse{Success: true, PopularSongs: songs})
}

// StreamMusic handles GET /api/music/{songId}. A single satisfiable byte
// range is answered with 206; anything else gets the whole file.
func (h *Handler) StreamMusic(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "songId")
	f, err := h.svc.Media.Open(r.Context(), songID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	log := logging.Ctx(r.Context())
	header := w.Header()
	header.Set("Content-Type", f.ContentType)
	header.Set("Accept-Ranges", "bytes")

	if raw := r.Header.Get("Range"); raw != "" {
		br, ok := services.ParseRange(raw, f.Size)
		if ok {
			if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
				writeServiceError(w, r, err)
				return
			}
			header.Set("Content-Range", br.ContentRange(f.Size))
			header.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
			header.Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusPartialContent)
			n, err := io.CopyN(w, f, br.Length())
			metrics.RecordMediaBytes(true, n)
			if err != nil {
				logCopyError(r, err, n)
			}
			return
		}
		log.Debug().Str("range", raw).Str("song_id", songID).Msg("unusable range header, serving full file")
	}

	header.Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, f)
	metrics.RecordMediaBytes(false, n)
	if err != nil {
		logCopyError(r, err, n)
	}
}

// logCopyError records an interrupted transfer. Players abort transfers
// routinely when seeking, so this stays at debug level.
func logCopyError(r *http.Request, err error, written int64) {
	logging.Ctx(r.Context()).Debug().
		Err(err).
		Bool("client_gone", r.Context().Err() != nil).
		Int64("written", written).
		Msg("media transfer interrupted")
}

func queryLimit(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.InputError{Field: "limit", Reason: "must be an integer"}
	}
	return n, nil
}
