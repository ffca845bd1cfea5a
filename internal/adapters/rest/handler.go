package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/core/services"
)

const (
	defaultRecommendationLimit = 10
	defaultPopularLimit        = 5
	detectRecommendationLimit  = 5
)

// Services are the core components the HTTP layer drives. Detector, Indexer
// and Realtime are optional; their endpoints answer 501 when unset.
type Services struct {
	Recommender *services.RecommendationService
	Feedback    *services.FeedbackService
	Media       *services.MediaService
	Indexer     *services.Indexer
	Detector    ports.EmotionDetector
	Realtime    http.Handler
}

// Options tune the HTTP surface.
type Options struct {
	Version           string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	MaxBodyBytes      int64
	MaxImageBytes     int64
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc    Services
	opts   Options
	router chi.Router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc Services, opts Options) *Handler {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 2 << 20
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &Handler{svc: svc, opts: opts, router: chi.NewRouter()}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Range", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", h.Index)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Get("/music/{songId}", h.StreamMusic)
		if h.svc.Realtime != nil {
			r.Handle("/ws", h.svc.Realtime)
		}

		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit())
			r.Get("/emotions", h.ListEmotions)
			r.Post("/detect-emotion", h.DetectEmotion)
			r.Get("/recommendations", h.GetRecommendations)
			r.Get("/popular-songs", h.GetPopularSongs)
			r.Post("/record-interaction", h.RecordInteraction)
			r.Get("/user-stats", h.GetUserStats)
			r.Post("/library/reindex", h.Reindex)
		})
	})
}

func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	if h.opts.RateLimitDisabled || h.opts.RateLimitRequests <= 0 || h.opts.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		h.opts.RateLimitRequests,
		h.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeErrorWithCode(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
		}),
	)
}

// Index describes the service.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Emotune emotion-driven music API",
		"version": h.opts.Version,
		"status":  "running",
	})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
