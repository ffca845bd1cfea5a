package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestContext tags the request with an id, logs its outcome and records
// API metrics under the matched route pattern.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = logging.GenerateRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logging.ContextWithRequestID(r.Context(), id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, status, elapsed)

		event := logging.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(ctx).Error()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Msg("request handled")
	})
}
