package rest

import (
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPLogger emits one http_request line per request. Server errors are
// raised to warn so they survive a LOG_LEVEL=warn deployment.
func HTTPLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		lg := logger.WithCtx(r.Context())
		ev := lg.Info()
		if status >= http.StatusInternalServerError {
			ev = lg.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Str("ip", clientIP(r)).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

// routePattern is the matched chi pattern, e.g. /api/v1/webinars/{webinarID}.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
