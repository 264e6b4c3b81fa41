package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger returns a middleware that attaches a request-scoped logger to
// the context and logs each request once it completes. Bodies and headers are
// never logged.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			reqLogger := logger.With().Str("request_id", reqID).Logger()
			ctx := reqLogger.WithContext(r.Context())

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Read back from ctx so fields added downstream (key_id, customer) are kept.
			evt := zerolog.Ctx(ctx).Info()
			if ww.status >= http.StatusInternalServerError {
				evt = zerolog.Ctx(ctx).Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Int("bytes", ww.bytes).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
