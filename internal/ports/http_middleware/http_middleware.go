package http_middleware

import (
	"net/http"
	"time"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
	"github.com/fllarpy/mbean-bridge/pkg/config"
)

// responseWriter is a wrapper around http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// StatsMiddleware creates a new HTTP middleware that records request
// statistics. It returns a function that takes an http.Handler and returns
// an http.Handler, suitable for use with frameworks like chi.
func StatsMiddleware(store domain.StoreWriter, cfg *config.Config) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = config.Load()
	}
	if !cfg.Enabled || store == nil {
		// If disabled, return a no-op middleware.
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)
			store.AddRequest(r.URL.Path, duration, rw.statusCode)

			// If the status code is 5xx, record it as an error event.
			if rw.statusCode >= 500 {
				event := metrics.NewErrorEvent(r)
				event.Error = http.StatusText(rw.statusCode)
				store.AddError(event)
			}
		})
	}
}
