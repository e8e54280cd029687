package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/emadnahed/linkguard/internal/metrics"
)

// Metrics returns a middleware that records Prometheus request metrics.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			metrics.ActiveConnections.Inc()
			defer metrics.ActiveConnections.Dec()

			next.ServeHTTP(rec, r)

			metrics.RecordRequest(r.Method, normalizePath(r.URL.Path), rec.status, time.Since(start))
		})
	}
}

// normalizePath collapses codes in paths so labels stay low-cardinality.
func normalizePath(path string) string {
	switch {
	case path == "/health" || path == "/ready" || path == "/metrics" || path == "/shorten":
		return path
	case strings.HasPrefix(path, "/stats/"):
		return "/stats/{code}"
	case len(path) > 1 && strings.Count(path, "/") == 1:
		return "/{code}"
	default:
		return "/other"
	}
}
