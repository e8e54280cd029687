package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/emadnahed/linkguard/pkg/logger"
)

// AccessLog writes one line per request. Server errors log at error level,
// client errors at warn.
func AccessLog(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			keyvals := []any{
				"request_id", GetRequestID(r.Context()),
				"client_ip", GetClientIP(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case rec.status >= 500:
				log.Error("request", keyvals...)
			case rec.status >= 400:
				log.Warn("request", keyvals...)
			default:
				log.Info("request", keyvals...)
			}
		})
	}
}

// Recover turns a panicking handler into a 500 response.
func Recover(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				log.Error("panic serving request",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
					"panic", fmt.Sprint(rv),
				)
				writeError(w, http.StatusInternalServerError, errorBody{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
