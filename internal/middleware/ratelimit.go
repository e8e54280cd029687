package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/ratelimit"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// RateChecker checks and counts one request for a client.
type RateChecker interface {
	Allow(ctx context.Context, clientKey string) (*ratelimit.Decision, error)
}

// RateLimitResponse is the JSON body of a 429 response.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after"`
}

// errorBody is the JSON body of other middleware errors.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RateLimit returns a middleware that admits at most the limiter's quota
// per client and window. The client key is the address stored by ClientIP,
// or the remote address when ClientIP did not run. When the limiter cannot
// confirm its count the request is rejected with 503 rather than served.
func RateLimit(limiter RateChecker, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := GetClientIP(r.Context())
			if clientKey == "" {
				clientKey = extractIPFromAddr(r.RemoteAddr)
			}

			decision, err := limiter.Allow(r.Context(), clientKey)
			if err != nil {
				metrics.RecordRateError()
				log.Error("rate limit check failed",
					"request_id", GetRequestID(r.Context()),
					"client_ip", clientKey,
					"error", err,
				)
				writeError(w, http.StatusServiceUnavailable, errorBody{
					Error: "service temporarily unavailable",
					Code:  "STORE_UNAVAILABLE",
				})
				return
			}

			metrics.RecordRateDecision(decision.Allowed)
			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				log.Warn("rate limit exceeded",
					"request_id", GetRequestID(r.Context()),
					"client_ip", clientKey,
					"count", decision.CurrentCount,
					"retry_after", decision.RetryAfterSeconds(),
				)
				writeError(w, http.StatusTooManyRequests, RateLimitResponse{
					Error:      "Rate limit exceeded",
					Detail:     "Too many requests. Please try again later.",
					RetryAfter: decision.RetryAfterSeconds(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders writes the quota headers. X-RateLimit-Reset carries
// the window length in seconds.
func setRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(int(d.Window.Seconds())))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

func writeError(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
