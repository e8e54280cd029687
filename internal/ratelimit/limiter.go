// Package ratelimit provides fixed-window rate limiting over a shared store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/internal/repository"
)

// ErrInvalidConfig is returned for non-positive limits or windows.
var ErrInvalidConfig = errors.New("rate limit and window must be positive")

// Decision is the outcome of a single check.
type Decision struct {
	Allowed      bool          // Whether the request was counted
	Remaining    int           // Requests left in the current window
	RetryAfter   time.Duration // Whole seconds until the window resets, zero when allowed
	Limit        int           // The configured limit
	Window       time.Duration // The configured window
	CurrentCount int           // Requests counted in the current window
}

// RetryAfterSeconds returns RetryAfter in whole seconds.
func (d *Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}

// Config holds rate limiter configuration.
type Config struct {
	Requests int           // Maximum requests per window
	Window   time.Duration // Fixed window length
}

// DefaultConfig returns five requests per minute.
func DefaultConfig() Config {
	return Config{
		Requests: 5,
		Window:   time.Minute,
	}
}

// Validate rejects non-positive values.
func (c Config) Validate() error {
	if c.Requests <= 0 || c.Window <= 0 {
		return fmt.Errorf("%w: requests=%d window=%s", ErrInvalidConfig, c.Requests, c.Window)
	}
	return nil
}

// Limiter counts requests per client in fixed windows.
type Limiter struct {
	store  repository.RateWindowStore
	config Config
	now    func() time.Time
}

// NewLimiter creates a limiter persisting windows in store.
func NewLimiter(store repository.RateWindowStore, cfg Config) *Limiter {
	return &Limiter{
		store:  store,
		config: cfg,
		now:    time.Now,
	}
}

// NewMemoryLimiter creates a limiter over a process-local store.
func NewMemoryLimiter(cfg Config) *Limiter {
	return NewLimiter(repository.NewMemoryRateWindowStore(), cfg)
}

// Config returns the limiter's configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Allow checks and counts a request from clientKey using the configured
// limit and window.
func (l *Limiter) Allow(ctx context.Context, clientKey string) (*Decision, error) {
	return l.CheckAndIncrement(ctx, clientKey, l.config.Requests, l.config.Window, l.now())
}

// CheckAndIncrement runs the fixed-window algorithm for clientKey at now.
// The read, the decision and the write happen inside one store Update, so
// concurrent callers for the same key never admit more than limit requests
// per window. A store error means the request was not counted and must not
// be treated as allowed.
func (l *Limiter) CheckAndIncrement(ctx context.Context, clientKey string, limit int, window time.Duration, now time.Time) (*Decision, error) {
	if err := (Config{Requests: limit, Window: window}).Validate(); err != nil {
		return nil, err
	}

	var d Decision
	_, err := l.store.Update(ctx, clientKey, now, func(w *models.RateWindow) bool {
		var changed bool
		d, changed = Decide(w, limit, window, now)
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("rate check for %q: %w", clientKey, err)
	}
	return &d, nil
}

// Decide applies one fixed-window step to w and reports whether w changed.
// An expired window is reset before counting; a saturated window is left
// untouched.
func Decide(w *models.RateWindow, limit int, window time.Duration, now time.Time) (Decision, bool) {
	d := Decision{Limit: limit, Window: window}
	changed := false

	elapsed := w.Elapsed(now)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= window {
		w.Reset(now)
		elapsed = 0
		changed = true
	}

	if w.Count < limit {
		w.Count++
		d.Allowed = true
		d.Remaining = max(0, limit-w.Count)
		d.CurrentCount = w.Count
		return d, true
	}

	d.CurrentCount = w.Count
	d.RetryAfter = retryAfter(window - elapsed)
	return d, changed
}

// retryAfter rounds left up to whole seconds, never below one.
func retryAfter(left time.Duration) time.Duration {
	secs := int64(math.Ceil(left.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
