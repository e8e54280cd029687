// Package repository handles persistence of mappings and rate windows.
package repository

import (
	"context"
	"time"

	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/models"
)

// MappingStore persists short code mappings.
type MappingStore interface {
	// Exists reports whether code is taken.
	Exists(ctx context.Context, code string) (bool, error)

	// Create stores a new mapping. It returns models.ErrDuplicateCode when
	// code is already taken, whatever an earlier Exists said.
	Create(ctx context.Context, code, target string) (*models.Mapping, error)

	// Get returns the mapping for code or models.ErrNotFound.
	Get(ctx context.Context, code string) (*models.Mapping, error)

	// IncrementAccessCount adds one to the access counter as a single atomic
	// operation. It returns models.ErrNotFound for unknown codes.
	IncrementAccessCount(ctx context.Context, code string) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// WindowFunc inspects and mutates a rate window. It reports whether the
// window changed and must be saved. It may be invoked more than once for a
// single Update when the store retries, so it must not have side effects
// beyond the window itself.
type WindowFunc func(w *models.RateWindow) bool

// RateWindowStore persists per-client rate windows.
type RateWindowStore interface {
	// Update loads the window for clientKey, creating it with count 0 and
	// start now when absent, runs fn on it and saves the result if fn
	// reports a change. The whole sequence is atomic per clientKey. The
	// returned window is the state fn left behind.
	Update(ctx context.Context, clientKey string, now time.Time, fn WindowFunc) (*models.RateWindow, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// WindowSweeper removes rate windows that can no longer affect a decision.
// Removing a window whose start is at or before cutoff is equivalent to the
// reset the limiter would perform on the next request.
type WindowSweeper interface {
	// Sweep deletes windows that started at or before cutoff and returns how
	// many were removed. It must not race with Update: a window an Update is
	// working on is either kept or removed as a whole.
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)
}

// observe records how long a store operation took.
func observe(backend, operation string, start time.Time) {
	metrics.RecordStoreOperation(backend, operation, time.Since(start))
}
