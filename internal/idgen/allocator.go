package idgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// DefaultMaxAttempts is the number of default-length codes tried before the fallback.
const DefaultMaxAttempts = 10

// CodeStore is the part of the mapping store the allocator depends on.
type CodeStore interface {
	// Exists reports whether code is already taken.
	Exists(ctx context.Context, code string) (bool, error)

	// Create stores a new mapping, failing with models.ErrDuplicateCode
	// when another writer already owns code.
	Create(ctx context.Context, code, target string) (*models.Mapping, error)
}

// AllocatorConfig controls code lengths and the retry budget.
type AllocatorConfig struct {
	CodeLength     int
	FallbackLength int
	MaxAttempts    int
}

// DefaultAllocatorConfig returns 10 attempts at length 6, then one at length 10.
func DefaultAllocatorConfig() AllocatorConfig {
	return AllocatorConfig{
		CodeLength:     DefaultCodeLength,
		FallbackLength: FallbackCodeLength,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

// AllocatorStats holds counters about allocation outcomes.
type AllocatorStats struct {
	TotalAllocations int64
	TotalCollisions  int64
	TotalFallbacks   int64
	TotalExhausted   int64
}

// Allocator creates mappings with codes that are unique in the store.
// The Exists pre-check only narrows the race window; the store's unique
// constraint decides, so Create is treated as fallible on every attempt.
type Allocator struct {
	gen   Generator
	store CodeStore
	cfg   AllocatorConfig
	log   *logger.Logger

	totalAllocations atomic.Int64
	totalCollisions  atomic.Int64
	totalFallbacks   atomic.Int64
	totalExhausted   atomic.Int64
}

// NewAllocator creates a new Allocator. Zero config fields take their defaults.
func NewAllocator(gen Generator, store CodeStore, cfg AllocatorConfig, log *logger.Logger) *Allocator {
	def := DefaultAllocatorConfig()
	if cfg.CodeLength < 1 {
		cfg.CodeLength = def.CodeLength
	}
	if cfg.FallbackLength < 1 {
		cfg.FallbackLength = def.FallbackLength
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	return &Allocator{
		gen:   gen,
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Allocate stores target under a freshly generated code.
func (a *Allocator) Allocate(ctx context.Context, target string) (*models.Mapping, error) {
	a.totalAllocations.Add(1)

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, err := a.gen.Generate(a.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		exists, err := a.store.Exists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			a.collision(code, attempt, "exists")
			continue
		}

		mapping, err := a.store.Create(ctx, code, target)
		if err == nil {
			metrics.RecordMappingAllocated()
			return mapping, nil
		}
		if !errors.Is(err, models.ErrDuplicateCode) {
			return nil, err
		}
		a.collision(code, attempt, "create")
	}

	return a.fallback(ctx, target)
}

// fallback makes the single long-code attempt, without a pre-check.
func (a *Allocator) fallback(ctx context.Context, target string) (*models.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.totalFallbacks.Add(1)
	metrics.RecordAllocationFallback()

	code, err := a.gen.Generate(a.cfg.FallbackLength)
	if err != nil {
		return nil, fmt.Errorf("generate fallback code: %w", err)
	}
	if a.log != nil {
		a.log.Warn("short codes exhausted, trying fallback length",
			"attempts", a.cfg.MaxAttempts,
			"length", a.cfg.FallbackLength,
		)
	}

	mapping, err := a.store.Create(ctx, code, target)
	if err == nil {
		metrics.RecordMappingAllocated()
		return mapping, nil
	}
	if errors.Is(err, models.ErrDuplicateCode) {
		a.totalExhausted.Add(1)
		metrics.RecordAllocationExhausted()
		if a.log != nil {
			a.log.Error("allocation exhausted", "code", code)
		}
		return nil, models.ErrAllocationExhausted
	}
	return nil, err
}

func (a *Allocator) collision(code string, attempt int, stage string) {
	a.totalCollisions.Add(1)
	metrics.RecordAllocationCollision(stage)
	if a.log != nil {
		a.log.Warn("short code collision", "code", code, "attempt", attempt, "stage", stage)
	}
}

// Stats returns the current allocation statistics.
func (a *Allocator) Stats() AllocatorStats {
	return AllocatorStats{
		TotalAllocations: a.totalAllocations.Load(),
		TotalCollisions:  a.totalCollisions.Load(),
		TotalFallbacks:   a.totalFallbacks.Load(),
		TotalExhausted:   a.totalExhausted.Load(),
	}
}
