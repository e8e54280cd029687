package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emadnahed/linkguard/internal/models"
)

const backendMemory = "memory"

// Ensure the memory stores implement their contracts.
var (
	_ MappingStore    = (*MemoryMappingStore)(nil)
	_ RateWindowStore = (*MemoryRateWindowStore)(nil)
	_ WindowSweeper   = (*MemoryRateWindowStore)(nil)
)

// MemoryMappingStore keeps mappings in process memory.
type MemoryMappingStore struct {
	mu       sync.RWMutex
	mappings map[string]*models.Mapping
	now      func() time.Time
}

// NewMemoryMappingStore creates an empty in-memory mapping store.
func NewMemoryMappingStore() *MemoryMappingStore {
	return &MemoryMappingStore{
		mappings: make(map[string]*models.Mapping),
		now:      time.Now,
	}
}

// Exists reports whether code is taken.
func (s *MemoryMappingStore) Exists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("exists %q: %w: %w", code, models.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	_, ok := s.mappings[code]
	s.mu.RUnlock()
	return ok, nil
}

// Create stores a new mapping.
func (s *MemoryMappingStore) Create(ctx context.Context, code, target string) (*models.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("create %q: %w: %w", code, models.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mappings[code]; ok {
		return nil, fmt.Errorf("create %q: %w", code, models.ErrDuplicateCode)
	}
	m := &models.Mapping{
		Code:      code,
		Target:    target,
		CreatedAt: s.now().UTC(),
	}
	s.mappings[code] = m

	out := *m
	return &out, nil
}

// Get returns a copy of the mapping for code.
func (s *MemoryMappingStore) Get(ctx context.Context, code string) (*models.Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get %q: %w: %w", code, models.ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mappings[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *m
	return &out, nil
}

// IncrementAccessCount adds one to the access counter of code.
func (s *MemoryMappingStore) IncrementAccessCount(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("increment %q: %w: %w", code, models.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[code]
	if !ok {
		return models.ErrNotFound
	}
	m.AccessCount++
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryMappingStore) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored mappings.
func (s *MemoryMappingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// windowEntry guards one client's window.
type windowEntry struct {
	mu      sync.Mutex
	window  models.RateWindow
	created bool
	// removed is set by Sweep once the entry has left the map.
	removed bool
}

// MemoryRateWindowStore keeps rate windows in process memory with one lock
// per client key.
type MemoryRateWindowStore struct {
	entries sync.Map // map[string]*windowEntry
}

// NewMemoryRateWindowStore creates an empty in-memory rate window store.
func NewMemoryRateWindowStore() *MemoryRateWindowStore {
	return &MemoryRateWindowStore{}
}

// Update runs fn on the window of clientKey while holding that key's lock.
func (s *MemoryRateWindowStore) Update(ctx context.Context, clientKey string, now time.Time, fn WindowFunc) (*models.RateWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rate window %q: %w: %w", clientKey, models.ErrStoreUnavailable, err)
	}

	e := s.lock(clientKey)
	defer e.mu.Unlock()

	if !e.created {
		e.window = models.RateWindow{ClientKey: clientKey, WindowStart: now}
		e.created = true
	}

	w := e.window
	if fn(&w) {
		e.window = w
	}
	return &w, nil
}

// lock returns the live entry for clientKey with its mutex held. An entry
// swept between the load and the lock is skipped for a fresh one.
func (s *MemoryRateWindowStore) lock(clientKey string) *windowEntry {
	for {
		v, _ := s.entries.LoadOrStore(clientKey, &windowEntry{})
		e := v.(*windowEntry)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// Get returns a copy of the stored window for clientKey.
func (s *MemoryRateWindowStore) Get(clientKey string) (*models.RateWindow, bool) {
	v, ok := s.entries.Load(clientKey)
	if !ok {
		return nil, false
	}
	e := v.(*windowEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.created {
		return nil, false
	}
	w := e.window
	return &w, true
}

// Put overwrites the window stored for w.ClientKey.
func (s *MemoryRateWindowStore) Put(w models.RateWindow) {
	e := s.lock(w.ClientKey)
	e.window = w
	e.created = true
	e.mu.Unlock()
}

// Sweep removes windows that started at or before cutoff.
func (s *MemoryRateWindowStore) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	s.entries.Range(func(key, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		e := v.(*windowEntry)

		e.mu.Lock()
		if e.created && !e.window.WindowStart.After(cutoff) {
			e.removed = true
			s.entries.CompareAndDelete(key, e)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	if err := ctx.Err(); err != nil {
		return removed, fmt.Errorf("sweep rate windows: %w: %w", models.ErrStoreUnavailable, err)
	}
	return removed, nil
}

// Len returns the number of client windows held.
func (s *MemoryRateWindowStore) Len() int {
	n := 0
	s.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// HealthCheck always succeeds.
func (s *MemoryRateWindowStore) HealthCheck(context.Context) error {
	return nil
}
