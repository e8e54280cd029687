package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/linkguard/internal/models"
)

// runMappingStoreTests exercises the MappingStore contract. codes are
// suffixed with tag so backends sharing a database don't collide.
func runMappingStoreTests(t *testing.T, store MappingStore, tag string) {
	ctx := context.Background()
	code := func(s string) string { return s + tag }

	t.Run("create then get", func(t *testing.T) {
		m, err := store.Create(ctx, code("get1"), "https://example.com/get")
		require.NoError(t, err)
		assert.Equal(t, code("get1"), m.Code)
		assert.Equal(t, "https://example.com/get", m.Target)
		assert.Zero(t, m.AccessCount)
		assert.WithinDuration(t, time.Now(), m.CreatedAt, time.Minute)

		got, err := store.Get(ctx, code("get1"))
		require.NoError(t, err)
		assert.Equal(t, m.Target, got.Target)
		assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := store.Exists(ctx, code("ex1"))
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Create(ctx, code("ex1"), "https://example.com")
		require.NoError(t, err)

		ok, err = store.Exists(ctx, code("ex1"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("duplicate create keeps the first target", func(t *testing.T) {
		_, err := store.Create(ctx, code("dup1"), "https://example.com/first")
		require.NoError(t, err)

		_, err = store.Create(ctx, code("dup1"), "https://example.com/second")
		assert.ErrorIs(t, err, models.ErrDuplicateCode)
		assert.False(t, models.Unavailable(err))

		got, err := store.Get(ctx, code("dup1"))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/first", got.Target)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := store.Get(ctx, code("missing"))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("increment unknown", func(t *testing.T) {
		err := store.IncrementAccessCount(ctx, code("nothere"))
		assert.ErrorIs(t, err, models.ErrNotFound)

		ok, err := store.Exists(ctx, code("nothere"))
		require.NoError(t, err)
		assert.False(t, ok, "increment must not create the mapping")
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		_, err := store.Create(ctx, code("hot1"), "https://example.com/hot")
		require.NoError(t, err)

		const k = 50
		var wg sync.WaitGroup
		errs := make(chan error, k)
		for range k {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.IncrementAccessCount(ctx, code("hot1"))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := store.Get(ctx, code("hot1"))
		require.NoError(t, err)
		assert.Equal(t, int64(k), got.AccessCount)
	})

	t.Run("concurrent creates of one code admit one", func(t *testing.T) {
		const n = 20
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, dups := 0, 0
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Create(ctx, code("race1"), "https://example.com/race")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case assert.ErrorIs(t, err, models.ErrDuplicateCode):
					dups++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
		assert.Equal(t, n-1, dups)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, store.HealthCheck(ctx))
	})
}

// countUpTo is the increment-with-cap a limiter runs inside Update.
func countUpTo(limit int) WindowFunc {
	return func(w *models.RateWindow) bool {
		if w.Count >= limit {
			return false
		}
		w.Count++
		return true
	}
}

func runRateWindowStoreTests(t *testing.T, store RateWindowStore, tag string) {
	ctx := context.Background()
	key := func(s string) string { return s + tag }
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("creates lazily with count zero", func(t *testing.T) {
		var seen models.RateWindow
		w, err := store.Update(ctx, key("fresh"), now, func(w *models.RateWindow) bool {
			seen = *w
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, key("fresh"), seen.ClientKey)
		assert.Zero(t, seen.Count)
		assert.True(t, seen.WindowStart.Equal(now))
		assert.Zero(t, w.Count)
	})

	t.Run("saves only when changed", func(t *testing.T) {
		_, err := store.Update(ctx, key("save"), now, countUpTo(10))
		require.NoError(t, err)

		_, err = store.Update(ctx, key("save"), now, func(w *models.RateWindow) bool {
			w.Count = 99
			return false
		})
		require.NoError(t, err)

		w, err := store.Update(ctx, key("save"), now, func(*models.RateWindow) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("persists window start", func(t *testing.T) {
		later := now.Add(90 * time.Second)
		_, err := store.Update(ctx, key("reset"), now, countUpTo(10))
		require.NoError(t, err)

		_, err = store.Update(ctx, key("reset"), later, func(w *models.RateWindow) bool {
			w.Reset(later)
			return true
		})
		require.NoError(t, err)

		w, err := store.Update(ctx, key("reset"), later, func(*models.RateWindow) bool { return false })
		require.NoError(t, err)
		assert.True(t, w.WindowStart.Equal(later))
		assert.Zero(t, w.Count)
	})

	t.Run("concurrent capped increments admit exactly limit", func(t *testing.T) {
		const limit, extra = 5, 25
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		for range limit + extra {
			wg.Add(1)
			go func() {
				defer wg.Done()
				allowed := false
				_, err := store.Update(ctx, key("burst"), now, func(w *models.RateWindow) bool {
					allowed = w.Count < limit
					return countUpTo(limit)(w)
				})
				if !assert.NoError(t, err) {
					return
				}
				if allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, limit, admitted)

		w, err := store.Update(ctx, key("burst"), now, func(*models.RateWindow) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, limit, w.Count)
	})

	t.Run("keys are independent", func(t *testing.T) {
		for range 3 {
			_, err := store.Update(ctx, key("a"), now, countUpTo(10))
			require.NoError(t, err)
		}
		w, err := store.Update(ctx, key("b"), now, countUpTo(10))
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, store.HealthCheck(ctx))
	})
}

type sweepableStore interface {
	RateWindowStore
	WindowSweeper
}

// runWindowSweeperTests checks that sweeping behaves like the limiter's
// own reset: stale windows start over, live ones keep their count.
func runWindowSweeperTests(t *testing.T, store sweepableStore, tag string) {
	ctx := context.Background()
	key := func(s string) string { return s + tag }
	now := time.Now().UTC().Truncate(time.Microsecond)
	stale := now.Add(-24 * time.Hour)

	for i := 0; i < 3; i++ {
		_, err := store.Update(ctx, key("stale"), stale, countUpTo(10))
		require.NoError(t, err)
		_, err = store.Update(ctx, key("live"), now, countUpTo(10))
		require.NoError(t, err)
	}

	removed, err := store.Sweep(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	var seen models.RateWindow
	_, err = store.Update(ctx, key("stale"), now, func(w *models.RateWindow) bool {
		seen = *w
		return false
	})
	require.NoError(t, err)
	assert.Zero(t, seen.Count)
	assert.True(t, seen.WindowStart.Equal(now))

	w, err := store.Update(ctx, key("live"), now, func(*models.RateWindow) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 3, w.Count)
}
