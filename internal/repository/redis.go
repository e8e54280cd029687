package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emadnahed/linkguard/internal/cache"
	"github.com/emadnahed/linkguard/internal/models"
)

const (
	backendRedis = "redis"

	fieldTarget      = "target"
	fieldCreatedAt   = "created_at"
	fieldAccessCount = "access_count"
	fieldWindowStart = "window_start"
	fieldCount       = "count"

	// DefaultMaxTxRetries bounds optimistic transaction retries per Update.
	DefaultMaxTxRetries = 50

	sweepScanCount = 500
)

// Ensure the Redis stores implement their contracts.
var (
	_ MappingStore    = (*RedisMappingStore)(nil)
	_ RateWindowStore = (*RedisRateWindowStore)(nil)
	_ WindowSweeper   = (*RedisRateWindowStore)(nil)
)

// createIfAbsent writes the mapping hash only when the key is free.
var createIfAbsent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'target', ARGV[1], 'created_at', ARGV[2], 'access_count', 0)
return 1
`)

// incrementIfPresent bumps access_count without recreating a missing key.
var incrementIfPresent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'access_count', 1)
`)

// deleteIfStale removes a rate window hash whose start is at or before
// ARGV[1] (unix microseconds). Running as a script keeps the check and the
// delete together; a WATCHing Update sees the delete and retries.
var deleteIfStale = redis.NewScript(`
local start = redis.call('HGET', KEYS[1], 'window_start')
if start and tonumber(start) <= tonumber(ARGV[1]) then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisMappingStore implements MappingStore with one hash per code.
type RedisMappingStore struct {
	client *cache.Client
	now    func() time.Time
}

// NewRedisMappingStore creates a Redis-backed mapping store.
func NewRedisMappingStore(client *cache.Client) *RedisMappingStore {
	return &RedisMappingStore{client: client, now: time.Now}
}

func (s *RedisMappingStore) key(code string) string {
	return s.client.Key("mapping", code)
}

// Exists reports whether code is taken.
func (s *RedisMappingStore) Exists(ctx context.Context, code string) (bool, error) {
	defer observe(backendRedis, "exists", time.Now())

	n, err := s.client.Exists(ctx, s.key(code)).Result()
	if err != nil {
		return false, classifyRedisError("exists "+code, err)
	}
	return n > 0, nil
}

// Create stores the mapping hash with a server-side existence check.
func (s *RedisMappingStore) Create(ctx context.Context, code, target string) (*models.Mapping, error) {
	defer observe(backendRedis, "create", time.Now())

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	ok, err := createIfAbsent.Run(ctx, s.client, []string{s.key(code)},
		target, createdAt.UnixMicro()).Int()
	if err != nil {
		return nil, classifyRedisError("create "+code, err)
	}
	if ok == 0 {
		return nil, fmt.Errorf("create %q: %w", code, models.ErrDuplicateCode)
	}

	return &models.Mapping{
		Code:      code,
		Target:    target,
		CreatedAt: createdAt,
	}, nil
}

// Get returns the mapping for code.
func (s *RedisMappingStore) Get(ctx context.Context, code string) (*models.Mapping, error) {
	defer observe(backendRedis, "get", time.Now())

	fields, err := s.client.HGetAll(ctx, s.key(code)).Result()
	if err != nil {
		return nil, classifyRedisError("get "+code, err)
	}
	if len(fields) == 0 {
		return nil, models.ErrNotFound
	}

	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("get %q: corrupt %s: %w", code, fieldCreatedAt, err)
	}
	count, err := strconv.ParseInt(fields[fieldAccessCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("get %q: corrupt %s: %w", code, fieldAccessCount, err)
	}

	return &models.Mapping{
		Code:        code,
		Target:      fields[fieldTarget],
		CreatedAt:   time.UnixMicro(createdAt).UTC(),
		AccessCount: count,
	}, nil
}

// IncrementAccessCount runs HINCRBY server-side.
func (s *RedisMappingStore) IncrementAccessCount(ctx context.Context, code string) error {
	defer observe(backendRedis, "increment", time.Now())

	n, err := incrementIfPresent.Run(ctx, s.client, []string{s.key(code)}).Int64()
	if err != nil {
		return classifyRedisError("increment "+code, err)
	}
	if n < 0 {
		return models.ErrNotFound
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisMappingStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

// RedisRateWindowStore implements RateWindowStore with WATCH/MULTI.
type RedisRateWindowStore struct {
	client     *cache.Client
	maxRetries int
}

// NewRedisRateWindowStore creates a Redis-backed rate window store.
// maxRetries <= 0 selects DefaultMaxTxRetries.
func NewRedisRateWindowStore(client *cache.Client, maxRetries int) *RedisRateWindowStore {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTxRetries
	}
	return &RedisRateWindowStore{client: client, maxRetries: maxRetries}
}

// Update reads the window under WATCH and commits fn's result in MULTI.
// A concurrent writer aborts the commit and the whole read-decide-write
// sequence is retried.
func (s *RedisRateWindowStore) Update(ctx context.Context, clientKey string, now time.Time, fn WindowFunc) (*models.RateWindow, error) {
	defer observe(backendRedis, "rate_update", time.Now())

	key := s.client.Key("rate", clientKey)
	var w models.RateWindow

	txf := func(tx *redis.Tx) error {
		w = models.RateWindow{ClientKey: clientKey, WindowStart: now}

		vals, err := tx.HMGet(ctx, key, fieldWindowStart, fieldCount).Result()
		if err != nil {
			return err
		}
		created := vals[0] == nil
		if !created {
			if err := decodeWindow(vals, &w); err != nil {
				return err
			}
		}

		if !fn(&w) && !created {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldWindowStart, w.WindowStart.UnixMicro(),
				fieldCount, w.Count,
			)
			return nil
		})
		return err
	}

	for range s.maxRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return &w, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("rate window %q: %w: %w", clientKey, models.ErrStoreUnavailable, err)
	}

	return nil, fmt.Errorf("rate window %q: %w: gave up after %d conflicting transactions",
		clientKey, models.ErrStoreUnavailable, s.maxRetries)
}

// Sweep scans the rate window keys and deletes those that started at or
// before cutoff.
func (s *RedisRateWindowStore) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	defer observe(backendRedis, "rate_sweep", time.Now())

	var removed int64
	iter := s.client.Scan(ctx, 0, s.client.Key("rate", "*"), sweepScanCount).Iterator()
	for iter.Next(ctx) {
		n, err := deleteIfStale.Run(ctx, s.client, []string{iter.Val()}, cutoff.UnixMicro()).Int64()
		if err != nil {
			return removed, fmt.Errorf("sweep rate windows: %w: %w", models.ErrStoreUnavailable, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep rate windows: %w: %w", models.ErrStoreUnavailable, err)
	}
	return removed, nil
}

// HealthCheck pings Redis.
func (s *RedisRateWindowStore) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func decodeWindow(vals []interface{}, w *models.RateWindow) error {
	start, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("corrupt %s: %v", fieldWindowStart, vals[0])
	}
	micros, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt %s: %w", fieldWindowStart, err)
	}
	w.WindowStart = time.UnixMicro(micros).UTC()

	if vals[1] != nil {
		raw, ok := vals[1].(string)
		if !ok {
			return fmt.Errorf("corrupt %s: %v", fieldCount, vals[1])
		}
		if w.Count, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("corrupt %s: %w", fieldCount, err)
		}
	}
	return nil
}

// classifyRedisError maps client errors onto the domain taxonomy.
func classifyRedisError(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
