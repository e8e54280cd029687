package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emadnahed/linkguard/internal/database"
	"github.com/emadnahed/linkguard/internal/models"
)

const (
	backendPostgres = "postgres"

	// pgUniqueViolation is SQLSTATE unique_violation.
	pgUniqueViolation = "23505"
)

// Ensure the PostgreSQL stores implement their contracts.
var (
	_ MappingStore    = (*PostgresMappingStore)(nil)
	_ RateWindowStore = (*PostgresRateWindowStore)(nil)
	_ WindowSweeper   = (*PostgresRateWindowStore)(nil)
)

// PostgresMappingStore implements MappingStore using PostgreSQL.
type PostgresMappingStore struct {
	pool *database.Pool
}

// NewPostgresMappingStore creates a PostgreSQL-backed mapping store.
func NewPostgresMappingStore(pool *database.Pool) *PostgresMappingStore {
	return &PostgresMappingStore{pool: pool}
}

// Exists reports whether code is taken.
func (s *PostgresMappingStore) Exists(ctx context.Context, code string) (bool, error) {
	defer observe(backendPostgres, "exists", time.Now())

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM mappings WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, classifyPgError("exists "+code, err)
	}
	return exists, nil
}

// Create inserts a mapping. The unique constraint on code rejects
// duplicates even when two callers race past Exists.
func (s *PostgresMappingStore) Create(ctx context.Context, code, target string) (*models.Mapping, error) {
	defer observe(backendPostgres, "create", time.Now())

	query := `
		INSERT INTO mappings (code, target)
		VALUES ($1, $2)
		RETURNING code, target, created_at, access_count
	`

	var m models.Mapping
	err := s.pool.QueryRow(ctx, query, code, target).Scan(
		&m.Code,
		&m.Target,
		&m.CreatedAt,
		&m.AccessCount,
	)
	if err != nil {
		return nil, classifyPgError("create "+code, err)
	}
	return &m, nil
}

// Get retrieves the mapping for code.
func (s *PostgresMappingStore) Get(ctx context.Context, code string) (*models.Mapping, error) {
	defer observe(backendPostgres, "get", time.Now())

	query := `
		SELECT code, target, created_at, access_count
		FROM mappings
		WHERE code = $1
	`

	var m models.Mapping
	err := s.pool.QueryRow(ctx, query, code).Scan(
		&m.Code,
		&m.Target,
		&m.CreatedAt,
		&m.AccessCount,
	)
	if err != nil {
		return nil, classifyPgError("get "+code, err)
	}
	return &m, nil
}

// IncrementAccessCount adds one to access_count inside a single UPDATE.
func (s *PostgresMappingStore) IncrementAccessCount(ctx context.Context, code string) error {
	defer observe(backendPostgres, "increment", time.Now())

	tag, err := s.pool.Exec(ctx,
		`UPDATE mappings SET access_count = access_count + 1 WHERE code = $1`, code)
	if err != nil {
		return classifyPgError("increment "+code, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// HealthCheck pings the database.
func (s *PostgresMappingStore) HealthCheck(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// PostgresRateWindowStore implements RateWindowStore using PostgreSQL.
type PostgresRateWindowStore struct {
	pool *database.Pool
}

// NewPostgresRateWindowStore creates a PostgreSQL-backed rate window store.
func NewPostgresRateWindowStore(pool *database.Pool) *PostgresRateWindowStore {
	return &PostgresRateWindowStore{pool: pool}
}

// Update runs fn inside one transaction holding a row lock on the window,
// so concurrent updates for the same client serialise in the database.
func (s *PostgresRateWindowStore) Update(ctx context.Context, clientKey string, now time.Time, fn WindowFunc) (*models.RateWindow, error) {
	defer observe(backendPostgres, "rate_update", time.Now())

	w := models.RateWindow{ClientKey: clientKey}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// The no-op DO UPDATE locks an existing row and returns it; a missing
		// (or concurrently swept) row is inserted and locked instead.
		if err := tx.QueryRow(ctx, `
			INSERT INTO rate_windows (client_key, window_start, request_count)
			VALUES ($1, $2, 0)
			ON CONFLICT (client_key) DO UPDATE SET client_key = EXCLUDED.client_key
			RETURNING window_start, request_count
		`, clientKey, now).Scan(&w.WindowStart, &w.Count); err != nil {
			return err
		}

		if !fn(&w) {
			return nil
		}

		_, err := tx.Exec(ctx, `
			UPDATE rate_windows
			SET window_start = $2, request_count = $3
			WHERE client_key = $1
		`, clientKey, w.WindowStart, w.Count)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rate window %q: %w: %w", clientKey, models.ErrStoreUnavailable, err)
	}
	return &w, nil
}

// Sweep deletes windows that started at or before cutoff. A window locked
// by a running Update is re-checked after that transaction commits.
func (s *PostgresRateWindowStore) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	defer observe(backendPostgres, "rate_sweep", time.Now())

	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_windows WHERE window_start <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep rate windows: %w: %w", models.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// HealthCheck pings the database.
func (s *PostgresRateWindowStore) HealthCheck(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// classifyPgError maps driver errors onto the domain taxonomy.
func classifyPgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, models.ErrDuplicateCode)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
