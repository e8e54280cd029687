package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// migrationLockID serialises concurrent Up calls from several instances.
const migrationLockID = 7_316_422_001

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Migrator applies and rolls back migrations.
type Migrator struct {
	pool       *Pool
	migrations []Migration
}

// NewMigrator creates a Migrator over the embedded mapping and rate window schema.
func NewMigrator(pool *Pool) (*Migrator, error) {
	migrations, err := loadMigrations(schemaFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return &Migrator{pool: pool, migrations: migrations}, nil
}

// NewMigratorWithMigrations creates a Migrator with the given migrations.
func NewMigratorWithMigrations(pool *Pool, migrations []Migration) *Migrator {
	return &Migrator{pool: pool, migrations: migrations}
}

// Migrations returns the known migrations in version order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// loadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs from dir.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		versionPart, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil {
			continue
		}

		var direction string
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(rest, ".down.sql"):
			direction = "down"
		default:
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		mig, exists := byVersion[version]
		if !exists {
			mig = &Migration{Version: version, Name: strings.TrimSuffix(rest, "."+direction+".sql")}
			byVersion[version] = mig
		}
		if direction == "up" {
			mig.UpSQL = string(content)
		} else {
			mig.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.UpSQL == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up script", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// EnsureMigrationsTable creates the tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// AppliedMigrations returns the applied migrations in version order.
func (m *Migrator) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := m.pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MigrationRecord, error) {
		var r MigrationRecord
		err := row.Scan(&r.Version, &r.Name, &r.AppliedAt)
		return r, err
	})
}

// Up applies every pending migration, each in its own transaction, and
// returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	applied := 0
	for _, mig := range m.migrations {
		done, err := m.apply(ctx, mig)
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if done {
			applied++
		}
	}
	return applied, nil
}

// apply runs mig unless another instance already recorded it.
func (m *Migrator) apply(ctx context.Context, mig Migration) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
			mig.Version).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}

		if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
			return fmt.Errorf("failed to execute up SQL: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			mig.Version, mig.Name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := applied[len(applied)-1]
	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last.Version {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil {
		return fmt.Errorf("migration %d not found", last.Version)
	}

	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if mig.DownSQL != "" {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return fmt.Errorf("failed to execute down SQL: %w", err)
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
		return err
	})
}

// CurrentVersion returns the highest applied version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	return applied[len(applied)-1].Version, nil
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *Pool) (int, error) {
	m, err := NewMigrator(pool)
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}
