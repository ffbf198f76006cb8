package store

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrations are applied in order; a released entry is never edited.
var migrations = []migration{
	{
		version: 1,
		name:    "response cache",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS response_cache (
				cache_key TEXT PRIMARY KEY,
				response_json TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at)`,
		},
	},
	{
		version: 2,
		name:    "rate windows",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS rate_windows (
				category TEXT PRIMARY KEY,
				requests_used INTEGER NOT NULL DEFAULT 0,
				window_reset_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		},
	},
}

// Migrate applies pending schema migrations and records each one in
// schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a new store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	var version int
	err = s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}
