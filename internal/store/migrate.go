package store

import (
	"context"
	_ "embed"
)

//go:embed migrate.sql
var migrateSQL string

// Migrate applies the full schema and the upsert procedures idempotently.
// Safe to call on every startup — all statements use IF NOT EXISTS or
// CREATE OR REPLACE.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrateSQL)
	return err
}
