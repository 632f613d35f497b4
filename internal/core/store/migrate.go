package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS votes (
		number INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		time TEXT NOT NULL,
		site TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_votes_site ON votes(site, number);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
