package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetConfig reads a scalar config value, returning ("", false, nil) if
// absent.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)

	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("store: get config %q: %w", key, err)
	default:
		return value, true, nil
	}
}

// SetConfig UPSERTs a scalar config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: set config %q: %w", key, err)
	}

	return nil
}
