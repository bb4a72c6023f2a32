// Package store implements the embedded relational metadata store described
// in spec §4.6: the delete queue, file cache, history log, and small
// key/value config table that back the scheduler, sync engine, and
// deletion subsystem. Backed by modernc.org/sqlite (pure Go, no cgo) in
// WAL mode, with schema migrations applied via goose.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// walJournalSizeLimit bounds the WAL file at 64 MiB before a checkpoint is
// forced, so a long-running daemon doesn't grow its WAL unboundedly.
const walJournalSizeLimit = 67108864

// Store is the concrete SQLite-backed implementation of the metadata store.
// All writes pass through the single *sql.DB connection pool; SQLite's own
// locking serializes concurrent writers (§5 Shared-resource policy).
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open creates or opens the SQLite database at path (":memory:" for tests),
// sets pragmas, and runs pending migrations.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	logger.Infow("opening metadata store", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// In-memory databases must use a single connection — otherwise each
	// connection gets its own private database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infow("metadata store ready", "path", path)

	return &Store{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
		"PRAGMA busy_timeout = 5000",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw connection for components that need direct access
// outside the typed query surface below.
func (s *Store) DB() *sql.DB {
	return s.db
}
