package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
)

// CacheEntry mirrors the file_cache row shape (§3 File-cache entry).
type CacheEntry struct {
	TaskID     string
	Path       string
	Size       int64
	MTime      time.Time
	Hash       string
	HashAt     *time.Time
	Status     model.CacheStatus
	SyncedAt   *time.Time
	DeletedAt  *time.Time
	LastSeenAt time.Time
	LastError  string
	Metadata   string
}

// UpsertFileCache writes (or replaces) a single cache entry, keyed by
// (task_id, path).
func (s *Store) UpsertFileCache(ctx context.Context, e CacheEntry) error {
	return s.upsertFileCacheTx(ctx, s.db, e)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertFileCacheTx(ctx context.Context, x execer, e CacheEntry) error {
	const q = `
INSERT INTO file_cache (task_id, path, size, mtime, hash, hash_at, sync_status, synced_at, deleted_at, last_seen_at, last_error, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id, path) DO UPDATE SET
	size = excluded.size,
	mtime = excluded.mtime,
	hash = excluded.hash,
	hash_at = excluded.hash_at,
	sync_status = excluded.sync_status,
	synced_at = excluded.synced_at,
	deleted_at = excluded.deleted_at,
	last_seen_at = excluded.last_seen_at,
	last_error = excluded.last_error,
	metadata = excluded.metadata`

	_, err := x.ExecContext(ctx, q,
		e.TaskID, e.Path, e.Size, e.MTime, nullString(e.Hash), e.HashAt, string(e.Status),
		e.SyncedAt, e.DeletedAt, e.LastSeenAt, nullString(e.LastError), nullString(e.Metadata),
	)
	if err != nil {
		return fmt.Errorf("store: upsert file cache %s/%s: %w", e.TaskID, e.Path, err)
	}

	return nil
}

// BatchUpsertFileCache writes a slice of entries inside one transaction, in
// groups — the reconstruct-cache procedure calls this with batches of 500
// (§4.2 "Batched in groups of 500").
func (s *Store) BatchUpsertFileCache(ctx context.Context, entries []CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin batch upsert: %w", err)
	}

	for _, e := range entries {
		if err := s.upsertFileCacheTx(ctx, tx, e); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch upsert: %w", err)
	}

	return nil
}

// IsFileSynced reports whether the cache holds a SYNCED row for (taskID,
// path) — the verification guard the deletion subsystem checks before ever
// unlinking a source file (§4.4 "Verification guard").
func (s *Store) IsFileSynced(ctx context.Context, taskID, path string) (bool, error) {
	const q = `SELECT 1 FROM file_cache WHERE task_id = ? AND path = ? AND sync_status = ?`

	var dummy int
	err := s.db.QueryRowContext(ctx, q, taskID, path, string(model.CacheStatusSynced)).Scan(&dummy)

	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("store: is file synced %s/%s: %w", taskID, path, err)
	default:
		return true, nil
	}
}

// UpdateSyncStatus sets the status of an existing cache row and stamps both
// deleted_at and last_seen_at with at, whatever the status; the deletion
// subsystem calls it with DELETED after a successful unlink.
func (s *Store) UpdateSyncStatus(ctx context.Context, taskID, path string, status model.CacheStatus, at time.Time) error {
	const q = `UPDATE file_cache SET sync_status = ?, deleted_at = ?, last_seen_at = ? WHERE task_id = ? AND path = ?`

	if _, err := s.db.ExecContext(ctx, q, string(status), at, at, taskID, path); err != nil {
		return fmt.Errorf("store: update sync status %s/%s: %w", taskID, path, err)
	}

	return nil
}

// GetCacheCount returns the number of cache rows for taskID (or all tasks
// when taskID is empty) — used by the scheduler's auto-migration check
// (§4.1 "if the metadata store reports zero file-cache entries").
func (s *Store) GetCacheCount(ctx context.Context, taskID string) (int, error) {
	var (
		row *sql.Row
		n   int
	)

	if taskID == "" {
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_cache`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_cache WHERE task_id = ?`, taskID)
	}

	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: get cache count: %w", err)
	}

	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
