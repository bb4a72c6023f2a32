package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
)

// DeleteRecord mirrors the delete_queue row shape (§3 Delete record).
type DeleteRecord struct {
	ID           int64
	TaskID       string
	SourcePath   string
	DeleteAt     time.Time
	DeleteParent bool
	TimeBase     model.TimeBase
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddDeleteRecord UPSERTs a delete record keyed by source_path (§3 invariant
// 3: source_path is unique; UPSERT replaces). created_at is preserved across
// an UPSERT; updated_at always advances.
func (s *Store) AddDeleteRecord(ctx context.Context, taskID, sourcePath string, deleteAt time.Time, deleteParent bool, timeBase model.TimeBase) error {
	now := time.Now().UTC()

	const q = `
INSERT INTO delete_queue (task_id, source_path, delete_at, delete_parent, time_base, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_path) DO UPDATE SET
	task_id = excluded.task_id,
	delete_at = excluded.delete_at,
	delete_parent = excluded.delete_parent,
	time_base = excluded.time_base,
	updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, taskID, sourcePath, deleteAt.UTC(), deleteParent, string(timeBase), now, now); err != nil {
		return fmt.Errorf("store: add delete record for %q: %w", sourcePath, err)
	}

	return nil
}

// GetExpiredRecords returns delete records for taskID whose delete_at has
// already passed (§3 invariant 4: discharged exactly once per scan).
func (s *Store) GetExpiredRecords(ctx context.Context, taskID string, now time.Time) ([]DeleteRecord, error) {
	const q = `
SELECT id, task_id, source_path, delete_at, delete_parent, time_base, created_at, updated_at
FROM delete_queue WHERE task_id = ? AND delete_at <= ?`

	return s.queryDeleteRecords(ctx, q, taskID, now.UTC())
}

// GetPendingRecords returns delete records for taskID whose delete_at has
// NOT yet passed, optionally restricted to those under baseDir. Used by
// directory pruning to check for future work under a candidate ancestor
// (§4.4 directory pruning, "no pending delete records under this
// directory").
func (s *Store) GetPendingRecords(ctx context.Context, taskID string, now time.Time, baseDir string) ([]DeleteRecord, error) {
	q := `
SELECT id, task_id, source_path, delete_at, delete_parent, time_base, created_at, updated_at
FROM delete_queue WHERE task_id = ? AND delete_at > ?`

	args := []any{taskID, now.UTC()}

	if baseDir != "" {
		q += " AND source_path LIKE ? || '%'"
		args = append(args, baseDir)
	}

	return s.queryDeleteRecords(ctx, q, args...)
}

func (s *Store) queryDeleteRecords(ctx context.Context, q string, args ...any) ([]DeleteRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query delete records: %w", err)
	}
	defer rows.Close()

	var out []DeleteRecord

	for rows.Next() {
		var (
			r        DeleteRecord
			timeBase string
		)

		if err := rows.Scan(&r.ID, &r.TaskID, &r.SourcePath, &r.DeleteAt, &r.DeleteParent, &timeBase, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan delete record: %w", err)
		}

		r.TimeBase = model.TimeBase(timeBase)
		out = append(out, r)
	}

	return out, rows.Err()
}

// RemoveByID deletes one or more delete_queue rows by id, discharging them.
func (s *Store) RemoveByID(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM delete_queue WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: remove delete record %d: %w", id, err)
		}
	}

	return nil
}
