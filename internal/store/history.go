package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// historyDedupWindow is the window within which an identical
// (task_id, path, status) triple is suppressed as a duplicate (§3 History
// record: "Deduplicated by (task-id, path, status) within a short window").
const historyDedupWindow = 2 * time.Second

// AddHistoryRecord appends an audit row, unless an identical
// (task_id, path, status) row was already recorded within the dedup window.
func (s *Store) AddHistoryRecord(ctx context.Context, taskID, path, status, details string) error {
	now := time.Now().UTC()

	var dupCount int

	const dupQ = `
SELECT COUNT(*) FROM history
WHERE task_id = ? AND path = ? AND status = ? AND timestamp >= ?`

	cutoff := now.Add(-historyDedupWindow)
	if err := s.db.QueryRowContext(ctx, dupQ, taskID, path, status, cutoff).Scan(&dupCount); err != nil {
		return fmt.Errorf("store: check history dedup: %w", err)
	}

	if dupCount > 0 {
		return nil
	}

	const insertQ = `INSERT INTO history (task_id, path, status, details, timestamp) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, insertQ, taskID, path, status, nullString(details), now); err != nil {
		return fmt.Errorf("store: add history record: %w", err)
	}

	return nil
}

// HistoryRecord mirrors one history row.
type HistoryRecord struct {
	ID        int64
	TaskID    string
	Path      string
	Status    string
	Details   string
	Timestamp time.Time
}

// ListHistory returns the most recent history rows for taskID, newest
// first, bounded by limit.
func (s *Store) ListHistory(ctx context.Context, taskID string, limit int) ([]HistoryRecord, error) {
	const q = `
SELECT id, task_id, path, status, details, timestamp FROM history
WHERE task_id = ? ORDER BY timestamp DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord

	for rows.Next() {
		var (
			r       HistoryRecord
			details sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.TaskID, &r.Path, &r.Status, &details, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan history record: %w", err)
		}

		r.Details = details.String
		out = append(out, r)
	}

	return out, rows.Err()
}
