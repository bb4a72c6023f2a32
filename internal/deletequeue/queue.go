// Package deletequeue implements the deferred-deletion subsystem: enqueuing
// a source file for later removal once it has been safely copied, and
// discharging matured records at the start and end of every sync run
// (spec §4.4).
package deletequeue

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

// Enqueue schedules sourcePath for deletion under policy, if the policy has
// deletion enabled. fileCreatedAt is only consulted when
// policy.TimeBase == FILE_CREATE. A disabled policy is a silent no-op —
// callers are not expected to check Enabled themselves (§4.4 Enqueue).
func Enqueue(ctx context.Context, st *store.Store, taskID, sourcePath string, policy model.DeletionPolicy, fileCreatedAt time.Time) error {
	if !policy.Enabled {
		return nil
	}

	base := time.Now().UTC()
	if policy.TimeBase == model.TimeBaseFileCreate {
		base = fileCreatedAt.UTC()
	}

	delayDays := policy.DelayDays
	if delayDays < 0 {
		delayDays = 0
	}

	matureAt := base.AddDate(0, 0, delayDays)

	return st.AddDeleteRecord(ctx, taskID, sourcePath, matureAt, policy.DeleteParent, policy.TimeBase)
}

// Result summarizes one discharge pass, used for logging and tests.
type Result struct {
	Deleted int
	Skipped int
	Failed  int
	Pruned  []string
}

// Discharge processes every matured delete record for taskID: verifies the
// path was actually SYNCED, removes it from disk, records history, and
// removes the record. On success it also attempts directory pruning up to
// policy.ParentLevels ancestors, when the originating task enables it
// (§4.4 Discharge, Directory pruning).
//
// sourceRoot and the pruning flags are passed per-call rather than looked
// up from a task record, since the discharge loop may span records whose
// policy fields differ only at enqueue time (a deletion policy could be
// edited between enqueue and discharge); the policy used for pruning here
// is a single value applying to the whole task, matching spec.md's model
// where deletion policy is task-level, not per-record.
func Discharge(ctx context.Context, st *store.Store, logger *zap.SugaredLogger, taskID, sourceRoot string, policy model.DeletionPolicy) (Result, error) {
	var res Result

	now := time.Now().UTC()

	records, err := st.GetExpiredRecords(ctx, taskID, now)
	if err != nil {
		return res, fmt.Errorf("deletequeue: get expired records: %w", err)
	}

	var deletedPaths []string

	for _, rec := range records {
		synced, err := st.IsFileSynced(ctx, taskID, rec.SourcePath)
		if err != nil {
			logger.Errorw("deletequeue: check synced status", "task_id", taskID, "path", rec.SourcePath, "error", err)

			res.Failed++

			continue
		}

		if !synced {
			// Verification guard: never delete a path the cache doesn't
			// positively confirm as SYNCED. Leave the record for a later
			// pass once (if ever) it is marked SYNCED.
			res.Skipped++

			continue
		}

		if _, statErr := os.Lstat(rec.SourcePath); os.IsNotExist(statErr) {
			if err := st.RemoveByID(ctx, rec.ID); err != nil {
				logger.Errorw("deletequeue: remove stale record", "task_id", taskID, "path", rec.SourcePath, "error", err)
			}

			continue
		}

		if err := os.RemoveAll(rec.SourcePath); err != nil {
			logger.Errorw("deletequeue: delete source file", "task_id", taskID, "path", rec.SourcePath, "error", err)

			res.Failed++

			continue
		}

		deletedAt := time.Now().UTC()

		if err := st.UpdateSyncStatus(ctx, taskID, rec.SourcePath, model.CacheStatusDeleted, deletedAt); err != nil {
			logger.Errorw("deletequeue: update cache status after delete", "task_id", taskID, "path", rec.SourcePath, "error", err)
		}

		if err := st.AddHistoryRecord(ctx, taskID, rec.SourcePath, "DELETED", ""); err != nil {
			logger.Errorw("deletequeue: append history", "task_id", taskID, "path", rec.SourcePath, "error", err)
		}

		if err := st.RemoveByID(ctx, rec.ID); err != nil {
			logger.Errorw("deletequeue: remove discharged record", "task_id", taskID, "path", rec.SourcePath, "error", err)
		}

		res.Deleted++

		deletedPaths = append(deletedPaths, rec.SourcePath)
	}

	if policy.DeleteParent && policy.ParentLevels >= 1 && len(deletedPaths) > 0 {
		pruned, err := pruneAncestors(ctx, st, taskID, sourceRoot, deletedPaths, policy)
		if err != nil {
			logger.Errorw("deletequeue: prune ancestors", "task_id", taskID, "error", err)
		}

		res.Pruned = pruned
	}

	return res, nil
}
