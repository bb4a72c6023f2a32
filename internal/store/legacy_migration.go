package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
)

// legacyMigratedKey is the config key that marks the one-shot legacy
// delete-queue migration complete (§6.2).
const legacyMigratedKey = "delete_queue_migrated"

// legacyDeleteRecord is the shape of one element of the legacy on-disk
// delete_queue JSON array that older scheduler config files carried inline
// (§6.1: "the sync-tasks file also historically carried delete_queue").
type legacyDeleteRecord struct {
	TaskID       string `json:"task_id"`
	SourcePath   string `json:"source_path"`
	DeleteAt     string `json:"delete_at"`
	DeleteParent bool   `json:"delete_parent"`
	TimeBase     string `json:"time_base"`
}

// MigrateFromLegacyJSON reads a JSON array of legacy delete records and
// UPSERTs them into delete_queue, then marks the migration complete so it
// never runs twice. A no-op (returns nil immediately) if already migrated.
func (s *Store) MigrateFromLegacyJSON(ctx context.Context, raw []byte) error {
	_, already, err := s.GetConfig(ctx, legacyMigratedKey)
	if err != nil {
		return err
	}

	if already {
		return nil
	}

	var records []legacyDeleteRecord
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return fmt.Errorf("store: decode legacy delete queue: %w", err)
		}
	}

	for _, r := range records {
		deleteAt, err := time.Parse(time.RFC3339, r.DeleteAt)
		if err != nil {
			return fmt.Errorf("store: legacy record %q: bad delete_at %q: %w", r.SourcePath, r.DeleteAt, err)
		}

		timeBase := model.TimeBase(r.TimeBase)
		if timeBase != model.TimeBaseFileCreate {
			timeBase = model.TimeBaseSyncComplete
		}

		if err := s.AddDeleteRecord(ctx, r.TaskID, r.SourcePath, deleteAt, r.DeleteParent, timeBase); err != nil {
			return err
		}
	}

	return s.SetConfig(ctx, legacyMigratedKey, "true")
}
