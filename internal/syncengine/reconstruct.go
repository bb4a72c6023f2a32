package syncengine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

// reconstructBatchSize is the batch size the reconstruct procedure upserts
// in (§4.2 "Batched in groups of 500").
const reconstructBatchSize = 500

// ReconstructCache rebuilds the file cache for a task by walking its target
// tree and mapping each target file back to its mirrored source path,
// upserting a SYNCED entry when the source file still exists (§4.2
// "Reconstruct cache from target"). It is idempotent: re-running it over an
// unchanged target yields the same cache state modulo last_seen_at (§8.4).
func ReconstructCache(ctx context.Context, st *store.Store, taskID, source, target string) (int, error) {
	var (
		batch   []store.CacheEntry
		written int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		if err := st.BatchUpsertFileCache(ctx, batch); err != nil {
			return err
		}

		written += len(batch)
		batch = batch[:0]

		return nil
	}

	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".tmp_") {
			return nil
		}

		rel, err := filepath.Rel(target, path)
		if err != nil {
			return nil
		}

		sourcePath := filepath.Join(source, rel)

		sourceInfo, err := os.Stat(sourcePath)
		if err != nil {
			return nil
		}

		now := time.Now().UTC()

		batch = append(batch, store.CacheEntry{
			TaskID:     taskID,
			Path:       sourcePath,
			Size:       sourceInfo.Size(),
			MTime:      sourceInfo.ModTime(),
			Status:     model.CacheStatusSynced,
			SyncedAt:   &now,
			LastSeenAt: now,
			Metadata:   "reconstructed",
		})

		if len(batch) >= reconstructBatchSize {
			return flush()
		}

		return nil
	})
	if walkErr != nil {
		return written, fmt.Errorf("syncengine: reconstruct walk: %w", walkErr)
	}

	if err := flush(); err != nil {
		return written, fmt.Errorf("syncengine: reconstruct batch upsert: %w", err)
	}

	if err := st.AddHistoryRecord(ctx, taskID, target, "RECONSTRUCTED", fmt.Sprintf("%d entries", written)); err != nil {
		return written, fmt.Errorf("syncengine: reconstruct history: %w", err)
	}

	return written, nil
}
