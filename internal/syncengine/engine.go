package syncengine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudgather/cloudgather/internal/deletequeue"
	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

// Engine runs one sync task's source->target replication to completion. It
// satisfies scheduler.SyncRunner. The engine never calls back into the
// scheduler (§9 Design Notes) — it only touches the metadata store and an
// optional progress callback.
type Engine struct {
	Store    *store.Store
	Logger   *zap.SugaredLogger
	Progress func(taskID string, stats model.Stats)
}

// Run implements scheduler.SyncRunner.
func (e *Engine) Run(ctx context.Context, task model.SyncTask) (model.Stats, error) {
	var stats model.Stats

	if err := validatePaths(task.Source, task.Target); err != nil {
		return stats, fmt.Errorf("syncengine: validate paths: %w", err)
	}

	for _, err := range cleanStaleTemp(task.Target) {
		e.Logger.Warnw("stale temp cleanup failed", "task_id", task.ID, "error", err)
	}

	pairs, enumErrs := enumerate(task.Source)
	for _, err := range enumErrs {
		e.Logger.Warnw("enumeration error", "task_id", task.ID, "error", err)
	}

	workers := task.EffectiveWorkers()

	var mu sync.Mutex

	if workers <= 1 {
		for _, p := range pairs {
			if ctx.Err() != nil {
				break
			}

			e.runOne(ctx, task, p, &stats, &mu)
		}

		return stats, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, p := range pairs {
		p := p

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			e.runOne(ctx, task, p, &stats, &mu)

			return nil
		})
	}

	_ = g.Wait()

	return stats, nil
}

// runOne executes the full per-file algorithm of §4.2 steps 1-7 for a
// single file, updating stats and the metadata store. It is safe to call
// concurrently across files of the same task: each invocation only touches
// its own file and appends to the shared Stats struct under mu.
func (e *Engine) runOne(ctx context.Context, task model.SyncTask, p filePair, stats *model.Stats, mu *sync.Mutex) {
	name := p.relPath
	base := baseName(name)

	record := func(o model.Outcome, errStr string, sourceInfo os.FileInfo) {
		mu.Lock()
		stats.Add(o)
		n := *stats
		mu.Unlock()

		if e.Progress != nil {
			e.Progress(task.ID.String(), n)
		}

		e.upsertCache(ctx, task, p, o, errStr, sourceInfo)

		if o == model.OutcomeSuccess || o == model.OutcomeSkippedUnchanged {
			e.enqueueDeletion(ctx, task, p, sourceInfo)
		}
	}

	if isIgnored(base) {
		record(model.OutcomeSkippedIgnored, "", nil)

		return
	}

	if !passesExtensionFilter(base, task.ExtFilter) {
		record(model.OutcomeSkippedFiltered, "", nil)

		return
	}

	sourceInfo, err := os.Stat(p.sourcePath)
	if err != nil {
		record(model.OutcomeFailed, err.Error(), nil)

		return
	}

	if !passesSizeFilter(sourceInfo.Size(), task.SizeFilter) {
		record(model.OutcomeSkippedFiltered, "", sourceInfo)

		return
	}

	targetPath := joinTarget(task.Target, p.relPath)

	targetInfo, err := statOrNil(targetPath)
	if err != nil {
		record(model.OutcomeFailed, err.Error(), sourceInfo)

		return
	}

	if !shouldSync(task.Rules, sourceInfo, targetInfo) {
		record(model.OutcomeSkippedUnchanged, "", sourceInfo)

		return
	}

	stable, err := isStable(p.sourcePath, sourceInfo.Size())
	if err != nil {
		record(model.OutcomeFailed, err.Error(), sourceInfo)

		return
	}

	if !stable {
		record(model.OutcomeSkippedActive, "", sourceInfo)

		return
	}

	if err := atomicCopy(p.sourcePath, targetPath, sourceInfo.Size(), task.RetryCount); err != nil {
		record(model.OutcomeFailed, err.Error(), sourceInfo)

		return
	}

	record(model.OutcomeSuccess, "", sourceInfo)
}

func (e *Engine) upsertCache(ctx context.Context, task model.SyncTask, p filePair, o model.Outcome, errStr string, sourceInfo os.FileInfo) {
	now := time.Now().UTC()

	entry := store.CacheEntry{
		TaskID:     task.ID.String(),
		Path:       p.sourcePath,
		Status:     model.CacheStatusFor(o),
		LastSeenAt: now,
		LastError:  errStr,
	}

	if sourceInfo != nil {
		entry.Size = sourceInfo.Size()
		entry.MTime = sourceInfo.ModTime()
	}

	if o == model.OutcomeSuccess {
		entry.SyncedAt = &now
	}

	if err := e.Store.UpsertFileCache(ctx, entry); err != nil {
		e.Logger.Errorw("upsert file cache", "task_id", task.ID, "path", p.sourcePath, "error", err)
	}
}

func (e *Engine) enqueueDeletion(ctx context.Context, task model.SyncTask, p filePair, sourceInfo os.FileInfo) {
	if !task.Deletion.Enabled {
		return
	}

	createdAt := time.Now()
	if sourceInfo != nil {
		createdAt = sourceInfo.ModTime()
	}

	if err := deletequeue.Enqueue(ctx, e.Store, task.ID.String(), p.sourcePath, task.Deletion, createdAt); err != nil {
		e.Logger.Errorw("enqueue delete record", "task_id", task.ID, "path", p.sourcePath, "error", err)
	}
}
