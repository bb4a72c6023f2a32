package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/deletequeue"
	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
	"github.com/cloudgather/cloudgather/internal/syncengine"
)

// SyncRunner executes one sync-task run to completion. The concrete
// implementation lives in internal/syncengine; Scheduler depends only on
// this interface so it can be unit-tested with a fake.
type SyncRunner interface {
	Run(ctx context.Context, task model.SyncTask) (model.Stats, error)
}

// StubRunner executes one stub-task run to completion. The concrete
// implementation lives in internal/stubgen.
type StubRunner interface {
	Run(ctx context.Context, task model.StubTask) (model.Stats, error)
}

// Paths locates the two on-disk task-system config files this Scheduler
// persists to (§6.1).
type Paths struct {
	SyncFile string
	StubFile string
}

// Scheduler owns the task registries, their timers, the dispatch queue, and
// the single consumer goroutine that turns a dispatched job into a call
// into SyncRunner/StubRunner (§4.1).
type Scheduler struct {
	paths  Paths
	logger *zap.SugaredLogger
	store  *store.Store

	syncRunner SyncRunner
	stubRunner StubRunner

	reg     *registry
	trig    *triggerSet
	queue   *dispatchQueue
	saveMu  sync.Mutex

	overwriteMu   sync.Mutex
	overwriteOnce map[uuid.UUID]bool

	runCtx    context.Context
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

// New constructs a Scheduler and loads both task-system files from disk. A
// missing file yields zero tasks rather than an error (§6.1). st is the
// metadata store used to discharge the deferred-deletion queue around every
// sync execution (§4.4 "invoked at the start and end of every sync
// execution for that task").
func New(paths Paths, logger *zap.SugaredLogger, st *store.Store, syncRunner SyncRunner, stubRunner StubRunner) (*Scheduler, error) {
	queue := newDispatchQueue()

	s := &Scheduler{
		paths:         paths,
		logger:        logger,
		store:         st,
		syncRunner:    syncRunner,
		stubRunner:    stubRunner,
		reg:           newRegistry(),
		trig:          newTriggerSet(queue),
		queue:         queue,
		overwriteOnce: make(map[uuid.UUID]bool),
	}

	syncTasks, err := loadSyncFile(paths.SyncFile)
	if err != nil {
		return nil, err
	}

	for _, t := range syncTasks {
		t.Status = model.StatusIdle
		if err := s.reg.addSync(t); err != nil {
			return nil, fmt.Errorf("scheduler: load %s: %w", paths.SyncFile, err)
		}
	}

	stubTasks, err := loadStubFile(paths.StubFile)
	if err != nil {
		return nil, err
	}

	for _, t := range stubTasks {
		t.Status = model.StatusIdle
		if err := s.reg.addStub(t); err != nil {
			return nil, fmt.Errorf("scheduler: load %s: %w", paths.StubFile, err)
		}
	}

	if err := s.autoMigrateCache(context.Background(), syncTasks); err != nil {
		return nil, fmt.Errorf("scheduler: auto-migrate cache: %w", err)
	}

	return s, nil
}

// autoMigrateCache implements §4.1's "Auto-migration on boot": if the
// metadata store reports zero file-cache entries across every task while
// sync tasks are already configured, the store predates cache tracking (or
// was reset) and every loaded sync task's cache is rebuilt from its target
// tree, the same way a manual reconstruct-cache call would (§4.2).
func (s *Scheduler) autoMigrateCache(ctx context.Context, syncTasks []model.SyncTask) error {
	if s.store == nil || len(syncTasks) == 0 {
		return nil
	}

	count, err := s.store.GetCacheCount(ctx, "")
	if err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	for _, t := range syncTasks {
		written, err := syncengine.ReconstructCache(ctx, s.store, t.ID.String(), t.Source, t.Target)
		if err != nil {
			s.logger.Errorw("auto-migration reconstruct failed", "task_id", t.ID, "error", err)
			continue
		}

		s.logger.Infow("auto-migration reconstructed cache", "task_id", t.ID, "entries", written)
	}

	return nil
}

// Start launches the dispatch consumer and every enabled task's timer. It
// does not block.
func (s *Scheduler) Start() {
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	for _, t := range s.reg.allSync() {
		s.trig.start(model.SystemSync, t.ID, t.Schedule, t.Enabled)
	}

	for _, t := range s.reg.allStub() {
		s.trig.start(model.SystemStub, t.ID, t.Schedule, t.Enabled)
	}

	s.runWG.Add(1)
	go s.consume()
}

// Stop cancels every timer, stops accepting new dispatch, and waits for
// in-flight runs to observe ctx cancellation and return.
func (s *Scheduler) Stop() {
	s.trig.stopAll()

	if s.runCancel != nil {
		s.runCancel()
	}

	s.runWG.Wait()
}

func (s *Scheduler) consume() {
	defer s.runWG.Done()

	for {
		select {
		case <-s.runCtx.Done():
			return
		case j := <-s.queue.ch:
			s.dispatch(j)
		}
	}
}

// dispatch flips a QUEUED task to RUNNING and executes it to completion
// before returning. The consumer calls dispatch directly from its own
// goroutine (no inner `go`), so task executions are totally ordered across
// the whole scheduler (§5 "a single dispatch consumer executes tasks
// sequentially" / "Task executions are totally ordered (single consumer)").
// The per-file worker pool inside the sync engine remains the only
// intra-task parallelism.
func (s *Scheduler) dispatch(j job) {
	switch j.system {
	case model.SystemSync:
		// Timer jobs arrive with the task still IDLE; TriggerNow has already
		// moved its task to QUEUED before pushing.
		if err := s.reg.tryEnqueueSync(j.id); err != nil {
			if t, ok := s.reg.getSync(j.id); !ok || t.Status != model.StatusQueued {
				return
			}
		}

		s.execSync(j.id)
	case model.SystemStub:
		if err := s.reg.tryEnqueueStub(j.id); err != nil {
			if t, ok := s.reg.getStub(j.id); !ok || t.Status != model.StatusQueued {
				return
			}
		}

		s.execStub(j.id)
	}
}

func (s *Scheduler) execSync(id uuid.UUID) {
	s.reg.setSyncStatus(id, model.StatusRunning)

	task, ok := s.reg.getSync(id)
	if !ok {
		s.reg.setSyncStatus(id, model.StatusIdle)

		return
	}

	s.dischargeDeletions(task)

	stats, err := s.syncRunner.Run(s.runCtx, task)

	s.dischargeDeletions(task)

	if original, wasOneShot := s.takeOverwriteOnce(id); wasOneShot {
		s.reg.mutateSync(id, func(t *model.SyncTask) { t.Rules.OverwriteAll = original })
	}

	now := time.Now().UTC()
	final := model.StatusIdle

	if err != nil {
		final = model.StatusError
		s.logger.Errorw("sync task run failed", "task_id", id, "task_name", task.Name, "error", err)
	} else {
		s.logger.Infow("sync task run completed", "task_id", id, "task_name", task.Name,
			"total", stats.Total, "synced", stats.Success, "failed", stats.Failed)
	}

	s.reg.mutateSync(id, func(t *model.SyncTask) {
		t.LastRun = &now
		t.Status = final
	})

	if err := s.SaveSync(); err != nil {
		s.logger.Errorw("persist sync tasks after run", "error", err)
	}
}

// dischargeDeletions runs one deletion-queue discharge pass for task, logging
// but not propagating errors — a discharge failure must never block the
// sync run it brackets (§4.4 "on error, leave the record for retry").
func (s *Scheduler) dischargeDeletions(task model.SyncTask) {
	if s.store == nil || !task.Deletion.Enabled {
		return
	}

	result, err := deletequeue.Discharge(s.runCtx, s.store, s.logger, task.ID.String(), task.Source, task.Deletion)
	if err != nil {
		s.logger.Errorw("deletion discharge failed", "task_id", task.ID, "error", err)

		return
	}

	if result.Deleted > 0 || result.Failed > 0 {
		s.logger.Infow("deletion discharge completed", "task_id", task.ID,
			"deleted", result.Deleted, "skipped", result.Skipped, "failed", result.Failed, "pruned", len(result.Pruned))
	}
}

func (s *Scheduler) execStub(id uuid.UUID) {
	s.reg.setStubStatus(id, model.StatusRunning)

	task, ok := s.reg.getStub(id)
	if !ok {
		s.reg.setStubStatus(id, model.StatusIdle)

		return
	}

	stats, err := s.stubRunner.Run(s.runCtx, task)

	now := time.Now().UTC()
	final := model.StatusIdle

	if err != nil {
		final = model.StatusError
		s.logger.Errorw("stub task run failed", "task_id", id, "task_name", task.Name, "error", err)
	} else {
		s.logger.Infow("stub task run completed", "task_id", id, "task_name", task.Name,
			"total", stats.Total, "synced", stats.Success, "failed", stats.Failed)
	}

	s.reg.mutateStub(id, func(t *model.StubTask) {
		t.LastRun = &now
		t.Status = final
	})

	if err := s.SaveStub(); err != nil {
		s.logger.Errorw("persist stub tasks after run", "error", err)
	}
}

// AddSyncTask registers a new sync task, assigning it a fresh id if t.ID is
// the zero UUID, persists the registry, and starts its timer.
func (s *Scheduler) AddSyncTask(t model.SyncTask) (model.SyncTask, error) {
	if t.ID == uuid.Nil {
		t.ID = newTaskID()
	}

	t.Status = model.StatusIdle

	if err := s.reg.addSync(t); err != nil {
		return model.SyncTask{}, err
	}

	if err := s.SaveSync(); err != nil {
		return model.SyncTask{}, err
	}

	if s.runCtx != nil {
		s.trig.start(model.SystemSync, t.ID, t.Schedule, t.Enabled)
	}

	return t, nil
}

// AddStubTask is AddSyncTask's stub-variant counterpart.
func (s *Scheduler) AddStubTask(t model.StubTask) (model.StubTask, error) {
	if t.ID == uuid.Nil {
		t.ID = newTaskID()
	}

	t.Status = model.StatusIdle

	if err := s.reg.addStub(t); err != nil {
		return model.StubTask{}, err
	}

	if err := s.SaveStub(); err != nil {
		return model.StubTask{}, err
	}

	if s.runCtx != nil {
		s.trig.start(model.SystemStub, t.ID, t.Schedule, t.Enabled)
	}

	return t, nil
}

// RemoveSyncTask stops the task's timer, removes it from the registry, and
// persists the change.
func (s *Scheduler) RemoveSyncTask(id uuid.UUID) error {
	s.trig.stop(id)

	if !s.reg.removeSync(id) {
		return ErrNotFound
	}

	return s.SaveSync()
}

func (s *Scheduler) RemoveStubTask(id uuid.UUID) error {
	s.trig.stop(id)

	if !s.reg.removeStub(id) {
		return ErrNotFound
	}

	return s.SaveStub()
}

// UpdateSyncTask replaces every field the control plane is allowed to
// change (name, paths, schedule, enabled, rules, filters, deletion policy,
// workers) while leaving Status/LastRun alone, then restarts its timer so a
// schedule change takes effect immediately (§6.4 full-overwrite update).
func (s *Scheduler) UpdateSyncTask(id uuid.UUID, t model.SyncTask) error {
	ok := s.reg.mutateSync(id, func(cur *model.SyncTask) {
		status, lastRun := cur.Status, cur.LastRun
		*cur = t
		cur.ID = id
		cur.Status = status
		cur.LastRun = lastRun
	})

	if !ok {
		return ErrNotFound
	}

	if err := s.SaveSync(); err != nil {
		return err
	}

	updated, _ := s.reg.getSync(id)
	s.trig.start(model.SystemSync, id, updated.Schedule, updated.Enabled)

	return nil
}

func (s *Scheduler) UpdateStubTask(id uuid.UUID, t model.StubTask) error {
	ok := s.reg.mutateStub(id, func(cur *model.StubTask) {
		status, lastRun := cur.Status, cur.LastRun
		*cur = t
		cur.ID = id
		cur.Status = status
		cur.LastRun = lastRun
	})

	if !ok {
		return ErrNotFound
	}

	if err := s.SaveStub(); err != nil {
		return err
	}

	updated, _ := s.reg.getStub(id)
	s.trig.start(model.SystemStub, id, updated.Schedule, updated.Enabled)

	return nil
}

// ToggleSync flips Enabled and restarts (or stops) the task's timer
// accordingly.
func (s *Scheduler) ToggleSync(id uuid.UUID, enabled bool) error {
	ok := s.reg.mutateSync(id, func(t *model.SyncTask) { t.Enabled = enabled })
	if !ok {
		return ErrNotFound
	}

	if err := s.SaveSync(); err != nil {
		return err
	}

	t, _ := s.reg.getSync(id)
	s.trig.start(model.SystemSync, id, t.Schedule, t.Enabled)

	return nil
}

func (s *Scheduler) ToggleStub(id uuid.UUID, enabled bool) error {
	ok := s.reg.mutateStub(id, func(t *model.StubTask) { t.Enabled = enabled })
	if !ok {
		return ErrNotFound
	}

	if err := s.SaveStub(); err != nil {
		return err
	}

	t, _ := s.reg.getStub(id)
	s.trig.start(model.SystemStub, id, t.Schedule, t.Enabled)

	return nil
}

// TriggerNow enqueues an immediate run, bypassing the timer. Returns
// ErrNotIdle if the task is already QUEUED or RUNNING (§4.1).
func (s *Scheduler) TriggerNow(system model.System, id uuid.UUID) error {
	switch system {
	case model.SystemSync:
		if err := s.reg.tryEnqueueSync(id); err != nil {
			return err
		}
	case model.SystemStub:
		if err := s.reg.tryEnqueueStub(id); err != nil {
			return err
		}
	default:
		return fmt.Errorf("scheduler: unknown system %q", system)
	}

	s.queue.push(job{system: system, id: id})

	return nil
}

// TriggerFullOverwrite implements §6.4's full-overwrite operation: the next
// run of the sync task at id executes with Rules.OverwriteAll forced true,
// regardless of the task's persisted setting, which is restored unchanged
// once that run completes.
func (s *Scheduler) TriggerFullOverwrite(id uuid.UUID) error {
	task, ok := s.reg.getSync(id)
	if !ok {
		return ErrNotFound
	}

	s.overwriteMu.Lock()
	s.overwriteOnce[id] = task.Rules.OverwriteAll
	s.overwriteMu.Unlock()

	s.reg.mutateSync(id, func(t *model.SyncTask) { t.Rules.OverwriteAll = true })

	return s.TriggerNow(model.SystemSync, id)
}

// takeOverwriteOnce returns and clears any pending one-shot overwrite
// restoration value for id.
func (s *Scheduler) takeOverwriteOnce(id uuid.UUID) (bool, bool) {
	s.overwriteMu.Lock()
	defer s.overwriteMu.Unlock()

	v, ok := s.overwriteOnce[id]
	if ok {
		delete(s.overwriteOnce, id)
	}

	return v, ok
}

// GetSync, GetStub, GetAllSync, GetAllStub are read accessors for the
// control plane's status/list endpoints.
func (s *Scheduler) GetSync(id uuid.UUID) (model.SyncTask, bool) { return s.reg.getSync(id) }
func (s *Scheduler) GetStub(id uuid.UUID) (model.StubTask, bool) { return s.reg.getStub(id) }
func (s *Scheduler) GetAllSync() []model.SyncTask                { return s.reg.allSync() }
func (s *Scheduler) GetAllStub() []model.StubTask                { return s.reg.allStub() }

// QueueSize reports the number of jobs currently buffered in the dispatch
// queue, awaiting the consumer.
func (s *Scheduler) QueueSize() int { return s.queue.size() }

// Running reports whether Start has been called and Stop has not yet
// completed, for the control plane's status snapshot (§6.4).
func (s *Scheduler) Running() bool {
	if s.runCtx == nil {
		return false
	}

	return s.runCtx.Err() == nil
}

// NextRunTime reports when a given task's trigger will next fire.
func (s *Scheduler) NextRunTime(system model.System, id uuid.UUID, from time.Time) (time.Time, bool) {
	switch system {
	case model.SystemSync:
		t, ok := s.reg.getSync(id)
		if !ok {
			return time.Time{}, false
		}

		return NextRunTime(t.Schedule, from)
	case model.SystemStub:
		t, ok := s.reg.getStub(id)
		if !ok {
			return time.Time{}, false
		}

		return NextRunTime(t.Schedule, from)
	default:
		return time.Time{}, false
	}
}

// ReloadFromDisk re-reads both task-system files and registers any task
// present on disk that isn't already held in memory, starting its timer if
// the scheduler is running. This is additive discovery, not an
// authoritative resync — an in-flight or already-loaded task is left
// untouched — generalizing the teacher's SIGHUP config-reload signal to
// this daemon's only on-disk config: its two task files, for an operator
// who hand-edits them while the daemon is running.
func (s *Scheduler) ReloadFromDisk() (int, error) {
	syncTasks, err := loadSyncFile(s.paths.SyncFile)
	if err != nil {
		return 0, err
	}

	stubTasks, err := loadStubFile(s.paths.StubFile)
	if err != nil {
		return 0, err
	}

	added := 0

	for _, t := range syncTasks {
		if _, ok := s.reg.getSync(t.ID); ok {
			continue
		}

		t.Status = model.StatusIdle
		if err := s.reg.addSync(t); err != nil {
			continue
		}

		added++

		if s.runCtx != nil {
			s.trig.start(model.SystemSync, t.ID, t.Schedule, t.Enabled)
		}
	}

	for _, t := range stubTasks {
		if _, ok := s.reg.getStub(t.ID); ok {
			continue
		}

		t.Status = model.StatusIdle
		if err := s.reg.addStub(t); err != nil {
			continue
		}

		added++

		if s.runCtx != nil {
			s.trig.start(model.SystemStub, t.ID, t.Schedule, t.Enabled)
		}
	}

	return added, nil
}

// ReconstructCache implements §6.4's reconstruct-cache operation: it rebuilds
// the metadata store's file_cache rows for a sync task by walking its target
// tree (§4.2 "Reconstruct cache from target").
func (s *Scheduler) ReconstructCache(ctx context.Context, id uuid.UUID) (int, error) {
	task, ok := s.reg.getSync(id)
	if !ok {
		return 0, ErrNotFound
	}

	if s.store == nil {
		return 0, fmt.Errorf("scheduler: reconstruct cache: no store configured")
	}

	return syncengine.ReconstructCache(ctx, s.store, task.ID.String(), task.Source, task.Target)
}

// SaveSync and SaveStub persist the current registry snapshot to disk.
// Serialized by saveMu so concurrent task completions don't interleave
// writes to the same file.
func (s *Scheduler) SaveSync() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	return saveSyncFile(s.paths.SyncFile, s.reg.allSync())
}

func (s *Scheduler) SaveStub() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	return saveStubFile(s.paths.StubFile, s.reg.allStub())
}
