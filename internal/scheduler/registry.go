// Package scheduler implements the task registry, triggers, dispatch queue,
// per-task state machine, and crash-safe persistence described in spec
// §4.1. It is the single owner of the scheduler singleton; callers
// (cmd/cloudgatherd, the control-plane adapter) pass it around rather than
// reaching for hidden package-level state (§9 Design Notes).
package scheduler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cloudgather/cloudgather/internal/model"
)

// ErrNotFound is returned by Update/Remove/TriggerNow when no task with
// the given id exists in the named system.
var ErrNotFound = fmt.Errorf("scheduler: task not found")

// ErrDuplicate is returned by AddTask when a task with the same id already
// exists in the named system (§3 invariant 1).
var ErrDuplicate = fmt.Errorf("scheduler: duplicate task id")

// ErrNotIdle is returned by TriggerNow when the task is not in IDLE state
// (§4.1 state machine: the IDLE-guard is the only place a double-enqueue is
// prevented).
var ErrNotIdle = fmt.Errorf("scheduler: task is not idle")

// registry holds the in-memory task maps of both task systems (one map for
// sync tasks, one for stub tasks), guarded by a
// single mutex (§5 Shared-resource policy: "Task registry: guarded by a
// single mutex; holds only in-memory map mutations").
type registry struct {
	mu       sync.Mutex
	sync     map[uuid.UUID]*model.SyncTask
	stub     map[uuid.UUID]*model.StubTask
}

func newRegistry() *registry {
	return &registry{
		sync: make(map[uuid.UUID]*model.SyncTask),
		stub: make(map[uuid.UUID]*model.StubTask),
	}
}

// addSync inserts t, returning ErrDuplicate if t.ID already exists.
func (r *registry) addSync(t model.SyncTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sync[t.ID]; ok {
		return ErrDuplicate
	}

	cp := t
	r.sync[t.ID] = &cp

	return nil
}

func (r *registry) addStub(t model.StubTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stub[t.ID]; ok {
		return ErrDuplicate
	}

	cp := t
	r.stub[t.ID] = &cp

	return nil
}

func (r *registry) removeSync(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sync[id]; !ok {
		return false
	}

	delete(r.sync, id)

	return true
}

func (r *registry) removeStub(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stub[id]; !ok {
		return false
	}

	delete(r.stub, id)

	return true
}

func (r *registry) getSync(id uuid.UUID) (model.SyncTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.sync[id]
	if !ok {
		return model.SyncTask{}, false
	}

	return *t, true
}

func (r *registry) getStub(id uuid.UUID) (model.StubTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.stub[id]
	if !ok {
		return model.StubTask{}, false
	}

	return *t, true
}

func (r *registry) allSync() []model.SyncTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.SyncTask, 0, len(r.sync))
	for _, t := range r.sync {
		out = append(out, *t)
	}

	return out
}

func (r *registry) allStub() []model.StubTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.StubTask, 0, len(r.stub))
	for _, t := range r.stub {
		out = append(out, *t)
	}

	return out
}

// tryEnqueueSync is the concurrency seam described in §4.1: it asserts
// status == IDLE and flips it to QUEUED atomically under the registry
// mutex, returning ErrNotFound or ErrNotIdle on failure.
func (r *registry) tryEnqueueSync(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.sync[id]
	if !ok {
		return ErrNotFound
	}

	if t.Status != model.StatusIdle {
		return ErrNotIdle
	}

	t.Status = model.StatusQueued

	return nil
}

func (r *registry) tryEnqueueStub(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.stub[id]
	if !ok {
		return ErrNotFound
	}

	if t.Status != model.StatusIdle {
		return ErrNotIdle
	}

	t.Status = model.StatusQueued

	return nil
}

func (r *registry) setSyncStatus(id uuid.UUID, status model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.sync[id]; ok {
		t.Status = status
	}
}

func (r *registry) setStubStatus(id uuid.UUID, status model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.stub[id]; ok {
		t.Status = status
	}
}

func (r *registry) mutateSync(id uuid.UUID, fn func(*model.SyncTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.sync[id]
	if !ok {
		return false
	}

	fn(t)

	return true
}

func (r *registry) mutateStub(id uuid.UUID, fn func(*model.StubTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.stub[id]
	if !ok {
		return false
	}

	fn(t)

	return true
}
