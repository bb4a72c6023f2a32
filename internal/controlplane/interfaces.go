package controlplane

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudgather/cloudgather/internal/model"
)

// syncCRUD is the sync-task-system slice of the Scheduler surface.
type syncCRUD interface {
	AddSyncTask(t model.SyncTask) (model.SyncTask, error)
	RemoveSyncTask(id uuid.UUID) error
	UpdateSyncTask(id uuid.UUID, t model.SyncTask) error
	ToggleSync(id uuid.UUID, enabled bool) error
	GetSync(id uuid.UUID) (model.SyncTask, bool)
	GetAllSync() []model.SyncTask
}

// stubCRUD is the stub-task-system slice of the Scheduler surface.
type stubCRUD interface {
	AddStubTask(t model.StubTask) (model.StubTask, error)
	RemoveStubTask(id uuid.UUID) error
	UpdateStubTask(id uuid.UUID, t model.StubTask) error
	ToggleStub(id uuid.UUID, enabled bool) error
	GetStub(id uuid.UUID) (model.StubTask, bool)
	GetAllStub() []model.StubTask
}

// lifecycle covers trigger/status/queue operations shared across both task
// systems.
type lifecycle interface {
	TriggerNow(system model.System, id uuid.UUID) error
	TriggerFullOverwrite(id uuid.UUID) error
	ReconstructCache(ctx context.Context, id uuid.UUID) (int, error)
	NextRunTime(system model.System, id uuid.UUID, from time.Time) (time.Time, bool)
	QueueSize() int
	Running() bool
}
