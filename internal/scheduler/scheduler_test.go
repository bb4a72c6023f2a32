package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

type countingSyncRunner struct {
	calls int32
	delay time.Duration
}

func (r *countingSyncRunner) Run(ctx context.Context, task model.SyncTask) (model.Stats, error) {
	atomic.AddInt32(&r.calls, 1)

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}

	return model.Stats{Total: 1, Success: 1}, nil
}

type countingStubRunner struct {
	calls int32
}

func (r *countingStubRunner) Run(ctx context.Context, task model.StubTask) (model.Stats, error) {
	atomic.AddInt32(&r.calls, 1)

	return model.Stats{Total: 1, Success: 1}, nil
}

func newTestScheduler(t *testing.T, syncRunner SyncRunner, stubRunner StubRunner) *Scheduler {
	t.Helper()

	dir := t.TempDir()
	paths := Paths{
		SyncFile: filepath.Join(dir, "sync-tasks.json"),
		StubFile: filepath.Join(dir, "stub-tasks.json"),
	}

	st, err := store.Open(context.Background(), ":memory:", zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	s, err := New(paths, zap.NewNop().Sugar(), st, syncRunner, stubRunner)
	require.NoError(t, err)

	return s
}

func TestAddSyncTask_AssignsIDAndPersists(t *testing.T) {
	runner := &countingSyncRunner{}
	s := newTestScheduler(t, runner, &countingStubRunner{})

	added, err := s.AddSyncTask(model.SyncTask{
		Name:     "movies",
		Source:   "/src",
		Target:   "/dst",
		Enabled:  true,
		Schedule: model.Schedule{Type: model.ScheduleInterval, IntervalSeconds: 60},
	})
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, added.ID)

	reloaded, err := New(Paths{SyncFile: s.paths.SyncFile, StubFile: s.paths.StubFile}, zap.NewNop().Sugar(), s.store, runner, &countingStubRunner{})
	require.NoError(t, err)

	got, ok := reloaded.GetSync(added.ID)
	require.True(t, ok)
	assert.Equal(t, "movies", got.Name)
}

func TestTriggerNow_RunsExactlyOnceWhileRunning(t *testing.T) {
	runner := &countingSyncRunner{delay: 50 * time.Millisecond}
	s := newTestScheduler(t, runner, &countingStubRunner{})

	added, err := s.AddSyncTask(model.SyncTask{
		Name: "slow", Source: "/a", Target: "/b", Enabled: false,
		Schedule: model.Schedule{Type: model.ScheduleInterval, IntervalSeconds: 5},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.NoError(t, s.TriggerNow(model.SystemSync, added.ID))

	time.Sleep(10 * time.Millisecond)
	err = s.TriggerNow(model.SystemSync, added.ID)
	assert.ErrorIs(t, err, ErrNotIdle)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))

	got, ok := s.GetSync(added.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusIdle, got.Status)
}

func TestTriggerNow_UnknownTask(t *testing.T) {
	s := newTestScheduler(t, &countingSyncRunner{}, &countingStubRunner{})

	err := s.TriggerNow(model.SystemSync, newTaskID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveSyncTask(t *testing.T) {
	s := newTestScheduler(t, &countingSyncRunner{}, &countingStubRunner{})

	added, err := s.AddSyncTask(model.SyncTask{Name: "x", Source: "/a", Target: "/b"})
	require.NoError(t, err)

	require.NoError(t, s.RemoveSyncTask(added.ID))
	assert.ErrorIs(t, s.RemoveSyncTask(added.ID), ErrNotFound)
}

func TestUpdateSyncTask_PreservesStatusAndID(t *testing.T) {
	s := newTestScheduler(t, &countingSyncRunner{}, &countingStubRunner{})

	added, err := s.AddSyncTask(model.SyncTask{Name: "x", Source: "/a", Target: "/b"})
	require.NoError(t, err)

	s.reg.setSyncStatus(added.ID, model.StatusRunning)

	updated := added
	updated.Name = "renamed"
	require.NoError(t, s.UpdateSyncTask(added.ID, updated))

	got, ok := s.GetSync(added.ID)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, model.StatusRunning, got.Status)
	assert.Equal(t, added.ID, got.ID)
}

type overwriteObservingRunner struct {
	observed  atomic.Bool
	sawActive bool
	done      chan struct{}
}

func (r *overwriteObservingRunner) Run(ctx context.Context, task model.SyncTask) (model.Stats, error) {
	r.sawActive = task.Rules.OverwriteAll
	r.observed.Store(true)

	if r.done != nil {
		close(r.done)
	}

	return model.Stats{Total: 1, Success: 1}, nil
}

func TestTriggerFullOverwrite_ForcesFlagThenRestores(t *testing.T) {
	runner := &overwriteObservingRunner{done: make(chan struct{})}
	s := newTestScheduler(t, runner, &countingStubRunner{})

	added, err := s.AddSyncTask(model.SyncTask{
		Name: "x", Source: "/a", Target: "/b", Enabled: false,
		Schedule: model.Schedule{Type: model.ScheduleInterval, IntervalSeconds: 5},
		Rules:    model.SyncRules{OverwriteAll: false},
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.NoError(t, s.TriggerFullOverwrite(added.ID))

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("sync run never observed")
	}

	assert.True(t, runner.sawActive, "overwrite_all should be forced true for the triggered run")

	time.Sleep(20 * time.Millisecond)

	got, ok := s.GetSync(added.ID)
	require.True(t, ok)
	assert.False(t, got.Rules.OverwriteAll, "persisted overwrite_all should be restored after the run completes")
}

func TestReloadFromDisk_AddsNewTaskWithoutDisturbingExisting(t *testing.T) {
	s := newTestScheduler(t, &countingSyncRunner{}, &countingStubRunner{})

	existing, err := s.AddSyncTask(model.SyncTask{Name: "existing", Source: "/a", Target: "/b"})
	require.NoError(t, err)

	s.reg.setSyncStatus(existing.ID, model.StatusRunning)

	onDisk, err := loadSyncFile(s.paths.SyncFile)
	require.NoError(t, err)

	onDisk = append(onDisk, model.SyncTask{
		ID: newTaskID(), Name: "hand-added", Source: "/c", Target: "/d",
		Schedule: model.Schedule{Type: model.ScheduleInterval, IntervalSeconds: 5},
	})
	require.NoError(t, saveSyncFile(s.paths.SyncFile, onDisk))

	added, err := s.ReloadFromDisk()
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	all := s.GetAllSync()
	assert.Len(t, all, 2)

	got, ok := s.GetSync(existing.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusRunning, got.Status, "reload must not disturb an already-loaded task")
}
