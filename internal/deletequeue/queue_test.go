package deletequeue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), ":memory:", zap.NewNop().Sugar())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestEnqueue_DisabledPolicyIsNoop(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, Enqueue(ctx, st, "t", "/a", model.DeletionPolicy{Enabled: false}, time.Now()))

	records, err := st.GetExpiredRecords(ctx, "t", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnqueue_NegativeDelayClampsToZero(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	policy := model.DeletionPolicy{Enabled: true, DelayDays: -5, TimeBase: model.TimeBaseSyncComplete}
	require.NoError(t, Enqueue(ctx, st, "t", "/a", policy, time.Now()))

	records, err := st.GetExpiredRecords(ctx, "t", time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDischarge_VerificationGuardSkipsUnsyncedFile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	policy := model.DeletionPolicy{Enabled: true, TimeBase: model.TimeBaseSyncComplete}
	require.NoError(t, Enqueue(ctx, st, "t", file, policy, time.Now()))

	res, err := Discharge(ctx, st, zap.NewNop().Sugar(), "t", dir, policy)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Deleted)

	_, err = os.Stat(file)
	assert.NoError(t, err, "file must survive when never marked SYNCED")
}

func TestDischarge_DeletesSyncedFileAndPrunesEmptyParents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	showDir := filepath.Join(root, "Show", "S01")
	require.NoError(t, os.MkdirAll(showDir, 0o755))

	file := filepath.Join(showDir, "ep.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	now := time.Now().UTC()
	require.NoError(t, st.UpsertFileCache(ctx, store.CacheEntry{
		TaskID: "t", Path: file, Size: 1, MTime: now, Status: model.CacheStatusSynced, SyncedAt: &now, LastSeenAt: now,
	}))

	policy := model.DeletionPolicy{
		Enabled: true, TimeBase: model.TimeBaseSyncComplete,
		DeleteParent: true, ParentLevels: 2, ForceDeleteNonEmpty: false,
	}
	require.NoError(t, Enqueue(ctx, st, "t", file, policy, time.Now()))

	res, err := Discharge(ctx, st, zap.NewNop().Sugar(), "t", root, policy)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(showDir)
	assert.True(t, os.IsNotExist(err), "S01 must be pruned")

	_, err = os.Stat(filepath.Join(root, "Show"))
	assert.True(t, os.IsNotExist(err), "Show must be pruned")

	_, err = os.Stat(root)
	assert.NoError(t, err, "source root itself must never be pruned")
}

func TestDischarge_ForceDeleteNonEmptyFalseNeverRemovesNonEmptyDir(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	dir := filepath.Join(root, "Show")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	file := filepath.Join(dir, "ep.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.mkv"), []byte("y"), 0o644))

	now := time.Now().UTC()
	require.NoError(t, st.UpsertFileCache(ctx, store.CacheEntry{
		TaskID: "t", Path: file, Size: 1, MTime: now, Status: model.CacheStatusSynced, SyncedAt: &now, LastSeenAt: now,
	}))

	policy := model.DeletionPolicy{
		Enabled: true, TimeBase: model.TimeBaseSyncComplete,
		DeleteParent: true, ParentLevels: 5, ForceDeleteNonEmpty: false,
	}
	require.NoError(t, Enqueue(ctx, st, "t", file, policy, time.Now()))

	_, err := Discharge(ctx, st, zap.NewNop().Sugar(), "t", root, policy)
	require.NoError(t, err)

	_, err = os.Stat(dir)
	assert.NoError(t, err, "non-empty directory must survive")
}
