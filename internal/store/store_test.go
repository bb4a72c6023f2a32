package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", zap.NewNop().Sugar())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestDeleteRecord_UpsertReplacesBySourcePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at1 := time.Now().Add(24 * time.Hour)
	at2 := time.Now().Add(48 * time.Hour)

	require.NoError(t, s.AddDeleteRecord(ctx, "task-1", "/src/a.mkv", at1, false, model.TimeBaseSyncComplete))
	require.NoError(t, s.AddDeleteRecord(ctx, "task-1", "/src/a.mkv", at2, true, model.TimeBaseFileCreate))

	pending, err := s.GetPendingRecords(ctx, "task-1", time.Now(), "")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	assert.True(t, pending[0].DeleteParent)
	assert.Equal(t, model.TimeBaseFileCreate, pending[0].TimeBase)
}

func TestGetExpiredRecords_OnlyMatured(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, s.AddDeleteRecord(ctx, "t", "/a", past, false, model.TimeBaseSyncComplete))
	require.NoError(t, s.AddDeleteRecord(ctx, "t", "/b", future, false, model.TimeBaseSyncComplete))

	expired, err := s.GetExpiredRecords(ctx, "t", time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "/a", expired[0].SourcePath)
}

func TestRemoveByID_DischargesExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddDeleteRecord(ctx, "t", "/a", time.Now().Add(-time.Minute), false, model.TimeBaseSyncComplete))

	expired, err := s.GetExpiredRecords(ctx, "t", time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, s.RemoveByID(ctx, expired[0].ID))

	expired, err = s.GetExpiredRecords(ctx, "t", time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestFileCache_UpsertAndIsSynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()

	entry := CacheEntry{
		TaskID: "t", Path: "/target/a.mkv", Size: 1024, MTime: now,
		Status: model.CacheStatusSynced, SyncedAt: &now, LastSeenAt: now,
	}
	require.NoError(t, s.UpsertFileCache(ctx, entry))

	synced, err := s.IsFileSynced(ctx, "t", "/target/a.mkv")
	require.NoError(t, err)
	assert.True(t, synced)

	synced, err = s.IsFileSynced(ctx, "t", "/target/missing.mkv")
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestHistory_DedupWithinWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddHistoryRecord(ctx, "t", "/a", "DELETED", ""))
	require.NoError(t, s.AddHistoryRecord(ctx, "t", "/a", "DELETED", ""))

	recs, err := s.ListHistory(ctx, "t", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestConfigKV_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetConfig(ctx, "schema_version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "schema_version", "1"))

	v, ok, err := s.GetConfig(ctx, "schema_version")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}
