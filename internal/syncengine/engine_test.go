package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	st, err := store.Open(context.Background(), ":memory:", zap.NewNop().Sugar())
	require.NoError(t, err)

	t.Cleanup(func() { _ = st.Close() })

	return &Engine{Store: st, Logger: zap.NewNop().Sugar()}, st
}

// TestSync_S1BasicSync reproduces spec §8.3 S1.
func TestSync_S1BasicSync(t *testing.T) {
	eng, st := newTestEngine(t)

	source := t.TempDir()
	target := t.TempDir()

	content := make([]byte, 100*1024*1024)
	require.NoError(t, os.WriteFile(filepath.Join(source, "a.mkv"), content, 0o644))

	task := model.SyncTask{
		ID: uuid.New(), Source: source, Target: target,
		Rules:   model.SyncRules{SyncIfAbsent: true},
		Workers: 1,
	}

	stats, err := eng.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Success)

	_, err = os.Stat(filepath.Join(target, "a.mkv"))
	require.NoError(t, err)

	synced, err := st.IsFileSynced(context.Background(), task.ID.String(), filepath.Join(source, "a.mkv"))
	require.NoError(t, err)
	assert.True(t, synced)

	records, err := st.GetExpiredRecords(context.Background(), task.ID.String(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records, "deletion disabled: no delete record")
}

// TestSync_S2DelayedDeletionEnqueued reproduces the enqueue half of spec
// §8.3 S2 (discharge itself is exercised in internal/deletequeue's tests).
func TestSync_S2DelayedDeletionEnqueued(t *testing.T) {
	eng, st := newTestEngine(t)

	source := t.TempDir()
	target := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(source, "a.mkv"), []byte("x"), 0o644))

	task := model.SyncTask{
		ID: uuid.New(), Source: source, Target: target,
		Rules:   model.SyncRules{SyncIfAbsent: true},
		Workers: 1,
		Deletion: model.DeletionPolicy{
			Enabled: true, DelayDays: 0, TimeBase: model.TimeBaseSyncComplete,
		},
	}

	stats, err := eng.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)

	records, err := st.GetExpiredRecords(context.Background(), task.ID.String(), time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(source, "a.mkv"), records[0].SourcePath)
}

// TestSync_S4StabilityNegative reproduces spec §8.3 S4: a file that grows
// between the two stability reads is SKIPPED_ACTIVE, not copied.
func TestSync_S4StabilityNegative(t *testing.T) {
	eng, st := newTestEngine(t)

	source := t.TempDir()
	target := t.TempDir()

	path := filepath.Join(source, "growing.mkv")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte("this file grew while stability was being checked"), 0o644)
	}()

	origStabilityDwell := stabilityDwell
	setStabilityDwellForTest(t, 200*time.Millisecond)
	defer setStabilityDwellForTest(t, origStabilityDwell)

	task := model.SyncTask{
		ID: uuid.New(), Source: source, Target: target,
		Rules:   model.SyncRules{SyncIfAbsent: true},
		Workers: 1,
	}

	stats, err := eng.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedActive)
	assert.Equal(t, 0, stats.Success)

	_, err = os.Stat(filepath.Join(target, "growing.mkv"))
	assert.True(t, os.IsNotExist(err), "target must not receive an unstable file")

	synced, err := st.IsFileSynced(context.Background(), task.ID.String(), path)
	require.NoError(t, err)
	assert.False(t, synced)
}

func TestExtensionFilter_IncludeRejectsExtensionless(t *testing.T) {
	f := model.ExtensionFilter{Mode: model.ExtInclude, Suffixes: []string{"mkv"}}
	assert.False(t, passesExtensionFilter("README", f))
	assert.True(t, passesExtensionFilter("movie.mkv", f))
}

func TestExtensionFilter_ExcludeAcceptsExtensionless(t *testing.T) {
	f := model.ExtensionFilter{Mode: model.ExtExclude, Suffixes: []string{"mkv"}}
	assert.True(t, passesExtensionFilter("README", f))
	assert.False(t, passesExtensionFilter("movie.mkv", f))
}

func TestEffectiveWorkers_SlowStorageClampsToTwo(t *testing.T) {
	task := model.SyncTask{Workers: 8, SlowStorage: true}
	assert.Equal(t, 2, task.EffectiveWorkers())
}
