package stubgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/remotehost"
)

// fakeClient is an in-memory remotehost.Client backed by a directory tree
// keyed by remote path, for generator tests that must not dial out.
type fakeClient struct {
	dirs    map[string][]remotehost.Entry
	removed []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{dirs: make(map[string][]remotehost.Entry)}
}

func (f *fakeClient) addDir(path string, entries ...remotehost.Entry) {
	f.dirs[path] = entries
}

func (f *fakeClient) Login(ctx context.Context, url, user, pass string) (string, error) {
	return "tok", nil
}

func (f *fakeClient) ListDir(ctx context.Context, path string, page, perPage int, refresh bool) (remotehost.ListResult, error) {
	entries := f.dirs[path]

	return remotehost.ListResult{Entries: entries, Total: len(entries)}, nil
}

func (f *fakeClient) GetFileInfo(ctx context.Context, path string) (*remotehost.FileInfo, error) {
	return &remotehost.FileInfo{Name: path, RawURL: "http://remote" + path}, nil
}

func (f *fakeClient) Remove(ctx context.Context, paths []string) error {
	f.removed = append(f.removed, paths...)

	return nil
}

func (f *fakeClient) TestConnection(ctx context.Context) error { return nil }

func newTestGenerator(client remotehost.Client) *Generator {
	return &Generator{
		Logger: zap.NewNop().Sugar(),
		NewClient: func(creds model.RemoteCredentials, logger *zap.SugaredLogger) (remotehost.Client, error) {
			return client, nil
		},
	}
}

func TestGenerator_BasicMaterialization(t *testing.T) {
	target := t.TempDir()

	client := newFakeClient()
	client.addDir("/Movies",
		remotehost.Entry{Name: "Foo.mkv", Size: 100, Signature: "sig1"},
		remotehost.Entry{Name: "Sub", IsDir: true},
	)
	client.addDir("/Movies/Sub")

	gen := newTestGenerator(client)

	task := model.StubTask{
		ID:          uuid.New(),
		Source:      "/Movies",
		Target:      target,
		ContentMode: model.StubContentPath,
		Flags:       model.StubFlags{SyncServerDeletes: true},
	}

	stats, err := gen.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)

	content, err := os.ReadFile(filepath.Join(target, "Foo.stub"))
	require.NoError(t, err)
	assert.Equal(t, "/Movies/Foo.mkv\n", string(content))
}

func TestGenerator_SkipsExistingStubWithoutOverwrite(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "Foo.stub"), []byte("old\n"), 0o644))

	client := newFakeClient()
	client.addDir("/Movies", remotehost.Entry{Name: "Foo.mkv", Size: 100, Signature: "sig1"})

	gen := newTestGenerator(client)

	task := model.StubTask{
		ID:     uuid.New(),
		Source: "/Movies",
		Target: target,
	}

	stats, err := gen.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedUnchanged)

	content, err := os.ReadFile(filepath.Join(target, "Foo.stub"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(content))
}

func TestGenerator_OrphanDiffRemovesUnprotectedStub(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "Gone.stub"), []byte("old\n"), 0o644))

	client := newFakeClient()
	client.addDir("/Movies")

	gen := newTestGenerator(client)

	task := model.StubTask{
		ID:         uuid.New(),
		Source:     "/Movies",
		Target:     target,
		Flags:      model.StubFlags{SyncServerDeletes: true},
		Protection: model.SmartProtection{Threshold: 100, GraceScans: 1},
	}

	_, err := gen.Run(context.Background(), task)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(target, "Gone.stub"))
	assert.True(t, os.IsNotExist(statErr), "orphan below threshold is removed immediately")
}

func TestBluRayGrouping_LargestFileWins(t *testing.T) {
	target := t.TempDir()

	client := newFakeClient()
	client.addDir("/Movies", remotehost.Entry{Name: "Foo", IsDir: true})
	client.addDir("/Movies/Foo", remotehost.Entry{Name: "BDMV", IsDir: true})
	client.addDir("/Movies/Foo/BDMV", remotehost.Entry{Name: "STREAM", IsDir: true})
	client.addDir("/Movies/Foo/BDMV/STREAM",
		remotehost.Entry{Name: "00001.m2ts", Size: 500},
		remotehost.Entry{Name: "00002.m2ts", Size: 9000},
	)

	gen := newTestGenerator(client)

	task := model.StubTask{
		ID:          uuid.New(),
		Source:      "/Movies",
		Target:      target,
		ContentMode: model.StubContentPath,
	}

	stats, err := gen.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Success)

	content, err := os.ReadFile(filepath.Join(target, "Foo", "Foo.stub"))
	require.NoError(t, err)
	assert.Equal(t, "/Movies/Foo/BDMV/STREAM/00002.m2ts\n", string(content))
}

func TestServerDeleteEcho_IgnoresFreshlyCreatedStub(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(target, 0o755))

	client := newFakeClient()
	client.addDir("/Movies", remotehost.Entry{Name: "Foo.mkv", Size: 100})

	gen := newTestGenerator(client)

	task := model.StubTask{
		ID:          uuid.New(),
		Source:      "/Movies",
		Target:      target,
		ContentMode: model.StubContentPath,
		Flags:       model.StubFlags{SyncLocalDeletesToServer: true},
		Protection:  model.SmartProtection{Threshold: 10, GraceScans: 1},
	}

	_, err := gen.Run(context.Background(), task)
	require.NoError(t, err)

	assert.Empty(t, client.removed, "stub was just created, parent dir check should not flag it as deleted")
}

func TestExistingStubs_MissingRootIsEmptySet(t *testing.T) {
	set, err := existingStubs(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, set)
}
