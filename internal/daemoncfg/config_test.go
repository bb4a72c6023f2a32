package daemoncfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr = "0.0.0.0:9000"
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Default().SyncTasksFile, cfg.SyncTasksFile)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.toml")
	require.NoError(t, os.WriteFile(path, []byte(`bogus_key = "x"`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyOverrides_CLIWins(t *testing.T) {
	cfg := Default().ApplyOverrides("warn", "1.2.3.4:1")
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "1.2.3.4:1", cfg.HTTPAddr)
}
