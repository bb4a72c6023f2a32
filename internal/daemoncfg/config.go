// Package daemoncfg loads CloudGather's small flat TOML bootstrap
// document: where the two task-system JSON files and the SQLite metadata
// store live, what address the control-plane HTTP adapter binds to, and
// what level to log at. The per-task records themselves stay JSON (§6.1);
// TOML is scoped strictly to this one bootstrap file.
package daemoncfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's bootstrap document.
type Config struct {
	SyncTasksFile string `toml:"sync_tasks_file"`
	StubTasksFile string `toml:"stub_tasks_file"`
	StoreFile     string `toml:"store_file"`
	HTTPAddr      string `toml:"http_addr"`
	LogLevel      string `toml:"log_level"`
	PIDFile       string `toml:"pid_file"`
	BrowseRoots   []string `toml:"browse_roots"`
}

// Default returns the bootstrap document's built-in defaults, used when no
// config file is present and as the base CLI flags override.
func Default() Config {
	return Config{
		SyncTasksFile: "sync-tasks.json",
		StubTasksFile: "stub-tasks.json",
		StoreFile:     "cloudgather.db",
		HTTPAddr:      "127.0.0.1:8420",
		LogLevel:      "info",
		PIDFile:       "cloudgather.pid",
	}
}

// knownKeys are the only valid top-level keys in the bootstrap document; an
// unrecognized key is a fatal validation error (§7 "validation errors:
// surfaced to the caller; no state change"), mirroring the teacher's
// unknown-key strictness at a much smaller surface.
var knownKeys = map[string]bool{
	"sync_tasks_file": true, "stub_tasks_file": true, "store_file": true,
	"http_addr": true, "log_level": true, "pid_file": true, "browse_roots": true,
}

// Load reads path, decoding onto Default()'s values, and rejects unknown
// top-level keys. A missing file is not an error: Default() is returned
// unchanged, letting CLI flags and built-in defaults fully determine
// bootstrap in the simplest deployment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("daemoncfg: read %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("daemoncfg: parse %s: %w", path, err)
	}

	if err := checkUnknownKeys(md); err != nil {
		return cfg, err
	}

	return cfg, Validate(cfg)
}

func checkUnknownKeys(md toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		top := strings.SplitN(key.String(), ".", 2)[0]
		if !knownKeys[top] {
			errs = append(errs, fmt.Errorf("daemoncfg: unknown config key %q", top))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate rejects an empty bootstrap document; every field Default()
// fills in must survive a round-trip through an empty or partial file.
func Validate(cfg Config) error {
	if cfg.SyncTasksFile == "" {
		return errors.New("daemoncfg: sync_tasks_file must not be empty")
	}

	if cfg.StubTasksFile == "" {
		return errors.New("daemoncfg: stub_tasks_file must not be empty")
	}

	if cfg.StoreFile == "" {
		return errors.New("daemoncfg: store_file must not be empty")
	}

	if cfg.HTTPAddr == "" {
		return errors.New("daemoncfg: http_addr must not be empty")
	}

	return nil
}

// ApplyOverrides implements the CLI's "CLI wins" precedence rule (§0,
// generalizing the teacher's buildLogger override chain): a non-empty flag
// value replaces the corresponding file/default value.
func (c Config) ApplyOverrides(logLevel, httpAddr string) Config {
	out := c

	if logLevel != "" {
		out.LogLevel = logLevel
	}

	if httpAddr != "" {
		out.HTTPAddr = httpAddr
	}

	return out
}
