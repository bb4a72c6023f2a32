package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/cloudgather/cloudgather/internal/model"
)

// currentSchemaVersion is the on-disk schema_version this build writes.
// schemaVersionZero files (no schema_version key, or a bare JSON array) are
// normalized in memory on load (§6.1: "v0 -> v1 migration normalizing tasks ...
// to arrays"); the file itself takes the v1 shape at the next save.
const currentSchemaVersion = 1

// fileDoc is the top-level shape of a sync-tasks.json or stub-tasks.json
// file written by this build.
type fileDoc struct {
	SchemaVersion int               `json:"schema_version"`
	Tasks         []json.RawMessage `json:"tasks"`
}

// loadSyncFile reads and lenient-parses a sync task-system config file. A
// missing file is not an error: it returns an empty slice, matching the
// teacher's tolerant-bootstrap convention of treating "file absent" as "no
// tasks yet" rather than failing daemon startup.
func loadSyncFile(path string) ([]model.SyncTask, error) {
	raw, tasks, err := loadRawTasks(path)
	if err != nil {
		return nil, err
	}

	out := make([]model.SyncTask, 0, len(tasks))

	for i, t := range tasks {
		obj, err := model.DecodeRawObject(t)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s: sync task %d: %w", path, i, err)
		}

		parsed, err := model.LenientSyncTask(obj)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s: sync task %d: %w", path, i, err)
		}

		out = append(out, parsed)
	}

	_ = raw

	return out, nil
}

func loadStubFile(path string) ([]model.StubTask, error) {
	_, tasks, err := loadRawTasks(path)
	if err != nil {
		return nil, err
	}

	out := make([]model.StubTask, 0, len(tasks))

	for i, t := range tasks {
		obj, err := model.DecodeRawObject(t)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s: stub task %d: %w", path, i, err)
		}

		parsed, err := model.LenientStubTask(obj)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %s: stub task %d: %w", path, i, err)
		}

		out = append(out, parsed)
	}

	return out, nil
}

// loadRawTasks reads path and returns its raw task list, tolerating three
// on-disk shapes: the current {schema_version, tasks:[...]} object, a v0
// object missing schema_version, and a v0 bare JSON array (§6.1 migration).
func loadRawTasks(path string) ([]byte, []json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}

		return nil, nil, fmt.Errorf("scheduler: read %s: %w", path, err)
	}

	trimmed := trimLeadingSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return raw, nil, fmt.Errorf("scheduler: parse %s as legacy array: %w", path, err)
		}

		return raw, arr, nil
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw, nil, fmt.Errorf("scheduler: parse %s: %w", path, err)
	}

	return raw, doc.Tasks, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}

	return b[i:]
}

// saveSyncFile writes tasks to path atomically: encode into a temp file in
// the same directory, then rename over the destination, matching the
// copy-then-rename convention the sync engine itself uses for target files
// (§4.2) so a crash mid-write never leaves a truncated config on disk.
func saveSyncFile(path string, tasks []model.SyncTask) error {
	raw := make([]json.RawMessage, 0, len(tasks))

	for _, t := range tasks {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("scheduler: marshal sync task %s: %w", t.ID, err)
		}

		raw = append(raw, b)
	}

	return writeDocAtomic(path, fileDoc{SchemaVersion: currentSchemaVersion, Tasks: raw})
}

func saveStubFile(path string, tasks []model.StubTask) error {
	raw := make([]json.RawMessage, 0, len(tasks))

	for _, t := range tasks {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("scheduler: marshal stub task %s: %w", t.ID, err)
		}

		raw = append(raw, b)
	}

	return writeDocAtomic(path, fileDoc{SchemaVersion: currentSchemaVersion, Tasks: raw})
}

func writeDocAtomic(path string, doc fileDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, ".tmp_"+base+"-*")
	if err != nil {
		return fmt.Errorf("scheduler: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("scheduler: write temp for %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("scheduler: close temp for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("scheduler: rename temp into %s: %w", path, err)
	}

	return nil
}

// newTaskID generates a fresh random task identity (§3: "128-bit task
// identity").
func newTaskID() uuid.UUID {
	return uuid.New()
}
