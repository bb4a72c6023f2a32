package deletequeue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/store"
)

// pruneAncestors walks up to policy.ParentLevels ancestor directories above
// each deleted path and removes the ones that pass every safety predicate
// in §4.4 "Directory pruning". Each ancestor is visited at most once per
// pass, tracked via visited.
func pruneAncestors(ctx context.Context, st *store.Store, taskID, sourceRoot string, deletedPaths []string, policy model.DeletionPolicy) ([]string, error) {
	realRoot, err := realOrClean(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("deletequeue: resolve source root %q: %w", sourceRoot, err)
	}

	home, _ := os.UserHomeDir()
	realHome, _ := realOrClean(home)

	visited := make(map[string]bool)

	var pruned []string

	for _, path := range deletedPaths {
		realFile, err := realOrClean(path)
		if err != nil {
			// The file is already gone; fall back to its clean path for the
			// ancestry walk (realOrClean already does this internally, but
			// guard anyway).
			realFile = filepath.Clean(path)
		}

		dir := filepath.Dir(realFile)

		for level := 0; level < policy.ParentLevels; level++ {
			if visited[dir] {
				break
			}

			ok, err := pruneOneDir(ctx, st, taskID, dir, realFile, realRoot, realHome, policy.ForceDeleteNonEmpty)
			if err != nil {
				return pruned, err
			}

			visited[dir] = true

			if !ok {
				break
			}

			pruned = append(pruned, dir)

			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}

			dir = parent
		}
	}

	return pruned, nil
}

// pruneOneDir evaluates and, if safe, removes one candidate ancestor
// directory. It returns (true, nil) if the directory was pruned, (false,
// nil) if a predicate failed (caller should stop walking upward), or a
// non-nil error on an unexpected I/O failure.
func pruneOneDir(ctx context.Context, st *store.Store, taskID, dir, originFile, realRoot, realHome string, forceNonEmpty bool) (bool, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		return false, nil // doesn't exist: stop, not an error
	}

	if !info.IsDir() {
		return false, nil
	}

	realDir, err := realOrClean(dir)
	if err != nil {
		return false, nil
	}

	if realDir == string(filepath.Separator) {
		return false, nil
	}

	if realHome != "" && realDir == realHome {
		return false, nil
	}

	if realDir == realRoot {
		return false, nil
	}

	if !strings.HasPrefix(originFile, realDir+string(filepath.Separator)) {
		return false, nil
	}

	pending, err := st.GetPendingRecords(ctx, taskID, time.Now().UTC(), dir)
	if err != nil {
		return false, fmt.Errorf("deletequeue: check pending records under %q: %w", dir, err)
	}

	if len(pending) > 0 {
		return false, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, nil
	}

	if !forceNonEmpty && len(entries) > 0 {
		return false, nil
	}

	if err := os.Remove(dir); err != nil {
		if forceNonEmpty {
			if err := os.RemoveAll(dir); err != nil {
				return false, fmt.Errorf("deletequeue: force-remove %q: %w", dir, err)
			}

			return true, nil
		}

		return false, nil
	}

	return true, nil
}

// realOrClean resolves symlinks via filepath.EvalSymlinks, falling back to
// filepath.Clean when the path no longer exists (e.g. the file this
// ancestry walk started from was just deleted).
func realOrClean(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path), nil
	}

	return real, nil
}
