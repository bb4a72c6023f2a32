package stubgen

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/protect"
	"github.com/cloudgather/cloudgather/internal/remotehost"
)

// existingStubs walks root and returns the set of ".stub" files present at
// scan start, keyed by path relative to root (§4.3 "Orphan diff").
func existingStubs(root string) (map[string]bool, error) {
	out := make(map[string]bool)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), stubExt) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}

		out[filepath.ToSlash(rel)] = true

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stubgen: scan existing stubs: %w", err)
	}

	return out, nil
}

// applyOrphanDiff computes orphans = existing \ generated, runs them
// through the smart-protection gate, unlinks the paths the gate releases,
// and returns how many were removed (§4.3 "Orphan diff").
func applyOrphanDiff(gate *protect.Gate, root string, existing, generated map[string]bool) (int, []error) {
	orphans := make(map[string]bool)

	for rel := range existing {
		if !generated[rel] {
			orphans[rel] = true
		}
	}

	ready := gate.Process(orphans, generated)

	var errs []error

	removed := 0

	for _, rel := range ready {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("stubgen: remove orphan stub %q: %w", rel, err))

			continue
		}

		removed++
	}

	return removed, errs
}

// serverDeleteEcho implements §4.3 "Server-side deletion echo": for each
// qualifying remote file whose stub's parent directory exists locally but
// whose stub file itself does not (a proxy for "the user deleted the local
// stub"), request deletion of the remote file — unless the pending list
// grows past the smart-protection threshold, in which case the whole echo
// is aborted as unsafe.
func serverDeleteEcho(ctx context.Context, client remotehost.Client, entries []remoteEntry, source, target string, flatten bool, extFilter model.ExtensionFilter, threshold int) (int, error) {
	var pending []string

	for _, e := range entries {
		if !extFilter.Passes(e.displayName) {
			continue
		}

		dest := targetPath(e, source, target, flatten)

		parentExists := dirExists(filepath.Dir(dest))
		_, statErr := os.Stat(dest)
		stubMissing := os.IsNotExist(statErr)

		if parentExists && stubMissing {
			pending = append(pending, e.remotePath)
		}

		if len(pending) > threshold {
			return 0, fmt.Errorf("stubgen: server-delete echo aborted: pending list (%d) exceeds smart-protection threshold (%d)", len(pending), threshold)
		}
	}

	if len(pending) == 0 {
		return 0, nil
	}

	if err := client.Remove(ctx, pending); err != nil {
		return 0, fmt.Errorf("stubgen: server-delete echo: %w", err)
	}

	return len(pending), nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)

	return err == nil && info.IsDir()
}
