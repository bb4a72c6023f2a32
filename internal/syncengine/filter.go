// Package syncengine materializes a sync task's source->target replication:
// filesystem walk with filtering, stability detection, atomic copy with
// retry, and per-file rule evaluation against the metadata cache (spec
// §4.2).
package syncengine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudgather/cloudgather/internal/model"
)

// ignoreNames are exact basenames always skipped (§4.2 step 1).
var ignoreNames = map[string]bool{
	".DS_Store": true,
	"@eaDir":    true,
	"#recycle":  true,
	"Thumbs.db": true,
}

// ignorePrefixes are basename prefixes always skipped (§4.2 step 1).
var ignorePrefixes = []string{".tmp", ".temp", ".part", "~$"}

// isIgnored reports whether a file's basename matches the fixed ignore
// set or prefix list.
func isIgnored(name string) bool {
	if ignoreNames[name] {
		return true
	}

	for _, p := range ignorePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

// passesExtensionFilter implements §4.2 step 2, delegating the evaluation
// itself to model.ExtensionFilter.Passes so the sync engine and stub
// generator share one rule (§4.3 applies the identical task-level filter).
func passesExtensionFilter(name string, f model.ExtensionFilter) bool {
	return f.Passes(name)
}

// passesSizeFilter implements §4.2 step 3.
func passesSizeFilter(size int64, f model.SizeFilter) bool {
	if f.MinBytes != nil && size < *f.MinBytes {
		return false
	}

	if f.MaxBytes != nil && size > *f.MaxBytes {
		return false
	}

	return true
}

// cleanStaleTemp removes any `.tmp_*` sibling files left behind by a
// previous, interrupted run (§4.2 Phase 0). Failures are logged by the
// caller and never abort the run.
func cleanStaleTemp(root string) []error {
	var errs []error

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)

			return nil
		}

		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".tmp_") {
			if err := os.Remove(path); err != nil {
				errs = append(errs, err)
			}
		}

		return nil
	})

	return errs
}
