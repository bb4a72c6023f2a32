package syncengine

import (
	"os"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
)

// shouldSync implements §4.2 step 4's rule evaluation. targetInfo is nil
// when the target path does not exist.
func shouldSync(rules model.SyncRules, sourceInfo os.FileInfo, targetInfo os.FileInfo) bool {
	if targetInfo == nil {
		return rules.SyncIfAbsent || rules.OverwriteAll
	}

	if rules.SyncIfSizeDiffers && sourceInfo.Size() != targetInfo.Size() {
		return true
	}

	if rules.SyncIfSourceNewer && sourceInfo.ModTime().After(targetInfo.ModTime()) {
		return true
	}

	if rules.OverwriteAll {
		return true
	}

	return false
}

// statOrNil stats path, returning (nil, nil) when the path does not exist
// rather than an error — the common case for "target absent" throughout
// this package.
func statOrNil(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	return info, nil
}

// stabilityDwell is the fixed interval a source file's size must remain
// constant over to be considered eligible to copy (§4.2 step 5, glossary
// "Stability dwell"). A var, not a const, solely so tests can shrink it —
// production callers never change it.
var stabilityDwell = 5 * time.Second

// isStable re-stats path after stabilityDwell and reports whether its size
// is unchanged. A file that vanishes during the dwell is reported unstable.
func isStable(path string, initialSize int64) (bool, error) {
	time.Sleep(stabilityDwell)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return info.Size() == initialSize, nil
}
