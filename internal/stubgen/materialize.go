package stubgen

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/remotehost"
)

// stubContent renders the single line of UTF-8 text a stub file holds,
// selected by the task's content mode (§4.3 "Materialization").
func stubContent(e remoteEntry, baseURL, publicAlias string, mode model.StubContentMode) string {
	switch mode {
	case model.StubContentRawURL:
		return e.rawURL
	case model.StubContentPath:
		return e.remotePath
	default:
		return remotehost.DownloadURL(baseURL, publicAlias, e.signature, path.Base(e.remotePath))
	}
}

// materializeResult reports what materializeOne did, for stats purposes.
type materializeResult int

const (
	materializeCreated materializeResult = iota
	materializeSkippedExists
	materializeFailed
)

// materializeOne writes e's stub file at dest (§4.3 "Materialization"). If
// dest exists and overwrite is false, it is left untouched (SKIPPED).
func materializeOne(dest, content string, overwrite bool) (materializeResult, error) {
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return materializeSkippedExists, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return materializeFailed, fmt.Errorf("stubgen: create target dir for %q: %w", dest, err)
	}

	if err := os.WriteFile(dest, []byte(content+"\n"), 0o644); err != nil {
		return materializeFailed, fmt.Errorf("stubgen: write stub %q: %w", dest, err)
	}

	return materializeCreated, nil
}

// materializeSidecars materializes sibling subtitle/image/NFO files of e
// alongside its stub, each as a one-line URL file (see downloadSidecar) (§4.3 "copySubtitles/copyImages/copyNfo"), matching
// by shared stem within e's remote directory. raw is the full raw listing
// from listRemote, searched for candidates.
func materializeSidecars(ctx context.Context, client remotehost.Client, e remoteEntry, raw []remotehost.Entry, dest string, flags model.StubFlags) []error {
	if !flags.CopySubtitles && !flags.CopyImages && !flags.CopyNfo {
		return nil
	}

	stem := stemOf(path.Base(e.remotePath))
	dir := path.Dir(e.remotePath)

	var errs []error

	for _, candidate := range raw {
		if candidate.IsDir || path.Dir(candidate.Name) != dir {
			continue
		}

		name := path.Base(candidate.Name)
		if stemOf(name) != stem {
			continue
		}

		if !sidecarEligible(name, flags) {
			continue
		}

		if err := downloadSidecar(ctx, client, candidate, filepath.Join(filepath.Dir(dest), withSameStem(filepath.Base(dest), name))); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func sidecarEligible(name string, flags model.StubFlags) bool {
	ext := strings.ToLower(path.Ext(name))

	if flags.CopySubtitles && remotehost.SubtitleExtensions[ext] {
		return true
	}

	if flags.CopyImages && remotehost.ImageExtensions[ext] {
		return true
	}

	if flags.CopyNfo && remotehost.NFOExtensions[ext] {
		return true
	}

	return false
}

// downloadSidecar looks up candidate's file info and writes one line to
// dest holding its raw URL, or, when that is empty, the base-less
// "/d/<signature>/<name>" path. The sidecar's bytes are not fetched: like a
// stub, the local file carries only a reference to the remote object.
func downloadSidecar(ctx context.Context, client remotehost.Client, candidate remotehost.Entry, dest string) error {
	info, err := client.GetFileInfo(ctx, candidate.Name)
	if err != nil {
		return fmt.Errorf("stubgen: sidecar info %q: %w", candidate.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("stubgen: create sidecar dir for %q: %w", dest, err)
	}

	url := info.RawURL
	if url == "" {
		url = remotehost.DownloadURL("", "", info.Signature, path.Base(candidate.Name))
	}

	return os.WriteFile(dest, []byte(url+"\n"), 0o644)
}

// stemOf returns name without its extension.
func stemOf(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// withSameStem rebuilds a sidecar's local filename using stubBase's stem
// (stripped of stubExt) and sidecarName's own extension, so the sidecar
// sits beside the stub under the same name, original extension.
func withSameStem(stubBase, sidecarName string) string {
	stem := strings.TrimSuffix(stubBase, stubExt)

	return stem + path.Ext(sidecarName)
}
