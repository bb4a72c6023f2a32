package stubgen

import (
	"path"
	"path/filepath"
	"strings"
)

// stubExt is the extension every materialized placeholder file carries
// (§4.3 "Materialization").
const stubExt = ".stub"

// targetPath derives the local stub path for e (§4.3 "Target path
// derivation"). When flatten is set, the stub lives directly under root
// named after the display name; otherwise the remote directory structure
// (relative to source) is mirrored under root.
func targetPath(e remoteEntry, source, root string, flatten bool) string {
	base := withStubExt(e.displayName)

	if flatten {
		return filepath.Join(root, base)
	}

	rel := strings.TrimPrefix(e.targetDir, source)
	rel = strings.TrimPrefix(rel, "/")

	return filepath.Join(root, filepath.FromSlash(rel), base)
}

// withStubExt replaces name's extension with stubExt.
func withStubExt(name string) string {
	ext := path.Ext(name)

	return strings.TrimSuffix(name, ext) + stubExt
}
