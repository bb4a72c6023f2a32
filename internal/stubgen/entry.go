// Package stubgen implements the stub generator (spec §4.3): it enumerates
// qualifying remote video objects, materializes ".stub" placeholder files
// under a local target tree, and removes stubs whose remote counterpart has
// disappeared, subject to the smart-protection gate.
package stubgen

import (
	"strings"
)

// listPageSize is the paging size used when walking the remote tree (§4.3
// "paging at 100 entries per request").
const listPageSize = 100

// remoteEntry is one qualifying remote video file, already past extension
// filtering and Blu-ray grouping.
type remoteEntry struct {
	remotePath  string // real remote path of the underlying file, e.g. "/Movies/Foo/BDMV/STREAM/00001.m2ts"
	targetDir   string // remote directory the stub target derives from — differs from path.Dir(remotePath) only for Blu-ray groups, where it is the folder preceding "/BDMV/"
	displayName string // final basename a stub's path is derived from (may differ from remotePath's basename after Blu-ray grouping)
	size        int64
	signature   string
	rawURL      string
}

// bdmvMarker is the path segment the grouping rule looks for (§4.3
// "Blu-ray grouping").
const bdmvMarker = "/BDMV/"

// bdmvStreamMarker further narrows to files actually inside STREAM/.
const bdmvStreamMarker = "/BDMV/STREAM/"

func isBluRayStreamFile(remotePath string) bool {
	return strings.Contains(remotePath, bdmvStreamMarker) && strings.HasSuffix(strings.ToLower(remotePath), ".m2ts")
}

// bluRayGroupKey returns the path segment preceding "/BDMV/" — the group a
// Blu-ray stream file belongs to.
func bluRayGroupKey(remotePath string) string {
	idx := strings.Index(remotePath, bdmvMarker)
	if idx < 0 {
		return remotePath
	}

	return remotePath[:idx]
}
