package stubgen

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/remotehost"
)

// listRemote walks source recursively via client, paging at listPageSize
// (§4.3 "Remote listing"), applies the video-extension qualification set
// plus the task's extension filter, and Blu-ray-groups the qualifying
// files (§4.3 "Blu-ray grouping") before returning the final entry list.
// It also returns every raw remote file seen (qualifying or not), which
// materialize.go consults to find sidecar subtitle/image/NFO files.
func listRemote(ctx context.Context, client remotehost.Client, source string, extFilter model.ExtensionFilter) ([]remoteEntry, []remotehost.Entry, error) {
	var raw []remotehost.Entry

	if err := walkRemoteDir(ctx, client, source, &raw); err != nil {
		return nil, nil, err
	}

	return groupBluRay(filterQualifying(raw, extFilter)), raw, nil
}

// walkRemoteDir recursively lists dir, paging listPageSize entries at a
// time, appending every file (qualification happens later, in
// filterQualifying) and recursing into subdirectories.
func walkRemoteDir(ctx context.Context, client remotehost.Client, dir string, out *[]remotehost.Entry) error {
	page := 1

	for {
		res, err := client.ListDir(ctx, dir, page, listPageSize, false)
		if err != nil {
			return fmt.Errorf("stubgen: list %q: %w", dir, err)
		}

		for _, e := range res.Entries {
			if e.IsDir {
				if err := walkRemoteDir(ctx, client, path.Join(dir, e.Name), out); err != nil {
					return err
				}

				continue
			}

			full := e
			full.Name = path.Join(dir, e.Name)
			*out = append(*out, full)
		}

		if len(res.Entries) < listPageSize {
			return nil
		}

		page++
	}
}

// filterQualifying applies the built-in video extension set plus the
// task's extension filter to each raw remote entry (§4.3).
func filterQualifying(raw []remotehost.Entry, extFilter model.ExtensionFilter) []remotehost.Entry {
	out := make([]remotehost.Entry, 0, len(raw))

	for _, e := range raw {
		if !remotehost.IsVideo(path.Base(e.Name)) {
			continue
		}

		if !extFilter.Passes(path.Base(e.Name)) {
			continue
		}

		out = append(out, e)
	}

	return out
}

// groupBluRay implements the Blu-ray grouping rule: files under a
// "/BDMV/STREAM/" segment ending in ".m2ts" are grouped by the path
// segment preceding "/BDMV/"; only the largest file per group survives,
// renamed to "<groupLeaf>.m2ts". Non-Blu-ray files pass through unchanged.
func groupBluRay(entries []remotehost.Entry) []remoteEntry {
	groups := make(map[string]remotehost.Entry)

	var passthrough []remoteEntry

	for _, e := range entries {
		if !isBluRayStreamFile(e.Name) {
			passthrough = append(passthrough, remoteEntry{
				remotePath:  e.Name,
				targetDir:   path.Dir(e.Name),
				displayName: path.Base(e.Name),
				size:        e.Size,
				signature:   e.Signature,
				rawURL:      e.RawURL,
			})

			continue
		}

		key := bluRayGroupKey(e.Name)

		if cur, ok := groups[key]; !ok || e.Size > cur.Size {
			groups[key] = e
		}
	}

	for key, e := range groups {
		leaf := path.Base(strings.TrimSuffix(key, "/"))

		passthrough = append(passthrough, remoteEntry{
			remotePath:  e.Name,
			targetDir:   key,
			displayName: leaf + ".m2ts",
			size:        e.Size,
			signature:   e.Signature,
			rawURL:      e.RawURL,
		})
	}

	return passthrough
}
