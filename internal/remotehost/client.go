// Package remotehost implements the abstract remote-host capability the
// stub generator depends on (spec §6.3): an HTTP client backed by an
// oauth2 token source, with bounded per-host concurrency and a retry
// policy for transient failures.
package remotehost

import (
	"context"
	"time"
)

// Entry is one remote directory entry (§6.3 listDir response shape).
type Entry struct {
	Name      string
	IsDir     bool
	Size      int64
	Modified  time.Time
	Signature string
	RawURL    string
}

// ListResult is the paged response from ListDir.
type ListResult struct {
	Entries []Entry
	Total   int
}

// FileInfo is the response from GetFileInfo.
type FileInfo struct {
	Name      string
	Size      int64
	Modified  time.Time
	Signature string
	RawURL    string
}

// Client is the abstract remote-host capability (§6.3). Any implementation
// satisfying it is acceptable to internal/stubgen — this package provides
// one HTTP-based implementation, httpClient.
type Client interface {
	Login(ctx context.Context, url, user, pass string) (token string, err error)
	ListDir(ctx context.Context, path string, page, perPage int, refresh bool) (ListResult, error)
	GetFileInfo(ctx context.Context, path string) (*FileInfo, error)
	Remove(ctx context.Context, paths []string) error
	TestConnection(ctx context.Context) error
}

// DownloadURL derives a download URL from a base and an entry's signature
// and display name (§6.3: "<base>/d/<signature>/<name>"), substituting
// publicAlias for base when set.
func DownloadURL(base, publicAlias, signature, name string) string {
	effectiveBase := base
	if publicAlias != "" {
		effectiveBase = publicAlias
	}

	return trimTrailingSlash(effectiveBase) + "/d/" + signature + "/" + name
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}

	return s
}
