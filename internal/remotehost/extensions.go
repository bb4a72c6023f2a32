package remotehost

import (
	"path/filepath"
	"strings"
)

// Extension sets classifying remote directory entries, grounded on
// original_source/core/openlist_client.py's OpenListClient class attributes
// (VIDEO_EXTENSIONS, SUBTITLE_EXTENSIONS, IMAGE_EXTENSIONS, NFO_EXTENSIONS).
// internal/stubgen uses VideoExtensions for its qualification set and the
// remaining sets to decide which sidecar files accompany a stub.
var (
	VideoExtensions = map[string]bool{
		".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".flv": true,
		".wmv": true, ".mpeg": true, ".mpg": true, ".m4v": true, ".ts": true,
		".rmvb": true, ".webm": true, ".m2ts": true,
	}

	SubtitleExtensions = map[string]bool{
		".srt": true, ".ass": true, ".ssa": true, ".sub": true, ".vtt": true,
	}

	ImageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true, ".webp": true,
	}

	NFOExtensions = map[string]bool{
		".nfo": true,
	}
)

// IsVideo reports whether name has one of VideoExtensions' suffixes.
func IsVideo(name string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsSidecar reports whether name is a subtitle, image, or NFO file eligible
// to be copied alongside a materialized stub.
func IsSidecar(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))

	return SubtitleExtensions[ext] || ImageExtensions[ext] || NFOExtensions[ext]
}
