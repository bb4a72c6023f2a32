package syncengine

import "path/filepath"

func baseName(relPath string) string {
	return filepath.Base(relPath)
}

func joinTarget(targetRoot, relPath string) string {
	return filepath.Join(targetRoot, relPath)
}
