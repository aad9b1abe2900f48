// Package fsutil provides file system utility functions.
package fsutil

import (
	"os"
	"path/filepath"
)

// IsDir reports whether path exists and is a directory, following symlinks.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path exists and is a regular file, following symlinks.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Canonical returns the absolute, symlink-resolved form of path. If the path
// does not exist, the unresolved absolute form is returned so callers can
// still use it as a stable map key.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
