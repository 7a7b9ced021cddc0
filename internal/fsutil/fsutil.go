// Package fsutil implements the small filesystem collaborators the core
// protocol depends on: existence, free space, removal, and "the directory
// containing this executable". None of this is part of the transfer
// protocol itself; pkg/session calls these functions directly.
//
// FreeSpace calls statfs(2) through golang.org/x/sys/unix; the rest uses
// the standard library.
package fsutil

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FreeSpace returns the number of free bytes available on the filesystem
// holding path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// Remove deletes path if it exists; a missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ExecutableDir returns the directory containing the running executable.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
