package storage

import (
	"errors"
	"io/fs"
	"os"
)

// linkRename moves a regular file without replacing newPath by hard-linking
// it into place and removing the old name. Directories, and file systems
// without hard links, fall back to a plain rename, which relies on the
// caller's existence check.
func linkRename(oldPath, newPath string) error {
	info, err := os.Lstat(oldPath)
	if err != nil || !info.Mode().IsRegular() {
		return os.Rename(oldPath, newPath)
	}
	if err := os.Link(oldPath, newPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return os.Rename(oldPath, newPath)
	}
	return os.Remove(oldPath)
}
