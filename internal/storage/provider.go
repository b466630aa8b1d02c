// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/quire/internal/models"

// WalkFunc is called for every entry visited by Provider.Walk.
// Returning an error stops the walk and is returned from Walk.
type WalkFunc func(e models.Entry) error

// Provider is the interface for vault file operations. All paths are relative
// to the vault root and validated by pathguard; all errors are classified
// *apperr.Error values.
type Provider interface {
	// Root returns the absolute vault directory.
	Root() string
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Create writes a new file at path and fails with AlreadyExists instead
	// of replacing anything already there.
	Create(path string, content []byte) error
	// Delete removes a file, or a directory only when it is empty.
	Delete(path string) error
	// Move renames oldPath to newPath without ever overwriting newPath.
	Move(oldPath, newPath string) error
	// Mkdir creates the directory at path and any missing parents.
	Mkdir(path string) error
	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)
	// IsDir reports whether path is an existing directory.
	IsDir(path string) (bool, error)
	// IsFile reports whether path is an existing regular file.
	IsFile(path string) (bool, error)
	// List returns the direct children of dir ("" for the root), sorted by name.
	List(dir string) ([]models.Entry, error)
	// Stat returns size and modification time for path.
	Stat(path string) (models.FileInfo, error)
	// Walk visits every entry under dir depth-first in name order.
	Walk(dir string, fn WalkFunc) error
}
