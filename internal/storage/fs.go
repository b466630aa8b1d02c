package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/pathguard"
)

// TempPrefix prefixes the temporary files of in-flight atomic writes.
// Listings never report them.
const TempPrefix = ".quire-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute, symlink-free path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root links: %w", err)
	}
	return &FS{root: real}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// IsMarkdown reports whether name has a markdown extension.
func IsMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// safePath normalizes rel and resolves it against the vault root, rejecting
// any result that escapes it lexically or through a symlink.
func (f *FS) safePath(op, rel string) (string, string, error) {
	norm, err := pathguard.Normalize(rel)
	if err != nil {
		return "", "", err
	}
	abs := filepath.Join(f.root, filepath.FromSlash(norm))
	if !f.within(abs) {
		return "", "", apperr.Newf(apperr.KindInvalidPath, op, rel, pathguard.ReasonTraversal)
	}
	if err := f.checkLinks(abs); err != nil {
		return "", "", apperr.Newf(apperr.KindInvalidPath, op, rel, pathguard.ReasonTraversal)
	}
	return abs, norm, nil
}

// dirPath is safePath that also accepts "" for the vault root.
func (f *FS) dirPath(op, rel string) (string, string, error) {
	if rel == "" {
		return f.root, "", nil
	}
	return f.safePath(op, rel)
}

func (f *FS) within(abs string) bool {
	return abs == f.root || strings.HasPrefix(abs, f.root+string(os.PathSeparator))
}

// checkLinks resolves the deepest existing ancestor of abs and verifies the
// real location is still under root.
func (f *FS) checkLinks(abs string) error {
	p := abs
	for {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			if !f.within(real) {
				return errors.New("symlink escapes vault root")
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			// Let the operation itself report the failure.
			return nil
		}
		parent := filepath.Dir(p)
		if parent == p || !f.within(parent) {
			return nil
		}
		p = parent
	}
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, norm, err := f.safePath("read", path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperr.Classify("read", norm, err)
	}
	if info.IsDir() {
		return nil, apperr.Newf(apperr.KindNotFound, "read", norm, "is a directory")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperr.Classify("read", norm, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename. An existing
// file is replaced and keeps its permissions.
func (f *FS) Write(path string, content []byte) error {
	abs, norm, err := f.safePath("write", path)
	if err != nil {
		return err
	}

	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(abs); statErr == nil {
		if info.IsDir() {
			return apperr.Newf(apperr.KindAlreadyExists, "write", norm, "is a directory")
		}
		mode = info.Mode().Perm()
	}
	return f.commit("write", abs, norm, content, mode, os.Rename)
}

// Create writes content like Write but fails with AlreadyExists when
// anything exists at path, including an entry that appears mid-write.
func (f *FS) Create(path string, content []byte) error {
	abs, norm, err := f.safePath("create", path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err == nil {
		return apperr.New(apperr.KindAlreadyExists, "create", norm)
	}
	return f.commit("create", abs, norm, content, 0o644, renameNoReplace)
}

// commit writes content to a temp file next to abs, syncs it and moves it
// into place with rename. Parents created on the way are removed again if
// the write fails.
func (f *FS) commit(op, abs, norm string, content []byte, mode fs.FileMode, rename func(string, string) error) error {
	created, err := f.mkdirParents(abs)
	if err != nil {
		return parentErr(op, norm, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), TempPrefix+"*")
	if err != nil {
		removeDirs(created)
		return parentErr(op, norm, err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
			removeDirs(created)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.Classify(op, norm, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return apperr.Classify(op, norm, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Classify(op, norm, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Classify(op, norm, err)
	}
	if err := rename(tmpName, abs); err != nil {
		return apperr.Classify(op, norm, err)
	}
	success = true
	return nil
}

// mkdirParents creates the missing ancestors of abs. It returns the
// directories it created, deepest first.
func (f *FS) mkdirParents(abs string) ([]string, error) {
	var missing []string
	for dir := filepath.Dir(abs); dir != f.root && f.within(dir); dir = filepath.Dir(dir) {
		if _, err := os.Lstat(dir); !errors.Is(err, fs.ErrNotExist) {
			break
		}
		missing = append(missing, dir)
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		removeDirs(missing)
		return nil, err
	}
	return missing, nil
}

// removeDirs removes dirs in order, skipping any that are no longer empty.
func removeDirs(dirs []string) {
	for _, d := range dirs {
		_ = os.Remove(d)
	}
}

// Delete removes a file, or a directory if and only if it is empty.
func (f *FS) Delete(path string) error {
	abs, norm, err := f.safePath("delete", path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return apperr.Classify("delete", norm, err)
	}
	if info.IsDir() {
		empty, err := isEmptyDir(abs)
		if err != nil {
			return apperr.Classify("delete", norm, err)
		}
		if !empty {
			return apperr.New(apperr.KindDirectoryNotEmpty, "delete", norm)
		}
	}
	// os.Remove uses rmdir for directories, which itself refuses non-empty
	// ones if an entry appeared after the check above.
	if err := os.Remove(abs); err != nil {
		return apperr.Classify("delete", norm, err)
	}
	return nil
}

// Move renames a file or directory within the vault. The destination must not
// exist; missing destination parents are created, and removed again if the
// rename fails.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, normOld, err := f.safePath("move", oldPath)
	if err != nil {
		return err
	}
	absNew, normNew, err := f.safePath("move", newPath)
	if err != nil {
		return err
	}
	srcInfo, err := os.Lstat(absOld)
	if err != nil {
		return apperr.Classify("move", normOld, err)
	}
	if normOld == normNew {
		return nil
	}
	if srcInfo.IsDir() && pathguard.IsWithin(normNew, normOld) {
		return apperr.Newf(apperr.KindInvalidMove, "move", normNew, "destination inside source")
	}

	sameFile := false
	if dstInfo, statErr := os.Lstat(absNew); statErr == nil {
		// Case-only renames on case-insensitive volumes see the source here.
		if !os.SameFile(srcInfo, dstInfo) {
			return apperr.New(apperr.KindAlreadyExists, "move", normNew)
		}
		sameFile = true
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return apperr.Classify("move", normNew, statErr)
	}

	created, err := f.mkdirParents(absNew)
	if err != nil {
		return parentErr("move", normNew, err)
	}

	if sameFile {
		err = os.Rename(absOld, absNew)
	} else {
		err = renameNoReplace(absOld, absNew)
	}
	if err != nil {
		removeDirs(created)
		if errors.Is(err, fs.ErrNotExist) {
			// Either side may have vanished; report the one that did.
			if _, statErr := os.Lstat(absOld); statErr != nil {
				return apperr.Classify("move", normOld, err)
			}
			return parentErr("move", normNew, err)
		}
		return apperr.Classify("move", normNew, err)
	}
	return nil
}

// Mkdir creates the directory and any missing intermediate directories.
func (f *FS) Mkdir(path string) error {
	abs, norm, err := f.safePath("mkdir", path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err == nil {
		return apperr.New(apperr.KindAlreadyExists, "mkdir", norm)
	} else if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return apperr.Classify("mkdir", norm, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return parentErr("mkdir", norm, err)
	}
	return nil
}

// Exists reports whether anything exists at path.
func (f *FS) Exists(path string) (bool, error) {
	info, err := f.stat("exists", path)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// IsDir reports whether path is an existing directory.
func (f *FS) IsDir(path string) (bool, error) {
	info, err := f.stat("is_dir", path)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether path is an existing regular file.
func (f *FS) IsFile(path string) (bool, error) {
	info, err := f.stat("is_file", path)
	if err != nil || info == nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// stat returns nil info without error when nothing exists at path.
func (f *FS) stat(op, path string) (fs.FileInfo, error) {
	abs, norm, err := f.dirPath(op, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if apperr.KindOf(apperr.Classify(op, norm, err)) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, apperr.Classify(op, norm, err)
	}
	return info, nil
}

// Stat returns size and modification time for path.
func (f *FS) Stat(path string) (models.FileInfo, error) {
	abs, norm, err := f.dirPath("stat", path)
	if err != nil {
		return models.FileInfo{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileInfo{}, apperr.Classify("stat", norm, err)
	}
	return models.FileInfo{Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}

// List returns the direct children of dir. Symlinks and temp files are skipped.
func (f *FS) List(dir string) ([]models.Entry, error) {
	abs, norm, err := f.dirPath("list", dir)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(abs)
	if err != nil {
		return nil, apperr.Classify("list", norm, err)
	}
	out := make([]models.Entry, 0, len(des))
	for _, d := range des {
		name := d.Name()
		if strings.HasPrefix(name, TempPrefix) || d.Type()&fs.ModeSymlink != 0 {
			continue
		}
		rel := name
		if norm != "" {
			rel = norm + "/" + name
		}
		e := models.Entry{Name: name, Path: rel}
		switch {
		case d.IsDir():
			e.Type = models.TypeFolder
		case d.Type().IsRegular() && IsMarkdown(name):
			e.Type = models.TypeNote
		case d.Type().IsRegular():
			e.Type = models.TypeFile
		default:
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Walk visits every entry under dir depth-first in name order. Returning
// fs.SkipDir from fn for a folder skips its children.
func (f *FS) Walk(dir string, fn WalkFunc) error {
	err := f.walk(dir, fn)
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (f *FS) walk(dir string, fn WalkFunc) error {
	entries, err := f.List(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		err := fn(e)
		if e.Type == models.TypeFolder {
			if errors.Is(err, fs.SkipDir) {
				continue
			}
			if err != nil {
				return err
			}
			if err := f.walk(e.Path, fn); err != nil {
				// A folder removed mid-walk is not a failure of the walk.
				if apperr.KindOf(err) == apperr.KindNotFound {
					continue
				}
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isEmptyDir(abs string) (bool, error) {
	d, err := os.Open(abs)
	if err != nil {
		return false, err
	}
	defer d.Close()
	_, err = d.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// parentErr classifies a failure to prepare a destination directory. The
// target itself was known to be absent, so "does not exist" means an ancestor
// is missing.
func parentErr(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return &apperr.Error{Kind: apperr.KindParentNotFound, Op: op, Path: path, Err: err}
	}
	return apperr.Classify(op, path, err)
}
