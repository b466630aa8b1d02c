package vault

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/pathguard"
)

const folderNoun = "Folder"

// Folder is a directory of the vault.
type Folder struct {
	svc  *Service
	path string
	errs Errors
}

// Path returns the folder path. It is normalized once an operation has
// validated it.
func (f *Folder) Path() string { return f.path }

// Name returns the last path segment.
func (f *Folder) Name() string { return pathguard.Base(f.path) }

// ParentPath returns the path minus its last segment, "" at the root.
func (f *Folder) ParentPath() string { return pathguard.Parent(f.path) }

// Errors returns the failures of the last operation.
func (f *Folder) Errors() *Errors { return &f.errs }

// Valid validates the folder path, recording field errors.
func (f *Folder) Valid() bool {
	f.errs.Clear()
	_, ok := f.normalized()
	return ok
}

func (f *Folder) normalized() (string, bool) {
	if !validate(&f.errs, validationErrors("path", f.path, pathRule)) {
		return "", false
	}
	p, _ := pathguard.Normalize(f.path)
	f.path = p
	return p, true
}

// Create makes the directory and any missing ancestors. An existing target
// is never merged into.
func (f *Folder) Create() bool {
	f.errs.Clear()
	p, ok := f.normalized()
	if !ok {
		return false
	}
	if err := f.svc.store.Mkdir(p); err != nil {
		addBase(&f.errs, folderNoun, err)
		return false
	}
	f.svc.tree.Invalidate()
	f.svc.notify(EventFolderCreated, p, "")
	f.svc.logger.Info("folder created", slog.String("path", p))
	return true
}

// Destroy removes the folder. Only empty folders are removed.
func (f *Folder) Destroy() bool {
	f.errs.Clear()
	p, ok := f.normalized()
	if !ok {
		return false
	}
	if !f.requireDir(p) {
		return false
	}
	if err := f.svc.store.Delete(p); err != nil {
		addBase(&f.errs, folderNoun, err)
		return false
	}
	f.svc.tree.Invalidate()
	f.svc.notify(EventFolderDeleted, p, "")
	f.svc.logger.Info("folder deleted", slog.String("path", p))
	return true
}

// Rename moves the folder to newPath without overwriting anything, then
// updates the slug of a contained index.md on a best-effort basis.
func (f *Folder) Rename(newPath string) bool {
	f.errs.Clear()
	if !validate(&f.errs, validation.Errors{
		"path":     validation.Validate(f.path, pathRule),
		"new_path": validation.Validate(newPath, pathRule),
	}) {
		return false
	}
	from, _ := pathguard.Normalize(f.path)
	to, _ := pathguard.Normalize(newPath)
	f.path = from
	if !f.requireDir(from) {
		return false
	}
	if from == to {
		return true
	}
	if err := f.svc.store.Move(from, to); err != nil {
		addBase(&f.errs, folderNoun, err)
		return false
	}
	f.path = to
	f.svc.tree.Invalidate()
	f.svc.notify(EventFolderMoved, to, from)
	f.svc.logger.Info("folder moved", slog.String("from", from), slog.String("to", to))

	f.svc.updateBundleSlug(to)
	return true
}

// Children returns the folder's tree children. Missing or invalid folders
// have none.
func (f *Folder) Children(ctx context.Context) []*models.TreeNode {
	if !pathguard.Valid(f.path) {
		return []*models.TreeNode{}
	}
	return f.svc.tree.Children(ctx, f.path)
}

// requireDir records not_found unless p is an existing directory.
func (f *Folder) requireDir(p string) bool {
	ok, err := f.svc.store.IsDir(p)
	if err != nil {
		addBase(&f.errs, folderNoun, err)
		return false
	}
	if !ok {
		addBase(&f.errs, folderNoun, apperr.New(apperr.KindNotFound, "folder", p))
		return false
	}
	return true
}
