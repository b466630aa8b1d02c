package vault

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/pathguard"
)

const noteNoun = "Note"

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Size        int64          `json:"size"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Note is a markdown file of the vault. Content is loaded lazily and cached
// on the entity.
type Note struct {
	svc     *Service
	path    string
	content []byte
	loaded  bool
	errs    Errors
}

// Path returns the note path. It is normalized once an operation has
// validated it.
func (n *Note) Path() string { return n.path }

// Name returns the file name.
func (n *Note) Name() string { return pathguard.Base(n.path) }

// ParentPath returns the containing folder, "" at the root.
func (n *Note) ParentPath() string { return pathguard.Parent(n.path) }

// Errors returns the failures of the last operation.
func (n *Note) Errors() *Errors { return &n.errs }

// Valid validates the note path, recording field errors.
func (n *Note) Valid() bool {
	n.errs.Clear()
	_, ok := n.normalized()
	return ok
}

func (n *Note) normalized() (string, bool) {
	if !validate(&n.errs, validationErrors("path", n.path, pathRule, markdownRule)) {
		return "", false
	}
	p, _ := pathguard.Normalize(n.path)
	n.path = p
	return p, true
}

// Exists reports whether the note is currently a file on disk.
func (n *Note) Exists() bool {
	p, err := pathguard.Normalize(n.path)
	if err != nil {
		return false
	}
	ok, err := n.svc.store.IsFile(p)
	return err == nil && ok
}

// Create writes a new note. An occupied path is never overwritten.
func (n *Note) Create(content string) bool {
	n.errs.Clear()
	p, ok := n.normalized()
	if !ok {
		return false
	}
	data := []byte(content)
	if err := n.svc.store.Create(p, data); err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	n.content, n.loaded = data, true
	n.svc.tree.Invalidate()
	n.svc.notify(EventNoteCreated, p, "")
	n.svc.logger.Info("note created", slog.String("path", p))
	return true
}

// Read returns the note content, loading it on first use.
func (n *Note) Read() (string, bool) {
	n.errs.Clear()
	if n.loaded {
		return string(n.content), true
	}
	data, ok := n.load()
	if !ok {
		return "", false
	}
	return string(data), true
}

// Reload drops the cached content and reads it again.
func (n *Note) Reload() (string, bool) {
	n.content, n.loaded = nil, false
	return n.Read()
}

func (n *Note) load() ([]byte, bool) {
	p, ok := n.normalized()
	if !ok {
		return nil, false
	}
	data, err := n.svc.store.Read(p)
	if err != nil {
		addBase(&n.errs, noteNoun, err)
		return nil, false
	}
	n.content, n.loaded = data, true
	return data, true
}

// Write replaces the content of an existing note. A non-empty ifMatch must
// name the checksum of the content currently on disk, otherwise the write
// fails with a conflict. Deleted notes are not recreated.
func (n *Note) Write(content, ifMatch string) bool {
	n.errs.Clear()
	p, ok := n.normalized()
	if !ok {
		return false
	}
	current, err := n.svc.store.Read(p)
	if err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	if ifMatch != "" && !checksum.Matches(current, ifMatch) {
		addBase(&n.errs, noteNoun, apperr.New(apperr.KindConflict, "write", p))
		return false
	}
	data := []byte(content)
	if err := n.svc.store.Write(p, data); err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	n.content, n.loaded = data, true
	n.svc.notify(EventNoteUpdated, p, "")
	n.svc.logger.Debug("note written", slog.String("path", p), slog.Int("bytes", len(data)))
	return true
}

// Destroy deletes the note file.
func (n *Note) Destroy() bool {
	n.errs.Clear()
	p, ok := n.normalized()
	if !ok {
		return false
	}
	if !n.requireFile(p) {
		return false
	}
	if err := n.svc.store.Delete(p); err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	n.content, n.loaded = nil, false
	n.svc.tree.Invalidate()
	n.svc.notify(EventNoteDeleted, p, "")
	n.svc.logger.Info("note deleted", slog.String("path", p))
	return true
}

// Rename moves the note to newPath. An occupied destination is never
// overwritten.
func (n *Note) Rename(newPath string) bool {
	n.errs.Clear()
	if !validate(&n.errs, validation.Errors{
		"path":     validation.Validate(n.path, pathRule, markdownRule),
		"new_path": validation.Validate(newPath, pathRule, markdownRule),
	}) {
		return false
	}
	from, _ := pathguard.Normalize(n.path)
	to, _ := pathguard.Normalize(newPath)
	n.path = from
	if !n.requireFile(from) {
		return false
	}
	if from == to {
		return true
	}
	if err := n.svc.store.Move(from, to); err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	n.path = to
	n.svc.tree.Invalidate()
	n.svc.notify(EventNoteMoved, to, from)
	n.svc.logger.Info("note moved", slog.String("from", from), slog.String("to", to))
	return true
}

// Stat returns the size and modification time of the note file.
func (n *Note) Stat() (models.FileInfo, bool) {
	n.errs.Clear()
	p, ok := n.normalized()
	if !ok {
		return models.FileInfo{}, false
	}
	if !n.requireFile(p) {
		return models.FileInfo{}, false
	}
	info, err := n.svc.store.Stat(p)
	if err != nil {
		addBase(&n.errs, noteNoun, err)
		return models.FileInfo{}, false
	}
	return info, true
}

// Checksum returns the SHA-256 of the note content.
func (n *Note) Checksum() (string, bool) {
	content, ok := n.Read()
	if !ok {
		return "", false
	}
	return checksum.Sum([]byte(content)), true
}

// Metadata returns the lightweight listing view of the note.
func (n *Note) Metadata() (models.NoteMetadata, bool) {
	d, ok := n.Detail()
	if !ok {
		return models.NoteMetadata{}, false
	}
	return models.NoteMetadata{
		Path:      d.Path,
		Title:     d.Title,
		Checksum:  d.Checksum,
		Size:      d.Size,
		UpdatedAt: d.UpdatedAt,
	}, true
}

// Detail returns the parsed note with its content and stat fields.
func (n *Note) Detail() (*NoteDetail, bool) {
	info, ok := n.Stat()
	if !ok {
		return nil, false
	}
	content, ok := n.Read()
	if !ok {
		return nil, false
	}
	res, err := parser.Parse([]byte(content))
	if err != nil {
		addBase(&n.errs, noteNoun, err)
		return nil, false
	}
	return &NoteDetail{
		Path:        n.path,
		Title:       res.Title,
		Content:     content,
		Checksum:    checksum.Sum([]byte(content)),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Size:        int64(len(content)),
		UpdatedAt:   info.ModTime,
	}, true
}

// requireFile records not_found unless p is an existing regular file.
func (n *Note) requireFile(p string) bool {
	ok, err := n.svc.store.IsFile(p)
	if err != nil {
		addBase(&n.errs, noteNoun, err)
		return false
	}
	if !ok {
		addBase(&n.errs, noteNoun, apperr.New(apperr.KindNotFound, "note", p))
		return false
	}
	return true
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
