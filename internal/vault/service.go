// Package vault implements the note and folder entities on top of the file
// store and the content tree.
//
// Entity operations never return raw errors. They report success as a bool
// and record failures on the entity's Errors: field-level entries for input
// validation, base-level entries for file system outcomes.
package vault

import (
	"log/slog"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/hugo"
	"github.com/starford/quire/internal/pathguard"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/tree"
)

// Change event kinds passed to a Notifier.
const (
	EventNoteCreated   = "note.created"
	EventNoteUpdated   = "note.updated"
	EventNoteDeleted   = "note.deleted"
	EventNoteMoved     = "note.moved"
	EventFolderCreated = "folder.created"
	EventFolderDeleted = "folder.deleted"
	EventFolderMoved   = "folder.moved"
)

// Notifier receives a change event after a successful mutation. from is set
// for moves only.
type Notifier interface {
	PublishChange(kind, path, from string)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used to date blog posts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBlogRoot sets the folder new blog posts are created under when no
// parent is given.
func WithBlogRoot(dir string) Option {
	return func(s *Service) { s.blogRoot = dir }
}

// WithNotifier registers a change event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service wires the entities to their collaborators.
type Service struct {
	store    storage.Provider
	tree     *tree.Tree
	logger   *slog.Logger
	now      func() time.Time
	blogRoot string
	notifier Notifier
}

// NewService creates a Service over store and t.
func NewService(store storage.Provider, t *tree.Tree, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tree:   t,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tree returns the content tree the service invalidates.
func (s *Service) Tree() *tree.Tree { return s.tree }

// Store returns the underlying file store.
func (s *Service) Store() storage.Provider { return s.store }

// FindFolder returns the folder at path. It fails with an invalid_path or
// not_found *apperr.Error.
func (s *Service) FindFolder(path string) (*Folder, error) {
	p, err := pathguard.Normalize(path)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.IsDir(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "find folder", p)
	}
	return &Folder{svc: s, path: p}, nil
}

// NewFolder returns an unsaved folder entity for path.
func (s *Service) NewFolder(path string) *Folder {
	return &Folder{svc: s, path: path}
}

// FindNote returns the note at path. It fails with an invalid_path or
// not_found *apperr.Error.
func (s *Service) FindNote(path string) (*Note, error) {
	p, err := pathguard.Normalize(path)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.IsFile(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "find note", p)
	}
	return &Note{svc: s, path: p}, nil
}

// NewNote returns an unsaved note entity for path.
func (s *Service) NewNote(path string) *Note {
	return &Note{svc: s, path: path}
}

// CreateBlogPost scaffolds a dated Hugo page bundle under parent, or under
// the configured blog root when parent is empty. The returned note carries
// any failure in its Errors.
func (s *Service) CreateBlogPost(title, parent string) (*Note, bool) {
	if parent == "" {
		parent = s.blogRoot
	}
	var errs Errors
	if !validate(&errs, validationErrors("title", title, presenceRule)) {
		n := s.NewNote("")
		n.errs = errs
		return n, false
	}
	post := hugo.GenerateBlogPost(title, parent, s.now())
	n := s.NewNote(post.Path)
	ok := n.Create(post.Content)
	if ok {
		s.logger.Info("blog post created", slog.String("path", n.path), slog.String("slug", post.Slug))
	}
	return n, ok
}

func (s *Service) notify(kind, path, from string) {
	if s.notifier != nil {
		s.notifier.PublishChange(kind, path, from)
	}
}

// updateBundleSlug rewrites the slug of dir/index.md to match the folder
// name. Failures are logged and dropped.
func (s *Service) updateBundleSlug(dir string) {
	index := dir + "/" + hugo.IndexFile
	log := s.logger.With(slog.String("path", index))

	data, err := s.store.Read(index)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			log.Warn("slug update: read failed", slog.String("error", err.Error()))
		}
		return
	}
	slug := hugo.Slugify(pathguard.Base(dir))
	if slug == "" {
		return
	}
	updated, changed := hugo.UpdateFrontmatterSlug(string(data), slug)
	if !changed {
		return
	}
	if err := s.store.Write(index, []byte(updated)); err != nil {
		log.Warn("slug update: write failed", slog.String("error", err.Error()))
		return
	}
	log.Info("slug updated", slog.String("slug", slug))
}
