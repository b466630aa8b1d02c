// Package tree materializes the vault directory structure as an ordered
// folder/note hierarchy.
//
// The tree is memoized and rebuilt from scratch after Invalidate; it is never
// patched in place. Callers that mutate the vault must call Invalidate before
// reporting success so that the next List observes the change.
package tree

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/pathguard"
	"github.com/starford/quire/internal/storage"
)

// Option configures a Tree.
type Option func(*Tree)

// WithHidden includes dot-prefixed entries in the tree.
func WithHidden(show bool) Option {
	return func(t *Tree) { t.showHidden = show }
}

// WithLogger sets the logger used for rebuild diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) { t.logger = l }
}

// Tree is a memoized view of the vault hierarchy.
//
// Nodes returned by List and Find are shared between callers and must be
// treated as read-only.
type Tree struct {
	store      storage.Provider
	logger     *slog.Logger
	showHidden bool

	mu    sync.RWMutex
	nodes []*models.TreeNode
	valid bool
	gen   uint64

	builds singleflight.Group
}

// New creates a Tree over store.
func New(store storage.Provider, opts ...Option) *Tree {
	t := &Tree{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// List returns the full tree rooted at the vault root.
func (t *Tree) List(ctx context.Context) ([]*models.TreeNode, error) {
	t.mu.RLock()
	if t.valid {
		nodes := t.nodes
		t.mu.RUnlock()
		return nodes, nil
	}
	gen := t.gen
	t.mu.RUnlock()

	v, err, _ := t.builds.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		start := time.Now()
		nodes, err := t.build(ctx, "")
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		// An invalidation during the build makes this result stale.
		if t.gen == gen {
			t.nodes = nodes
			t.valid = true
		}
		t.mu.Unlock()
		t.logger.Debug("tree: rebuilt",
			slog.Int("nodes", count(nodes)),
			slog.Duration("took", time.Since(start)))
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.TreeNode), nil
}

// Invalidate drops the memoized tree.
func (t *Tree) Invalidate() {
	t.mu.Lock()
	t.gen++
	t.valid = false
	t.nodes = nil
	t.mu.Unlock()
}

// Find returns the node at path, or nil when there is none. Invalid paths
// and listing failures are reported as "no node".
func (t *Tree) Find(ctx context.Context, path string) *models.TreeNode {
	p, err := pathguard.Normalize(path)
	if err != nil {
		return nil
	}
	nodes, err := t.List(ctx)
	if err != nil {
		t.logger.Warn("tree: list failed", slog.String("path", p), slog.String("error", err.Error()))
		return nil
	}
	return find(nodes, p)
}

// Children returns the children of the folder at path ("" for the root).
// The result is never nil.
func (t *Tree) Children(ctx context.Context, path string) []*models.TreeNode {
	if path == "" {
		nodes, err := t.List(ctx)
		if err != nil || nodes == nil {
			return []*models.TreeNode{}
		}
		return nodes
	}
	n := t.Find(ctx, path)
	if n == nil || !n.IsFolder() || n.Children == nil {
		return []*models.TreeNode{}
	}
	return n.Children
}

func find(nodes []*models.TreeNode, p string) *models.TreeNode {
	for _, n := range nodes {
		if n.Path == p {
			return n
		}
		if n.IsFolder() && pathguard.IsWithin(p, n.Path) {
			if hit := find(n.Children, p); hit != nil {
				return hit
			}
		}
	}
	return nil
}

func (t *Tree) build(ctx context.Context, dir string) ([]*models.TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := t.store.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]*models.TreeNode, 0, len(entries))
	for _, e := range entries {
		if !t.showHidden && strings.HasPrefix(e.Name, ".") {
			continue
		}
		switch e.Type {
		case models.TypeFolder:
			children, err := t.build(ctx, e.Path)
			if err != nil {
				// Removed by another process while we were listing.
				if apperr.KindOf(err) == apperr.KindNotFound {
					continue
				}
				return nil, err
			}
			out = append(out, &models.TreeNode{Path: e.Path, Name: e.Name, Type: models.TypeFolder, Children: children})
		case models.TypeNote:
			out = append(out, &models.TreeNode{Path: e.Path, Name: e.Name, Type: models.TypeNote})
		}
	}
	Sort(out)
	return out, nil
}

// Sort orders nodes folders first, then by case-insensitive name, then by
// raw name so that the order is total.
func Sort(nodes []*models.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
}

func count(nodes []*models.TreeNode) int {
	n := len(nodes)
	for _, c := range nodes {
		n += count(c.Children)
	}
	return n
}
