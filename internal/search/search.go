// Package search implements filename and content search over the vault.
//
// Every query is untrusted input. Regular expressions use the RE2 engine of
// regexp, which matches in linear time, and scans are bounded by a result
// limit, a per-file size cap and a worker pool.
package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/tree"
)

// MaxQueryLength bounds the length of a query string.
const MaxQueryLength = 512

// Config holds the engine limits. Zero limits take the defaults; ContextLines
// is used as given.
type Config struct {
	MaxResults   int
	MaxFileBytes int64
	Workers      int
	ContextLines int
}

// Defaults.
const (
	DefaultMaxResults   = 200
	DefaultMaxFileBytes = 2 << 20
	DefaultWorkers      = 4
	DefaultContextLines = 2
)

// Options tune a single query.
type Options struct {
	Regex         bool
	CaseSensitive bool
	Limit         int // 0 means the configured maximum
}

// FileMatch is a tree entry whose path matched.
type FileMatch struct {
	Path string          `json:"path"`
	Name string          `json:"name"`
	Type models.NodeType `json:"type"`
}

// ContentMatch is one matching line of a note.
type ContentMatch struct {
	Path   string   `json:"path"`
	Line   int      `json:"line"`   // 1-based
	Column int      `json:"column"` // 1-based byte offset of the first match
	Text   string   `json:"text"`
	Before []string `json:"before"`
	After  []string `json:"after"`
}

// Engine runs searches against a file store and its content tree.
type Engine struct {
	store  storage.Provider
	tree   *tree.Tree
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine.
func New(store storage.Provider, t *tree.Tree, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ContextLines < 0 {
		cfg.ContextLines = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, tree: t, cfg: cfg, logger: logger}
}

func (e *Engine) limit(opts Options) int {
	if opts.Limit <= 0 || opts.Limit > e.cfg.MaxResults {
		return e.cfg.MaxResults
	}
	return opts.Limit
}

// Files matches query against the paths of notes and folders.
func (e *Engine) Files(ctx context.Context, query string, opts Options) ([]FileMatch, error) {
	m, err := compile(query, opts)
	if err != nil {
		return nil, err
	}
	nodes, err := e.tree.List(ctx)
	if err != nil {
		return nil, err
	}

	out := []FileMatch{}
	var visit func([]*models.TreeNode)
	visit = func(nodes []*models.TreeNode) {
		for _, n := range nodes {
			if m.index(n.Path) >= 0 {
				out = append(out, FileMatch{Path: n.Path, Name: n.Name, Type: n.Type})
			}
			visit(n.Children)
		}
	}
	visit(nodes)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit := e.limit(opts); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Content matches query line by line against note bodies.
func (e *Engine) Content(ctx context.Context, query string, opts Options) ([]ContentMatch, error) {
	m, err := compile(query, opts)
	if err != nil {
		return nil, err
	}
	nodes, err := e.tree.List(ctx)
	if err != nil {
		return nil, err
	}
	paths := notePaths(nodes, nil)
	sort.Strings(paths)
	limit := e.limit(opts)

	perFile := make([][]ContentMatch, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = e.scanFile(p, m, limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := []ContentMatch{}
	for _, matches := range perFile {
		out = append(out, matches...)
		if len(out) >= limit {
			out = out[:limit]
			break
		}
	}
	return out, nil
}

// scanFile returns up to limit matches in the note at p. Oversized and
// unreadable notes are skipped.
func (e *Engine) scanFile(p string, m *matcher, limit int) []ContentMatch {
	info, err := e.store.Stat(p)
	if err != nil {
		e.logger.Debug("search: stat failed", slog.String("path", p), slog.String("error", err.Error()))
		return nil
	}
	if info.Size > e.cfg.MaxFileBytes {
		e.logger.Debug("search: file too large", slog.String("path", p), slog.Int64("size", info.Size))
		return nil
	}
	data, err := e.store.Read(p)
	if err != nil {
		// Vanished between listing and reading.
		if apperr.KindOf(err) != apperr.KindNotFound {
			e.logger.Warn("search: read failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		return nil
	}

	lines := strings.Split(string(data), "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	var out []ContentMatch
	for i, line := range lines {
		col := m.index(line)
		if col < 0 {
			continue
		}
		out = append(out, ContentMatch{
			Path:   p,
			Line:   i + 1,
			Column: col + 1,
			Text:   line,
			Before: window(lines, i-e.cfg.ContextLines, i),
			After:  window(lines, i+1, i+1+e.cfg.ContextLines),
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func window(lines []string, from, to int) []string {
	from = max(from, 0)
	to = min(to, len(lines))
	if from >= to {
		return []string{}
	}
	out := make([]string, to-from)
	copy(out, lines[from:to])
	return out
}

func notePaths(nodes []*models.TreeNode, acc []string) []string {
	for _, n := range nodes {
		if n.Type == models.TypeNote {
			acc = append(acc, n.Path)
		}
		acc = notePaths(n.Children, acc)
	}
	return acc
}

type matcher struct {
	re    *regexp.Regexp
	lit   string
	foldQ bool
}

func compile(query string, opts Options) (*matcher, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Newf(apperr.KindInvalidQuery, "search", "", "presence")
	}
	if len(query) > MaxQueryLength {
		return nil, apperr.Newf(apperr.KindInvalidQuery, "search", "", "too long")
	}
	if opts.Regex {
		pattern := query
		if !opts.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &apperr.Error{Kind: apperr.KindInvalidQuery, Op: "search", Reason: err.Error(), Err: err}
		}
		return &matcher{re: re}, nil
	}
	if !opts.CaseSensitive {
		return &matcher{lit: strings.ToLower(query), foldQ: true}, nil
	}
	return &matcher{lit: query}, nil
}

// index returns the byte offset of the first match in s, or -1.
func (m *matcher) index(s string) int {
	if m.re != nil {
		loc := m.re.FindStringIndex(s)
		if loc == nil {
			return -1
		}
		return loc[0]
	}
	if m.foldQ {
		return indexFold(s, m.lit)
	}
	return strings.Index(s, m.lit)
}

// indexFold is a case-insensitive strings.Index that reports offsets in s.
func indexFold(s, lowerSubstr string) int {
	lower := strings.ToLower(s)
	i := strings.Index(lower, lowerSubstr)
	if i < 0 || len(lower) == len(s) {
		return i
	}
	// Lowercasing changed byte lengths; map back by runes.
	for off := range s {
		if strings.HasPrefix(strings.ToLower(s[off:]), lowerSubstr) {
			return off
		}
	}
	return -1
}
