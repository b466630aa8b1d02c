// Package watcher reports changes made to the vault by other processes.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quire/internal/storage"
)

// DefaultDebounce is the quiet period after the last event before changes
// are reported.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc receives the vault-relative, slash-separated paths touched
// since the previous call, sorted.
type ChangeFunc func(paths []string)

// Options configure Watch.
type Options struct {
	Debounce   time.Duration
	WithHidden bool // also watch dot-prefixed entries
}

// Watch starts an fsnotify watcher on root and calls onChange with batches
// of changed paths until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Temp
// files of in-flight atomic writes are ignored.
func Watch(ctx context.Context, root string, opts Options, logger *slog.Logger, onChange ChangeFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, opts.WithHidden); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(opts.Debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			logger.Debug("watcher: changes", slog.Int("count", len(paths)))
			onChange(paths)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || rel == "." {
				continue
			}
			rel = filepath.ToSlash(rel)
			if ignored(rel, opts.WithHidden) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Lstat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, opts.WithHidden); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
				}
			}

			pending[rel] = struct{}{}
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// ignored reports whether rel should not trigger a change.
func ignored(rel string, withHidden bool) bool {
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	if strings.HasPrefix(base, storage.TempPrefix) {
		return true
	}
	if withHidden {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, withHidden bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Removed while walking.
			if os.IsNotExist(err) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !withHidden && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
