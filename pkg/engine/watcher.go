package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/statemock/pkg/config"
	"github.com/getmockd/statemock/pkg/logging"
	"github.com/getmockd/statemock/pkg/stateful"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher loads config documents from a path into a stateful.Handler and
// reloads them when they change.
//
// A reload is all or nothing at the document level: if any file fails to
// parse, the previous configuration stays active. Patterns that disappear
// from the documents are removed from the handler.
type Watcher struct {
	path     string
	handler  *stateful.Handler
	log      *slog.Logger
	debounce time.Duration
	onReload func(error)

	mu       sync.Mutex
	patterns map[string]struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// OnReload registers fn to be called after every reload triggered by a file
// change.
func OnReload(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher creates a watcher for path, which may be a file, a directory or
// a glob pattern.
func NewWatcher(path string, h *stateful.Handler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		handler:  h,
		log:      logging.Nop(),
		debounce: DefaultDebounce,
		patterns: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reload loads the documents and applies them to the handler.
func (w *Watcher) Reload(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	docs, err := config.Load(w.path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", w.path, err)
	}

	next := make(map[string]struct{})
	var errs []error
	for _, doc := range docs {
		if err := doc.Apply(w.handler); err != nil {
			errs = append(errs, err)
		}
		for _, p := range doc.Patterns() {
			next[p] = struct{}{}
		}
	}

	removed := 0
	for p := range w.patterns {
		if _, ok := next[p]; !ok && w.handler.RemoveConfig(p) {
			removed++
		}
	}
	w.patterns = next

	w.log.Info("stateful configs loaded",
		"path", w.path,
		"documents", len(docs),
		"patterns", len(next),
		"removed", removed)
	return errors.Join(errs...)
}

// Run watches the config path until ctx is done. It does not perform an
// initial load; call Reload first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dirs, err := w.watchDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.log.Debug("watching config path", "path", w.path, "dirs", len(dirs))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fw.Add(event.Name)
				}
			}
			if !isConfigFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			err := w.Reload(ctx)
			if err != nil {
				w.log.Error("config reload failed, keeping previous config", "path", w.path, "error", err)
			}
			if w.onReload != nil {
				w.onReload(err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		}
	}
}

// watchDirs lists the directories to watch. fsnotify watches directories,
// so a single file is watched through its parent; editors replace files on
// save and a direct file watch would be lost.
func (w *Watcher) watchDirs() ([]string, error) {
	root := w.path
	recursive := false
	if strings.ContainsAny(w.path, "*?[{") {
		root, _ = doublestar.SplitPattern(filepath.ToSlash(w.path))
		root = filepath.FromSlash(root)
		recursive = true
	} else if info, err := os.Stat(w.path); err != nil {
		return nil, fmt.Errorf("file not found: %s", w.path)
	} else if info.IsDir() {
		recursive = true
	} else {
		root = filepath.Dir(w.path)
	}

	if !recursive {
		return []string{root}, nil
	}
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return dirs, nil
}

func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
