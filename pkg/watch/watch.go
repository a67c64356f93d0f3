// Package watch wraps a single fsnotify watcher over a directory tree, adding
// new directories as they appear and filtering events through include and
// ignore globs.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	klog "github.com/yaklabco/kiln/internal/log"
)

// Options configures a Watcher.
type Options struct {
	// Root is the directory relative patterns are resolved against.
	Root string
	// Include limits reported events to matching paths. Empty includes all.
	Include []string
	// Ignore suppresses matching paths. Ignored directories are not descended.
	Ignore []string
}

// Event is a filtered filesystem change.
type Event struct {
	Path  string
	Op    fsnotify.Op
	IsDir bool
}

// Watcher reports changes under a set of directories.
type Watcher struct {
	root    string
	include []pattern
	ignore  []pattern
	fsw     *fsnotify.Watcher
}

// New compiles the patterns and registers every non-ignored directory under
// the static prefixes of Include (or Root when Include is empty).
func New(opts Options) (*Watcher, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	include, err := compilePatterns(root, opts.Include)
	if err != nil {
		return nil, err
	}
	ignore, err := compilePatterns(root, opts.Ignore)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	theWatcher := &Watcher{root: root, include: include, ignore: ignore, fsw: fsw}

	dirs := []string{root}
	if len(opts.Include) > 0 {
		dirs = lo.Uniq(lo.Map(lo.Compact(opts.Include), func(src string, _ int) string {
			return staticPrefix(root, src)
		}))
	}
	for _, dir := range dirs {
		if _, err := theWatcher.addTree(dir, nil); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return theWatcher, nil
}

// Root returns the absolute root directory.
func (w *Watcher) Root() string {
	return w.root
}

// WatchList returns the directories currently registered with fsnotify.
func (w *Watcher) WatchList() []string {
	return w.fsw.WatchList()
}

// Wants reports whether absPath passes the include and ignore filters.
func (w *Watcher) Wants(absPath string) bool {
	if w.ignored(absPath) {
		return false
	}
	return len(w.include) == 0 || matchAny(w.include, absPath)
}

func (w *Watcher) ignored(absPath string) bool {
	if matchAny(w.ignore, absPath) {
		return true
	}
	// A path under an ignored directory is ignored too.
	for dir := filepath.Dir(absPath); len(dir) > len(w.root); dir = filepath.Dir(dir) {
		if matchAny(w.ignore, dir) {
			return true
		}
	}
	return false
}

// addTree registers dir and every non-ignored directory below it. When found
// is non-nil, it is called for each wanted file discovered along the way.
func (w *Watcher) addTree(dir string, found func(string)) (int, error) {
	added := 0
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path != dir && w.ignored(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("failed to add %q to watcher: %w", path, err)
			}
			added++
			return nil
		}
		if found != nil && w.Wants(path) {
			found(path)
		}
		return nil
	})

	return added, walkErr
}

// Run delivers filtered events to handle until ctx is done, then closes the
// underlying watcher. handle is called from a single goroutine.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.dispatch(event, handle)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", slog.Any(klog.Error, err))
		}
	}
}

func (w *Watcher) dispatch(event fsnotify.Event, handle func(Event)) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	absPath := event.Name
	if !filepath.IsAbs(absPath) {
		if a, err := filepath.Abs(absPath); err == nil {
			absPath = a
		}
	}
	if w.ignored(absPath) {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(absPath); err == nil && info.IsDir() {
			isDir = true
			// Files may land in a new directory before it is watched.
			_, err := w.addTree(absPath, func(path string) {
				handle(Event{Path: path, Op: fsnotify.Create})
			})
			if err != nil {
				slog.Warn("failed to watch new directory", slog.String(klog.Path, absPath), slog.Any(klog.Error, err))
			}
		}
	}

	if !isDir && !w.Wants(absPath) {
		return
	}
	handle(Event{Path: absPath, Op: event.Op, IsDir: isDir})
}
