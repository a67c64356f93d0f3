// Package ressync mirrors a resource tree into the application's output
// directory and signals when a burst of changes has settled.
package ressync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	klog "github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/fsutils"
	"github.com/yaklabco/kiln/pkg/watch"
	"github.com/yaklabco/kiln/pkg/watch/debounce"
)

// DefaultDebounce is the quiet period after which a burst is considered
// settled.
const DefaultDebounce = 300 * time.Millisecond

const dirPerm = 0o755

// DefaultIgnore lists editor and OS housekeeping files that are never synced.
var DefaultIgnore = []string{ //nolint:gochecknoglobals // read-only defaults
	".DS_Store",
	"Thumbs.db",
	"*~",
	"*.swp",
	"*.swx",
	".#*",
	"4913",
}

// ErrNestedDst is returned when the destination lies inside the source tree.
var ErrNestedDst = errors.New("resource destination is inside the source tree")

// Syncer mirrors Src into Dst.
type Syncer struct {
	Src      string
	Dst      string
	Ignore   []string
	Debounce time.Duration
	// OnSettled is called once per quiet window, from a timer goroutine.
	OnSettled func()
	// OnReady, when set, is called once the tree is watched and the initial
	// mirror is done. Changes made after it returns are never missed.
	OnReady func()
}

// Run mirrors Src into Dst, then keeps Dst in step with Src until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	src, err := filepath.Abs(s.Src)
	if err != nil {
		return fmt.Errorf("resolving resource source: %w", err)
	}
	dst, err := filepath.Abs(s.Dst)
	if err != nil {
		return fmt.Errorf("resolving resource destination: %w", err)
	}
	if dst == src || strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrNestedDst, dst)
	}
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return fmt.Errorf("resource source %s is not a directory", src)
	}

	fsw, err := watch.New(watch.Options{
		Root:   src,
		Ignore: append(append([]string{}, DefaultIgnore...), s.Ignore...),
	})
	if err != nil {
		return err
	}

	copied, err := mirror(fsw, src, dst)
	if err != nil {
		slog.Warn("initial resource sync incomplete", slog.String(klog.Src, src), slog.Any(klog.Error, err))
	}
	slog.Debug("resources mirrored", slog.String(klog.Src, src), slog.String(klog.Dst, dst), slog.Int("copied", copied))

	delay := s.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	onSettled := s.OnSettled
	if onSettled == nil {
		onSettled = func() {}
	}
	deb := debounce.New(delay, onSettled)
	defer deb.Cancel()

	if s.OnReady != nil {
		s.OnReady()
	}

	return fsw.Run(ctx, func(e watch.Event) {
		if err := apply(e, src, dst); err != nil {
			slog.Warn("resource sync failed", slog.String(klog.Path, e.Path), slog.Any(klog.Error, err))
		}
		deb.Call()
	})
}

// mirror copies every wanted file under src whose copy in dst is missing or
// stale.
func mirror(fsw *watch.Watcher, src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		if !fsw.Wants(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target, err := mirrorPath(src, dst, path)
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return os.MkdirAll(target, dirPerm)
		}

		needed, err := fsutils.NeedsCopy(path, target)
		if err != nil || !needed {
			return err
		}
		copied++
		return fsutils.CopyFile(target, path)
	})

	return copied, err
}

// apply mirrors one event. Whatever the op, the current state of the source
// path decides: a missing path is deleted from dst, anything else is copied.
func apply(e watch.Event, src, dst string) error {
	target, err := mirrorPath(src, dst, e.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(e.Path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("resource removed", slog.String(klog.Dst, target))
		return fsutils.Remove(target)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.MkdirAll(target, dirPerm)
	}

	slog.Debug("resource copied", slog.String(klog.Src, e.Path), slog.String(klog.Dst, target))
	return fsutils.CopyFile(target, e.Path)
}

func mirrorPath(src, dst, path string) (string, error) {
	rel, err := filepath.Rel(src, path)
	if err != nil {
		return "", fmt.Errorf("mapping %s into %s: %w", path, dst, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, src)
	}
	return filepath.Join(dst, rel), nil
}
