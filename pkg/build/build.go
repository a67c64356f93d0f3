// Package build runs the compile command for one unit whenever its sources
// change.
package build

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yaklabco/kiln/internal/ish"
	klog "github.com/yaklabco/kiln/internal/log"
	"github.com/yaklabco/kiln/pkg/watch"
	"github.com/yaklabco/kiln/pkg/watch/debounce"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

// DefaultDebounce is the quiet period applied to source changes before a
// rebuild starts.
const DefaultDebounce = 100 * time.Millisecond

// Result describes one completed build, successful or not.
type Result struct {
	Target   wtarget.ID
	Duration time.Duration
	// Output is the combined stdout and stderr of the build command.
	Output string
}

// Callback receives every completed build. err is nil on success.
type Callback func(err error, res Result)

// Watcher rebuilds one target. The zero value is not usable; Target and
// Command must be set.
type Watcher struct {
	Target   wtarget.ID
	Command  []string
	Dir      string
	Env      map[string]string
	Watch    []string
	Ignore   []string
	Debounce time.Duration
	Verbose  bool
}

// Build runs the command once.
func (w *Watcher) Build(ctx context.Context) (Result, error) {
	start := time.Now()
	out, err := ish.Output(ctx, ish.Cmd{
		Args:    w.Command,
		Dir:     w.Dir,
		Env:     w.Env,
		Verbose: w.Verbose,
	})

	return Result{Target: w.Target, Duration: time.Since(start), Output: out}, err
}

// Run performs an initial build and then rebuilds on matching changes until
// ctx is done. Builds never overlap. Changes that arrive while a build is in
// progress queue exactly one follow-up build. With no Watch patterns, Run
// builds once and waits for ctx.
func (w *Watcher) Run(ctx context.Context, cb Callback) error {
	rerun := make(chan struct{}, 1)
	trigger := func() {
		select {
		case rerun <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if len(w.Watch) > 0 {
		fsw, err := watch.New(watch.Options{Root: w.Dir, Include: w.Watch, Ignore: w.Ignore})
		if err != nil {
			return err
		}

		delay := w.Debounce
		if delay <= 0 {
			delay = DefaultDebounce
		}
		deb := debounce.New(delay, trigger)
		defer deb.Cancel()

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fsw.Run(ctx, func(e watch.Event) {
				if e.IsDir {
					return
				}
				slog.Debug("source changed", slog.String(klog.Target, w.Target.String()), slog.String(klog.Path, e.Path))
				deb.Call()
			})
		}()
	}
	trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rerun:
			slog.Debug("building", slog.String(klog.Target, w.Target.String()))
			res, err := w.Build(ctx)
			if ctx.Err() != nil {
				return nil
			}
			cb(err, res)
		}
	}
}
