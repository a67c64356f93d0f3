//go:build !windows

package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/kiln/pkg/fatal"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

type outcomes struct {
	mu      sync.Mutex
	errs    []error
	results []Result
}

func (o *outcomes) record(err error, res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
	o.results = append(o.results, res)
}

func (o *outcomes) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.results)
}

func runWatcher(t *testing.T, w *Watcher) *outcomes {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	got := &outcomes{}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, got.record) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return got
}

func TestBuildCapturesOutput(t *testing.T) {
	w := &Watcher{Target: wtarget.Main, Command: []string{"sh", "-c", "echo compiled; echo warn >&2"}}

	res, err := w.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, wtarget.Main, res.Target)
	assert.Contains(t, res.Output, "compiled")
	assert.Contains(t, res.Output, "warn")
	assert.Positive(t, res.Duration)
}

func TestBuildFailureCarriesExitCode(t *testing.T) {
	w := &Watcher{Target: wtarget.Renderer, Command: []string{"sh", "-c", "echo 'syntax error'; exit 2"}}

	res, err := w.Build(t.Context())
	require.Error(t, err)
	assert.Equal(t, 2, fatal.ExitStatus(err))
	assert.Contains(t, res.Output, "syntax error")
}

func TestRunBuildsInitially(t *testing.T) {
	got := runWatcher(t, &Watcher{Target: wtarget.Main, Command: []string{"true"}})

	require.Eventually(t, func() bool { return got.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, got.count())
}

func TestRunRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	got := runWatcher(t, &Watcher{
		Target:   wtarget.Main,
		Command:  []string{"true"},
		Dir:      dir,
		Watch:    []string{"src/**/*.ts"},
		Debounce: 20 * time.Millisecond,
	})
	require.Eventually(t, func() bool { return got.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.md"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, got.count())

	require.NoError(t, os.WriteFile(filepath.Join(src, "index.ts"), []byte("x"), 0o600))
	require.Eventually(t, func() bool { return got.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunQueuesOneFollowUpBuild(t *testing.T) {
	dir := t.TempDir()

	got := runWatcher(t, &Watcher{
		Target:   wtarget.Renderer,
		Command:  []string{"sleep", "0.3"},
		Dir:      dir,
		Watch:    []string{"*.ts"},
		Debounce: 10 * time.Millisecond,
	})

	// Changes during the initial build.
	for i := range 5 {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte{byte(i)}, 0o600))
	}

	require.Eventually(t, func() bool { return got.count() == 2 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 2, got.count())
}

func TestRunReportsFailures(t *testing.T) {
	got := runWatcher(t, &Watcher{Target: wtarget.Preload, Command: []string{"false"}})

	require.Eventually(t, func() bool { return got.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	got.mu.Lock()
	defer got.mu.Unlock()
	require.Error(t, got.errs[0])
	assert.Equal(t, wtarget.Preload, got.results[0].Target)
}
