package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) saw(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Path == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, opts Options) *recorder {
	t.Helper()

	w, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, rec.handle)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return rec
}

func TestWants(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{
		Root:    root,
		Include: []string{"src/**/*.ts"},
		Ignore:  []string{"*.swp", "src/vendor"},
	})
	require.NoError(t, err)
	defer func() { _ = w.fsw.Close() }()

	tests := []struct {
		path string
		want bool
	}{
		{"src/main/index.ts", true},
		{"src/a/b/c/deep.ts", true},
		{"src/index.ts", true},
		{"src/index.js", false},
		{"src/main/index.ts.swp", false},
		{"src/vendor/lib.ts", false},
		{"other/index.ts", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Wants(filepath.Join(root, tt.path)))
		})
	}
}

func TestStaticPrefix(t *testing.T) {
	root := filepath.FromSlash("/proj")
	assert.Equal(t, filepath.FromSlash("/proj/src/main"), staticPrefix(root, "src/main/**/*.ts"))
	assert.Equal(t, filepath.FromSlash("/proj/src/main.ts"), staticPrefix(root, "src/main.ts"))
	assert.Equal(t, filepath.FromSlash("/proj"), staticPrefix(root, "*.ts"))
}

func TestInvalidPattern(t *testing.T) {
	_, err := New(Options{Root: t.TempDir(), Include: []string{"src/[.ts"}})
	require.Error(t, err)
}

func TestNewSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755))

	w, err := New(Options{Root: root, Ignore: []string{"node_modules"}})
	require.NoError(t, err)
	defer func() { _ = w.fsw.Close() }()

	list := w.WatchList()
	assert.Contains(t, list, filepath.Join(root, "a", "b"))
	assert.NotContains(t, list, filepath.Join(root, "node_modules"))
	assert.NotContains(t, list, filepath.Join(root, "node_modules", "x"))
}

func TestRunReportsMatchingWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	rec := startWatcher(t, Options{Root: root, Include: []string{"src/**/*.ts"}})

	wanted := filepath.Join(root, "src", "index.ts")
	unwanted := filepath.Join(root, "src", "notes.md")
	require.NoError(t, os.WriteFile(unwanted, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(wanted, []byte("x"), 0o600))

	require.Eventually(t, func() bool { return rec.saw(wanted) }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, rec.saw(unwanted))
}

func TestRunFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, Options{Root: root})

	dir := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool { return rec.saw(dir) }, 2*time.Second, 10*time.Millisecond)

	file := filepath.Join(dir, "late.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	require.Eventually(t, func() bool { return rec.saw(file) }, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, e := range rec.events {
		if e.Path == dir {
			assert.True(t, e.IsDir)
			assert.True(t, e.Op.Has(fsnotify.Create))
		}
	}
}
