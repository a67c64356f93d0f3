package ressync

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contentOf(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

type session struct {
	src, dst string
	settled  *atomic.Int32
}

func startSyncer(t *testing.T, debounce time.Duration, prepare func(src, dst string)) *session {
	t.Helper()

	root := t.TempDir()
	sess := &session{
		src:     filepath.Join(root, "resources"),
		dst:     filepath.Join(root, "out", "resources"),
		settled: &atomic.Int32{},
	}
	require.NoError(t, os.MkdirAll(sess.src, 0o755))
	if prepare != nil {
		prepare(sess.src, sess.dst)
	}

	ready := make(chan struct{})
	syncer := &Syncer{
		Src:       sess.src,
		Dst:       sess.dst,
		Ignore:    []string{"*.tmp"},
		Debounce:  debounce,
		OnSettled: func() { sess.settled.Add(1) },
		OnReady:   func() { close(ready) },
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()
	select {
	case <-ready:
	case err := <-done:
		require.FailNow(t, "syncer stopped before watching", "%v", err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "syncer never became ready")
	}
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return sess
}

func TestInitialMirror(t *testing.T) {
	var stale string
	sess := startSyncer(t, 50*time.Millisecond, func(src, dst string) {
		writeFile(t, filepath.Join(src, "icons", "app.png"), "png")
		writeFile(t, filepath.Join(src, "strings.json"), "{}")
		writeFile(t, filepath.Join(src, ".DS_Store"), "junk")
		writeFile(t, filepath.Join(src, "draft.tmp"), "junk")

		// An up-to-date copy is left alone.
		stale = filepath.Join(dst, "strings.json")
		writeFile(t, stale, "{}")
		future := time.Now().Add(time.Hour)
		require.NoError(t, os.Chtimes(stale, future, future))
	})

	require.Eventually(t, func() bool {
		return exists(filepath.Join(sess.dst, "icons", "app.png"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "png", contentOf(filepath.Join(sess.dst, "icons", "app.png")))
	assert.False(t, exists(filepath.Join(sess.dst, ".DS_Store")))
	assert.False(t, exists(filepath.Join(sess.dst, "draft.tmp")))

	info, err := os.Stat(stale)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(time.Now()))
}

func TestMirrorsChanges(t *testing.T) {
	sess := startSyncer(t, 30*time.Millisecond, nil)

	file := filepath.Join(sess.src, "config.json")
	writeFile(t, file, "v1")
	require.Eventually(t, func() bool {
		return contentOf(filepath.Join(sess.dst, "config.json")) == "v1"
	}, 2*time.Second, 10*time.Millisecond)

	writeFile(t, file, "v2")
	require.Eventually(t, func() bool {
		return contentOf(filepath.Join(sess.dst, "config.json")) == "v2"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(file))
	require.Eventually(t, func() bool {
		return !exists(filepath.Join(sess.dst, "config.json"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMirrorsNewDirectories(t *testing.T) {
	sess := startSyncer(t, 30*time.Millisecond, nil)

	writeFile(t, filepath.Join(sess.src, "locales", "en", "app.json"), "en")
	require.Eventually(t, func() bool {
		return contentOf(filepath.Join(sess.dst, "locales", "en", "app.json")) == "en"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHousekeepingFilesNeitherSyncNorSettle(t *testing.T) {
	sess := startSyncer(t, 30*time.Millisecond, nil)

	writeFile(t, filepath.Join(sess.src, "notes.txt.swp"), "x")
	writeFile(t, filepath.Join(sess.src, "4913"), "x")
	writeFile(t, filepath.Join(sess.src, "backup~"), "x")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), sess.settled.Load())
	assert.False(t, exists(filepath.Join(sess.dst, "4913")))
}

func TestBurstSettlesOnce(t *testing.T) {
	sess := startSyncer(t, 300*time.Millisecond, nil)

	for i := range 10 {
		writeFile(t, filepath.Join(sess.src, "burst.txt"), string(rune('a'+i)))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return sess.settled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), sess.settled.Load())
}

func TestSpacedChangesSettleEach(t *testing.T) {
	sess := startSyncer(t, 30*time.Millisecond, nil)

	for i := range 3 {
		writeFile(t, filepath.Join(sess.src, "spaced.txt"), string(rune('a'+i)))
		require.Eventually(t, func() bool { return sess.settled.Load() == int32(i+1) }, 2*time.Second, 5*time.Millisecond)
	}
}

func TestRejectsNestedDestination(t *testing.T) {
	src := t.TempDir()
	err := (&Syncer{Src: src, Dst: filepath.Join(src, "out")}).Run(t.Context())
	require.ErrorIs(t, err, ErrNestedDst)
}

func TestRejectsMissingSource(t *testing.T) {
	root := t.TempDir()
	err := (&Syncer{Src: filepath.Join(root, "missing"), Dst: filepath.Join(root, "out")}).Run(t.Context())
	require.Error(t, err)
}

func TestReadyAfterInitialMirror(t *testing.T) {
	root := t.TempDir()
	src, dst := filepath.Join(root, "resources"), filepath.Join(root, "out")
	writeFile(t, filepath.Join(src, "logo.svg"), "<svg/>")

	mirrored := make(chan bool, 1)
	syncer := &Syncer{
		Src: src,
		Dst: dst,
		OnReady: func() {
			_, err := os.Stat(filepath.Join(dst, "logo.svg"))
			mirrored <- err == nil
		},
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx) }()

	select {
	case ok := <-mirrored:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "OnReady never called")
	}
	cancel()
	require.NoError(t, <-done)
}
