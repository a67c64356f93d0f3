package fsutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruePath(t *testing.T) {
	tempDir := t.TempDir()

	realFile := filepath.Join(tempDir, "realfile")
	require.NoError(t, os.WriteFile(realFile, []byte("hello"), 0o644))

	// On macOS, /var is a symlink to /private/var. EvalSymlinks resolves this.
	resolvedRealFile, err := filepath.EvalSymlinks(realFile)
	require.NoError(t, err)

	path, err := TruePath(realFile)
	require.NoError(t, err)
	assert.Equal(t, resolvedRealFile, path)

	symlink := filepath.Join(tempDir, "symlink")
	require.NoError(t, os.Symlink(realFile, symlink))
	nestedSymlink := filepath.Join(tempDir, "nested-symlink")
	require.NoError(t, os.Symlink(symlink, nestedSymlink))

	path, err = TruePath(nestedSymlink)
	require.NoError(t, err)
	assert.Equal(t, resolvedRealFile, path)
}

func TestTruePath_NonExistent(t *testing.T) {
	path, err := TruePath("/non/existent/path/that/really/should/not/exist")
	require.Error(t, err)
	assert.Empty(t, path)
}

func TestCopyFileAndNeedsCopy(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src", "icon.png")
	dst := filepath.Join(tempDir, "dst", "nested", "icon.png")

	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o600))

	needs, err := NeedsCopy(src, dst)
	require.NoError(t, err)
	assert.True(t, needs, "missing destination needs a copy")

	require.NoError(t, CopyFile(dst, src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	needs, err = NeedsCopy(src, dst)
	require.NoError(t, err)
	assert.False(t, needs, "fresh copy is up to date")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(src, later, later))
	needs, err = NeedsCopy(src, dst)
	require.NoError(t, err)
	assert.True(t, needs, "touched source needs a copy")
}

func TestCopyFileRejectsDirectory(t *testing.T) {
	tempDir := t.TempDir()
	assert.Error(t, CopyFile(filepath.Join(tempDir, "out"), tempDir))
}

func TestRemove(t *testing.T) {
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "a", "b")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))

	require.NoError(t, Remove(filepath.Join(tempDir, "a")))
	assert.NoDirExists(t, filepath.Join(tempDir, "a"))
	assert.NoError(t, Remove(filepath.Join(tempDir, "never-existed")))
}
