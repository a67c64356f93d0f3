package fsutils

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const dirPerm = 0o755

func TruePath(path string) (string, error) {
	var prevAbsPath string
	var prevResolvedPath string

	changeFound := true
	for changeFound {
		changeFound = false

		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		if absPath != prevAbsPath {
			prevAbsPath = absPath
			changeFound = true
		}

		resolvedPath, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		if resolvedPath != prevResolvedPath {
			prevResolvedPath = resolvedPath
			changeFound = true
		}

		path = resolvedPath
	}

	return path, nil
}

// CopyFile copies src to dst, creating parent directories of dst as needed.
// The destination receives the mode and modification time of the source, so
// that a later NeedsCopy(src, dst) reports false until src changes again.
func CopyFile(dst, src string) error {
	from, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("can't copy %s: %w", src, err)
	}
	defer func() { _ = from.Close() }()

	finfo, err := from.Stat()
	if err != nil {
		return fmt.Errorf("can't stat %s: %w", src, err)
	}
	if finfo.IsDir() {
		return fmt.Errorf("can't copy %s: is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("can't create parent of %s: %w", dst, err)
	}

	to, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, finfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("can't copy to %s: %w", dst, err)
	}

	if _, err := io.Copy(to, from); err != nil {
		_ = to.Close()
		return fmt.Errorf("error copying %s to %s: %w", src, dst, err)
	}
	if err := to.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", dst, err)
	}

	return os.Chtimes(dst, finfo.ModTime(), finfo.ModTime())
}

// NeedsCopy reports whether dst is missing, or older than src, or differs
// from it in size.
func NeedsCopy(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}

	dstInfo, err := os.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return srcInfo.ModTime().After(dstInfo.ModTime()) || srcInfo.Size() != dstInfo.Size(), nil
}

// Remove removes the given file or directory even if non-empty. A path that
// does not exist is not an error.
func Remove(path string) error {
	err := os.RemoveAll(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to remove %s: %w", path, err)
}
