package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSizeMismatch reports a stream that ended before (or after) its advertised length.
var ErrSizeMismatch = errors.New("size mismatch")

// syncFile flushes a temporary file to stable storage before it is renamed.
var syncFile = (*os.File).Sync

// WriteFileAtomic replaces path with data. The bytes land in a temporary file
// in the same directory which is synced and renamed over path once fully
// written, so readers only ever observe the old or the new content.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return writeAtomic(path, mode, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	}, -1)
}

// WriteReaderAtomic streams r into path with the same replace-on-success
// semantics as WriteFileAtomic. When expectedSize is non-negative the copy
// must produce exactly that many bytes or path is left untouched.
func WriteReaderAtomic(path string, r io.Reader, expectedSize int64, mode os.FileMode) (int64, error) {
	var written int64
	err := writeAtomic(path, mode, func(w io.Writer) (int64, error) {
		n, err := io.Copy(w, r)
		written = n
		return n, err
	}, expectedSize)
	return written, err
}

func writeAtomic(path string, mode os.FileMode, fill func(io.Writer) (int64, error), expectedSize int64) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := fill(tmp)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if expectedSize >= 0 && written != expectedSize {
		return fmt.Errorf("write %s: %w: expected %d bytes, got %d", path, ErrSizeMismatch, expectedSize, written)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := syncFile(tmp); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	committed = true
	return nil
}

// EnsureDir creates dir and any missing parents. Creating a directory that
// already exists, including one created concurrently, is not an error.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return info, false
	}
	return info, true
}
