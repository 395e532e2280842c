package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystem boundaries.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	info, statErr := os.Stat(src)
	if statErr != nil {
		return statErr
	}
	if err := CopyFileMode(src, dst, info.Mode().Perm()); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// WriteFileAtomic writes data to path by way of a uniquely-named temporary
// file in the same directory followed by a single rename. On failure the
// temporary file is removed and the destination is left untouched.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Chmod(mode); err != nil {
		return cleanup(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RemoveStaleTempFiles deletes leftover "<base>.tmp.*" files in dir. Leftovers
// can only exist after a crash between temp write and rename.
func RemoveStaleTempFiles(dir, base string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, _ := filepath.Match(base+".tmp.*", entry.Name())
		if matched {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileExists reports whether path exists and is a regular file or symlink.
func FileExists(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsNotExist reports whether err indicates a missing file or directory.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
