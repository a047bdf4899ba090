package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const PartialSuffix = ".partial"

// AtomicCreate streams write's output into a sibling temp file and renames it
// onto dst only when write and the close both succeed. On failure the temp
// file is removed and dst is left untouched.
func AtomicCreate(dst string, perm os.FileMode, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	tmp := dst + PartialSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

func AtomicWrite(dst string, r io.Reader, perm os.FileMode) error {
	return AtomicCreate(dst, perm, func(w io.Writer) error {
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}

		return nil
	})
}

func CopyFile(src, dst string, perm os.FileMode) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	return AtomicWrite(dst, f, perm)
}

func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	return nil
}
