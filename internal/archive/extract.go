package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yeka/zip"
)

type EntryInfo struct {
	Name      string    `json:"name"`
	Size      uint64    `json:"size"`
	Encrypted bool      `json:"encrypted"`
	Modified  time.Time `json:"modified"`
}

func List(archivePath string) ([]EntryInfo, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	defer func(r *zip.ReadCloser) {
		_ = r.Close()
	}(r)

	infos := make([]EntryInfo, 0, len(r.File))
	for _, f := range r.File {
		infos = append(infos, EntryInfo{
			Name:      f.Name,
			Size:      f.UncompressedSize64,
			Encrypted: f.IsEncrypted(),
			Modified:  f.ModTime(),
		})
	}

	return infos, nil
}

// Extract restores every entry of archivePath under destDir and returns the
// number of files written.
func Extract(ctx context.Context, archivePath, destDir, password string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}

	defer func(r *zip.ReadCloser) {
		_ = r.Close()
	}(r)

	count := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return count, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}

		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, fmt.Errorf("failed to create dir: %w", err)
			}
			continue
		}

		if f.IsEncrypted() {
			if password == "" {
				return count, ErrMissingPassword
			}
			f.SetPassword(password)
		}

		if err := extractFile(f, target); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}

	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(rc)

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}

	return out.Close()
}
