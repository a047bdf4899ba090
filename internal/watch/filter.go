package watch

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"backtomatic/internal/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Filter drops changes whose path has a component matching one of the glob
// patterns, so editor swap files and VCS metadata never trigger a backup.
func Filter(in <-chan Change, patterns []string) <-chan Change {
	out := make(chan Change, cap(in))

	go func() {
		defer close(out)

		for c := range in {
			if shouldIgnore(c.Path, patterns) {
				continue
			}
			out <- c
		}
	}()

	return out
}

func shouldIgnore(path string, patterns []string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, pattern := range patterns {
			if matched, err := filepath.Match(pattern, part); err == nil && matched {
				return true
			}
		}
	}

	return false
}

// ChecksumFilter drops writes that leave a file's content unchanged.
type ChecksumFilter struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewChecksumFilter() *ChecksumFilter {
	return &ChecksumFilter{
		cache: make(map[string][]byte),
	}
}

func (cf *ChecksumFilter) Run(in <-chan Change) <-chan Change {
	out := make(chan Change, cap(in))

	go func() {
		defer close(out)

		for c := range in {
			if c.Op.Has(fsnotify.Remove) || c.Op.Has(fsnotify.Rename) {
				cf.forget(c.Path)
				out <- c
				continue
			}

			if cf.changed(c.Path) {
				out <- c
			}
		}
	}()

	return out
}

func (cf *ChecksumFilter) forget(path string) {
	cf.mu.Lock()
	delete(cf.cache, path)
	cf.mu.Unlock()
}

// changed reports whether path hashes differently from the last time it was
// seen. Paths that cannot be read, directories included, count as changed.
func (cf *ChecksumFilter) changed(path string) bool {
	sum, err := checksum(path)
	if err != nil {
		logger.Log.Debug("checksum failed, passing change through",
			zap.String("path", path),
			zap.Error(err))
		return true
	}

	cf.mu.Lock()
	defer cf.mu.Unlock()

	if prev, ok := cf.cache[path]; ok && bytes.Equal(prev, sum) {
		logger.Log.Debug("checksum unchanged, skipping",
			zap.String("path", path))
		return false
	}

	cf.cache[path] = sum
	return true
}

func checksum(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}
