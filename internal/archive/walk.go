package archive

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

var DefaultTempExtensions = []string{".tmp", ".log", ".iso"}

// Entry is a regular file discovered under the source root.
type Entry struct {
	Path string
	Rel  string
	Size int64
}

type extSet map[string]struct{}

func newExtSet(exts []string) extSet {
	set := make(extSet, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}

	return set
}

func (s extSet) has(name string) bool {
	_, ok := s[strings.ToLower(filepath.Ext(name))]
	return ok
}

// collect walks root and returns every regular file that survives the filter.
// Paths listed in skip (absolute, cleaned) are never returned.
func collect(root string, excludeTemp bool, tempExts []string, skip ...string) ([]Entry, error) {
	temp := newExtSet(tempExts)

	skipSet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipSet[filepath.Clean(p)] = struct{}{}
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if _, ok := skipSet[filepath.Clean(path)]; ok {
			return nil
		}

		if excludeTemp && temp.has(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to resolve relative path: %w", err)
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		entries = append(entries, Entry{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Size: info.Size(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return entries, nil
}
