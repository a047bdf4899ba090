package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"backtomatic/internal/archive"
)

const DefaultArchiveName = "backup.zip"

// Job is copied into the worker when it starts and never changes after.
type Job struct {
	ID          string
	Source      string
	Destination string
	Level       archive.Level
	ExcludeTemp bool
	Encrypt     bool
	Password    string
	Upload      bool
	Target      string
}

// DefaultDestination places the archive next to the source folder.
func DefaultDestination(source string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(source)), DefaultArchiveName)
}

// Validate checks that the source is a folder with at least one entry.
func Validate(job Job) error {
	if job.Source == "" {
		return &InvalidSourceError{Reason: SourceMissing}
	}

	info, err := os.Stat(job.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &InvalidSourceError{Path: job.Source, Reason: SourceMissing}
		}
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if !info.IsDir() {
		return &InvalidSourceError{Path: job.Source, Reason: SourceNotDir}
	}

	dir, err := os.Open(job.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	defer func(dir *os.File) {
		_ = dir.Close()
	}(dir)

	if _, err := dir.Readdirnames(1); err != nil {
		if errors.Is(err, io.EOF) {
			return &InvalidSourceError{Path: job.Source, Reason: SourceEmpty}
		}
		return fmt.Errorf("failed to read source: %w", err)
	}

	return nil
}
