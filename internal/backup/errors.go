package backup

import (
	"context"
	"errors"
	"fmt"

	"backtomatic/internal/archive"
	"backtomatic/internal/auth"
	"backtomatic/internal/upload"
)

var (
	ErrBackupBusy = errors.New("a backup is already running")
	ErrCancelled  = errors.New("backup cancelled")
	ErrNoUploader = errors.New("no upload target configured")
)

type SourceReason string

const (
	SourceMissing SourceReason = "does not exist"
	SourceNotDir  SourceReason = "is not a directory"
	SourceEmpty   SourceReason = "is empty"
)

type InvalidSourceError struct {
	Path   string
	Reason SourceReason
}

func (e *InvalidSourceError) Error() string {
	if e.Path == "" {
		return "no source folder selected"
	}

	return fmt.Sprintf("source %q %s", e.Path, e.Reason)
}

// Describe turns a job error into a line for the activity log.
func Describe(err error) string {
	if srcErr, ok := errors.AsType[*InvalidSourceError](err); ok {
		return "Invalid source: " + srcErr.Error()
	}

	switch {
	case errors.Is(err, archive.ErrNoFiles):
		return "Nothing to back up: every file was excluded"
	case errors.Is(err, archive.ErrMissingPassword):
		return "Encryption needs a password"
	case errors.Is(err, auth.ErrAuthentication):
		return "Cloud sign-in failed: " + err.Error()
	case errors.Is(err, ErrBackupBusy):
		return "A backup is already running"
	case errors.Is(err, upload.ErrUploadBusy):
		return "An upload is already running"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "Backup cancelled"
	default:
		return "Error: " + err.Error()
	}
}
