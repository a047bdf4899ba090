package archive

import "errors"

var (
	ErrNoFiles         = errors.New("no files to archive")
	ErrMissingPassword = errors.New("encryption requested without a password")
	ErrUnsafePath      = errors.New("archive entry escapes destination")
)
