package backup

import (
	"fmt"

	"backtomatic/internal/archive"
)

type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventDone
)

type Phase string

const (
	PhaseArchive Phase = "archive"
	PhaseUpload  Phase = "upload"
)

type Kind string

const (
	KindBackup Kind = "backup"
	KindUpload Kind = "upload"
)

// Result describes a finished job. Archive is empty for stand-alone uploads.
type Result struct {
	JobID    string
	Kind     Kind
	Archive  archive.Result
	Target   string
	RemoteID string
}

type Event struct {
	Kind      EventKind
	Phase     Phase
	Completed int
	Total     int
	Fraction  float64
	Line      string
	Result    Result
	Err       error
}

// Label is the status text shown next to the progress indicator.
func (e Event) Label() string {
	switch e.Phase {
	case PhaseArchive:
		return fmt.Sprintf("Archiving %d/%d", e.Completed, e.Total)
	case PhaseUpload:
		return fmt.Sprintf("Uploading %.0f%%", e.Fraction*100)
	default:
		return ""
	}
}
