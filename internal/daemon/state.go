package daemon

import (
	"sync"
	"time"

	"backtomatic/internal/backup"
	"backtomatic/internal/model"
)

const maxLogLines = 50

// JobState is the daemon's view of one job. It is the backup.Host of a
// daemon job, so it never prompts: the request has to carry everything.
type JobState struct {
	mu        sync.RWMutex
	JobID     string
	Kind      backup.Kind
	Source    string
	Target    string
	Running   bool
	Label     string
	Fraction  float64
	Log       []string
	Result    backup.Result
	Err       error
	StartedAt time.Time
	EndedAt   *time.Time
}

func NewJobState(id string, kind backup.Kind, source, target string) *JobState {
	return &JobState{
		JobID:     id,
		Kind:      kind,
		Source:    source,
		Target:    target,
		Running:   true,
		StartedAt: time.Now(),
	}
}

func (s *JobState) ReportProgress(label string, fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Label = label
	s.Fraction = fraction
}

func (s *JobState) AppendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Log = append(s.Log, line)
	if len(s.Log) > maxLogLines {
		s.Log = s.Log[len(s.Log)-maxLogLines:]
	}
}

func (s *JobState) PromptPassword() (string, bool)  { return "", false }
func (s *JobState) SelectDirectory() (string, bool) { return "", false }
func (s *JobState) SelectFile() (string, bool)      { return "", false }

func (s *JobState) Finish(res backup.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Running = false
	s.Result = res
	s.Err = err
	s.EndedAt = new(time.Now())
}

func (s *JobState) Snapshot() model.JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.JobSnapshot{
		JobID:     s.JobID,
		Kind:      string(s.Kind),
		Source:    s.Source,
		Target:    s.Target,
		Running:   s.Running,
		Label:     s.Label,
		Fraction:  s.Fraction,
		Log:       append([]string(nil), s.Log...),
		Archive:   s.Result.Archive.Path,
		Files:     s.Result.Archive.Files,
		RemoteID:  s.Result.RemoteID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
	if s.Err != nil {
		snap.Err = backup.Describe(s.Err)
	}

	return snap
}
