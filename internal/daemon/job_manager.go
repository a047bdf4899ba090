package daemon

import (
	"context"
	"slices"
	"sync"

	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keepFinished = 20

// JobManager starts jobs on the orchestrator and keeps their state for the
// status endpoint. Jobs run under the manager's context, which StopAll
// cancels.
type JobManager struct {
	mu    sync.RWMutex
	jobs  map[string]*JobState
	order []string
	orch  *backup.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobManager(orch *backup.Orchestrator) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &JobManager{
		jobs:   make(map[string]*JobState),
		orch:   orch,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *JobManager) StartBackup(job backup.Job) (*JobState, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	events, err := m.orch.Start(m.ctx, job)
	if err != nil {
		return nil, err
	}

	state := NewJobState(job.ID, backup.KindBackup, job.Source, job.Target)
	m.track(state, events)

	logger.Log.Info("backup job started",
		zap.String("id", job.ID),
		zap.String("source", job.Source),
		zap.Bool("upload", job.Upload))

	return state, nil
}

func (m *JobManager) StartUpload(path, target string) (*JobState, error) {
	events, err := m.orch.StartUpload(m.ctx, path, target)
	if err != nil {
		return nil, err
	}

	state := NewJobState(uuid.NewString(), backup.KindUpload, path, target)
	m.track(state, events)

	logger.Log.Info("upload job started",
		zap.String("id", state.JobID),
		zap.String("file", path),
		zap.String("target", target))

	return state, nil
}

func (m *JobManager) track(state *JobState, events <-chan backup.Event) {
	m.mu.Lock()
	m.jobs[state.JobID] = state
	m.order = append(m.order, state.JobID)
	m.pruneLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		res, err := backup.Deliver(events, state)
		state.Finish(res, err)

		logger.Log.Info("job stopped",
			zap.String("id", state.JobID),
			zap.String("kind", string(state.Kind)),
			zap.Bool("failed", err != nil))
	}()
}

// pruneLocked forgets the oldest finished jobs beyond keepFinished.
func (m *JobManager) pruneLocked() {
	finished := 0
	for _, id := range m.order {
		if !m.jobs[id].Snapshot().Running {
			finished++
		}
	}

	kept := m.order[:0]
	for _, id := range m.order {
		if finished > keepFinished && !m.jobs[id].Snapshot().Running {
			delete(m.jobs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *JobManager) Get(id string) (model.JobSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.jobs[id]
	if !ok {
		return model.JobSnapshot{}, false
	}

	return state.Snapshot(), true
}

func (m *JobManager) Snapshots() []model.JobSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := make([]model.JobSnapshot, 0, len(m.order))
	for _, id := range slices.Backward(m.order) {
		snaps = append(snaps, m.jobs[id].Snapshot())
	}

	return snaps
}

// StopAll cancels running jobs and waits for their workers to finish.
func (m *JobManager) StopAll() {
	m.cancel()
	m.wg.Wait()
}
