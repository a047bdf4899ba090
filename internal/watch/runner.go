package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"backtomatic/internal/backup"
	"backtomatic/internal/logger"
	"backtomatic/internal/util"

	"go.uber.org/zap"
)

// Runner starts the same backup job whenever a debounced change arrives.
// A change that comes in while the previous backup is still running is
// skipped.
type Runner struct {
	orch *backup.Orchestrator
	job  backup.Job
	host backup.Host

	wg      sync.WaitGroup
	started atomic.Int64
	skipped atomic.Int64
}

func NewRunner(orch *backup.Orchestrator, job backup.Job, host backup.Host) *Runner {
	if job.Destination == "" {
		job.Destination = backup.DefaultDestination(job.Source)
	}

	return &Runner{orch: orch, job: job, host: host}
}

// Ignore reports whether path is the runner's own archive output.
func (r *Runner) Ignore(path string) bool {
	dst, err := filepath.Abs(r.job.Destination)
	if err != nil {
		return false
	}

	return path == dst || path == dst+util.PartialSuffix
}

func (r *Runner) Run(ctx context.Context, changes <-chan Change) {
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			r.trigger(ctx, c)
		}
	}
}

func (r *Runner) trigger(ctx context.Context, c Change) {
	job := r.job
	job.ID = ""

	events, err := r.orch.Start(ctx, job)
	if errors.Is(err, backup.ErrBackupBusy) {
		r.skipped.Add(1)
		logger.Log.Info("change ignored, backup already running",
			zap.String("path", c.Path))
		return
	}
	if err != nil {
		logger.Log.Error("failed to start backup",
			zap.String("path", c.Path),
			zap.Error(err))
		r.wg.Wait()
		r.host.AppendLog(backup.Describe(err))
		return
	}

	r.started.Add(1)
	logger.Log.Info("change detected, backup started",
		zap.String("path", c.Path),
		zap.String("op", c.Op.String()))

	r.wg.Wait()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = backup.Deliver(events, r.host)
	}()
}

func (r *Runner) Started() int64 {
	return r.started.Load()
}

func (r *Runner) Skipped() int64 {
	return r.skipped.Load()
}
