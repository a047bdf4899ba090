package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"backtomatic/internal/archive"
	"backtomatic/internal/logger"
	"backtomatic/internal/model"
	"backtomatic/internal/upload"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultEventBuffer = 64

type Archiver interface {
	Build(ctx context.Context, opts archive.Options, progress archive.ProgressFunc) (archive.Result, error)
}

type Recorder interface {
	Save(record *model.BackupRecord) error
}

type Options struct {
	EventBuffer    int
	TempExtensions []string
}

// Orchestrator runs at most one backup and one stand-alone upload at a
// time, each on its own worker goroutine.
type Orchestrator struct {
	archiver Archiver
	uploader *upload.Uploader
	history  Recorder
	opts     Options

	busy atomic.Bool
}

// New accepts a nil uploader (uploads then fail with ErrNoUploader) and a
// nil recorder (history is not kept).
func New(archiver Archiver, uploader *upload.Uploader, history Recorder, opts Options) *Orchestrator {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}

	return &Orchestrator{
		archiver: archiver,
		uploader: uploader,
		history:  history,
		opts:     opts,
	}
}

func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Prepare asks the host for whatever the job is still missing. A declined
// prompt cancels the job before anything is written or recorded.
func (o *Orchestrator) Prepare(job *Job, host Host) error {
	if job.Source == "" {
		dir, ok := host.SelectDirectory()
		if !ok || dir == "" {
			return ErrCancelled
		}
		job.Source = dir
	}

	if job.Encrypt && job.Password == "" {
		password, ok := host.PromptPassword()
		if !ok || password == "" {
			return ErrCancelled
		}
		job.Password = password
	}

	return nil
}

func (o *Orchestrator) Start(ctx context.Context, job Job) (<-chan Event, error) {
	if err := Validate(job); err != nil {
		return nil, err
	}

	if job.Encrypt && job.Password == "" {
		return nil, archive.ErrMissingPassword
	}

	if job.Upload && o.uploader == nil {
		return nil, ErrNoUploader
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Destination == "" {
		job.Destination = DefaultDestination(job.Source)
	}
	if job.Upload && job.Target == "" {
		job.Target = o.uploader.DefaultTarget()
	}

	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBackupBusy
	}

	events := make(chan Event, o.opts.EventBuffer)
	go o.runBackup(ctx, job, events)

	return events, nil
}

// StartUpload sends an existing file without archiving anything.
func (o *Orchestrator) StartUpload(ctx context.Context, path, target string) (<-chan Event, error) {
	if o.uploader == nil {
		return nil, ErrNoUploader
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if target == "" {
		target = o.uploader.DefaultTarget()
	}

	// The uploader's own token, so a backup's upload phase and a stand-alone
	// upload reject each other up front.
	reservation, err := o.uploader.Reserve()
	if err != nil {
		return nil, err
	}

	job := Job{ID: uuid.NewString(), Destination: path, Upload: true, Target: target}
	events := make(chan Event, o.opts.EventBuffer)
	go o.runUpload(ctx, job, reservation, events)

	return events, nil
}

type worker struct {
	ctx     context.Context
	events  chan<- Event
	started time.Time
	res     Result
}

// emit drops the event once ctx is cancelled and the consumer is behind.
func (w *worker) emit(ev Event) {
	select {
	case w.events <- ev:
		return
	default:
	}

	select {
	case w.events <- ev:
	case <-w.ctx.Done():
	}
}

func (w *worker) logf(format string, args ...any) {
	w.emit(Event{Kind: EventLog, Line: fmt.Sprintf(format, args...)})
}

func (o *Orchestrator) runBackup(ctx context.Context, job Job, events chan<- Event) {
	w := &worker{
		ctx:     ctx,
		events:  events,
		started: time.Now(),
		res:     Result{JobID: job.ID, Kind: KindBackup},
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backup worker panicked: %v", r)
		}
		o.finish(w, job, err, func() { o.busy.Store(false) })
	}()

	err = o.backup(w, job)
}

func (o *Orchestrator) runUpload(ctx context.Context, job Job, reservation *upload.Reservation, events chan<- Event) {
	w := &worker{
		ctx:     ctx,
		events:  events,
		started: time.Now(),
		res:     Result{JobID: job.ID, Kind: KindUpload},
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload worker panicked: %v", r)
		}
		o.finish(w, job, err, reservation.Release)
	}()

	err = o.upload(w, job, job.Destination, reservation.UploadTo)
}

func (o *Orchestrator) backup(w *worker, job Job) error {
	w.logf("Backing up %s to %s", job.Source, job.Destination)

	res, err := o.archiver.Build(w.ctx, archive.Options{
		Source:         job.Source,
		Destination:    job.Destination,
		Level:          job.Level,
		ExcludeTemp:    job.ExcludeTemp,
		TempExtensions: o.opts.TempExtensions,
		Encrypt:        job.Encrypt,
		Password:       job.Password,
	}, func(completed, total int) {
		w.emit(Event{
			Kind:      EventProgress,
			Phase:     PhaseArchive,
			Completed: completed,
			Total:     total,
			Fraction:  float64(completed) / float64(total),
		})
	})
	if err != nil {
		return err
	}

	w.res.Archive = res
	w.logf("Archived %d files (%s) to %s", res.Files, humanize.Bytes(uint64(res.Bytes)), res.Path)

	if !job.Upload {
		return nil
	}

	return o.upload(w, job, res.Path, o.uploader.UploadTo)
}

type sendFunc func(ctx context.Context, target, path string, progress upload.ProgressFunc) (string, error)

func (o *Orchestrator) upload(w *worker, job Job, path string, send sendFunc) error {
	w.res.Target = job.Target
	w.logf("Uploading %s to %s", path, job.Target)

	id, err := send(w.ctx, job.Target, path, func(fraction float64) {
		w.emit(Event{Kind: EventProgress, Phase: PhaseUpload, Fraction: fraction})
	})
	if err != nil {
		return err
	}

	w.res.RemoteID = id
	w.logf("Uploaded to %s (id %s)", job.Target, id)

	return nil
}

// finish runs on every exit path of a worker: it records the outcome,
// frees the busy token and closes the stream with a Done event.
func (o *Orchestrator) finish(w *worker, job Job, err error, release func()) {
	status := model.StatusSuccess
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		status = model.StatusCancelled
	case err != nil:
		status = model.StatusFailed
	}

	if err != nil {
		logger.Log.Error("job failed",
			zap.String("id", job.ID),
			zap.String("kind", string(w.res.Kind)),
			zap.String("source", job.Source),
			zap.Error(err))
		w.logf("%s", Describe(err))
	} else {
		logger.Log.Info("job finished",
			zap.String("id", job.ID),
			zap.String("kind", string(w.res.Kind)),
			zap.Int("files", w.res.Archive.Files),
			zap.String("remote_id", w.res.RemoteID),
			zap.Duration("elapsed", time.Since(w.started)))
	}

	o.record(job, w.res, status, err, w.started)

	release()

	// Done is never dropped; every consumer drains the stream to the end.
	w.events <- Event{Kind: EventDone, Result: w.res, Err: err}
	close(w.events)
}

func (o *Orchestrator) record(job Job, res Result, status model.BackupStatus, err error, started time.Time) {
	if o.history == nil {
		return
	}

	rec := &model.BackupRecord{
		JobID:       job.ID,
		Kind:        string(res.Kind),
		Source:      job.Source,
		Destination: job.Destination,
		Files:       res.Archive.Files,
		Bytes:       res.Archive.Bytes,
		Encrypted:   job.Encrypt,
		Target:      res.Target,
		RemoteID:    res.RemoteID,
		Status:      status,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	if err != nil {
		rec.ErrMsg = err.Error()
	}

	if err := o.history.Save(rec); err != nil {
		logger.Log.Warn("failed to save history",
			zap.String("id", job.ID),
			zap.Error(err))
	}
}
