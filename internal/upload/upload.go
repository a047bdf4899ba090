package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"backtomatic/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	ErrUploadBusy    = errors.New("an upload is already in progress")
	ErrUnknownTarget = errors.New("unknown upload target")
)

// ProgressFunc receives the uploaded fraction of the file, between 0 and 1.
type ProgressFunc func(fraction float64)

// Remote stores one file in a cloud account. onChunk is called with the
// number of bytes sent so far each time a chunk has been accepted.
type Remote interface {
	Name() string
	Put(ctx context.Context, name string, r io.Reader, size int64, onChunk func(sent int64)) (string, error)
}

// Credentials hands out authorized clients on demand. *auth.Provider
// implements it.
type Credentials interface {
	Client(ctx context.Context) (*http.Client, error)
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

type Resolver func(target string) (Remote, error)

// Remotes resolves targets by Remote.Name.
func Remotes(remotes ...Remote) Resolver {
	byName := make(map[string]Remote, len(remotes))
	for _, r := range remotes {
		byName[r.Name()] = r
	}

	return func(target string) (Remote, error) {
		r, ok := byName[target]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
		}
		return r, nil
	}
}

// Uploader sends local files to a remote, one at a time.
type Uploader struct {
	resolve Resolver
	target  string
	busy    atomic.Bool
}

func New(resolve Resolver, defaultTarget string) *Uploader {
	return &Uploader{resolve: resolve, target: defaultTarget}
}

func (u *Uploader) DefaultTarget() string {
	return u.target
}

func (u *Uploader) Busy() bool {
	return u.busy.Load()
}

func (u *Uploader) Upload(ctx context.Context, localPath string, progress ProgressFunc) (string, error) {
	return u.UploadTo(ctx, u.target, localPath, progress)
}

// UploadTo fails with ErrUploadBusy instead of waiting when another upload
// is running. The remote object is named after the local file.
func (u *Uploader) UploadTo(ctx context.Context, target, localPath string, progress ProgressFunc) (string, error) {
	r, err := u.Reserve()
	if err != nil {
		return "", err
	}

	return r.UploadTo(ctx, target, localPath, progress)
}

// Reserve takes the upload token now for an upload that starts later. The
// token is freed by the reservation's UploadTo or by Release.
func (u *Uploader) Reserve() (*Reservation, error) {
	if !u.busy.CompareAndSwap(false, true) {
		return nil, ErrUploadBusy
	}

	return &Reservation{u: u}, nil
}

type Reservation struct {
	u        *Uploader
	released atomic.Bool
}

func (r *Reservation) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.u.busy.Store(false)
	}
}

func (r *Reservation) UploadTo(ctx context.Context, target, localPath string, progress ProgressFunc) (string, error) {
	if r.released.Load() {
		return "", ErrUploadBusy
	}
	defer r.Release()

	return r.u.send(ctx, target, localPath, progress)
}

func (u *Uploader) send(ctx context.Context, target, localPath string, progress ProgressFunc) (string, error) {
	if target == "" {
		target = u.target
	}

	remote, err := u.resolve(target)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	name := filepath.Base(localPath)
	t := newTracker(info.Size(), progress)

	logger.Log.Info("upload started",
		zap.String("target", remote.Name()),
		zap.String("file", localPath),
		zap.Int64("size", info.Size()))

	id, err := remote.Put(ctx, name, f, info.Size(), t.sent)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to %s: %w", name, remote.Name(), err)
	}

	if id == "" {
		return "", fmt.Errorf("%s returned no identifier for %s", remote.Name(), name)
	}

	t.finish()

	logger.Log.Info("upload finished",
		zap.String("target", remote.Name()),
		zap.String("file", localPath),
		zap.String("id", id))

	return id, nil
}

// tracker turns byte counts into fractions that never go backwards.
type tracker struct {
	size   int64
	last   float64
	report ProgressFunc
}

func newTracker(size int64, report ProgressFunc) *tracker {
	if report == nil {
		report = func(float64) {}
	}

	return &tracker{size: size, last: -1, report: report}
}

func (t *tracker) sent(n int64) {
	f := 1.0
	if t.size > 0 {
		f = float64(n) / float64(t.size)
	}

	f = min(max(f, 0), 1)
	if f <= t.last {
		return
	}

	t.last = f
	t.report(f)
}

func (t *tracker) finish() {
	if t.last < 1 {
		t.last = 1
		t.report(1)
	}
}
