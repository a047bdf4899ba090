package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkedRemote struct {
	name    string
	chunk   int
	id      string
	err     error
	started chan struct{}
	release chan struct{}

	mu       sync.Mutex
	received []byte
	names    []string
}

func (r *chunkedRemote) Name() string { return r.name }

func (r *chunkedRemote) Put(ctx context.Context, name string, rd io.Reader, size int64, onChunk func(int64)) (string, error) {
	if r.started != nil {
		close(r.started)
		<-r.release
	}
	if r.err != nil {
		return "", r.err
	}

	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()

	buf := make([]byte, r.chunk)
	var sent int64
	for {
		n, err := io.ReadFull(rd, buf)
		if n > 0 {
			r.mu.Lock()
			r.received = append(r.received, buf[:n]...)
			r.mu.Unlock()
			sent += int64(n)
			onChunk(sent)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return r.id, nil
}

func writeFile(t *testing.T, size int) string {
	t.Helper()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}

	path := filepath.Join(t.TempDir(), "backup.zip")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestUpload_ThreeChunks(t *testing.T) {
	remote := &chunkedRemote{name: "fake", chunk: 100, id: "remote-1"}
	u := New(Remotes(remote), "fake")
	path := writeFile(t, 300)

	var fractions []float64
	id, err := u.Upload(context.Background(), path, func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", id)
	assert.Equal(t, []string{"backup.zip"}, remote.names)
	assert.Len(t, remote.received, 300)

	require.NotEmpty(t, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.InDelta(t, 1.0/3, fractions[0], 1e-9)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	assert.Len(t, fractions, 3)
	assert.False(t, u.Busy())
}

func TestUpload_EndsAtOneWithoutChunkReports(t *testing.T) {
	remote := &chunkedRemote{name: "fake", chunk: 1 << 20, id: "remote-1"}
	u := New(Remotes(remote), "fake")

	var fractions []float64
	_, err := u.Upload(context.Background(), writeFile(t, 0), func(f float64) {
		fractions = append(fractions, f)
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, fractions)
}

func TestUpload_RejectsConcurrentUpload(t *testing.T) {
	remote := &chunkedRemote{
		name:    "fake",
		chunk:   10,
		id:      "remote-1",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	u := New(Remotes(remote), "fake")
	path := writeFile(t, 20)

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), path, nil)
		done <- err
	}()

	<-remote.started
	assert.True(t, u.Busy())

	_, err := u.Upload(context.Background(), path, nil)
	require.ErrorIs(t, err, ErrUploadBusy)

	close(remote.release)
	require.NoError(t, <-done)
	assert.False(t, u.Busy())
}

func TestReserve_HoldsTheUploadToken(t *testing.T) {
	path := writeFile(t, 10)
	u := New(Remotes(&chunkedRemote{name: "fake", chunk: 10, id: "remote-1"}), "fake")

	r, err := u.Reserve()
	require.NoError(t, err)
	assert.True(t, u.Busy())

	_, err = u.Reserve()
	require.ErrorIs(t, err, ErrUploadBusy)
	_, err = u.UploadTo(context.Background(), "fake", path, nil)
	require.ErrorIs(t, err, ErrUploadBusy)

	id, err := r.UploadTo(context.Background(), "", path, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", id)
	assert.False(t, u.Busy())

	_, err = r.UploadTo(context.Background(), "", path, nil)
	require.ErrorIs(t, err, ErrUploadBusy)

	r2, err := u.Reserve()
	require.NoError(t, err)
	r2.Release()
	r2.Release()
	assert.False(t, u.Busy())
}

func TestUpload_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		remote *chunkedRemote
		target string
		path   func(t *testing.T) string
		want   error
	}{
		{
			name:   "remote error",
			remote: &chunkedRemote{name: "fake", chunk: 10, err: boom},
			path:   func(t *testing.T) string { return writeFile(t, 5) },
			want:   boom,
		},
		{
			name:   "unknown target",
			remote: &chunkedRemote{name: "fake", chunk: 10, id: "x"},
			target: "nowhere",
			path:   func(t *testing.T) string { return writeFile(t, 5) },
			want:   ErrUnknownTarget,
		},
		{
			name:   "missing file",
			remote: &chunkedRemote{name: "fake", chunk: 10, id: "x"},
			path:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone.zip") },
			want:   os.ErrNotExist,
		},
		{
			name:   "empty identifier",
			remote: &chunkedRemote{name: "fake", chunk: 10},
			path:   func(t *testing.T) string { return writeFile(t, 5) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(Remotes(tt.remote), "fake")

			_, err := u.UploadTo(context.Background(), tt.target, tt.path(t), nil)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.False(t, u.Busy())
		})
	}
}

func TestTrackerClampsAndNeverDecreases(t *testing.T) {
	var got []float64
	tr := newTracker(100, func(f float64) { got = append(got, f) })

	tr.sent(50)
	tr.sent(40)
	tr.sent(50)
	tr.sent(150)
	tr.finish()

	assert.Equal(t, []float64{0.5, 1}, got)
}
