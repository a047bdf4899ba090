package cmd

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"backtomatic/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon points daemonURL at a test server for the duration of the test.
func fakeDaemon(t *testing.T, handler http.HandlerFunc) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	prev := cfg
	cfg = &config.Config{DaemonPort: port}
	t.Cleanup(func() { cfg = prev })
}

func TestPostDaemon(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"accepted", http.StatusOK, false},
		{"not found", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var method, path string
			fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				w.WriteHeader(tt.status)
			})

			err := postDaemon("/stop")
			assert.Equal(t, http.MethodPost, method)
			assert.Equal(t, "/stop", path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), strconv.Itoa(tt.status))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGetDaemonDecodesBody(t *testing.T) {
	fakeDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"busy":true}`))
	})

	var got struct {
		Busy bool `json:"busy"`
	}
	require.NoError(t, getDaemon("/status", &got))
	assert.True(t, got.Busy)
}

func TestDaemonNotRunning(t *testing.T) {
	prev := cfg
	cfg = &config.Config{DaemonPort: 1}
	t.Cleanup(func() { cfg = prev })

	err := postDaemon("/stop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not running")
}
