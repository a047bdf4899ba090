package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"backtomatic/internal/config"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeBucket(t *testing.T) (*fakeBucket, *httptest.Server) {
	fb := &fakeBucket{objects: map[string]string{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected", http.StatusMethodNotAllowed)
			return
		}

		body, _ := io.ReadAll(r.Body)

		fb.mu.Lock()
		fb.objects[r.URL.Path] = string(body)
		fb.mu.Unlock()

		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return fb, srv
}

func testConfig(endpoint string) config.S3Config {
	return config.S3Config{
		Bucket:    "backups",
		Region:    "us-east-1",
		Endpoint:  endpoint,
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "/daily/",
	}
}

func TestPut_StoresObjectUnderPrefix(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	fb, srv := newFakeBucket(t)

	remote := New(testConfig(srv.URL), 1<<20)

	content := "archive-content"
	var last int64
	id, err := remote.Put(context.Background(), "backup.zip", strings.NewReader(content), int64(len(content)), func(n int64) {
		last = n
	})
	require.NoError(t, err)
	assert.Equal(t, "daily/backup.zip", id)
	assert.Equal(t, int64(len(content)), last)

	require.Contains(t, fb.objects, "/backups/daily/backup.zip")
	assert.Contains(t, fb.objects["/backups/daily/backup.zip"], content)
}

// newMultipartBucket answers the three calls of a multipart upload and counts
// the parts it receives.
func newMultipartBucket(t *testing.T) (*atomic.Int32, *httptest.Server) {
	var parts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		q := r.URL.Query()

		switch {
		case r.Method == http.MethodPost && q.Has("uploads"):
			_, _ = io.WriteString(w, `<InitiateMultipartUploadResult><Bucket>backups</Bucket><Key>daily/big.zip</Key><UploadId>up-1</UploadId></InitiateMultipartUploadResult>`)
		case r.Method == http.MethodPut && q.Get("uploadId") == "up-1":
			parts.Add(1)
			w.Header().Set("ETag", `"part-`+q.Get("partNumber")+`"`)
		case r.Method == http.MethodPost && q.Get("uploadId") == "up-1":
			_, _ = io.WriteString(w, `<CompleteMultipartUploadResult><Bucket>backups</Bucket><Key>daily/big.zip</Key><ETag>"done"</ETag></CompleteMultipartUploadResult>`)
		default:
			http.Error(w, "unexpected", http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	return &parts, srv
}

func TestPut_ReportsProgressPerCompletedPart(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	parts, srv := newMultipartBucket(t)

	partSize := int64(manager.MinUploadPartSize)
	size := 2*partSize + 1024
	remote := New(testConfig(srv.URL), partSize)

	var sent []int64
	id, err := remote.Put(context.Background(), "big.zip", bytes.NewReader(make([]byte, size)), size, func(n int64) {
		sent = append(sent, n)
	})
	require.NoError(t, err)
	assert.Equal(t, "daily/big.zip", id)
	assert.Equal(t, int32(3), parts.Load())
	assert.Equal(t, []int64{partSize, 2 * partSize, size}, sent)
}

func TestPut_RequiresBucket(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Bucket = ""

	_, err := New(cfg, 0).Put(context.Background(), "backup.zip", strings.NewReader("x"), 1, func(int64) {})
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestNewRaisesPartSizeToMinimum(t *testing.T) {
	r := New(testConfig(""), 1024)
	assert.Equal(t, int64(manager.MinUploadPartSize), r.chunkSize)

	r = New(testConfig(""), 64<<20)
	assert.Equal(t, int64(64<<20), r.chunkSize)
}

func TestKey(t *testing.T) {
	cfg := testConfig("")
	cfg.Prefix = ""
	assert.Equal(t, "backup.zip", New(cfg, 0).Key("backup.zip"))

	cfg.Prefix = "a/b"
	assert.Equal(t, "a/b/backup.zip", New(cfg, 0).Key("backup.zip"))
}
