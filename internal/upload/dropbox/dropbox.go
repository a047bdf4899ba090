package dropbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"backtomatic/internal/auth"
	"backtomatic/internal/logger"
	"backtomatic/internal/upload"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
)

// Remote uploads into Dropbox through an upload session, one request per
// chunk.
type Remote struct {
	creds     upload.Credentials
	folder    string
	chunkSize int64
	newClient func(token string) files.Client
}

func New(creds upload.Credentials, folder string, chunkSize int64) *Remote {
	return &Remote{
		creds:     creds,
		folder:    normalizePath(folder),
		chunkSize: chunkSize,
		newClient: func(token string) files.Client {
			return files.New(dropbox.Config{Token: token})
		},
	}
}

func (r *Remote) Name() string {
	return auth.DropboxName
}

func (r *Remote) Put(ctx context.Context, name string, rd io.Reader, size int64, onChunk func(int64)) (string, error) {
	client, err := r.client(ctx)
	if err != nil {
		return "", err
	}

	dst := "/" + name
	if r.folder != "/" {
		if err := ensureFolder(client, r.folder); err != nil {
			return "", fmt.Errorf("failed to prepare dropbox folder: %w", err)
		}
		dst = r.folder + "/" + name
	}

	buf := make([]byte, r.chunkSize)

	chunk, err := readChunk(rd, buf)
	if err != nil {
		return "", err
	}

	start, err := client.UploadSessionStart(files.NewUploadSessionStartArg(), bytes.NewReader(chunk))
	if err != nil {
		return "", fmt.Errorf("failed to start upload session: %w", err)
	}

	sent := int64(len(chunk))
	onChunk(sent)
	cursor := files.NewUploadSessionCursor(start.SessionId, uint64(sent))

	var last []byte
	for sent < size {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		chunk, err = readChunk(rd, buf)
		if err != nil {
			return "", err
		}
		if len(chunk) == 0 {
			break
		}

		if sent+int64(len(chunk)) >= size {
			last = chunk
			break
		}

		if err := client.UploadSessionAppendV2(files.NewUploadSessionAppendArg(cursor), bytes.NewReader(chunk)); err != nil {
			return "", fmt.Errorf("failed to append to upload session: %w", err)
		}

		sent += int64(len(chunk))
		cursor.Offset = uint64(sent)
		onChunk(sent)
	}

	commit := files.NewCommitInfo(dst)
	commit.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: "add"}}
	commit.Autorename = true

	meta, err := client.UploadSessionFinish(files.NewUploadSessionFinishArg(cursor, commit), bytes.NewReader(last))
	if err != nil {
		return "", fmt.Errorf("failed to finish upload session: %w", err)
	}
	onChunk(sent + int64(len(last)))

	logger.Log.Debug("dropbox file created",
		zap.String("path", meta.PathDisplay),
		zap.String("id", meta.Id))

	return meta.Id, nil
}

func (r *Remote) client(ctx context.Context) (files.Client, error) {
	ts, err := r.creds.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrAuthentication, err)
	}

	return r.newClient(token.AccessToken), nil
}

func readChunk(rd io.Reader, buf []byte) ([]byte, error) {
	n, err := io.ReadFull(rd, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:n], nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return buf[:n], nil
}

func ensureFolder(client files.Client, path string) error {
	arg := files.NewCreateFolderArg(path)
	arg.Autorename = false

	if _, err := client.CreateFolderV2(arg); err != nil {
		if isConflict(err) {
			return nil
		}

		return err
	}

	return nil
}

func normalizePath(p string) string {
	return "/" + strings.Trim(filepath.ToSlash(p), "/")
}

func isConflict(err error) bool {
	if apiErr, ok := errors.AsType[files.CreateFolderV2APIError](err); ok {
		return apiErr.EndpointError != nil &&
			apiErr.EndpointError.Path != nil &&
			apiErr.EndpointError.Path.Tag == "conflict"
	}

	return false
}
