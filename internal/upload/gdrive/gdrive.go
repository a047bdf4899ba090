package gdrive

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"backtomatic/internal/auth"
	"backtomatic/internal/logger"
	"backtomatic/internal/upload"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Remote uploads into Google Drive. With the drive.file scope only folders
// and files this application created are visible to it.
type Remote struct {
	creds     upload.Credentials
	folder    string
	chunkSize int
	opts      []option.ClientOption
}

func New(creds upload.Credentials, folder string, chunkSize int64, opts ...option.ClientOption) *Remote {
	return &Remote{
		creds:     creds,
		folder:    strings.Trim(filepath.ToSlash(folder), "/"),
		chunkSize: int(chunkSize),
		opts:      opts,
	}
}

func (r *Remote) Name() string {
	return auth.GDriveName
}

func (r *Remote) Put(ctx context.Context, name string, rd io.Reader, size int64, onChunk func(int64)) (string, error) {
	svc, err := r.service(ctx)
	if err != nil {
		return "", err
	}

	parentID, err := ensureFolderPath(ctx, svc, r.folder)
	if err != nil {
		return "", fmt.Errorf("failed to prepare gdrive folder: %w", err)
	}

	file := &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}

	created, err := svc.Files.Create(file).
		Media(rd, googleapi.ChunkSize(r.chunkSize)).
		ProgressUpdater(func(current, _ int64) { onChunk(current) }).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	logger.Log.Debug("gdrive file created",
		zap.String("name", name),
		zap.String("id", created.Id),
		zap.Int64("size", size))

	return created.Id, nil
}

func (r *Remote) service(ctx context.Context) (*drive.Service, error) {
	client, err := r.creds.Client(ctx)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, r.opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return svc, nil
}

func ensureFolderPath(ctx context.Context, svc *drive.Service, folderPath string) (string, error) {
	parentID := "root"
	for _, part := range splitPath(folderPath) {
		id, err := findFolder(ctx, svc, part, parentID)
		if err != nil {
			return "", err
		}

		if id == "" {
			id, err = createFolder(ctx, svc, part, parentID)
			if err != nil {
				return "", err
			}
		}

		parentID = id
	}

	return parentID, nil
}

func findFolder(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false", escapeName(name), parentID, folderMimeType)

	list, err := svc.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}

	return list.Files[0].Id, nil
}

func createFolder(ctx context.Context, svc *drive.Service, name, parentID string) (string, error) {
	f := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}

	created, err := svc.Files.Create(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	return created.Id, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}

	return strings.Split(p, "/")
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// escapeName quotes a name for use inside a single-quoted Drive query string.
func escapeName(name string) string {
	return queryEscaper.Replace(name)
}
