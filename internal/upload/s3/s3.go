package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"backtomatic/internal/auth"
	"backtomatic/internal/config"
	"backtomatic/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	smithymiddleware "github.com/aws/smithy-go/middleware"
	"go.uber.org/zap"
)

const Name = "s3"

var ErrNoBucket = errors.New("s3 bucket is not configured")

// Remote uploads into an S3 compatible bucket with the multipart manager,
// one part at a time.
type Remote struct {
	cfg       config.S3Config
	chunkSize int64
}

func New(cfg config.S3Config, chunkSize int64) *Remote {
	return &Remote{
		cfg:       cfg,
		chunkSize: max(chunkSize, manager.MinUploadPartSize),
	}
}

func (r *Remote) Name() string {
	return Name
}

func (r *Remote) Key(name string) string {
	prefix := strings.Trim(r.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}

	return path.Join(prefix, name)
}

func (r *Remote) Put(ctx context.Context, name string, rd io.Reader, size int64, onChunk func(int64)) (string, error) {
	if r.cfg.Bucket == "" {
		return "", ErrNoBucket
	}

	client, err := r.client(ctx)
	if err != nil {
		return "", err
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = r.chunkSize
		u.Concurrency = 1
		u.ClientOptions = append(u.ClientOptions, partProgress(r.chunkSize, size, onChunk))
	})

	key := r.Key(name)

	out, err := uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(r.cfg.Bucket),
		Key:         aws.String(key),
		Body:        rd,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	logger.Log.Debug("s3 object stored",
		zap.String("bucket", r.cfg.Bucket),
		zap.String("key", key),
		zap.Int64("size", size),
		zap.String("location", out.Location))

	if out.Key != nil && *out.Key != "" {
		return *out.Key, nil
	}

	return key, nil
}

func (r *Remote) client(ctx context.Context) (*awss3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if r.cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(r.cfg.Region))
	}
	if r.cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(r.cfg.AccessKey, r.cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load aws config: %w", auth.ErrAuthentication, err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if r.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(r.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// partProgress reports the bytes the bucket has accepted each time a part
// (or the single PutObject) succeeds. Parts are sent one at a time, so part
// n completing means the first n parts are stored.
func partProgress(partSize, size int64, onChunk func(int64)) func(*awss3.Options) {
	report := smithymiddleware.InitializeMiddlewareFunc("PartProgress", func(
		ctx context.Context, in smithymiddleware.InitializeInput, next smithymiddleware.InitializeHandler,
	) (smithymiddleware.InitializeOutput, smithymiddleware.Metadata, error) {
		out, md, err := next.HandleInitialize(ctx, in)
		if err != nil {
			return out, md, err
		}

		switch params := in.Parameters.(type) {
		case *awss3.UploadPartInput:
			onChunk(min(int64(aws.ToInt32(params.PartNumber))*partSize, size))
		case *awss3.PutObjectInput:
			onChunk(size)
		}

		return out, md, err
	})

	return func(o *awss3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *smithymiddleware.Stack) error {
			return stack.Initialize.Add(report, smithymiddleware.After)
		})
	}
}
