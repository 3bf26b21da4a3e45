package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/USA-RedDragon/crashula/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Manager interface {
	Open(ctx context.Context, name string) (File, error)
	Create(ctx context.Context, name string) (File, error)
	MkdirAll(name string, perm fs.FileMode) error
	Remove(ctx context.Context, name string) error
	Sub(dir string) (Storage, error)
}

type File interface {
	io.ReadCloser
	io.Writer
}

type Storage interface {
	Manager
	Close() error
}

func NewStorage(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.Persistence.Uploads.Driver {
	case config.UploadsDriverFilesystem:
		root := cfg.Persistence.Uploads.Directory
		err := os.MkdirAll(root, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create uploads directory: %w", err)
		}
		return newFilesystem(root)
	case config.UploadsDriverS3:
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Persistence.Uploads.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Persistence.Uploads.S3.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
			if cfg.Persistence.Uploads.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Persistence.Uploads.S3.Endpoint)
			}
		})
		return newS3(cfg.Persistence.Uploads.S3.Bucket, "", client), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Persistence.Uploads.Driver)
	}
}
