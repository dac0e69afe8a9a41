package blobstore

import (
	"context"
	"fmt"
)

const (
	TypeFilesystem = "filesystem"
	TypeS3         = "s3"
)

// Config selects and configures the blob backend.
type Config struct {
	Type string `yaml:"type"`
	// Directory is the root the ImageData folder is created in (filesystem only).
	Directory string   `yaml:"directory"`
	S3        S3Config `yaml:"s3"`
}

func NewBlobStore(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Type {
	case TypeFilesystem, "":
		return NewFilesystemStore(cfg.Directory)
	case TypeS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 blob store requires a bucket")
		}
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported blob store type: %s", cfg.Type)
	}
}
