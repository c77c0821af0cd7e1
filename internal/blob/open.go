package blob

import (
	"context"
	"fmt"

	"gradebook/internal/config"
	"gradebook/internal/infra/blob/fs"
	memorystore "gradebook/internal/infra/blob/memory"
	infraS3 "gradebook/internal/infra/blob/s3"
)

// Open selects a Store implementation from cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch cfg.Driver {
	case "", config.BlobFilesystem:
		return fs.New(cfg.FSRoot)
	case config.BlobMemory:
		return NewMemory(), nil
	case config.BlobS3:
		return infraS3.New(ctx, infraS3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memorystore.New() }
