package persistence

import (
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
)

// ObjectStore reads attachment blobs for the scan worker.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the attachment bucket. Absent configuration
// returns nil and the scan worker degrades to metadata-only scanning.
func NewObjectStore(cfg config.StorageConfig, logger *zap.Logger) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		logger.Warn("STORAGE_ENDPOINT not provided; attachment content scanning disabled")
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to object store", zap.String("bucket", cfg.Bucket))
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Fetch streams the object at path.
func (s *ObjectStore) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("object store not configured")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}
