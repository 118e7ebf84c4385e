package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/pkg/metrics"
)

// MinIO stores videos through the native MinIO client.
type MinIO struct {
	client *minio.Client
	cfg    config.ObjectStoreConfig
	logger *zap.Logger
}

var _ ObjectStore = (*MinIO)(nil)

// NewMinIO creates a MinIO client for host:port.
func NewMinIO(cfg config.ObjectStoreConfig, logger *zap.Logger) (*MinIO, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.HostPort(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	logger.Info("MinIO client configured", zap.String("endpoint", cfg.HostPort()), zap.String("bucket", cfg.Bucket))
	return &MinIO{client: client, cfg: cfg, logger: logger}, nil
}

func (m *MinIO) Enabled() bool  { return true }
func (m *MinIO) Bucket() string { return m.cfg.Bucket }

// Ping checks that the bucket is reachable.
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	return err
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		m.logger.Info("bucket already exists", zap.String("bucket", m.cfg.Bucket))
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("make bucket: %w", err)
	}
	m.logger.Info("bucket created", zap.String("bucket", m.cfg.Bucket))
	return nil
}

// PutObject uploads the local file to key.
func (m *MinIO) PutObject(ctx context.Context, key, localPath, contentType string) (err error) {
	defer metrics.ObserveStorage("put", time.Now(), &err)

	_, err = m.client.FPutObject(ctx, m.cfg.Bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// GetObjectStream returns the object body for streaming. Caller must close the body.
func (m *MinIO) GetObjectStream(ctx context.Context, key string) (o *Object, err error) {
	defer metrics.ObserveStorage("get", time.Now(), &err)

	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &ReadError{Key: key, NotFound: isMinIONotFound(err), Err: err}
	}
	// GetObject is lazy; Stat surfaces a missing key before any byte is streamed.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, &ReadError{Key: key, NotFound: isMinIONotFound(err), Err: err}
	}
	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

// DeleteObject removes an object.
func (m *MinIO) DeleteObject(ctx context.Context, key string) (err error) {
	defer metrics.ObserveStorage("delete", time.Now(), &err)

	if err = m.client.RemoveObject(ctx, m.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func isMinIONotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
