package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vigila/backend/config"
)

// ErrNotConfigured is returned by every operation of a disabled object store.
var ErrNotConfigured = errors.New("storage not configured")

// WriteError reports a failed object upload.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("storage write %q: %v", e.Key, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a failed object read. NotFound is set when the key does not exist.
type ReadError struct {
	Key      string
	NotFound bool
	Err      error
}

func (e *ReadError) Error() string { return fmt.Sprintf("storage read %q: %v", e.Key, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// Object is a readable object body. Caller must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64 // -1 when unknown
	ContentType string
}

// ObjectStore is the binary store for uploaded videos. Callers must check Enabled
// before relying on any other operation; a disabled store fails every call with ErrNotConfigured.
type ObjectStore interface {
	Enabled() bool
	Bucket() string
	Ping(ctx context.Context) error
	EnsureBucket(ctx context.Context) error
	PutObject(ctx context.Context, key, localPath, contentType string) error
	GetObjectStream(ctx context.Context, key string) (*Object, error)
	DeleteObject(ctx context.Context, key string) error
}

// New returns the object store selected by cfg: Disabled when no endpoint is configured,
// otherwise an S3 or MinIO client.
func New(ctx context.Context, cfg config.ObjectStoreConfig, logger *zap.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("S3 endpoint not set, object storage disabled")
		return Disabled{}, nil
	}
	switch cfg.Driver {
	case config.DriverMinIO:
		return NewMinIO(cfg, logger)
	default:
		return NewS3(ctx, cfg, logger)
	}
}

// Disabled is the object store used when no backend is configured.
type Disabled struct{}

var _ ObjectStore = Disabled{}

func (Disabled) Enabled() bool                      { return false }
func (Disabled) Bucket() string                     { return "" }
func (Disabled) Ping(context.Context) error         { return ErrNotConfigured }
func (Disabled) EnsureBucket(context.Context) error { return ErrNotConfigured }
func (Disabled) PutObject(context.Context, string, string, string) error {
	return ErrNotConfigured
}
func (Disabled) GetObjectStream(context.Context, string) (*Object, error) {
	return nil, ErrNotConfigured
}
func (Disabled) DeleteObject(context.Context, string) error { return ErrNotConfigured }
