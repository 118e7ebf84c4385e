package videos

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/internal/models"
	"github.com/vigila/backend/pkg/metrics"
	"github.com/vigila/backend/pkg/queue"
	"github.com/vigila/backend/pkg/storage"
)

// KeyPrefix prefixes every storage key.
const KeyPrefix = "videos/"

// Ingestion stages, used as the "stage" log field and the ingest metric outcome.
const (
	StageRejectedNoFile = "rejected_no_file"
	StageStoredObject   = "stored_object"
	StageSkippedStorage = "skipped_storage"
	StageStorageFailed  = "storage_failed"
	StagePersistFailed  = "persist_failed"
	StageCleaned        = "cleaned"
)

// Store is the metadata store used by Service.
type Store interface {
	Insert(ctx context.Context, filename, s3Key string, size int64) (int64, error)
	List(ctx context.Context) ([]models.Video, error)
	GetByID(ctx context.Context, id int64) (*models.Video, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// OrphanQueue receives cleanup jobs for objects left without a metadata row.
type OrphanQueue interface {
	EnqueueOrphanCleanup(ctx context.Context, payload queue.OrphanCleanupPayload) error
}

// Upload is a file already saved to a temporary path by the transport.
type Upload struct {
	TempPath    string
	Filename    string
	Size        int64
	ContentType string
}

// IngestResult describes a successfully ingested video.
type IngestResult struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	S3Key    string `json:"s3_key"`
	Size     int64  `json:"size"`
}

// Download is an open video stream with its metadata. Caller must close Object.Body.
type Download struct {
	Video  *models.Video
	Object *storage.Object
}

// Service ingests uploads and serves video metadata and content.
type Service struct {
	store        Store
	objects      storage.ObjectStore
	orphanPolicy string
	orphans      OrphanQueue
	now          func() time.Time
	logger       *zap.Logger
}

// NewService creates a video service. objects must not be nil; pass storage.Disabled{} when no backend exists.
func NewService(store Store, objects storage.ObjectStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if objects == nil {
		objects = storage.Disabled{}
	}
	return &Service{
		store:        store,
		objects:      objects,
		orphanPolicy: config.OrphanKeep,
		now:          time.Now,
		logger:       logger,
	}
}

// SetOrphanPolicy selects what happens to an object whose metadata insert failed.
// The queue policy needs q; without it the policy falls back to keep.
func (s *Service) SetOrphanPolicy(policy string, q OrphanQueue) {
	if policy == config.OrphanQueue && q == nil {
		s.logger.Warn("orphan queue policy requested without Redis, keeping orphans")
		policy = config.OrphanKeep
	}
	s.orphanPolicy = policy
	s.orphans = q
}

// StorageKey returns the object key for filename ingested at t.
func StorageKey(t time.Time, filename string) string {
	return fmt.Sprintf("%s%d-%s", KeyPrefix, t.UnixMilli(), filename)
}

// Ingest writes the object (when a store is configured), then inserts the metadata row,
// then removes the temporary file. A storage failure stops before the insert and leaves
// the temporary file in place. An insert failure after a write leaves the object orphaned,
// subject to the orphan policy.
func (s *Service) Ingest(ctx context.Context, up *Upload) (*IngestResult, error) {
	if up == nil || up.TempPath == "" || up.Filename == "" || up.Size < 0 {
		metrics.IngestTotal.WithLabelValues(StageRejectedNoFile).Inc()
		return nil, ErrNoFile
	}
	// A client that disconnects mid-upload does not abort the store calls.
	ctx = context.WithoutCancel(ctx)

	key := StorageKey(s.now(), up.Filename)
	log := s.logger.With(zap.String("filename", up.Filename), zap.String("key", key))
	log.Info("video received", zap.Int64("size", up.Size))

	stage := StageSkippedStorage
	if s.objects.Enabled() {
		if err := s.objects.PutObject(ctx, key, up.TempPath, up.ContentType); err != nil {
			metrics.IngestTotal.WithLabelValues(StageStorageFailed).Inc()
			log.Error("object upload failed", zap.String("stage", StageStorageFailed), zap.Error(err))
			var we *storage.WriteError
			if !errors.As(err, &we) {
				err = &storage.WriteError{Key: key, Err: err}
			}
			return nil, err
		}
		stage = StageStoredObject
		log.Info("video uploaded to object store", zap.String("stage", stage))
	} else {
		log.Info("object store not configured, recording metadata only", zap.String("stage", stage))
	}

	id, err := s.store.Insert(ctx, up.Filename, key, up.Size)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(StagePersistFailed).Inc()
		log.Error("metadata insert failed", zap.String("stage", StagePersistFailed), zap.Error(err))
		switch {
		case stage != StageStoredObject:
		case errors.Is(err, ErrDuplicateKey):
			// The object under key belongs to the row that already holds it.
			log.Warn("storage key already recorded, leaving object to its existing row")
		default:
			s.handleOrphan(ctx, key, err)
		}
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			err = &PersistenceError{Op: "insert", Err: err}
		}
		return nil, err
	}
	metrics.IngestTotal.WithLabelValues(stage).Inc()
	metrics.IngestBytes.Add(float64(up.Size))
	log.Info("metadata saved", zap.Int64("id", id))

	if err := os.Remove(up.TempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("remove temp file failed", zap.String("path", up.TempPath), zap.Error(err))
	} else {
		log.Debug("temp file removed", zap.String("stage", StageCleaned))
	}

	return &IngestResult{ID: id, Filename: up.Filename, S3Key: key, Size: up.Size}, nil
}

func (s *Service) handleOrphan(ctx context.Context, key string, cause error) {
	log := s.logger.With(zap.String("key", key), zap.String("policy", s.orphanPolicy))
	metrics.OrphansTotal.WithLabelValues(s.orphanPolicy).Inc()

	switch s.orphanPolicy {
	case config.OrphanDelete:
		if err := s.objects.DeleteObject(ctx, key); err != nil {
			log.Error("orphaned object delete failed", zap.Error(err))
			return
		}
		log.Info("orphaned object deleted")
	case config.OrphanQueue:
		err := s.orphans.EnqueueOrphanCleanup(ctx, queue.OrphanCleanupPayload{
			Bucket: s.objects.Bucket(),
			Key:    key,
			Reason: cause.Error(),
		})
		if err != nil {
			log.Error("orphan cleanup enqueue failed", zap.Error(err))
			return
		}
		log.Info("orphan cleanup queued")
	default:
		log.Warn("object left in storage without metadata")
	}
}

// List returns all videos, newest first.
func (s *Service) List(ctx context.Context) ([]models.Video, error) {
	return s.store.List(ctx)
}

// Get returns a video by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Video, error) {
	return s.store.GetByID(ctx, id)
}

// Open resolves the video and opens its object stream. It returns ErrNotFound for an
// unknown id and storage.ErrNotConfigured when no object store exists.
func (s *Service) Open(ctx context.Context, id int64) (*Download, error) {
	v, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.objects.Enabled() {
		return nil, storage.ErrNotConfigured
	}
	obj, err := s.objects.GetObjectStream(ctx, v.S3Key)
	if err != nil {
		var re *storage.ReadError
		if !errors.As(err, &re) {
			err = &storage.ReadError{Key: v.S3Key, Err: err}
		}
		return nil, err
	}
	return &Download{Video: v, Object: obj}, nil
}

// Stats returns aggregate statistics. Totals stay nil when there are no videos.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return s.store.Stats(ctx)
}

// StorageEnabled reports whether an object store backs this service.
func (s *Service) StorageEnabled() bool { return s.objects.Enabled() }
