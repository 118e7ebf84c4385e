package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vigila/backend/pkg/metrics"
	"github.com/vigila/backend/pkg/queue"
	"github.com/vigila/backend/pkg/storage"
)

// DequeueTimeout bounds each blocking pop so shutdown is noticed promptly.
const DequeueTimeout = 5 * time.Second

// JobSource is the queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// OrphanProcessor deletes objects whose metadata insert failed.
type OrphanProcessor struct {
	objects storage.ObjectStore
	queue   JobSource
	backoff time.Duration
	logger  *zap.Logger
}

// NewOrphanProcessor creates an orphan cleanup processor.
func NewOrphanProcessor(objects storage.ObjectStore, q JobSource, logger *zap.Logger) *OrphanProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrphanProcessor{objects: objects, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one orphan cleanup job.
func (p *OrphanProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeOrphanCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.OrphanCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.Key == "" {
		return fmt.Errorf("orphan cleanup job %s has no key", job.ID)
	}
	if payload.Bucket != "" && payload.Bucket != p.objects.Bucket() {
		return fmt.Errorf("job bucket %q does not match store bucket %q", payload.Bucket, p.objects.Bucket())
	}

	if err := p.objects.DeleteObject(ctx, payload.Key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	p.logger.Info("orphaned object deleted",
		zap.String("job_id", job.ID),
		zap.String("key", payload.Key),
		zap.String("reason", payload.Reason),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *OrphanProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("orphan worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if job.Attempt+1 >= queue.MaxRetries {
				metrics.OrphanJobsTotal.WithLabelValues("dead_lettered").Inc()
			} else {
				metrics.OrphanJobsTotal.WithLabelValues("retried").Inc()
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		metrics.OrphanJobsTotal.WithLabelValues("deleted").Inc()
	}
}

func (p *OrphanProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
