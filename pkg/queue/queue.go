package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueOrphans is the Redis list key for orphaned-object cleanup jobs.
	QueueOrphans = "worker:orphans"
	// QueueDLQ is the dead-letter list for jobs that exhausted their retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of failed attempts before a job is dead-lettered.
	MaxRetries = 3
	// RetryBackoff is the pause after a failed attempt.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

// JobTypeOrphanCleanup deletes an object whose metadata row was never written.
const JobTypeOrphanCleanup JobType = "orphan_cleanup"

// OrphanCleanupPayload identifies an object written without a metadata row.
type OrphanCleanupPayload struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is a Redis list of jobs with a dead-letter list beside it.
type Queue struct {
	client redis.Cmdable
	key    string
	dlq    string
	logger *zap.Logger
}

// NewQueue creates the orphan cleanup queue on client.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, key: QueueOrphans, dlq: QueueDLQ, logger: logger}
}

// EnqueueOrphanCleanup schedules deletion of an orphaned object.
func (q *Queue) EnqueueOrphanCleanup(ctx context.Context, payload OrphanCleanupPayload) error {
	id, err := q.enqueue(ctx, JobTypeOrphanCleanup, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued orphan cleanup job", zap.String("job_id", id), zap.String("key", payload.Key))
	return nil
}

func (q *Queue) enqueue(ctx context.Context, typ JobType, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, q.key, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

// Dequeue blocks up to timeout for a job. It returns a nil job when none arrived
// or the entry could not be decoded.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. Once attempt reaches MaxRetries
// the job goes to the dead-letter list instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, q.dlq, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, q.key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Depth returns the number of pending and dead-lettered jobs.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	var pendingCmd, deadCmd *redis.IntCmd
	_, err = q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		pendingCmd = p.LLen(ctx, q.key)
		deadCmd = p.LLen(ctx, q.dlq)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("queue depth: %w", err)
	}
	return pendingCmd.Val(), deadCmd.Val(), nil
}
