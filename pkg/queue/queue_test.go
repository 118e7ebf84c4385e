package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestQueue_EnqueueDequeueRetry(t *testing.T) {
	client := startRedis(t)
	q := NewQueue(client, nil)
	ctx := context.Background()

	empty, err := q.Dequeue(ctx, time.Second)
	if err != nil || empty != nil {
		t.Fatalf("empty dequeue = %v, %v; want nil, nil", empty, err)
	}

	want := OrphanCleanupPayload{Bucket: "videos", Key: "videos/1-a.mp4", Reason: "insert failed"}
	if err := q.EnqueueOrphanCleanup(ctx, want); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Dequeue(ctx, time.Second)
	if err != nil || job == nil {
		t.Fatalf("dequeue = %v, %v", job, err)
	}
	if job.Type != JobTypeOrphanCleanup || job.ID == "" || job.Attempt != 0 {
		t.Errorf("job = %+v", job)
	}
	var got OrphanCleanupPayload
	if err := json.Unmarshal(job.Payload, &got); err != nil || got != want {
		t.Errorf("payload = %+v (%v), want %+v", got, err, want)
	}

	for i := 1; i < MaxRetries; i++ {
		if err := q.Retry(ctx, job); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
		if job, err = q.Dequeue(ctx, time.Second); err != nil || job == nil || job.Attempt != i {
			t.Fatalf("after retry %d: job = %+v, err = %v", i, job, err)
		}
	}
	if err := q.Retry(ctx, job); err != nil {
		t.Fatalf("final retry: %v", err)
	}
	pending, dead, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if pending != 0 || dead != 1 {
		t.Errorf("depth = %d pending, %d dead; want 0, 1", pending, dead)
	}
}
