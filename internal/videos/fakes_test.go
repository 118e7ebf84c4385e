package videos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vigila/backend/internal/models"
	"github.com/vigila/backend/pkg/queue"
	"github.com/vigila/backend/pkg/storage"
)

// memStore is an in-memory Store for unit testing.
type memStore struct {
	mu        sync.Mutex
	rows      []models.Video
	nextID    int64
	insertErr error
	listErr   error
	clock     time.Time
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{nextID: 1, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memStore) Insert(_ context.Context, filename, s3Key string, size int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	for _, r := range m.rows {
		if r.S3Key == s3Key {
			return 0, &PersistenceError{Op: "insert", Err: fmt.Errorf("%w: duplicate key value violates unique constraint on s3_key", ErrDuplicateKey)}
		}
	}
	m.clock = m.clock.Add(time.Second)
	v := models.Video{ID: m.nextID, Filename: filename, S3Key: s3Key, Size: size, UploadDate: m.clock}
	m.nextID++
	m.rows = append(m.rows, v)
	return v.ID, nil
}

func (m *memStore) List(context.Context) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Video, len(m.rows))
	copy(out, m.rows)
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			v := r
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Stats(context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Stats{TotalVideos: int64(len(m.rows))}
	if len(m.rows) == 0 {
		return s, nil
	}
	var total int64
	for _, r := range m.rows {
		total += r.Size
	}
	avg := float64(total) / float64(len(m.rows))
	s.TotalSize = &total
	s.AvgSize = &avg
	return s, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// memObjects is an in-memory enabled ObjectStore.
type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	getErr    error
	deleteErr error
	deleted   []string
}

var _ storage.ObjectStore = (*memObjects)(nil)

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) Enabled() bool                      { return true }
func (m *memObjects) Bucket() string                     { return "videos" }
func (m *memObjects) Ping(context.Context) error         { return nil }
func (m *memObjects) EnsureBucket(context.Context) error { return nil }

func (m *memObjects) PutObject(_ context.Context, key, localPath, contentType string) error {
	m.mu.Lock()
	err := m.putErr
	m.mu.Unlock()
	if err != nil {
		return &storage.WriteError{Key: key, Err: err}
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return &storage.WriteError{Key: key, Err: err}
	}
	m.mu.Lock()
	m.objects[key] = data
	m.types[key] = contentType
	m.mu.Unlock()
	return nil
}

func (m *memObjects) GetObjectStream(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, &storage.ReadError{Key: key, Err: m.getErr}
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, &storage.ReadError{Key: key, NotFound: true, Err: fmt.Errorf("object %q not found", key)}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(cp)),
		Size:        int64(len(cp)),
		ContentType: m.types[key],
	}, nil
}

func (m *memObjects) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// memQueue records orphan cleanup jobs.
type memQueue struct {
	mu   sync.Mutex
	jobs []queue.OrphanCleanupPayload
	err  error
}

func (q *memQueue) EnqueueOrphanCleanup(_ context.Context, p queue.OrphanCleanupPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, p)
	return nil
}
