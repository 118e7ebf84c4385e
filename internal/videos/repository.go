package videos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vigila/backend/internal/models"
	"github.com/vigila/backend/pkg/database"
)

// PoolSource yields the current pool, or nil while the database is still connecting.
type PoolSource interface {
	Pool() *pgxpool.Pool
}

// Repository handles video metadata persistence.
type Repository struct {
	db PoolSource
}

var _ Store = (*Repository)(nil)

// NewRepository creates a videos repository.
func NewRepository(db PoolSource) *Repository {
	return &Repository{db: db}
}

func (r *Repository) pool(op string) (*pgxpool.Pool, error) {
	p := r.db.Pool()
	if p == nil {
		return nil, &PersistenceError{Op: op, Err: database.ErrNotConnected}
	}
	return p, nil
}

// Insert stores one row and returns its assigned id. upload_date is set by the database.
func (r *Repository) Insert(ctx context.Context, filename, s3Key string, size int64) (int64, error) {
	pool, err := r.pool("insert")
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO videos (filename, s3_key, size) VALUES ($1, $2, $3) RETURNING id`
	var id int64
	if err := pool.QueryRow(ctx, q, filename, s3Key, size).Scan(&id); err != nil {
		return 0, insertError(err)
	}
	return id, nil
}

const uniqueViolation = "23505"

// insertError wraps a failed insert, marking unique violations on s3_key with ErrDuplicateKey.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		err = fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	return &PersistenceError{Op: "insert", Err: err}
}

// List returns all videos, newest first. It returns an empty slice when there are none.
func (r *Repository) List(ctx context.Context) ([]models.Video, error) {
	pool, err := r.pool("list")
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, filename, s3_key, size, upload_date FROM videos ORDER BY upload_date DESC, id DESC`
	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	list := make([]models.Video, 0)
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Filename, &v.S3Key, &v.Size, &v.UploadDate); err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return list, nil
}

// GetByID returns a video by id, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	pool, err := r.pool("get")
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, filename, s3_key, size, upload_date FROM videos WHERE id = $1`
	var v models.Video
	err = pool.QueryRow(ctx, q, id).Scan(&v.ID, &v.Filename, &v.S3Key, &v.Size, &v.UploadDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return &v, nil
}

// Stats aggregates count, total and average size in a single row. SUM and AVG are NULL over zero rows.
func (r *Repository) Stats(ctx context.Context) (*models.Stats, error) {
	pool, err := r.pool("stats")
	if err != nil {
		return nil, err
	}
	const q = `SELECT COUNT(*), SUM(size)::BIGINT, AVG(size)::DOUBLE PRECISION FROM videos`
	var s models.Stats
	if err := pool.QueryRow(ctx, q).Scan(&s.TotalVideos, &s.TotalSize, &s.AvgSize); err != nil {
		return nil, &PersistenceError{Op: "stats", Err: err}
	}
	return &s, nil
}
