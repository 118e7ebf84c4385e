package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/pkg/metrics"
)

// RetryDelay is the fixed pause between connection attempts.
const RetryDelay = 5 * time.Second

// ErrNotConnected is returned while no session to PostgreSQL exists yet.
var ErrNotConnected = errors.New("database not connected")

// Connector owns the single PostgreSQL pool of the process. Run keeps retrying
// connect + schema setup until it succeeds or its context is cancelled.
type Connector struct {
	logger  *zap.Logger
	delay   time.Duration
	connect func(ctx context.Context) (*pgxpool.Pool, error)

	pool      atomic.Pointer[pgxpool.Pool]
	ready     chan struct{}
	readyOnce sync.Once
}

// NewConnector creates a connector for cfg. Nothing is dialed until Run.
func NewConnector(cfg config.DatabaseConfig, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connector{
		logger: logger,
		delay:  RetryDelay,
		ready:  make(chan struct{}),
	}
	c.connect = func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := NewPostgresPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("videos table created/verified")
		return pool, nil
	}
	return c
}

// Run connects, retrying every RetryDelay without limit. It returns nil once a
// session is established, or ctx.Err() when cancelled first.
func (c *Connector) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		pool, err := c.connect(ctx)
		if err == nil {
			c.pool.Store(pool)
			c.readyOnce.Do(func() { close(c.ready) })
			metrics.DatabaseConnectAttempts.WithLabelValues("ok").Inc()
			metrics.DatabaseUp.Set(1)
			c.logger.Info("database ready", zap.Int("attempt", attempt))
			return nil
		}
		metrics.DatabaseConnectAttempts.WithLabelValues("error").Inc()
		c.logger.Error("database connection failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", c.delay),
		)

		t := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Start runs the connect loop in the background.
func (c *Connector) Start(ctx context.Context) {
	go func() { _ = c.Run(ctx) }()
}

// Ready is closed once the first session is established.
func (c *Connector) Ready() <-chan struct{} { return c.ready }

// Pool returns the established pool, or nil while still connecting.
func (c *Connector) Pool() *pgxpool.Pool { return c.pool.Load() }

// Ping checks the established session.
func (c *Connector) Ping(ctx context.Context) error {
	pool := c.Pool()
	if pool == nil {
		return ErrNotConnected
	}
	return pool.Ping(ctx)
}

// Close releases the pool if one was established.
func (c *Connector) Close() {
	if pool := c.pool.Swap(nil); pool != nil {
		pool.Close()
		metrics.DatabaseUp.Set(0)
	}
}
