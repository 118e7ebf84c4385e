// Package main runs the background orphan cleanup worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/internal/worker"
	"github.com/vigila/backend/pkg/queue"
	"github.com/vigila/backend/pkg/redis"
	"github.com/vigila/backend/pkg/storage"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	objects, err := storage.New(ctx, cfg.ObjectStore, logger)
	if err != nil {
		logger.Fatal("object store", zap.Error(err))
	}
	if !objects.Enabled() {
		logger.Fatal("object store not configured, nothing to clean up")
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewOrphanProcessor(objects, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	pending, dead, err := jobQueue.Depth(ctx)
	if err != nil {
		logger.Warn("queue depth", zap.Error(err))
	}
	logger.Info("worker started",
		zap.String("queue", queue.QueueOrphans),
		zap.Int64("pending", pending),
		zap.Int64("dead_lettered", dead),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(worker.DequeueTimeout + 2*time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, _ := config.Build()
	return logger
}
