// Package main runs the video ingestion HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/internal/middleware"
	"github.com/vigila/backend/internal/system"
	"github.com/vigila/backend/internal/videos"
	"github.com/vigila/backend/pkg/database"
	"github.com/vigila/backend/pkg/queue"
	"github.com/vigila/backend/pkg/redis"
	"github.com/vigila/backend/pkg/storage"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o750); err != nil {
		logger.Fatal("upload dir", zap.Error(err), zap.String("path", cfg.Server.UploadDir))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database: retried in the background until reachable; requests fail with 500 meanwhile.
	connector := database.NewConnector(cfg.Database, logger)
	connector.Start(ctx)
	defer connector.Close()

	objects, err := storage.New(ctx, cfg.ObjectStore, logger)
	if err != nil {
		logger.Warn("object store disabled", zap.Error(err))
		objects = storage.Disabled{}
	}
	if objects.Enabled() {
		if err := objects.EnsureBucket(ctx); err != nil {
			logger.Error("ensure bucket failed", zap.Error(err), zap.String("bucket", objects.Bucket()))
		}
	} else {
		logger.Warn("no object store endpoint configured, uploads record metadata only")
	}

	repo := videos.NewRepository(connector)
	svc := videos.NewService(repo, objects, logger)

	var orphans videos.OrphanQueue
	if cfg.Ingest.OrphanPolicy == config.OrphanQueue {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable", zap.Error(err))
		} else {
			defer rdb.Close()
			orphans = queue.NewQueue(rdb.Client, logger)
		}
	}
	svc.SetOrphanPolicy(cfg.Ingest.OrphanPolicy, orphans)

	videoHandler := videos.NewHandler(svc, cfg.Server.UploadDir, cfg.Server.MaxUploadBytes, logger)
	systemHandler := system.NewHandler(connector, objects, cfg.ObjectStore.Driver, logger)

	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/", systemHandler.Info)
	router.GET("/healthz", systemHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/upload", videoHandler.Upload)
	router.GET("/videos", videoHandler.List)
	router.GET("/videos/:id/download", videoHandler.Download)
	router.GET("/stats", videoHandler.Stats)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("object_store", objects.Enabled()),
			zap.String("orphan_policy", cfg.Ingest.OrphanPolicy),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
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
