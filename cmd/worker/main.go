// Package main is the entry point for the audiodrop processing worker. It
// consumes queued processing jobs; the API server enqueues them when async
// processing is enabled.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dverran/audiodrop/internal/config"
	"github.com/dverran/audiodrop/internal/database"
	"github.com/dverran/audiodrop/internal/lifecycle"
	"github.com/dverran/audiodrop/internal/logging"
	"github.com/dverran/audiodrop/internal/objectstore"
	"github.com/dverran/audiodrop/internal/processing"
	"github.com/dverran/audiodrop/internal/repository"
	"github.com/dverran/audiodrop/internal/validate"
	"github.com/dverran/audiodrop/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	// The worker runs in a separate process, so in-memory backends cannot
	// share state with the API server; both stores must be real here.
	if cfg.S3Endpoint == "" || cfg.DatabaseURL == "" {
		logger.Error("worker requires AUDIODROP_S3_ENDPOINT and DATABASE_URL")
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	repo := repository.NewPostgres(pool)

	store, err := objectstore.NewMinIO(cfg)
	if err != nil {
		logger.Error("init object store", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBuckets(ctx, cfg.UploadBucket, cfg.OutputBucket); err != nil {
		logger.Error("ensure buckets", "error", err)
		os.Exit(1)
	}

	orch := lifecycle.New(store, repo, processing.Passthrough{}, lifecycle.Options{
		UploadBucket: cfg.UploadBucket,
		OutputBucket: cfg.OutputBucket,
		SignedURLTTL: cfg.SignedURLTTL,
		CallTimeout:  cfg.CallTimeout,
		Policy: validate.Policy{
			MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
			AllowedMimeTypes:  cfg.AllowedMimeTypes,
			AllowedExtensions: cfg.AllowedExtensions,
		},
		Logger: logger,
	})

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerCount,
	})
	processor := worker.NewProcessor(orch, logger)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", "concurrency", cfg.WorkerCount, "redis", cfg.RedisAddr)
	if err := server.Run(processor.Handler()); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
