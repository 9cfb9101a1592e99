// Package main is the entry point for the audiodrop API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dverran/audiodrop/internal/api"
	"github.com/dverran/audiodrop/internal/config"
	"github.com/dverran/audiodrop/internal/database"
	"github.com/dverran/audiodrop/internal/lifecycle"
	"github.com/dverran/audiodrop/internal/logging"
	"github.com/dverran/audiodrop/internal/objectstore"
	"github.com/dverran/audiodrop/internal/processing"
	"github.com/dverran/audiodrop/internal/repository"
	"github.com/dverran/audiodrop/internal/signing"
	"github.com/dverran/audiodrop/internal/validate"
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

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	signer := signing.NewSigner(cfg.SigningSecret)

	// The storage variant is picked once here; nothing downstream branches
	// on mode again.
	var store objectstore.Store
	var localStore *objectstore.Memory
	if cfg.S3Endpoint == "" {
		mem := objectstore.NewMemory(signer, "")
		store = mem
		localStore = mem
		logger.Warn("no S3 endpoint configured, using in-memory object store")
	} else {
		mc, err := objectstore.NewMinIO(cfg)
		if err != nil {
			logger.Error("init object store", "error", err)
			os.Exit(1)
		}
		if err := mc.EnsureBuckets(ctx, cfg.UploadBucket, cfg.OutputBucket); err != nil {
			logger.Error("ensure buckets", "error", err)
			os.Exit(1)
		}
		store = mc
	}

	var repo repository.AssetRepository
	if cfg.DatabaseURL == "" {
		repo = repository.NewMemory()
		logger.Warn("no DATABASE_URL configured, using in-memory repository")
	} else {
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
		repo = repository.NewPostgres(pool)
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

	var queueClient *asynq.Client
	if cfg.AsyncProcessing {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
		logger.Info("async processing enabled", "redis", cfg.RedisAddr)
	}

	srv := api.New(cfg, orch, logger, api.Options{
		Queue:      queueClient,
		LocalStore: localStore,
		Signer:     signer,
	})
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
