package main

import (
	"context"
	"fmt"

	"github.com/savak1990/my-dogs/internal/config"
	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/handler"
	"github.com/savak1990/my-dogs/internal/logging"
	"github.com/savak1990/my-dogs/internal/metrics"
	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/savak1990/my-dogs/internal/service"
	"github.com/savak1990/my-dogs/internal/storage"
	"go.uber.org/zap"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *database.SQLDB
	store      storage.ObjectStore
	uploads    *storage.FileSystem
	metrics    *metrics.Metrics
	reconciler *reconciler.Reconciler
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}
	switch cfg.StorageDriver {
	case config.StorageFileSystem:
		a.uploads = storage.NewFileSystem(cfg.StoragePath, cfg.ImagesBucket, cfg.BaseURL, []byte(cfg.UploadSigningKey))
		a.store = a.uploads
	default:
		s3Store, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:          cfg.ImagesBucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PresignEndpoint: cfg.S3PresignEndpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		a.store = s3Store
	}

	a.reconciler = reconciler.New(a.db, a.store, reconciler.Config{
		MaxSize: cfg.UploadMaxSize,
		Workers: cfg.ReconcileWorkers,
	}, a.metrics, logger.Named("reconciler"))

	logger.Info("configuration loaded",
		zap.String("service", cfg.ServiceName),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("bucket", cfg.ImagesBucket),
		zap.Int64("upload_max_size", cfg.UploadMaxSize),
		zap.Duration("upload_expiration", cfg.UploadExpiration),
		zap.Strings("extensions", cfg.SupportedExtensions))
	return a, nil
}

func (a *app) newHandler() *handler.Handler {
	return &handler.Handler{
		Dogs: service.NewDogService(a.db, a.logger.Named("dogs")),
		Intents: service.NewUploadIntentService(a.db, a.store, service.IntentConfig{
			Extensions: a.cfg.SupportedExtensions,
			Expiration: a.cfg.UploadExpiration,
			MaxSize:    a.cfg.UploadMaxSize,
		}, a.metrics, a.logger.Named("intents")),
		Checks:     service.NewHealthService(a.cfg.ServiceName, a.db, a.store, a.logger.Named("health")),
		Reconciler: a.reconciler,
		Uploads:    a.uploads,
		Config:     a.cfg,
		Logger:     a.logger,
	}
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
