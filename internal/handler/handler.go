package handler

import (
	"github.com/savak1990/my-dogs/internal/config"
	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/savak1990/my-dogs/internal/service"
	"github.com/savak1990/my-dogs/internal/storage"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Dogs       *service.DogService
	Intents    *service.UploadIntentService
	Checks     *service.HealthService
	Reconciler *reconciler.Reconciler
	// Uploads is set only when the filesystem store is active; it backs the
	// signed PUT /uploads/* target.
	Uploads *storage.FileSystem
	Config  *config.Config
	Logger  *zap.Logger
}
