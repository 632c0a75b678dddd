package database

import (
	"context"
	"time"

	"github.com/savak1990/my-dogs/internal/model"
)

// Counter names a per-owner id sequence.
type Counter string

const (
	CounterDog   Counter = "dog_counter"
	CounterImage Counter = "image_counter"
)

func (c Counter) valid() bool {
	return c == CounterDog || c == CounterImage
}

// Database defines the persistence interface for dogs, images and id
// sequences. Every backing-store failure is reported as
// apperr.ErrStoreUnavailable.
type Database interface {
	// Sequences
	NextSequence(ctx context.Context, ownerID string, counter Counter) (int64, error)

	// Dogs
	CreateDog(ctx context.Context, dog *model.Dog) error
	GetDog(ctx context.Context, ownerID string, dogID int64) (*model.Dog, error)
	GetDogsByOwner(ctx context.Context, ownerID string) ([]*model.Dog, error)

	// Images
	CreateImage(ctx context.Context, img *model.Image) error
	GetImage(ctx context.Context, ownerID string, dogID, imageID int64) (*model.Image, error)
	GetImagesByOwner(ctx context.Context, ownerID string) ([]*model.Image, error)
	GetImagesByDog(ctx context.Context, ownerID string, dogID int64) ([]*model.Image, error)
	UpdateImage(ctx context.Context, ownerID string, dogID, imageID, expectedVersion int64, patch model.ImagePatch) (*model.Image, error)

	// PurgeExpired removes PENDING images whose TTL passed before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
