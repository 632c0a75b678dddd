package service

import (
	"context"
	"strings"
	"time"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/keycodec"
	"github.com/savak1990/my-dogs/internal/metrics"
	"github.com/savak1990/my-dogs/internal/model"
	"github.com/savak1990/my-dogs/internal/storage"
	"go.uber.org/zap"
)

// IntentConfig holds the upload policy handed to clients.
type IntentConfig struct {
	Extensions []string
	Expiration time.Duration
	MaxSize    int64
}

// UploadIntent is the result of CreateUploadIntent: the PENDING image record
// and the credential to upload its bytes.
type UploadIntent struct {
	Image      *model.Image
	Credential *storage.UploadCredential
}

// UploadIntentService reserves image records and hands out upload
// credentials for them.
type UploadIntentService struct {
	db      database.Database
	store   storage.ObjectStore
	cfg     IntentConfig
	allowed map[string]bool
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewUploadIntentService wires the service. m may be nil.
func NewUploadIntentService(db database.Database, store storage.ObjectStore, cfg IntentConfig, m *metrics.Metrics, logger *zap.Logger) *UploadIntentService {
	allowed := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		allowed[keycodec.NormalizeExtension(ext)] = true
	}
	return &UploadIntentService{
		db:      db,
		store:   store,
		cfg:     cfg,
		allowed: allowed,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateUploadIntent allocates an image id for the dog, records a PENDING
// image that expires after the configured TTL and returns a credential for
// exactly that image's storage key.
//
// If the credential cannot be issued the PENDING record is left in place;
// it expires on its own.
func (s *UploadIntentService) CreateUploadIntent(ctx context.Context, ownerID string, dogID int64, extension string) (*UploadIntent, error) {
	intent, err := s.createUploadIntent(ctx, ownerID, dogID, extension)
	s.metrics.UploadIntent(err == nil)
	return intent, err
}

func (s *UploadIntentService) createUploadIntent(ctx context.Context, ownerID string, dogID int64, extension string) (*UploadIntent, error) {
	const op = "CreateUploadIntent"
	if err := validateOwner(op, ownerID); err != nil {
		return nil, err
	}
	if dogID <= 0 {
		return nil, apperr.Validation(op, "dog id must be positive")
	}
	ext := keycodec.NormalizeExtension(extension)
	if !keycodec.ValidExtension(ext) || !s.allowed[ext] {
		return nil, apperr.UnsupportedExtension(op, extension)
	}

	if _, err := s.db.GetDog(ctx, ownerID, dogID); err != nil {
		return nil, err
	}

	imageID, err := s.db.NextSequence(ctx, ownerID, database.CounterImage)
	if err != nil {
		return nil, err
	}

	expires := s.now().UTC().Add(s.cfg.Expiration)
	img := &model.Image{
		OwnerID:    ownerID,
		DogID:      dogID,
		ImageID:    imageID,
		StorageKey: keycodec.EncodeStorageKey(ownerID, dogID, imageID, ext),
		Status:     model.ImageStatusPending,
		ExpiresAt:  &expires,
	}
	if err := s.db.CreateImage(ctx, img); err != nil {
		return nil, err
	}

	cred, err := s.store.PresignUpload(ctx, storage.UploadRequest{
		Key:         img.StorageKey,
		ContentType: storage.ContentTypeForExtension(ext),
		ExpiresIn:   s.cfg.Expiration,
		MaxSize:     s.cfg.MaxSize,
	})
	if err != nil {
		s.logger.Error("presign upload failed; image left pending",
			zap.String("owner_id", ownerID),
			zap.Int64("dog_id", dogID),
			zap.Int64("image_id", imageID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("upload intent created",
		zap.String("owner_id", ownerID),
		zap.Int64("dog_id", dogID),
		zap.Int64("image_id", imageID),
		zap.String("storage_key", img.StorageKey))
	return &UploadIntent{Image: img, Credential: cred}, nil
}

func validateOwner(op, ownerID string) error {
	if ownerID == "" {
		return apperr.Validation(op, "owner id is required")
	}
	if strings.ContainsAny(ownerID, "/#") {
		return apperr.Validation(op, "owner id contains invalid characters")
	}
	return nil
}
