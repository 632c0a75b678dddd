package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/model"
	"go.uber.org/zap"
)

const maxDogNameLength = 100

// CreateDogInput is the user-supplied part of a new dog.
type CreateDogInput struct {
	Name string
	Age  int
}

// DogService manages dogs and assembles their images at read time.
type DogService struct {
	db     database.Database
	logger *zap.Logger
}

func NewDogService(db database.Database, logger *zap.Logger) *DogService {
	return &DogService{db: db, logger: logger}
}

// CreateDog validates in and stores a new dog under a freshly allocated id.
func (s *DogService) CreateDog(ctx context.Context, ownerID string, in CreateDogInput) (*model.Dog, error) {
	const op = "CreateDog"
	if err := validateOwner(op, ownerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if utf8.RuneCountInString(name) > maxDogNameLength {
		return nil, apperr.Validation(op, "name must be at most %d characters", maxDogNameLength)
	}
	if in.Age < 0 {
		return nil, apperr.Validation(op, "age must not be negative")
	}

	dogID, err := s.db.NextSequence(ctx, ownerID, database.CounterDog)
	if err != nil {
		return nil, err
	}
	dog := &model.Dog{
		OwnerID: ownerID,
		DogID:   dogID,
		Name:    name,
		Age:     in.Age,
		Images:  []*model.Image{},
	}
	if err := s.db.CreateDog(ctx, dog); err != nil {
		return nil, err
	}

	s.logger.Info("dog created", zap.String("owner_id", ownerID), zap.Int64("dog_id", dogID))
	return dog, nil
}

// ListDogs returns the owner's dogs ordered by id, each with its images.
// Images whose dog no longer exists are dropped.
func (s *DogService) ListDogs(ctx context.Context, ownerID string) ([]*model.Dog, error) {
	if err := validateOwner("ListDogs", ownerID); err != nil {
		return nil, err
	}
	dogs, err := s.db.GetDogsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	images, err := s.db.GetImagesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*model.Dog, len(dogs))
	for _, dog := range dogs {
		dog.Images = []*model.Image{}
		byID[dog.DogID] = dog
	}
	for _, img := range images {
		dog, ok := byID[img.DogID]
		if !ok {
			s.logger.Debug("dropping image of unknown dog",
				zap.String("owner_id", ownerID),
				zap.Int64("dog_id", img.DogID),
				zap.Int64("image_id", img.ImageID))
			continue
		}
		dog.Images = append(dog.Images, img)
	}
	return dogs, nil
}

// GetDog returns one dog with its images.
func (s *DogService) GetDog(ctx context.Context, ownerID string, dogID int64) (*model.Dog, error) {
	if err := validateOwner("GetDog", ownerID); err != nil {
		return nil, err
	}
	dog, err := s.db.GetDog(ctx, ownerID, dogID)
	if err != nil {
		return nil, err
	}
	images, err := s.db.GetImagesByDog(ctx, ownerID, dogID)
	if err != nil {
		return nil, err
	}
	dog.Images = images
	return dog, nil
}
