package model

import "time"

// ImageStatus is the lifecycle state of an image record.
type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "PENDING"
	ImageStatusUploaded ImageStatus = "UPLOADED"
	ImageStatusDeleted  ImageStatus = "DELETED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ImageStatus) Terminal() bool {
	return s == ImageStatusUploaded || s == ImageStatusDeleted
}

// Valid reports whether s is one of the known statuses.
func (s ImageStatus) Valid() bool {
	switch s {
	case ImageStatusPending, ImageStatusUploaded, ImageStatusDeleted:
		return true
	}
	return false
}

// Image is an image attached to a dog. StorageKey is the object-store key the
// bytes are (or will be) stored under.
type Image struct {
	OwnerID      string
	DogID        int64
	ImageID      int64
	StorageKey   string
	Status       ImageStatus
	StatusReason string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// ExpiresAt is set while the image is PENDING; the store may purge the
	// record after it passes.
	ExpiresAt *time.Time
}

// ImagePatch lists the fields UpdateImage may change. Nil pointers leave the
// stored value untouched.
type ImagePatch struct {
	StorageKey   *string
	Status       *ImageStatus
	StatusReason *string
	ClearTTL     bool
}

// StatusPatch is a convenience for the common status+reason transition.
func StatusPatch(status ImageStatus, reason string) ImagePatch {
	return ImagePatch{
		Status:       &status,
		StatusReason: &reason,
		ClearTTL:     true,
	}
}
