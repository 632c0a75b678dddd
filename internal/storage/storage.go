package storage

import (
	"context"
	"time"
)

// UploadRequest describes a credential to upload exactly one object.
type UploadRequest struct {
	Key         string
	ContentType string
	ExpiresIn   time.Duration
	MaxSize     int64
}

// UploadCredential lets a client upload directly to the object store.
type UploadCredential struct {
	Method    string
	URL       string
	Headers   map[string]string
	MaxSize   int64
	ExpiresIn time.Duration
}

// ObjectStore defines the object-store operations the service depends on.
// Failures of the backing store are reported as apperr.ErrStoreUnavailable.
type ObjectStore interface {
	// Bucket is the bucket new uploads are directed to.
	Bucket() string

	// PresignUpload returns a time-limited credential for req.Key.
	PresignUpload(ctx context.Context, req UploadRequest) (*UploadCredential, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error

	HealthCheck(ctx context.Context) error
}

// ContentTypeForExtension maps an image extension to the content type the
// upload is signed with.
func ContentTypeForExtension(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
