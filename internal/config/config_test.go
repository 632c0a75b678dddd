package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOGS_IMAGES_BUCKET", "dogs-images")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, time.Hour, cfg.UploadExpiration)
	assert.Equal(t, int64(5242880), cfg.UploadMaxSize)
	assert.Equal(t, []string{"jpg", "jpeg", "png", "webp"}, cfg.SupportedExtensions)
	assert.Equal(t, StorageS3, cfg.StorageDriver)
	assert.Equal(t, 8, cfg.ReconcileWorkers)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOGS_IMAGES_BUCKET", "b")
	t.Setenv("DOGS_IMAGE_UPLOAD_EXPIRATION_SECS", "60")
	t.Setenv("DOGS_IMAGE_UPLOAD_MAX_SIZE", "1024")
	t.Setenv("DOGS_SUPPORTED_IMAGE_EXTENSIONS", " .PNG, gif ,,")
	t.Setenv("DOGS_S3_ENDPOINT", "http://localstack:4566")
	t.Setenv("DOGS_BASE_URL", "http://example.test/")

	cfg := Load()
	assert.Equal(t, time.Minute, cfg.UploadExpiration)
	assert.Equal(t, int64(1024), cfg.UploadMaxSize)
	assert.Equal(t, []string{"png", "gif"}, cfg.SupportedExtensions)
	assert.Equal(t, "http://localstack:4566", cfg.S3PresignEndpoint)
	assert.Equal(t, "http://example.test", cfg.BaseURL)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("DOGS_IMAGE_UPLOAD_MAX_SIZE", "5MB")
	assert.Equal(t, int64(5242880), Load().UploadMaxSize)
}

func TestValidate(t *testing.T) {
	t.Setenv("DOGS_IMAGES_BUCKET", "")
	t.Setenv("DOGS_STORAGE_DRIVER", "ftp")
	t.Setenv("DOGS_RECONCILE_WORKERS", "0")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGS_IMAGES_BUCKET is required")
	assert.Contains(t, err.Error(), `DOGS_STORAGE_DRIVER "ftp"`)
	assert.Contains(t, err.Error(), "DOGS_RECONCILE_WORKERS")
}

func TestValidateFileSystemNeedsSigningKey(t *testing.T) {
	t.Setenv("DOGS_IMAGES_BUCKET", "local")
	t.Setenv("DOGS_STORAGE_DRIVER", StorageFileSystem)

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOGS_UPLOAD_SIGNING_KEY")

	t.Setenv("DOGS_UPLOAD_SIGNING_KEY", "secret")
	assert.NoError(t, Load().Validate())
}
