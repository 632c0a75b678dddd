package storage

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBucket = "dogs-images"
	testKey    = "users/u-1/dogs/1/images/2.jpg"
)

func newTestFileSystem(t *testing.T) *FileSystem {
	t.Helper()
	return NewFileSystem(t.TempDir(), testBucket, "http://localhost:8080/", []byte("test-secret"))
}

func TestPut(t *testing.T) {
	fs := newTestFileSystem(t)
	data := []byte("hello, image data")

	n, err := fs.Put(context.Background(), testKey, bytes.NewReader(data), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	// Verify the file exists on disk at the expected path.
	content, err := os.ReadFile(filepath.Join(fs.basePath, testBucket, filepath.FromSlash(testKey)))
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func TestPutStopsOneByteOverLimit(t *testing.T) {
	fs := newTestFileSystem(t)

	n, err := fs.Put(context.Background(), testKey, strings.NewReader(strings.Repeat("x", 100)), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
}

func TestPutRejectsEscapingKeys(t *testing.T) {
	fs := newTestFileSystem(t)
	for _, key := range []string{"", "/abs", "a/../../etc", "a//b", "./a"} {
		_, err := fs.Put(context.Background(), key, strings.NewReader("x"), 10)
		assert.Error(t, err, key)
	}
}

func TestExistsAndDelete(t *testing.T) {
	fs := newTestFileSystem(t)
	ctx := context.Background()

	// Should not exist yet.
	exists, err := fs.Exists(ctx, testBucket, testKey)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = fs.Put(ctx, testKey, strings.NewReader("exists"), 100)
	require.NoError(t, err)

	exists, err = fs.Exists(ctx, testBucket, testKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// Other buckets are separate namespaces.
	exists, err = fs.Exists(ctx, "other", testKey)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fs.Delete(ctx, testBucket, testKey))
	exists, err = fs.Exists(ctx, testBucket, testKey)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing object is idempotent.
	assert.NoError(t, fs.Delete(ctx, testBucket, testKey))
}

func TestHealthCheck(t *testing.T) {
	fs := newTestFileSystem(t)
	assert.NoError(t, fs.HealthCheck(context.Background()))

	// A regular file where the base directory should be.
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	broken := NewFileSystem(file, testBucket, "http://x", nil)
	assert.True(t, errors.Is(broken.HealthCheck(context.Background()), apperr.ErrStoreUnavailable))
}

// ---------------------------------------------------------------------------
// Signed upload URLs
// ---------------------------------------------------------------------------

func TestPresignUploadRoundTrip(t *testing.T) {
	fs := newTestFileSystem(t)
	now := time.Unix(1_700_000_000, 0)
	fs.now = func() time.Time { return now }

	cred, err := fs.PresignUpload(context.Background(), UploadRequest{
		Key:         testKey,
		ContentType: "image/jpeg",
		ExpiresIn:   time.Hour,
		MaxSize:     5242880,
	})
	require.NoError(t, err)
	assert.Equal(t, "PUT", cred.Method)
	assert.Equal(t, "image/jpeg", cred.Headers["Content-Type"])
	assert.Equal(t, int64(5242880), cred.MaxSize)
	assert.Equal(t, time.Hour, cred.ExpiresIn)

	u, err := url.Parse(cred.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.Equal(t, "/uploads/"+testKey, u.Path)

	exp, sig := u.Query().Get("exp"), u.Query().Get("sig")
	assert.Equal(t, "1700003600", exp)
	assert.NoError(t, fs.VerifyUpload(testKey, exp, sig))

	// Signature is bound to the key.
	assert.ErrorIs(t, fs.VerifyUpload("users/u-1/dogs/1/images/3.jpg", exp, sig), ErrSignatureInvalid)
	// And to the expiry.
	assert.ErrorIs(t, fs.VerifyUpload(testKey, "1800000000", sig), ErrSignatureInvalid)
	assert.ErrorIs(t, fs.VerifyUpload(testKey, exp, ""), ErrSignatureInvalid)
	assert.ErrorIs(t, fs.VerifyUpload(testKey, exp, "zz"), ErrSignatureInvalid)

	fs.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.ErrorIs(t, fs.VerifyUpload(testKey, exp, sig), ErrSignatureExpired)
}

func TestPresignUploadRejectsBadKey(t *testing.T) {
	fs := newTestFileSystem(t)
	_, err := fs.PresignUpload(context.Background(), UploadRequest{Key: "../x", ExpiresIn: time.Minute})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestContentTypeForExtension(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForExtension("jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeForExtension("jpeg"))
	assert.Equal(t, "image/png", ContentTypeForExtension("png"))
	assert.Equal(t, "image/gif", ContentTypeForExtension("gif"))
	assert.Equal(t, "image/webp", ContentTypeForExtension("webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExtension("heic"))
}
