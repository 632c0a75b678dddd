package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/savak1990/my-dogs/internal/apperr"
)

// Compile-time check that FileSystem implements ObjectStore.
var _ ObjectStore = (*FileSystem)(nil)

// Upload signature failures.
var (
	ErrSignatureInvalid = errors.New("invalid upload signature")
	ErrSignatureExpired = errors.New("upload signature expired")
)

// FileSystem implements ObjectStore on the local filesystem for development
// and tests. Objects live at <basePath>/<bucket>/<key>. Presigned uploads are
// HMAC-signed URLs served by the HTTP layer under /uploads/.
type FileSystem struct {
	basePath   string
	bucket     string
	baseURL    string
	signingKey []byte
	now        func() time.Time
}

// NewFileSystem creates a FileSystem store rooted at basePath. baseURL is
// the externally reachable origin of this service.
func NewFileSystem(basePath, bucket, baseURL string, signingKey []byte) *FileSystem {
	return &FileSystem{
		basePath:   basePath,
		bucket:     bucket,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		now:        time.Now,
	}
}

func (fs *FileSystem) Bucket() string {
	return fs.bucket
}

// objectPath maps bucket/key to a path, refusing keys that escape the
// bucket directory.
func (fs *FileSystem) objectPath(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	return filepath.Join(fs.basePath, bucket, filepath.FromSlash(key)), nil
}

// Put writes at most limit+1 bytes from data under key in the upload bucket
// using an atomic write (temp file + rename). It returns the number of bytes
// written; a result above limit means the upload was oversized.
func (fs *FileSystem) Put(ctx context.Context, key string, data io.Reader, limit int64) (int64, error) {
	dst, err := fs.objectPath(fs.bucket, key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, apperr.Unavailable("Put", fmt.Errorf("creating directory %s: %w", dir, err))
	}

	// Write to a temp file in the same directory for atomic rename.
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return 0, apperr.Unavailable("Put", fmt.Errorf("creating temp file: %w", err))
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(data, limit+1))
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, apperr.Unavailable("Put", fmt.Errorf("closing temp file: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, apperr.Unavailable("Put", fmt.Errorf("renaming temp file to %s: %w", dst, err))
	}

	// Rename succeeded; prevent deferred cleanup from removing the final file.
	tmpPath = ""

	return n, nil
}

// Exists checks whether the object exists on disk.
func (fs *FileSystem) Exists(_ context.Context, bucket, key string) (bool, error) {
	path, err := fs.objectPath(bucket, key)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperr.Unavailable("Exists", fmt.Errorf("checking file %s: %w", path, err))
}

// Delete removes the object. It is idempotent: deleting a missing object
// returns no error.
func (fs *FileSystem) Delete(_ context.Context, bucket, key string) error {
	path, err := fs.objectPath(bucket, key)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperr.Unavailable("Delete", fmt.Errorf("removing file %s: %w", path, err))
	}
	return nil
}

// HealthCheck ensures the bucket directory exists and is writable.
func (fs *FileSystem) HealthCheck(_ context.Context) error {
	dir := filepath.Join(fs.basePath, fs.bucket)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.Unavailable("HealthCheck", err)
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return apperr.Unavailable("HealthCheck", err)
	}
	f.Close()
	os.Remove(f.Name())
	return nil
}

// PresignUpload returns a signed PUT URL on this service for req.Key.
func (fs *FileSystem) PresignUpload(_ context.Context, req UploadRequest) (*UploadCredential, error) {
	if _, err := fs.objectPath(fs.bucket, req.Key); err != nil {
		return nil, apperr.Validation("PresignUpload", "%v", err)
	}
	exp := strconv.FormatInt(fs.now().Add(req.ExpiresIn).Unix(), 10)

	q := url.Values{}
	q.Set("exp", exp)
	q.Set("sig", fs.sign(req.Key, exp))

	return &UploadCredential{
		Method:    http.MethodPut,
		URL:       fs.baseURL + "/uploads/" + req.Key + "?" + q.Encode(),
		Headers:   map[string]string{"Content-Type": req.ContentType},
		MaxSize:   req.MaxSize,
		ExpiresIn: req.ExpiresIn,
	}, nil
}

// VerifyUpload checks the sig and exp query parameters of an upload URL
// for key.
func (fs *FileSystem) VerifyUpload(key, expStr, sigHex string) error {
	if sigHex == "" || expStr == "" {
		return ErrSignatureInvalid
	}
	expUnix, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return ErrSignatureInvalid
	}
	expected, _ := hex.DecodeString(fs.sign(key, expStr))
	if !hmac.Equal(sig, expected) {
		return ErrSignatureInvalid
	}
	if fs.now().Unix() > expUnix {
		return ErrSignatureExpired
	}
	return nil
}

func (fs *FileSystem) sign(key, exp string) string {
	mac := hmac.New(sha256.New, fs.signingKey)
	mac.Write([]byte(http.MethodPut + "\n" + fs.bucket + "/" + key + "\n" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
