// Package storagetest provides an in-memory ObjectStore for tests.
package storagetest

import (
	"context"
	"net/http"
	"sync"

	"github.com/savak1990/my-dogs/internal/storage"
)

// Compile-time check that Fake implements storage.ObjectStore.
var _ storage.ObjectStore = (*Fake)(nil)

// Fake is an in-memory ObjectStore. Error fields, when set, are returned by
// the matching operation.
type Fake struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]int64
	deletes []string

	PresignErr error
	ExistsErr  error
	DeleteErr  error
	HealthErr  error
}

func New(bucket string) *Fake {
	return &Fake{bucket: bucket, objects: map[string]int64{}}
}

func (f *Fake) Bucket() string { return f.bucket }

// Put records an object as present.
func (f *Fake) Put(bucket, key string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = size
}

// Has reports whether the object is present.
func (f *Fake) Has(bucket, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[bucket+"/"+key]
	return ok
}

// Deletes returns the keys passed to Delete, in call order.
func (f *Fake) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func (f *Fake) PresignUpload(_ context.Context, req storage.UploadRequest) (*storage.UploadCredential, error) {
	if f.PresignErr != nil {
		return nil, f.PresignErr
	}
	return &storage.UploadCredential{
		Method:    http.MethodPut,
		URL:       "https://" + f.bucket + ".s3.test/" + req.Key + "?sig=fake",
		Headers:   map[string]string{"Content-Type": req.ContentType},
		MaxSize:   req.MaxSize,
		ExpiresIn: req.ExpiresIn,
	}, nil
}

func (f *Fake) Exists(_ context.Context, bucket, key string) (bool, error) {
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	return f.Has(bucket, key), nil
}

func (f *Fake) Delete(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *Fake) HealthCheck(context.Context) error { return f.HealthErr }
