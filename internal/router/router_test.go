package router_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/savak1990/my-dogs/internal/config"
	"github.com/savak1990/my-dogs/internal/database"
	"github.com/savak1990/my-dogs/internal/handler"
	"github.com/savak1990/my-dogs/internal/keycodec"
	"github.com/savak1990/my-dogs/internal/metrics"
	"github.com/savak1990/my-dogs/internal/model"
	"github.com/savak1990/my-dogs/internal/reconciler"
	"github.com/savak1990/my-dogs/internal/router"
	"github.com/savak1990/my-dogs/internal/service"
	"github.com/savak1990/my-dogs/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testOwner  = "9d3b2a1c-4e5f-4a6b-8c7d-1e2f3a4b5c6d"
	testBucket = "dogs-images"
)

type testEnv struct {
	ts      *httptest.Server
	db      *database.SQLDB
	dataDir string
}

// newTestEnv serves the full router over the filesystem store, so presigned
// uploads go back through /uploads/*.
func newTestEnv(t *testing.T, maxSize int64) *testEnv {
	t.Helper()

	db, err := database.Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dataDir := t.TempDir()
	cfg := &config.Config{
		ServiceName:         "dogs-service",
		BaseURL:             "http://dogs.example",
		ImagesBucket:        testBucket,
		StorageDriver:       config.StorageFileSystem,
		StoragePath:         dataDir,
		UploadSigningKey:    "test-signing-key",
		UploadExpiration:    10 * time.Minute,
		UploadMaxSize:       maxSize,
		SupportedExtensions: []string{"jpg", "png"},
		ReconcileWorkers:    2,
	}

	store := storage.NewFileSystem(cfg.StoragePath, cfg.ImagesBucket, cfg.BaseURL, []byte(cfg.UploadSigningKey))
	logger := zap.NewNop()
	m := metrics.New()

	h := &handler.Handler{
		Dogs: service.NewDogService(db, logger),
		Intents: service.NewUploadIntentService(db, store, service.IntentConfig{
			Extensions: cfg.SupportedExtensions,
			Expiration: cfg.UploadExpiration,
			MaxSize:    cfg.UploadMaxSize,
		}, m, logger),
		Checks:     service.NewHealthService(cfg.ServiceName, db, store, logger),
		Reconciler: reconciler.New(db, store, reconciler.Config{MaxSize: cfg.UploadMaxSize, Workers: cfg.ReconcileWorkers}, m, logger),
		Uploads:    store,
		Config:     cfg,
		Logger:     logger,
	}

	ts := httptest.NewServer(router.New(h, m).Router)
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, dataDir: dataDir}
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

// uploadURL points a presigned URL at the test server.
func (e *testEnv) uploadURL(t *testing.T, presigned string) string {
	t.Helper()
	u, err := url.Parse(presigned)
	require.NoError(t, err)
	return e.ts.URL + u.RequestURI()
}

func (e *testEnv) put(t *testing.T, target string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

type intentResult struct {
	Image struct {
		ImageID int64  `json:"image_id"`
		Status  string `json:"status"`
	} `json:"image"`
	UploadInstructions struct {
		Method       string `json:"method"`
		PresignedURL string `json:"presigned_url"`
	} `json:"upload_instructions"`
}

type uploadResult struct {
	Key         string `json:"key"`
	FinalStatus string `json:"final_status"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

func (e *testEnv) newIntent(t *testing.T) intentResult {
	t.Helper()
	resp := e.post(t, "/users/"+testOwner+"/dogs", `{"name":"Rex","age":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/users/"+testOwner+"/dogs/1/images", `{"image_extension":"jpg"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out intentResult
	decode(t, resp, &out)
	require.Equal(t, http.MethodPut, out.UploadInstructions.Method)
	return out
}

func (e *testEnv) objectPath(key string) string {
	return filepath.Join(e.dataDir, testBucket, filepath.FromSlash(key))
}

// ---------------------------------------------------------------------------
// Upload lifecycle
// ---------------------------------------------------------------------------

func TestUploadLifecycle(t *testing.T) {
	env := newTestEnv(t, 1024)
	intent := env.newIntent(t)
	assert.Equal(t, "PENDING", intent.Image.Status)

	key := keycodec.EncodeStorageKey(testOwner, 1, intent.Image.ImageID, "jpg")
	target := env.uploadURL(t, intent.UploadInstructions.PresignedURL)

	resp := env.put(t, target, strings.NewReader(strings.Repeat("a", 1000)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res uploadResult
	decode(t, resp, &res)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, "UPLOADED", res.FinalStatus)

	data, err := os.ReadFile(env.objectPath(key))
	require.NoError(t, err)
	assert.Len(t, data, 1000)

	img, err := env.db.GetImage(context.Background(), testOwner, 1, intent.Image.ImageID)
	require.NoError(t, err)
	assert.Equal(t, model.ImageStatusUploaded, img.Status)
	assert.Nil(t, img.ExpiresAt)

	// A second PUT of the same URL leaves the terminal record alone.
	resp = env.put(t, target, strings.NewReader("again"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &res)
	assert.Equal(t, "UPLOADED", res.FinalStatus)

	img, err = env.db.GetImage(context.Background(), testOwner, 1, intent.Image.ImageID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), img.Version)

	resp, err = http.Get(env.ts.URL + "/users/" + testOwner + "/dogs")
	require.NoError(t, err)
	var dogs []struct {
		Images []struct {
			Status string `json:"status"`
		} `json:"images"`
	}
	decode(t, resp, &dogs)
	require.Len(t, dogs, 1)
	require.Len(t, dogs[0].Images, 1)
	assert.Equal(t, "UPLOADED", dogs[0].Images[0].Status)
}

func TestUploadRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, 1024)
	intent := env.newIntent(t)

	u, err := url.Parse(env.uploadURL(t, intent.UploadInstructions.PresignedURL))
	require.NoError(t, err)
	q := u.Query()
	q.Set("sig", strings.Repeat("0", 64))
	u.RawQuery = q.Encode()

	resp := env.put(t, u.String(), strings.NewReader("x"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The signature covers the key, so it cannot be replayed on another one.
	other := strings.Replace(env.uploadURL(t, intent.UploadInstructions.PresignedURL), "/images/1.jpg", "/images/2.jpg", 1)
	resp = env.put(t, other, strings.NewReader("x"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadDeclaredTooLarge(t *testing.T) {
	env := newTestEnv(t, 16)
	intent := env.newIntent(t)
	key := keycodec.EncodeStorageKey(testOwner, 1, intent.Image.ImageID, "jpg")

	resp := env.put(t, env.uploadURL(t, intent.UploadInstructions.PresignedURL), strings.NewReader(strings.Repeat("a", 100)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	resp.Body.Close()

	_, err := os.Stat(env.objectPath(key))
	assert.True(t, os.IsNotExist(err))

	img, err := env.db.GetImage(context.Background(), testOwner, 1, intent.Image.ImageID)
	require.NoError(t, err)
	assert.Equal(t, model.ImageStatusPending, img.Status)
}

func TestUploadStreamedTooLarge(t *testing.T) {
	env := newTestEnv(t, 16)
	intent := env.newIntent(t)
	key := keycodec.EncodeStorageKey(testOwner, 1, intent.Image.ImageID, "jpg")

	// Hiding the reader type leaves the length unknown, so the body is
	// sent chunked and the limit is only found while storing.
	body := io.MultiReader(strings.NewReader(strings.Repeat("a", 100)))
	resp := env.put(t, env.uploadURL(t, intent.UploadInstructions.PresignedURL), body)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var res uploadResult
	decode(t, resp, &res)
	assert.Equal(t, "size exceeds limit: 17/16", res.Message)

	_, err := os.Stat(env.objectPath(key))
	assert.True(t, os.IsNotExist(err))

	img, err := env.db.GetImage(context.Background(), testOwner, 1, intent.Image.ImageID)
	require.NoError(t, err)
	assert.Equal(t, model.ImageStatusDeleted, img.Status)
	assert.Equal(t, "size exceeds limit: 17/16", img.StatusReason)
}

func TestHealthOverFileSystem(t *testing.T) {
	env := newTestEnv(t, 1024)

	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
