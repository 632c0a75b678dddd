package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageS3         = "s3"
	StorageFileSystem = "filesystem"
)

type Config struct {
	ServiceName string
	ListenAddr  string
	BaseURL     string

	DBDSN string

	ImagesBucket      string
	StorageDriver     string
	StoragePath       string
	S3Endpoint        string
	S3PresignEndpoint string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	UploadSigningKey  string

	UploadExpiration    time.Duration
	UploadMaxSize       int64
	SupportedExtensions []string
	ReconcileWorkers    int
	RateLimitPerMinute  int
	ShutdownTimeout     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (when present) and then the process environment.
func Load() *Config {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	s3Endpoint := getEnv("DOGS_S3_ENDPOINT", "")
	return &Config{
		ServiceName: getEnv("DOGS_SERVICE_NAME", "dogs-service"),
		ListenAddr:  getEnv("DOGS_LISTEN_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getEnv("DOGS_BASE_URL", "http://localhost:8080"), "/"),

		DBDSN: getEnv("DOGS_DB_DSN", "file:/data/db/dogs.db"),

		ImagesBucket:      getEnv("DOGS_IMAGES_BUCKET", ""),
		StorageDriver:     getEnv("DOGS_STORAGE_DRIVER", StorageS3),
		StoragePath:       getEnv("DOGS_STORAGE_PATH", "/data/images"),
		S3Endpoint:        s3Endpoint,
		S3PresignEndpoint: getEnv("DOGS_S3_PRESIGN_ENDPOINT", s3Endpoint),
		S3Region:          getEnv("DOGS_S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("DOGS_S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("DOGS_S3_SECRET_ACCESS_KEY", ""),
		UploadSigningKey:  getEnv("DOGS_UPLOAD_SIGNING_KEY", ""),

		UploadExpiration:    time.Duration(getEnvInt("DOGS_IMAGE_UPLOAD_EXPIRATION_SECS", 3600)) * time.Second,
		UploadMaxSize:       int64(getEnvInt("DOGS_IMAGE_UPLOAD_MAX_SIZE", 5*1024*1024)),
		SupportedExtensions: getEnvList("DOGS_SUPPORTED_IMAGE_EXTENSIONS", []string{"jpg", "jpeg", "png", "webp"}),
		ReconcileWorkers:    getEnvInt("DOGS_RECONCILE_WORKERS", 8),
		RateLimitPerMinute:  getEnvInt("DOGS_RATE_LIMIT_PER_MINUTE", 120),
		ShutdownTimeout:     time.Duration(getEnvInt("DOGS_SHUTDOWN_TIMEOUT_SECS", 10)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ImagesBucket == "" {
		errs = append(errs, errors.New("DOGS_IMAGES_BUCKET is required"))
	}
	switch c.StorageDriver {
	case StorageS3:
	case StorageFileSystem:
		if c.UploadSigningKey == "" {
			errs = append(errs, errors.New("DOGS_UPLOAD_SIGNING_KEY is required for the filesystem store"))
		}
	default:
		errs = append(errs, fmt.Errorf("DOGS_STORAGE_DRIVER %q: must be %q or %q", c.StorageDriver, StorageS3, StorageFileSystem))
	}
	if c.UploadExpiration <= 0 {
		errs = append(errs, errors.New("DOGS_IMAGE_UPLOAD_EXPIRATION_SECS must be positive"))
	}
	if c.UploadMaxSize <= 0 {
		errs = append(errs, errors.New("DOGS_IMAGE_UPLOAD_MAX_SIZE must be positive"))
	}
	if len(c.SupportedExtensions) == 0 {
		errs = append(errs, errors.New("DOGS_SUPPORTED_IMAGE_EXTENSIONS must not be empty"))
	}
	if c.ReconcileWorkers <= 0 {
		errs = append(errs, errors.New("DOGS_RECONCILE_WORKERS must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvList splits a comma-separated value, normalizing each element to
// lower case without a leading dot.
func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
