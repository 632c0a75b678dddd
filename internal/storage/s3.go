package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/savak1990/my-dogs/internal/apperr"
)

// Compile-time check that S3 implements ObjectStore.
var _ ObjectStore = (*S3)(nil)

// S3Options configures the S3 object store. Endpoint and PresignEndpoint are
// optional; when set, path-style addressing is used (LocalStack, MinIO, R2).
// PresignEndpoint is the host clients reach, which may differ from the one
// the service uses.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	PresignEndpoint string
	AccessKeyID     string
	SecretAccessKey string
}

// S3 implements ObjectStore on Amazon S3 or an S3-compatible service.
type S3 struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3 builds an S3 store. Connect and response-header timeouts are short
// and retries are capped at two attempts so a slow store fails fast.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	// A buildable client lets the SDK apply AWS_CA_BUNDLE to the transport.
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = 2 * time.Second
		}).
		WithTransportOptions(func(t *http.Transport) {
			t.TLSHandshakeTimeout = 2 * time.Second
			t.ResponseHeaderTimeout = 5 * time.Second
			t.MaxIdleConnsPerHost = 16
		})

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithHTTPClient(httpClient),
		config.WithRetryMaxAttempts(2),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, withEndpoint(opts.Endpoint))

	presignEndpoint := opts.PresignEndpoint
	if presignEndpoint == "" {
		presignEndpoint = opts.Endpoint
	}
	presignClient := s3.NewPresignClient(s3.NewFromConfig(cfg, withEndpoint(presignEndpoint)))

	return &S3{bucket: opts.Bucket, client: client, presign: presignClient}, nil
}

func withEndpoint(endpoint string) func(*s3.Options) {
	return func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}
}

func (s *S3) Bucket() string {
	return s.bucket
}

// PresignUpload presigns a PutObject for req.Key. The returned Content-Type
// header is what the object should be stored with; the URL signs only the
// host, so S3 does not enforce it.
func (s *S3) PresignUpload(ctx context.Context, req UploadRequest) (*UploadCredential, error) {
	signed, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(req.Key),
		ContentType: aws.String(req.ContentType),
	}, s3.WithPresignExpires(req.ExpiresIn))
	if err != nil {
		return nil, apperr.Unavailable("PresignUpload", err)
	}

	return &UploadCredential{
		Method:    signed.Method,
		URL:       signed.URL,
		Headers:   map[string]string{"Content-Type": req.ContentType},
		MaxSize:   req.MaxSize,
		ExpiresIn: req.ExpiresIn,
	}, nil
}

func (s *S3) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, apperr.Unavailable("Exists", err)
}

func (s *S3) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return apperr.Unavailable("Delete", err)
	}
	return nil
}

// HealthCheck verifies the upload bucket is reachable.
func (s *S3) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return apperr.Unavailable("HealthCheck", err)
}

// isNotFound recognises the several shapes a missing object takes: the
// typed HeadObject error, a NoSuchKey API error, or a bare 404.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
