// Package blob fetches and publishes split files in S3-compatible object storage.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"prep_server/core/port/out"
	"prep_server/pkg/apperr"
	"prep_server/pkg/resilience"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const defaultPartSize = 10 * 1024 * 1024

// Config holds bucket and connection settings.
type Config struct {
	Bucket    string
	Prefix    string // optional key prefix, e.g. "datasets/"
	Endpoint  string // "http://127.0.0.1:9000" for minio; empty for AWS
	Region    string
	AccessKey string
	SecretKey string

	PartSize    int64
	MaxRetries  uint64
	BaseBackoff time.Duration
}

// NewClient builds an S3 client. Without keys requests are anonymous, which
// is enough for public dataset buckets.
func NewClient(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return s3.NewFromConfig(aws.Config{Region: region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		} else {
			o.Credentials = aws.AnonymousCredentials{}
		}
		// go-retry owns retries.
		o.RetryMaxAttempts = 1
	})
}

// S3Store implements out.BlobStore.
type S3Store struct {
	cfg        Config
	downloader *manager.Downloader
	uploader   *manager.Uploader
	breaker    *resilience.CircuitBreaker
	log        zerolog.Logger
}

var _ out.BlobStore = (*S3Store)(nil)

// NewS3Store creates a store over client. breaker may be nil.
func NewS3Store(client *s3.Client, cfg Config, breaker *resilience.CircuitBreaker, log zerolog.Logger) *S3Store {
	if cfg.PartSize <= 0 {
		cfg.PartSize = defaultPartSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &S3Store{
		cfg: cfg,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = cfg.PartSize
		}),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = cfg.PartSize
		}),
		breaker: breaker,
		log:     log.With().Str("component", "s3_store").Str("bucket", cfg.Bucket).Logger(),
	}
}

func (s *S3Store) key(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return path.Join(s.cfg.Prefix, name)
}

// Fetch downloads an object. Missing objects fail with NotFound and are not retried.
func (s *S3Store) Fetch(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	var data []byte

	err := s.withRetry(ctx, key, func(ctx context.Context) error {
		buf := manager.NewWriteAtBuffer([]byte{})
		_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		data = buf.Bytes()
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key))
		}
		return nil, apperr.UpstreamFailure("s3", fmt.Errorf("failed to fetch %s: %w", key, err))
	}

	s.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("fetched object")
	return data, nil
}

// Put uploads an object, using multipart upload for large bodies.
func (s *S3Store) Put(ctx context.Context, name string, body []byte) error {
	key := s.key(name)
	err := s.withRetry(ctx, key, func(ctx context.Context) error {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(body),
		})
		return err
	})
	if err != nil {
		return apperr.UpstreamFailure("s3", fmt.Errorf("failed to upload %s: %w", key, err))
	}
	s.log.Info().Str("key", key).Int("bytes", len(body)).Msg("uploaded object")
	return nil
}

// withRetry runs task behind the breaker with Fibonacci backoff.
func (s *S3Store) withRetry(ctx context.Context, key string, task func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewFibonacci(s.cfg.BaseBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.guard(func() error { return task(ctx) })
		if err == nil {
			return nil
		}
		if isNotFound(err) || resilience.IsOpen(err) || errors.Is(err, context.Canceled) {
			return err
		}
		s.log.Warn().Err(err).Str("key", key).Msg("s3 request failed, will retry")
		return retry.RetryableError(err)
	})
}

// guard runs fn behind the breaker. Missing objects do not count as failures.
func (s *S3Store) guard(fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	var notFound error
	err := s.breaker.Execute(func() error {
		err := fn()
		if isNotFound(err) {
			notFound = err
			return nil
		}
		return err
	})
	if notFound != nil {
		return notFound
	}
	return err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
