// Package storage archives raw provider pages to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/idx"
	infraconfig "github.com/realty/backend/internal/infrastructure/config"
)

const defaultArchivePrefix = "idx-pages"

// Ensure S3PageArchive implements PageArchive
var _ idx.PageArchive = (*S3PageArchive)(nil)

// S3PageArchive writes each fetched provider page as one JSON object.
// It is compatible with any S3-compatible storage (AWS S3, RustFS, MinIO, etc.)
type S3PageArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3PageArchiveOption is a functional option for configuring S3PageArchive
type S3PageArchiveOption func(*S3PageArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3PageArchiveOption {
	return func(s *S3PageArchive) {
		s.logger = logger
	}
}

// NewS3PageArchive creates the archive from configuration
func NewS3PageArchive(cfg *infraconfig.StorageConfig, opts ...S3PageArchiveOption) (*S3PageArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultArchivePrefix
	}

	archive := &S3PageArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3PageArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// lost a creation race with another instance
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PageKey is the object key of one page of a run
func (s *S3PageArchive) PageKey(runID uuid.UUID, page int) string {
	return path.Join(s.prefix, runID.String(), fmt.Sprintf("page-%04d.json", page))
}

// ArchivePage stores the undecoded body of a provider page
func (s *S3PageArchive) ArchivePage(ctx context.Context, runID uuid.UUID, page int, body []byte) error {
	if page < 1 {
		return fmt.Errorf("invalid page number %d", page)
	}
	key := s.PageKey(runID, page)
	if err := s.upload(ctx, key, body, "application/json"); err != nil {
		return err
	}
	s.logger.Debug("archived provider page",
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return nil
}

func (s *S3PageArchive) upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(storageKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// ObjectExists checks if an object exists in storage.
func (s *S3PageArchive) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// some S3-compatible services report a missing key differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Bucket returns the bucket name
func (s *S3PageArchive) Bucket() string {
	return s.bucket
}
