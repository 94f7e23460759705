package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/config"
)

const updatedAtMetaKey = "updated_at"

// S3Cache implements Store with one object per key in an S3 bucket
type S3Cache struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
	ttl      time.Duration
}

// NewS3Client builds an S3 client. Static credentials and a custom endpoint are optional.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// NewS3 creates a new S3 cache
func NewS3(bucket string, client *s3.Client, ttl time.Duration) *S3Cache {
	return &S3Cache{
		bucket:   bucket,
		client:   client,
		uploader: manager.NewUploader(client),
		ttl:      ttl,
	}
}

// Get retrieves the object if it exists and is not expired
func (s *S3Cache) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	if isExpired(parseUpdatedAt(out.Metadata), s.ttl) {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			logrus.Errorf("Failed to remove expired cache object %s: %v", key, err)
		}
		return nil, nil
	}

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache object: %w", err)
	}
	return body, nil
}

// Set uploads the value, recording when it was written
func (s *S3Cache) Set(ctx context.Context, key string, value []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			updatedAtMetaKey: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload cache object: %w", err)
	}
	logrus.Debugf("Cached data in s3://%s/%s", s.bucket, key)
	return nil
}

// Init checks the bucket is reachable
func (s *S3Cache) Init(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("failed to access bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Close is a no-op
func (s *S3Cache) Close() error {
	return nil
}

func parseUpdatedAt(meta map[string]string) time.Time {
	if meta == nil {
		return time.Time{}
	}
	val, ok := meta[updatedAtMetaKey]
	if !ok {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
