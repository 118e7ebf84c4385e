package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/vigila/backend/config"
	"github.com/vigila/backend/pkg/metrics"
)

// S3 stores videos in an S3-compatible bucket (MinIO, AWS) through aws-sdk-go-v2.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      config.ObjectStoreConfig
	logger   *zap.Logger
}

var _ ObjectStore = (*S3)(nil)

// NewS3 creates an S3 client pointed at the configured endpoint with static credentials and path-style addressing.
func NewS3(ctx context.Context, cfg config.ObjectStoreConfig, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint())
		o.UsePathStyle = true
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	logger.Info("S3 client configured", zap.String("endpoint", cfg.Endpoint()), zap.String("bucket", cfg.Bucket))
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

func (s *S3) Enabled() bool  { return true }
func (s *S3) Bucket() string { return s.cfg.Bucket }

// Ping checks that the bucket is reachable.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	return err
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err == nil {
		s.logger.Info("bucket already exists", zap.String("bucket", s.cfg.Bucket))
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("head bucket: %w", err)
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(s.cfg.Bucket)}
	if s.cfg.Region != "" && s.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.cfg.Region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	s.logger.Info("bucket created", zap.String("bucket", s.cfg.Bucket))
	return nil
}

// PutObject streams the local file to key.
func (s *S3) PutObject(ctx context.Context, key, localPath, contentType string) (err error) {
	defer metrics.ObserveStorage("put", time.Now(), &err)

	f, err := os.Open(localPath)
	if err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("open local file: %w", err)}
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// GetObjectStream returns the object body for streaming. Caller must close the body.
func (s *S3) GetObjectStream(ctx context.Context, key string) (obj *Object, err error) {
	defer metrics.ObserveStorage("get", time.Now(), &err)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &ReadError{Key: key, NotFound: isNotFound(err), Err: err}
	}
	obj = &Object{Body: out.Body, Size: -1, ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// DeleteObject removes an object.
func (s *S3) DeleteObject(ctx context.Context, key string) (err error) {
	defer metrics.ObserveStorage("delete", time.Now(), &err)

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var (
		nf     *types.NotFound
		nsk    *types.NoSuchKey
		nsb    *types.NoSuchBucket
		apiErr smithy.APIError
		respE  *awshttp.ResponseError
	)
	if errors.As(err, &nf) || errors.As(err, &nsk) || errors.As(err, &nsb) {
		return true
	}
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return errors.As(err, &respE) && respE.HTTPStatusCode() == http.StatusNotFound
}
