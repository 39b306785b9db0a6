package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	internalConfig "github.com/locolive/playback/internal/config"
)

// S3Store resolves media kept in an S3-compatible bucket (R2). With a public
// URL configured objects are linked directly, otherwise each URL is presigned.
type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	expiry    time.Duration
}

// NewS3Store creates a new S3/R2 media store
func NewS3Store(ctx context.Context, cfg internalConfig.StorageConfig) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	return newS3Store(client, cfg.Bucket, cfg.PublicURL, cfg.URLExpiry), nil
}

func newS3Store(client *s3.Client, bucket, publicURL string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		expiry:    expiry,
	}
}

func (s *S3Store) ResolveURL(ctx context.Context, ref string) (string, error) {
	if isAbsolute(ref) {
		return ref, nil
	}
	key := objectKey(ref, "")
	if key == "" {
		return "", errors.New("empty media reference")
	}

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) DeleteMedia(ctx context.Context, ref string) error {
	key := objectKey(ref, s.publicURL)
	if key == "" || isAbsolute(key) {
		return fmt.Errorf("media reference %q is not in bucket %s", ref, s.bucket)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from S3: %w", key, err)
	}
	return nil
}
