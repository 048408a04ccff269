// Package storage retrieves uploaded invoice files. The S3 fetcher is
// the production path; the local fetcher serves development and tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "pharmacy-invoice-service/pkg/errors"
	"pharmacy-invoice-service/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Fetcher retrieves the bytes of an invoice file by its locator key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// S3Config holds the bucket settings for the S3 fetcher.
type S3Config struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Prefix string `json:"prefix,omitempty"`
}

// Validate checks the bucket configuration.
func (c *S3Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("s3 bucket is required")
	}
	return nil
}

// S3Fetcher reads invoice files from an S3 bucket.
type S3Fetcher struct {
	client *s3.Client
	config *S3Config
	logger logger.Logger
}

// NewS3Fetcher builds a fetcher using the ambient AWS credential chain.
func NewS3Fetcher(ctx context.Context, config *S3Config) (*S3Fetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "s3", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "aws credentials", err)
	}

	return &S3Fetcher{
		client: s3.NewFromConfig(awsCfg),
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("storage"),
	}, nil
}

// Fetch downloads one object. A missing key maps to object_not_found so
// callers can distinguish a bad locator from an outage.
func (f *S3Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	objectKey := key
	if f.config.Prefix != "" {
		objectKey = strings.TrimSuffix(f.config.Prefix, "/") + "/" + strings.TrimPrefix(key, "/")
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperrors.StorageError(apperrors.CodeObjectNotFound, objectKey, err)
		}
		return nil, apperrors.StorageError(apperrors.CodeFetchFailed, objectKey, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeFetchFailed, objectKey, err)
	}

	f.logger.WithFields(logger.Fields{
		"bucket": f.config.Bucket,
		"key":    objectKey,
		"bytes":  buf.Len(),
	}).Debug("Fetched invoice file")

	return buf.Bytes(), nil
}

// LocalFetcher reads invoice files from a directory tree laid out the
// same way as the bucket.
type LocalFetcher struct {
	Root string
}

// Fetch reads the file under the root directory.
func (f *LocalFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeFetchFailed, key, err)
	}

	path := filepath.Join(f.Root, filepath.FromSlash(strings.TrimPrefix(key, "/")))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.StorageError(apperrors.CodeObjectNotFound, key, err)
		}
		return nil, apperrors.StorageError(apperrors.CodeFetchFailed, key, err)
	}
	return data, nil
}
