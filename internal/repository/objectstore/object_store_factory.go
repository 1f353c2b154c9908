// Package objectstore mirrors uploaded files into cloud object storage buckets.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectRepository defines the interface for object storage operations
type ObjectRepository interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
	GetBucketName() string
	GetStorageType() string
}

// RepositoryType represents the type of object storage
type RepositoryType string

const (
	S3Type  RepositoryType = "s3"
	GCSType RepositoryType = "gcs"
)

// BucketConfig holds configuration for a storage bucket
type BucketConfig struct {
	Name string
	Type RepositoryType
}

// ObjectRepositoryFactory creates object repository instances
type ObjectRepositoryFactory struct {
	awsConfig aws.Config

	gcsOnce   sync.Once
	gcsClient *storage.Client
	gcsErr    error
}

// NewObjectRepositoryFactory creates a new factory. The GCS client is only created once a GCS
// bucket is requested.
func NewObjectRepositoryFactory(awsConfig aws.Config) *ObjectRepositoryFactory {
	return &ObjectRepositoryFactory{
		awsConfig: awsConfig,
	}
}

// CreateRepository creates a repository based on bucket configuration
func (f *ObjectRepositoryFactory) CreateRepository(ctx context.Context, config BucketConfig) (ObjectRepository, error) {
	switch config.Type {
	case S3Type:
		return NewS3ObjectRepository(s3.NewFromConfig(f.awsConfig), config.Name), nil
	case GCSType:
		f.gcsOnce.Do(func() {
			f.gcsClient, f.gcsErr = storage.NewClient(ctx)
		})
		if f.gcsErr != nil {
			return nil, fmt.Errorf("GCS client not configured: %w", f.gcsErr)
		}
		return NewGCSObjectRepository(f.gcsClient, config.Name), nil
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", config.Type)
	}
}

// CreateRepositories parses and creates a repository for every bucket string.
func (f *ObjectRepositoryFactory) CreateRepositories(ctx context.Context, buckets []string) ([]ObjectRepository, error) {
	repos := make([]ObjectRepository, 0, len(buckets))
	for _, b := range buckets {
		config, err := ParseBucketConfig(b)
		if err != nil {
			return nil, err
		}
		repo, err := f.CreateRepository(ctx, config)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// Close releases the GCS client if one was created.
func (f *ObjectRepositoryFactory) Close() error {
	if f.gcsClient != nil {
		return f.gcsClient.Close()
	}
	return nil
}

// ParseBucketConfig parses bucket configuration from string
// Formats: "s3://bucket-name", "gs://bucket-name", "s3:bucket-name", "gcs:bucket-name" or
// "bucket-name" (defaults to S3)
func ParseBucketConfig(bucketStr string) (BucketConfig, error) {
	bucketStr = strings.TrimSpace(bucketStr)
	if bucketStr == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}

	// Handle URI format (s3://, gs://)
	if strings.Contains(bucketStr, "://") {
		parts := strings.SplitN(bucketStr, "://", 2)
		scheme := strings.ToLower(strings.TrimSpace(parts[0]))
		bucketName := strings.Trim(strings.TrimSpace(parts[1]), "/")

		if bucketName == "" {
			return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
		}

		var repoType RepositoryType
		switch scheme {
		case "s3":
			repoType = S3Type
		case "gs":
			repoType = GCSType
		default:
			return BucketConfig{}, fmt.Errorf("unsupported scheme: %s", scheme)
		}

		return BucketConfig{
			Name: bucketName,
			Type: repoType,
		}, nil
	}

	// Handle colon format (s3:bucket-name)
	parts := strings.SplitN(bucketStr, ":", 2)
	if len(parts) != 2 {
		return BucketConfig{
			Name: bucketStr,
			Type: S3Type,
		}, nil
	}

	repoType := RepositoryType(strings.ToLower(strings.TrimSpace(parts[0])))
	bucketName := strings.TrimSpace(parts[1])

	if bucketName == "" {
		return BucketConfig{}, fmt.Errorf("bucket name cannot be empty")
	}
	if repoType != S3Type && repoType != GCSType {
		return BucketConfig{}, fmt.Errorf("unsupported repository type: %s", repoType)
	}

	return BucketConfig{
		Name: bucketName,
		Type: repoType,
	}, nil
}
