package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// GCSObjectRepository mirrors uploaded files into a Google Cloud Storage bucket.
type GCSObjectRepository struct {
	client     *storage.Client
	bucketName string
}

// NewGCSObjectRepository creates a new GCS object repository
func NewGCSObjectRepository(client *storage.Client, bucketName string) *GCSObjectRepository {
	return &GCSObjectRepository{
		client:     client,
		bucketName: bucketName,
	}
}

// Upload copies reader to key unless the object already exists.
func (r *GCSObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	location := fmt.Sprintf("gs://%s/%s", r.bucketName, key)
	obj := r.client.Bucket(r.bucketName).Object(key)

	_, err := obj.Attrs(ctx)
	switch {
	case err == nil:
		log.Debugf("%s already mirrored", location)
		return location, nil
	case !errors.Is(err, storage.ErrObjectNotExist):
		return "", fmt.Errorf("failed to stat %s: %w", location, err)
	}

	var proxyReader io.Reader = reader
	if !quiet {
		log.Debugf("Uploading to GCS: %s", location)
		bar := progressbar.DefaultBytes(sizeOf(reader), "mirroring to gcs")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, proxyReader); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}

	return location, nil
}

// GetBucketName returns the bucket name
func (r *GCSObjectRepository) GetBucketName() string {
	return r.bucketName
}

// GetStorageType returns the storage type
func (r *GCSObjectRepository) GetStorageType() string {
	return string(GCSType)
}
