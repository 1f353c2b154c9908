package objectstore

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// S3ObjectRepository mirrors uploaded files into an S3 bucket.
type S3ObjectRepository struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
}

// NewS3ObjectRepository initializes a new S3ObjectRepository.
func NewS3ObjectRepository(client *s3.Client, bucketName string) *S3ObjectRepository {
	return &S3ObjectRepository{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucketName: bucketName,
	}
}

// GetBucketName returns the bucket name.
func (r *S3ObjectRepository) GetBucketName() string {
	return r.bucketName
}

// GetStorageType returns the object store type.
func (r *S3ObjectRepository) GetStorageType() string {
	return string(S3Type)
}

// Upload copies reader to key. Keys are content addressed, so an existing object is left alone.
func (r *S3ObjectRepository) Upload(ctx context.Context, key string, reader io.Reader, quiet bool) (string, error) {
	location := "s3://" + r.bucketName + "/" + key

	exists, err := r.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		log.Debugf("%s already mirrored", location)
		return location, nil
	}

	var proxyReader io.Reader = reader
	if !quiet {
		bar := progressbar.DefaultBytes(sizeOf(reader), "mirroring to s3")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	_, err = r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
		Body:   proxyReader,
	})
	if err != nil {
		return "", err
	}
	return location, nil
}

func (r *S3ObjectRepository) exists(ctx context.Context, key string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}
