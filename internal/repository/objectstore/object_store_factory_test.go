package objectstore

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestParseBucketConfig(t *testing.T) {
	tests := []struct {
		in      string
		want    BucketConfig
		wantErr bool
	}{
		{"s3://mirror", BucketConfig{Name: "mirror", Type: S3Type}, false},
		{"gs://mirror/", BucketConfig{Name: "mirror", Type: GCSType}, false},
		{"GS://mirror", BucketConfig{Name: "mirror", Type: GCSType}, false},
		{"s3:mirror", BucketConfig{Name: "mirror", Type: S3Type}, false},
		{"gcs:mirror", BucketConfig{Name: "mirror", Type: GCSType}, false},
		{"  mirror  ", BucketConfig{Name: "mirror", Type: S3Type}, false},
		{"", BucketConfig{}, true},
		{"s3://", BucketConfig{}, true},
		{"az://mirror", BucketConfig{}, true},
		{"azure:mirror", BucketConfig{}, true},
		{"s3:", BucketConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBucketConfig(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBucketConfig(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBucketConfig(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestObjectRepositoryFactory_CreateRepositories(t *testing.T) {
	f := NewObjectRepositoryFactory(aws.Config{Region: "us-east-1"})
	defer f.Close()

	repos, err := f.CreateRepositories(context.Background(), []string{"s3://one", "s3:two"})
	if err != nil {
		t.Fatalf("CreateRepositories() error = %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("CreateRepositories() returned %d repositories", len(repos))
	}
	for i, name := range []string{"one", "two"} {
		if repos[i].GetBucketName() != name || repos[i].GetStorageType() != "s3" {
			t.Errorf("repos[%d] = %s:%s", i, repos[i].GetStorageType(), repos[i].GetBucketName())
		}
	}

	if _, err := f.CreateRepositories(context.Background(), []string{"az://x"}); err == nil {
		t.Error("CreateRepositories() accepted an unsupported scheme")
	}
}

func TestSizeOf(t *testing.T) {
	r := bytes.NewReader([]byte("hello fyles"))
	r.Seek(6, 0)
	if got := sizeOf(r); got != 5 {
		t.Errorf("sizeOf() = %d, want 5", got)
	}
	if pos, _ := r.Seek(0, 1); pos != 6 {
		t.Errorf("sizeOf() moved the reader to %d", pos)
	}
	if got := sizeOf(strings.NewReader("x")); got != 1 {
		t.Errorf("sizeOf() = %d, want 1", got)
	}
	if got := sizeOf(bytes.NewBufferString("x")); got != -1 {
		t.Errorf("sizeOf() = %d, want -1", got)
	}
}
