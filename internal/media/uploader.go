package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/pkg/logger"
)

// Uploader stores a media blob and returns its remote URL. The sync engine
// only consumes the final URL or a failure; progress reporting stays with
// the caller.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// MinioUploader implements Uploader against a MinIO/S3 bucket
type MinioUploader struct {
	client   *minio.Client
	endpoint string
	bucket   string
	secure   bool
}

// NewMinioUploader creates a MinIO-backed media uploader
func NewMinioUploader(endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioUploader{
		client:   client,
		endpoint: endpoint,
		bucket:   bucket,
		secure:   secure,
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist yet
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload stores the blob under a timestamped object name and returns its URL
func (u *MinioUploader) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := fmt.Sprintf("media/%d_%s", time.Now().UnixMilli(), filename)

	_, err := u.client.PutObject(ctx, u.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	scheme := "http"
	if u.secure {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName)

	logger.Debug("Media uploaded",
		zap.String("object", objectName),
		zap.Int64("size", size),
	)
	return url, nil
}
