package service

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"SlideToVideo-server/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// bucketAPI is the part of *minio.Client used to prepare the bucket.
type bucketAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// MinIOPublisher uploads finished artifacts to a bucket and hands out presigned URLs.
type MinIOPublisher struct {
	Client *minio.Client
	Bucket string
	Expiry time.Duration

	buckets     bucketAPI
	bucketMu    sync.Mutex
	bucketReady bool
}

func NewMinIOPublisher(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOPublisher, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	logger.InfoCF("minio", "client ready", map[string]any{"endpoint": endpoint, "bucket": bucket})
	return &MinIOPublisher{Client: client, Bucket: bucket, Expiry: 72 * time.Hour, buckets: client}, nil
}

// ensureBucket checks for the bucket once it has succeeded; failures are retried by the
// next call.
func (m *MinIOPublisher) ensureBucket(ctx context.Context) error {
	m.bucketMu.Lock()
	defer m.bucketMu.Unlock()
	if m.bucketReady {
		return nil
	}
	api := m.buckets
	if api == nil {
		api = m.Client
	}
	exists, err := api.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		logger.InfoCF("minio", "bucket created", map[string]any{"bucket": m.Bucket})
	}
	m.bucketReady = true
	return nil
}

// ObjectName is where a presentation artifact lives in the bucket.
func ObjectName(presentationID, path string) string {
	return fmt.Sprintf("presentations/%s/%s", presentationID, filepath.Base(path))
}

func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	return "application/octet-stream"
}

func (m *MinIOPublisher) Publish(ctx context.Context, presentationID, path string) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	object := ObjectName(presentationID, path)
	if _, err := m.Client.FPutObject(ctx, m.Bucket, object, path, minio.PutObjectOptions{
		ContentType: ContentType(path),
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	u, err := m.Client.PresignedGetObject(ctx, m.Bucket, object, m.Expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	logger.InfoCF("minio", "artifact uploaded", map[string]any{"object": object})
	return u.String(), nil
}
