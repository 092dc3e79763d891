package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/xhad/scribe/internal/models"
)

type BlobStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// BlobStore stores document bytes in an S3-compatible object store and
// resolves s3://bucket/key locators back to bytes.
type BlobStore struct {
	config BlobStoreConfig
	client *minio.Client
}

func NewWithConfig(ctx context.Context, config BlobStoreConfig) (*BlobStore, error) {
	if config.Bucket == "" {
		config.Bucket = "documents"
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %v", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %v", config.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %v", config.Bucket, err)
		}
	}

	return &BlobStore{
		config: config,
		client: client,
	}, nil
}

// Upload stores the file under key and returns its locator.
func (b *BlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	reader := bytes.NewReader(data)
	_, err := b.client.PutObject(ctx, b.config.Bucket, key, reader, int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %v", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", b.config.Bucket, key), nil
}

// Download fetches the bytes behind an s3://bucket/key locator.
func (b *BlobStore) Download(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := parseLocator(locator)
	if err != nil {
		return nil, &models.DownloadError{Locator: locator, Err: err}
	}

	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &models.DownloadError{Locator: locator, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &models.DownloadError{Locator: locator, Err: err}
	}

	return data, nil
}

// PresignedURL returns a temporary download URL for a stored object.
func (b *BlobStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = 5 * time.Minute
	}

	u, err := b.client.PresignedGetObject(ctx, b.config.Bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %v", key, err)
	}

	return u.String(), nil
}

func parseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("invalid locator: %v", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid locator %q: want s3://bucket/key", locator)
	}

	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid locator %q: missing key", locator)
	}

	return u.Host, key, nil
}
