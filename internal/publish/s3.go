// Package publish uploads finished documents to S3-compatible storage.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/spherical/pptx-builder/internal/domain"
)

// ContentTypePPTX is the media type of a .pptx package.
const ContentTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// ObjectStore is the subset of the minio client used by Publisher.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Config holds connection settings.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	Secure    bool
}

// Publisher uploads documents into a single bucket.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	host   string
}

// NewS3Publisher connects to the endpoint and checks the bucket exists.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*Publisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, domain.PublishError("failed to init S3 client", err)
	}

	scheme := "https"
	if !cfg.Secure {
		scheme = "http"
	}
	return NewPublisher(ctx, client, cfg.Bucket, cfg.Prefix, fmt.Sprintf("%s://%s", scheme, cfg.Endpoint))
}

// NewPublisher wraps an existing object store.
func NewPublisher(ctx context.Context, store ObjectStore, bucket, prefix, host string) (*Publisher, error) {
	exists, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return nil, domain.PublishError("failed to check bucket", err)
	}
	if !exists {
		return nil, domain.PublishError(fmt.Sprintf("bucket %q does not exist", bucket), nil)
	}

	return &Publisher{
		store:  store,
		bucket: bucket,
		prefix: prefix,
		host:   strings.TrimSuffix(host, "/"),
	}, nil
}

// Publish uploads the file at localPath and returns its public URL.
func (p *Publisher) Publish(ctx context.Context, localPath, runID string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", domain.PublishError(fmt.Sprintf("cannot read %s", localPath), err)
	}

	key := p.ObjectKey(localPath, runID)
	_, err := p.store.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  ContentTypePPTX,
		UserMetadata: map[string]string{"uploaded-at": time.Now().UTC().Format(time.RFC3339), "run-id": runID},
	})
	if err != nil {
		return "", domain.PublishError(fmt.Sprintf("upload of %s failed", key), err)
	}

	return p.publicURL(key), nil
}

// ObjectKey is prefix/runID/basename.
func (p *Publisher) ObjectKey(localPath, runID string) string {
	return path.Join(p.prefix, runID, filepath.Base(localPath))
}

func (p *Publisher) publicURL(key string) string {
	escapedKey := url.PathEscape(filepath.ToSlash(key))
	return fmt.Sprintf("%s/%s/%s", p.host, p.bucket, escapedKey)
}
