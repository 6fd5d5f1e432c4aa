package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"epay/epay/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// File is an upload handed to the blob store.
type File struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

type MinIOClient struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, err
	}

	m := &MinIOClient{
		client:     client,
		bucket:     cfg.MinIOBucket,
		publicBase: publicBase(cfg),
	}
	if err := m.EnsureBucket(ctx, m.bucket); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (m *MinIOClient) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// Upload stores f under a fresh key inside folder and returns its public URL.
// An empty bucket means the configured default.
func (m *MinIOClient) Upload(ctx context.Context, f File, bucket, folder string) (string, error) {
	if bucket == "" {
		bucket = m.bucket
	}
	key := ObjectKey(folder, f.Name)

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	size := f.Size
	if size == 0 {
		size = -1
	}

	_, err := m.client.PutObject(ctx, bucket, key, f.Body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return m.PublicURL(bucket, key), nil
}

// PublicURL is the durable, unauthenticated URL of an object. The bucket
// must allow anonymous reads.
func (m *MinIOClient) PublicURL(bucket, key string) string {
	return PublicObjectURL(m.publicBase, bucket, key)
}

func PublicObjectURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, strings.Join(segments, "/"))
}

func publicBase(cfg config.Config) string {
	if cfg.MinIOPublicURL != "" {
		return cfg.MinIOPublicURL
	}
	scheme := "http"
	if cfg.MinIOUseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.MinIOEndpoint
}
