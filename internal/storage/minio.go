package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/version"
)

// MinIOOptions configures an S3-compatible mirror.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectClient is the subset of *minio.Client used by MinIO.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO mirrors artifacts to a bucket.
type MinIO struct {
	client objectClient
	bucket string
	prefix string
}

// NewMinIO connects to the endpoint and ensures the bucket exists.
func NewMinIO(ctx context.Context, opts MinIOOptions) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	client.SetAppInfo(version.Name, version.String())
	return newMinIO(ctx, client, opts.Bucket, opts.Prefix)
}

func newMinIO(ctx context.Context, client objectClient, bucket, prefix string) (*MinIO, error) {
	m := &MinIO{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	logger.Debug("creating bucket", "bucket", m.bucket)
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Name returns the store name.
func (m *MinIO) Name() string {
	return "minio:" + m.bucket
}

// ObjectName maps a key to its object name in the bucket.
func (m *MinIO) ObjectName(key string) string {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if m.prefix == "" {
		return key
	}
	return m.prefix + "/" + key
}

// Put uploads data as an object.
func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) error {
	name := m.ObjectName(key)
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", m.bucket, name, err)
	}
	return nil
}
