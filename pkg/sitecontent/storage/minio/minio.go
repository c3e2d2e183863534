package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // host:port, or a URL whose scheme sets UseSSL
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PublicURL       string // Optional base URL objects are served from
	CacheControl    string

	CreateBucketIfNotExist bool
}

// Backend is a MinIO (S3-compatible) implementation of sitecontent.BlobStore
type Backend struct {
	client *minio.Client
	config Config
}

// New creates a new MinIO blob backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	endpoint := config.Endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		config.UseSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure:       config.UseSSL,
		Region:       config.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	config.Endpoint = endpoint

	backend := &Backend{client: client, config: config}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return backend, nil
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.config.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return b.client.MakeBucket(ctx, b.config.Bucket, minio.MakeBucketOptions{Region: b.config.Region})
}

// Put uploads the object in a single call and returns its public URL
func (b *Backend) Put(ctx context.Context, reader io.Reader, params sitecontent.UploadParams) (string, error) {
	size := params.Size
	if size <= 0 {
		size = -1
	}
	opts := minio.PutObjectOptions{
		ContentType:  params.MimeType,
		CacheControl: b.config.CacheControl,
	}

	_, err := b.client.PutObject(ctx, b.config.Bucket, params.ObjectKey, reader, size, opts)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		return "", &sitecontent.RemoteError{
			Store:      "minio",
			Op:         "put",
			Path:       params.ObjectKey,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(resp.Code + ": " + resp.Message),
			Err:        err,
		}
	}
	return b.ObjectURL(params.ObjectKey), nil
}

// ObjectURL returns the public URL of an object key
func (b *Backend) ObjectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	escaped := strings.Join(parts, "/")

	if b.config.PublicURL != "" {
		return strings.TrimRight(b.config.PublicURL, "/") + "/" + escaped
	}
	scheme := "http"
	if b.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, b.config.Endpoint, b.config.Bucket, escaped)
}
