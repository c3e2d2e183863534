package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// DefaultCacheControl marks uploaded assets as immutable; keys embed a timestamp
const DefaultCacheControl = "public, max-age=31536000, immutable"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PublicURL       string // Optional base URL objects are served from (CDN)
	CacheControl    string // Cache-Control header for objects (default: DefaultCacheControl)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3 implementation of the sitecontent.BlobStore interface
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	config   Config
}

// New creates a new S3 blob backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.CacheControl == "" {
		config.CacheControl = DefaultCacheControl
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Configure S3 client options
	s3Options := []func(*s3.Options){
		func(o *s3.Options) {
			// every remote call is attempted exactly once
			o.RetryMaxAttempts = 1
		},
	}
	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
		config:   config,
	}

	// Create bucket if requested
	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	// Check if bucket exists
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// MinIO reports a missing bucket with several error shapes
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	// Create bucket
	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		// Handle bucket already exists gracefully
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) || strings.Contains(err.Error(), "BucketAlreadyExists") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads the object in a single call and returns its public URL
func (b *Backend) Put(ctx context.Context, reader io.Reader, params sitecontent.UploadParams) (string, error) {
	input := b.putInput(reader, params)

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return "", translateError(params.ObjectKey, err)
	}
	return b.ObjectURL(params.ObjectKey), nil
}

func (b *Backend) putInput(reader io.Reader, params sitecontent.UploadParams) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(params.ObjectKey),
		Body:         reader,
		CacheControl: aws.String(b.config.CacheControl),
	}
	if params.MimeType != "" {
		input.ContentType = aws.String(params.MimeType)
	}
	if params.Size > 0 {
		input.ContentLength = aws.Int64(params.Size)
	}

	// Add server-side encryption if enabled
	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		}
	}
	return input
}

// ObjectURL returns the public URL of an object key
func (b *Backend) ObjectURL(key string) string {
	escaped := escapeKey(key)
	if b.config.PublicURL != "" {
		return strings.TrimRight(b.config.PublicURL, "/") + "/" + escaped
	}
	// Path-style when configured, virtual-hosted otherwise
	if b.config.Endpoint != "" {
		base := strings.TrimRight(b.config.Endpoint, "/")
		if b.config.UsePathStyle {
			return fmt.Sprintf("%s/%s/%s", base, b.bucket, escaped)
		}
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, b.bucket, u.Host, escaped)
		}
		return fmt.Sprintf("%s/%s/%s", base, b.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.config.Region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// translateError turns SDK failures into sitecontent.RemoteError so callers
// can show the provider message
func translateError(key string, err error) error {
	remoteErr := &sitecontent.RemoteError{Store: "s3", Op: "put", Path: key, Err: err}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		remoteErr.StatusCode = respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		remoteErr.Message = fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return remoteErr
}
