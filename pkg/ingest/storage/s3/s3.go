package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/objectkey"
)

const backendName = "s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PublicBaseURL   string // Optional base URL for returned asset URLs (CDN, website endpoint)
	KeyStrategy     string // objectkey strategy (default: extension)
	ACL             string // Optional canned ACL, e.g. public-read
	MaxAttempts     int    // SDK-level attempts per request (default: 1)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the ingest.AssetStore interface
type Backend struct {
	client *s3.Client
	bucket string
	keyGen objectkey.Generator
	config Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.EnableSSE && config.SSEAlgorithm != "AES256" && config.SSEAlgorithm != "aws:kms" {
		return nil, fmt.Errorf("invalid SSE algorithm: %q", config.SSEAlgorithm)
	}

	strategy := config.KeyStrategy
	if strategy == "" {
		strategy = objectkey.StrategyExtension
	}
	keyGen, err := objectkey.New(strategy)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Retries are owned by the caller's retry policy.
		o.RetryMaxAttempts = config.MaxAttempts
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		}
	})

	backend := &Backend{
		client: client,
		bucket: config.Bucket,
		keyGen: keyGen,
		config: config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// MinIO reports a missing bucket in several ways
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
				return nil
			}
		}
		return err
	}
	return nil
}

// Upload stores the document under a key derived from folder and public ID
// and returns the public URL of the object. An existing object is replaced.
func (b *Backend) Upload(ctx context.Context, params ingest.UploadParams) (*ingest.RemoteAsset, error) {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{
		Folder:   params.Folder,
		PublicID: params.PublicID,
		FileName: params.FileName,
	})
	if key == "" || params.Reader == nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: ingest.ErrUploadFailed}
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        params.Reader,
		ContentType: aws.String(contentType),
	}
	if params.Size > 0 {
		input.ContentLength = aws.Int64(params.Size)
	}
	if b.config.ACL != "" {
		input.ACL = types.ObjectCannedACL(b.config.ACL)
	}
	b.applySSE(input)

	uploader := manager.NewUploader(b.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: classify(err)}
	}

	return &ingest.RemoteAsset{
		URL:          b.publicURL(key),
		Folder:       params.Folder,
		PublicID:     params.PublicID,
		ResourceType: ingest.ResourceTypeRaw,
		Bytes:        params.Size,
	}, nil
}

// Delete deletes the object stored for folder/publicID
func (b *Backend) Delete(ctx context.Context, folder, publicID string) error {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{Folder: folder, PublicID: publicID})
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: classify(err)}
	}
	return nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
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

// publicURL builds the URL stored in the catalog for key
func (b *Backend) publicURL(key string) string {
	escaped := escapeKey(key)
	switch {
	case b.config.PublicBaseURL != "":
		return strings.TrimRight(b.config.PublicBaseURL, "/") + "/" + escaped
	case b.config.Endpoint != "" && b.config.UsePathStyle:
		return strings.TrimRight(b.config.Endpoint, "/") + "/" + b.bucket + "/" + escaped
	case b.config.Endpoint != "":
		u, err := url.Parse(b.config.Endpoint)
		if err != nil || u.Host == "" {
			return strings.TrimRight(b.config.Endpoint, "/") + "/" + b.bucket + "/" + escaped
		}
		return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, b.bucket, u.Host, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.config.Region, escaped)
	}
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// apiError carries the S3 error code and HTTP status of a failed call
type apiError struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (status %d): %v", e.Code, e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *apiError) Unwrap() error {
	return e.Err
}

// Temporary reports whether S3 signalled a throttling or server-side failure.
func (e *apiError) Temporary() bool {
	switch e.Code {
	case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "InternalError", "ServiceUnavailable":
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func classify(err error) error {
	out := &apiError{Err: err}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		out.StatusCode = respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
	}

	if out.StatusCode == http.StatusNotFound || out.Code == "NoSuchKey" {
		return fmt.Errorf("%w: %w", ingest.ErrObjectNotFound, err)
	}
	if out.StatusCode == 0 && out.Code == "" {
		return err
	}
	return out
}

var _ ingest.AssetStore = (*Backend)(nil)
