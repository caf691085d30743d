package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/admin"
	"github.com/tendant/catalog-ingest/pkg/ingest/batch"
	"github.com/tendant/catalog-ingest/pkg/ingest/catalog/httpapi"
	catalogmemory "github.com/tendant/catalog-ingest/pkg/ingest/catalog/memory"
	"github.com/tendant/catalog-ingest/pkg/ingest/catalog/postgres"
	"github.com/tendant/catalog-ingest/pkg/ingest/retry"
	"github.com/tendant/catalog-ingest/pkg/ingest/source"
	cloudinarystorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/cloudinary"
	fsstorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/fs"
	memorystorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/memory"
	s3storage "github.com/tendant/catalog-ingest/pkg/ingest/storage/s3"
)

// CatalogBackend is a catalog supporting both registration and admin calls.
type CatalogBackend interface {
	ingest.Catalog
	ingest.CatalogAdmin
}

// BuildStore creates the configured AssetStore
func (c *Config) BuildStore() (ingest.AssetStore, error) {
	var (
		store ingest.AssetStore
		err   error
	)

	switch c.StorageType {
	case StorageCloudinary:
		store, err = asStore(cloudinarystorage.New(cloudinarystorage.Config{
			CloudName:    c.CloudinaryCloudName,
			APIKey:       c.CloudinaryAPIKey,
			APISecret:    c.CloudinaryAPISecret,
			UploadPrefix: c.CloudinaryUploadPrefix,
		}))
	case StorageS3:
		store, err = asStore(s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			PublicBaseURL:          c.S3PublicBaseURL,
			KeyStrategy:            c.KeyStrategy,
			ACL:                    c.S3ACL,
			EnableSSE:              c.S3EnableSSE,
			SSEAlgorithm:           c.S3SSEAlgorithm,
			SSEKMSKeyID:            c.S3SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3CreateBucket,
		}))
	case StorageFS:
		store, err = asStore(fsstorage.New(fsstorage.Config{
			BaseDir:     c.FSBaseDir,
			URLPrefix:   c.FSURLPrefix,
			KeyStrategy: c.KeyStrategy,
		}))
	case StorageMemory:
		store = memorystorage.New()
	default:
		err = fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s storage: %w", c.StorageType, err)
	}
	return store, nil
}

// asStore drops typed nil pointers so a failed constructor yields a nil interface
func asStore[T ingest.AssetStore](store T, err error) (ingest.AssetStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// AdminToken returns the static API token, or mints one from JWTSecret.
// An empty string means requests go out unauthenticated.
func (c *Config) AdminToken() (string, error) {
	if c.APIToken != "" {
		return c.APIToken, nil
	}
	if c.JWTSecret == "" {
		return "", nil
	}
	return httpapi.MintAdminToken(c.JWTSecret, httpapi.AdminClaims{
		ID:    c.AdminUserID,
		Email: c.AdminEmail,
		Role:  c.AdminRole,
	}, c.JWTTTL)
}

// RetryPolicy returns the policy wrapped around remote calls
func (c *Config) RetryPolicy(logger *slog.Logger) retry.Policy {
	if c.RetryMaxAttempts <= 1 {
		return retry.None{}
	}
	policy := retry.NewExponential(c.RetryMaxAttempts, c.RetryInitialInterval)
	policy.Logger = logger
	return policy
}

// BuildCatalog creates the configured catalog. The returned close function
// releases database connections and is never nil.
func (c *Config) BuildCatalog(ctx context.Context, logger *slog.Logger) (CatalogBackend, func(), error) {
	noop := func() {}

	switch c.CatalogType {
	case CatalogHTTP:
		if c.APIBaseURL == "" {
			return nil, noop, errors.New("api_base_url is required for the http catalog")
		}
		token, err := c.AdminToken()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create admin token: %w", err)
		}
		client, err := httpapi.NewClient(c.APIBaseURL,
			httpapi.WithBearerToken(token),
			httpapi.WithCleanupSecret(c.CleanupSecret),
			httpapi.WithLogger(logger),
			httpapi.WithAdminTimeouts(c.CountTimeout, c.DeleteTimeout),
			httpapi.WithIdempotencyKeys(!c.DisableIdempotencyKeys),
			httpapi.WithInsecureSkipVerify(c.InsecureSkipVerify),
		)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			return nil, noop, errors.New("database_url is required for the postgres catalog")
		}
		pool, err := postgres.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		catalog := postgres.NewWithPool(pool, postgres.WithTable(c.ProductTable), postgres.WithVendorID(c.VendorID))
		return catalog, pool.Close, nil
	case CatalogMemory:
		return catalogmemory.New(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported catalog type: %s", c.CatalogType)
	}
}

// BuildCleaner creates the admin cleaner on top of a catalog
func (c *Config) BuildCleaner(catalog ingest.CatalogAdmin, logger *slog.Logger) *admin.Cleaner {
	return admin.New(catalog, logger)
}

// BuildSource creates the filesystem lister for SourceDir
func (c *Config) BuildSource() (*source.Lister, error) {
	return source.New(source.Options{
		Dir:        c.SourceDir,
		Extensions: c.SourceExtensions,
		Recursive:  c.SourceRecursive,
		Exclude:    c.SourceExclude,
	})
}

// BuildOrchestrator wires an orchestrator from the configuration. store and
// catalog may be nil in dry-run mode. hooks may adjust the options last,
// e.g. to attach progress callbacks.
func (c *Config) BuildOrchestrator(store ingest.AssetStore, catalog ingest.Catalog, logger *slog.Logger, hooks ...func(*batch.Options)) (*batch.Orchestrator, error) {
	if err := c.ValidateUpload(); err != nil {
		return nil, err
	}
	src, err := c.BuildSource()
	if err != nil {
		return nil, err
	}

	opts := batch.Options{
		Source:              src,
		Store:               store,
		Catalog:             catalog,
		Folder:              c.StorageFolder,
		CategoryID:          c.CategoryID,
		DescriptionTemplate: c.DescriptionTemplate,
		ThumbnailURL:        c.ThumbnailURL,
		Status:              c.ProductStatus,
		FileType:            c.FileType,
		ContentType:         c.ContentType,
		Price:               c.Price,
		Featured:            c.Featured,
		SlugSuffix:          c.SlugSuffix,
		SlugMaxLength:       c.SlugMaxLength,
		ASCIIFold:           c.ASCIIFold,
		EmptySlugPolicy:     batch.EmptySlugPolicy(c.EmptySlugPolicy),
		DuplicatePolicy:     batch.DuplicatePolicy(c.DuplicatePolicy),
		MaxFileSize:         c.MaxFileSize,
		DryRun:              c.DryRun,
		Workers:             c.Workers,
		UploadTimeout:       c.UploadTimeout,
		RegisterTimeout:     c.RegisterTimeout,
		Retry:               c.RetryPolicy(logger),
		Logger:              logger,
	}
	for _, hook := range hooks {
		hook(&opts)
	}
	return batch.New(opts)
}
