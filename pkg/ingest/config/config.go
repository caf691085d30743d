// Package config loads catalogctl settings from the environment or a YAML
// file and builds the pipeline components they describe.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/batch"
	"github.com/tendant/catalog-ingest/pkg/ingest/objectkey"
)

// Storage backend types
const (
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
	StorageFS         = "fs"
	StorageMemory     = "memory"
)

// Catalog backend types
const (
	CatalogHTTP     = "http"
	CatalogPostgres = "postgres"
	CatalogMemory   = "memory"
)

// Config is the complete catalogctl configuration. Every field can be set
// from the environment; a YAML file may provide the same keys.
type Config struct {
	// Source documents
	SourceDir        string   `yaml:"source_dir" env:"SOURCE_DIR"`
	SourceExtensions []string `yaml:"source_extensions" env:"SOURCE_EXTENSIONS" env-separator:"," env-default:".pdf"`
	SourceRecursive  bool     `yaml:"source_recursive" env:"SOURCE_RECURSIVE"`
	SourceExclude    []string `yaml:"source_exclude" env:"SOURCE_EXCLUDE" env-separator:","`
	MaxFileSize      int64    `yaml:"max_file_size" env:"MAX_FILE_SIZE"`

	// Object storage
	StorageType   string `yaml:"storage_type" env:"STORAGE_TYPE" env-default:"cloudinary"`
	StorageFolder string `yaml:"storage_folder" env:"STORAGE_FOLDER"`
	KeyStrategy   string `yaml:"key_strategy" env:"KEY_STRATEGY"`

	CloudinaryCloudName    string `yaml:"cloudinary_cloud_name" env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey       string `yaml:"cloudinary_api_key" env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret    string `yaml:"cloudinary_api_secret" env:"CLOUDINARY_API_SECRET"`
	CloudinaryUploadPrefix string `yaml:"cloudinary_upload_prefix" env:"CLOUDINARY_UPLOAD_PREFIX"`

	S3Region          string `yaml:"s3_region" env:"AWS_REGION" env-default:"us-east-1"`
	S3Bucket          string `yaml:"s3_bucket" env:"AWS_S3_BUCKET"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint        string `yaml:"s3_endpoint" env:"AWS_S3_ENDPOINT"`
	S3UsePathStyle    bool   `yaml:"s3_use_path_style" env:"AWS_S3_USE_PATH_STYLE"`
	S3PublicBaseURL   string `yaml:"s3_public_base_url" env:"AWS_S3_PUBLIC_BASE_URL"`
	S3ACL             string `yaml:"s3_acl" env:"AWS_S3_ACL"`
	S3EnableSSE       bool   `yaml:"s3_enable_sse" env:"AWS_S3_ENABLE_SSE"`
	S3SSEAlgorithm    string `yaml:"s3_sse_algorithm" env:"AWS_S3_SSE_ALGORITHM" env-default:"AES256"`
	S3SSEKMSKeyID     string `yaml:"s3_sse_kms_key_id" env:"AWS_S3_SSE_KMS_KEY_ID"`
	S3CreateBucket    bool   `yaml:"s3_create_bucket" env:"AWS_S3_CREATE_BUCKET"`

	FSBaseDir   string `yaml:"fs_base_dir" env:"FS_BASE_DIR"`
	FSURLPrefix string `yaml:"fs_url_prefix" env:"FS_URL_PREFIX"`

	// Catalog
	CatalogType        string        `yaml:"catalog_type" env:"CATALOG_TYPE" env-default:"http"`
	APIBaseURL         string        `yaml:"api_base_url" env:"API_BASE_URL"`
	APIToken           string        `yaml:"api_token" env:"API_TOKEN"`
	JWTSecret          string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTTTL             time.Duration `yaml:"jwt_ttl" env:"JWT_TTL" env-default:"1h"`
	AdminUserID        string        `yaml:"admin_user_id" env:"ADMIN_USER_ID"`
	AdminEmail         string        `yaml:"admin_email" env:"ADMIN_EMAIL"`
	AdminRole          string        `yaml:"admin_role" env:"ADMIN_ROLE" env-default:"ADMIN"`
	CleanupSecret      string        `yaml:"cleanup_secret" env:"CLEANUP_SECRET"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"INSECURE_SKIP_VERIFY"`

	// DisableIdempotencyKeys omits the Idempotency-Key header on creates
	DisableIdempotencyKeys bool `yaml:"disable_idempotency_keys" env:"DISABLE_IDEMPOTENCY_KEYS"`

	DatabaseURL  string `yaml:"database_url" env:"DATABASE_URL"`
	ProductTable string `yaml:"product_table" env:"PRODUCT_TABLE" env-default:"Product"`
	VendorID     string `yaml:"vendor_id" env:"VENDOR_ID"`

	// Product fields
	CategoryID          string  `yaml:"category_id" env:"CATEGORY_ID"`
	DescriptionTemplate string  `yaml:"description_template" env:"DESCRIPTION_TEMPLATE" env-default:"Free eBook: {title}."`
	ThumbnailURL        string  `yaml:"thumbnail_url" env:"THUMBNAIL_URL"`
	ProductStatus       string  `yaml:"product_status" env:"PRODUCT_STATUS" env-default:"APPROVED"`
	FileType            string  `yaml:"file_type" env:"FILE_TYPE" env-default:"pdf"`
	ContentType         string  `yaml:"content_type" env:"CONTENT_TYPE" env-default:"application/pdf"`
	Price               float64 `yaml:"price" env:"PRICE"`
	Featured            bool    `yaml:"featured" env:"FEATURED"`

	// Slugs and duplicates
	SlugSuffix      string `yaml:"slug_suffix" env:"SLUG_SUFFIX"`
	SlugMaxLength   int    `yaml:"slug_max_length" env:"SLUG_MAX_LENGTH"`
	ASCIIFold       bool   `yaml:"ascii_fold" env:"ASCII_FOLD"`
	EmptySlugPolicy string `yaml:"empty_slug_policy" env:"EMPTY_SLUG_POLICY" env-default:"fail"`
	DuplicatePolicy string `yaml:"duplicate_policy" env:"DUPLICATE_POLICY" env-default:"allow"`

	// Runtime
	DryRun               bool          `yaml:"dry_run" env:"DRY_RUN"`
	Workers              int           `yaml:"workers" env:"WORKERS" env-default:"1"`
	UploadTimeout        time.Duration `yaml:"upload_timeout" env:"UPLOAD_TIMEOUT" env-default:"5m"`
	RegisterTimeout      time.Duration `yaml:"register_timeout" env:"REGISTER_TIMEOUT" env-default:"30s"`
	CountTimeout         time.Duration `yaml:"count_timeout" env:"COUNT_TIMEOUT" env-default:"60s"`
	DeleteTimeout        time.Duration `yaml:"delete_timeout" env:"DELETE_TIMEOUT" env-default:"120s"`
	RetryMaxAttempts     int           `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval" env:"RETRY_INITIAL_INTERVAL" env-default:"500ms"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
}

// Option adjusts a loaded Config before validation, e.g. from CLI flags.
type Option func(*Config) error

// Load reads the YAML file at path (when non-empty) and the environment,
// applies opts and validates the result.
func Load(path string, opts ...Option) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage returns the environment variable reference generated from Config.
func Usage() string {
	var cfg Config
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(&cfg, &header)
	if err != nil {
		return header
	}
	return text
}

// Validate checks enumerations and ranges. Credentials are checked when the
// corresponding component is built.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageCloudinary, StorageS3, StorageFS, StorageMemory:
	default:
		return fmt.Errorf("storage_type must be one of cloudinary, s3, fs, memory (got %q)", c.StorageType)
	}

	switch c.CatalogType {
	case CatalogHTTP, CatalogPostgres, CatalogMemory:
	default:
		return fmt.Errorf("catalog_type must be one of http, postgres, memory (got %q)", c.CatalogType)
	}

	if c.KeyStrategy != "" {
		if _, err := objectkey.New(c.KeyStrategy); err != nil {
			return err
		}
	}

	switch batch.DuplicatePolicy(c.DuplicatePolicy) {
	case batch.DuplicateAllow, batch.DuplicateSkipExisting:
	default:
		return fmt.Errorf("duplicate_policy must be allow or skip-existing (got %q)", c.DuplicatePolicy)
	}

	switch batch.EmptySlugPolicy(c.EmptySlugPolicy) {
	case batch.EmptySlugFail, batch.EmptySlugGenerate:
	default:
		return fmt.Errorf("empty_slug_policy must be fail or generate (got %q)", c.EmptySlugPolicy)
	}

	switch c.ProductStatus {
	case ingest.ProductStatusApproved, ingest.ProductStatusPending, ingest.ProductStatusDraft:
	default:
		return fmt.Errorf("product_status must be APPROVED, PENDING or DRAFT (got %q)", c.ProductStatus)
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("retry_max_attempts must be at least 1")
	}
	if c.SlugMaxLength < 0 {
		return errors.New("slug_max_length must not be negative")
	}
	if c.MaxFileSize < 0 {
		return errors.New("max_file_size must not be negative")
	}
	return nil
}

// ValidateUpload checks the settings an upload run needs on top of Validate.
func (c *Config) ValidateUpload() error {
	if c.SourceDir == "" {
		return errors.New("source_dir is required")
	}
	if c.DryRun {
		return nil
	}
	if c.CatalogType == CatalogHTTP && c.APIBaseURL == "" {
		return errors.New("api_base_url is required for the http catalog")
	}
	if c.CatalogType == CatalogPostgres && c.DatabaseURL == "" {
		return errors.New("database_url is required for the postgres catalog")
	}
	return nil
}
