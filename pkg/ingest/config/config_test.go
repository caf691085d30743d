package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/catalog-ingest/internal/testutil"
	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/catalog/httpapi"
	catalogmemory "github.com/tendant/catalog-ingest/pkg/ingest/catalog/memory"
	"github.com/tendant/catalog-ingest/pkg/ingest/retry"
	cloudinarystorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/cloudinary"
	fsstorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/fs"
	memorystorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/memory"
)

var managedEnv = []string{
	"SOURCE_DIR", "SOURCE_EXTENSIONS", "STORAGE_TYPE", "CATALOG_TYPE", "AWS_REGION",
	"API_BASE_URL", "API_TOKEN", "JWT_SECRET", "DATABASE_URL", "WORKERS",
	"DUPLICATE_POLICY", "EMPTY_SLUG_POLICY", "PRODUCT_STATUS", "RETRY_MAX_ATTEMPTS",
	"DRY_RUN", "LOG_LEVEL", "LOG_FORMAT", "KEY_STRATEGY", "DISABLE_IDEMPOTENCY_KEYS",
	"DESCRIPTION_TEMPLATE", "UPLOAD_TIMEOUT", "CATEGORY_ID",
}

// clearEnv unsets the variables Load reads and restores them after the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageCloudinary, cfg.StorageType)
	assert.Equal(t, CatalogHTTP, cfg.CatalogType)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, []string{".pdf"}, cfg.SourceExtensions)
	assert.Equal(t, "Free eBook: {title}.", cfg.DescriptionTemplate)
	assert.Equal(t, ingest.ProductStatusApproved, cfg.ProductStatus)
	assert.Equal(t, "fail", cfg.EmptySlugPolicy)
	assert.Equal(t, "allow", cfg.DuplicatePolicy)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 5*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, 60*time.Second, cfg.CountTimeout)
	assert.Equal(t, 120*time.Second, cfg.DeleteTimeout)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.False(t, cfg.DisableIdempotencyKeys)
	assert.False(t, cfg.DryRun)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_DIR", "/data/books")
	t.Setenv("SOURCE_EXTENSIONS", ".pdf,.epub")
	t.Setenv("STORAGE_TYPE", "fs")
	t.Setenv("CATALOG_TYPE", "memory")
	t.Setenv("WORKERS", "4")
	t.Setenv("DUPLICATE_POLICY", "skip-existing")
	t.Setenv("UPLOAD_TIMEOUT", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/books", cfg.SourceDir)
	assert.Equal(t, []string{".pdf", ".epub"}, cfg.SourceExtensions)
	assert.Equal(t, StorageFS, cfg.StorageType)
	assert.Equal(t, CatalogMemory, cfg.CatalogType)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "skip-existing", cfg.DuplicatePolicy)
	assert.Equal(t, 90*time.Second, cfg.UploadTimeout)
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "catalogctl.yaml")
	content := `source_dir: /srv/ebooks
storage_type: memory
catalog_type: memory
storage_folder: ebooks
category_id: cat-123
slug_suffix: cat
ascii_fold: true
workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/ebooks", cfg.SourceDir)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, CatalogMemory, cfg.CatalogType)
	assert.Equal(t, "ebooks", cfg.StorageFolder)
	assert.Equal(t, "cat-123", cfg.CategoryID)
	assert.Equal(t, "cat", cfg.SlugSuffix)
	assert.True(t, cfg.ASCIIFold)
	assert.Equal(t, 2, cfg.Workers)
	// defaults still fill keys the file leaves out
	assert.Equal(t, "pdf", cfg.FileType)

	t.Run("EnvironmentOverridesFile", func(t *testing.T) {
		t.Setenv("CATEGORY_ID", "cat-999")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "cat-999", cfg.CategoryID)
	})

	t.Run("FileDisablesIdempotencyKeys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalogctl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("source_dir: /srv/ebooks\ndisable_idempotency_keys: true\n"), 0o644))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.DisableIdempotencyKeys)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestLoadOptions(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("",
		WithSourceDir("/tmp/in"),
		WithStorageType(StorageMemory),
		WithCatalogType(CatalogMemory),
		WithDryRun(true),
		WithWorkers(8),
		WithDuplicatePolicy("skip-existing"),
		WithInsecureSkipVerify(true),
		WithLogging("debug", ""),
		nil,
	)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/in", cfg.SourceDir)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "skip-existing", cfg.DuplicatePolicy)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	_, err = Load("", WithWorkers(0))
	assert.Error(t, err)

	_, err = Load("", WithSourceDir(""))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		SourceDir:        "/tmp/in",
		StorageType:      StorageMemory,
		CatalogType:      CatalogMemory,
		ProductStatus:    ingest.ProductStatusApproved,
		EmptySlugPolicy:  "fail",
		DuplicatePolicy:  "allow",
		Workers:          1,
		RetryMaxAttempts: 1,
		SourceExtensions: []string{".pdf"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"StorageType", func(c *Config) { c.StorageType = "ftp" }, "storage_type"},
		{"CatalogType", func(c *Config) { c.CatalogType = "grpc" }, "catalog_type"},
		{"KeyStrategy", func(c *Config) { c.KeyStrategy = "random" }, "random"},
		{"DuplicatePolicy", func(c *Config) { c.DuplicatePolicy = "replace" }, "duplicate_policy"},
		{"EmptySlugPolicy", func(c *Config) { c.EmptySlugPolicy = "ignore" }, "empty_slug_policy"},
		{"ProductStatus", func(c *Config) { c.ProductStatus = "LIVE" }, "product_status"},
		{"Workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"RetryAttempts", func(c *Config) { c.RetryMaxAttempts = 0 }, "retry_max_attempts"},
		{"SlugMaxLength", func(c *Config) { c.SlugMaxLength = -1 }, "slug_max_length"},
		{"MaxFileSize", func(c *Config) { c.MaxFileSize = -1 }, "max_file_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateUpload(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.ValidateUpload())

	cfg.SourceDir = ""
	assert.EqualError(t, cfg.ValidateUpload(), "source_dir is required")

	cfg = validConfig()
	cfg.CatalogType = CatalogHTTP
	assert.EqualError(t, cfg.ValidateUpload(), "api_base_url is required for the http catalog")

	cfg.DryRun = true
	assert.NoError(t, cfg.ValidateUpload())

	cfg = validConfig()
	cfg.CatalogType = CatalogPostgres
	assert.EqualError(t, cfg.ValidateUpload(), "database_url is required for the postgres catalog")
}

func TestBuildStore(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		store, err := validConfig().BuildStore()
		require.NoError(t, err)
		assert.IsType(t, &memorystorage.Backend{}, store)
	})

	t.Run("FS", func(t *testing.T) {
		cfg := validConfig()
		cfg.StorageType = StorageFS
		cfg.FSBaseDir = t.TempDir()
		store, err := cfg.BuildStore()
		require.NoError(t, err)
		assert.IsType(t, &fsstorage.Backend{}, store)
	})

	t.Run("FSWithoutBaseDir", func(t *testing.T) {
		cfg := validConfig()
		cfg.StorageType = StorageFS
		store, err := cfg.BuildStore()
		require.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "failed to build fs storage")
	})

	t.Run("Cloudinary", func(t *testing.T) {
		cfg := validConfig()
		cfg.StorageType = StorageCloudinary
		cfg.CloudinaryCloudName = "demo"
		cfg.CloudinaryAPIKey = "key"
		cfg.CloudinaryAPISecret = "secret"
		store, err := cfg.BuildStore()
		require.NoError(t, err)
		assert.IsType(t, &cloudinarystorage.Backend{}, store)
	})

	t.Run("S3WithoutBucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.StorageType = StorageS3
		store, err := cfg.BuildStore()
		require.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg := validConfig()
		cfg.StorageType = "tape"
		_, err := cfg.BuildStore()
		assert.Error(t, err)
	})
}

func TestAdminToken(t *testing.T) {
	cfg := validConfig()

	token, err := cfg.AdminToken()
	require.NoError(t, err)
	assert.Empty(t, token)

	cfg.JWTSecret = "signing-secret"
	cfg.AdminUserID = "admin-1"
	cfg.AdminEmail = "admin@example.com"
	cfg.AdminRole = "ADMIN"
	cfg.JWTTTL = time.Hour
	token, err = cfg.AdminToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	auth := jwtauth.New("HS256", []byte("signing-secret"), nil)
	decoded, err := auth.Decode(token)
	require.NoError(t, err)
	email, ok := decoded.Get("email")
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", email)

	cfg.APIToken = "static-token"
	token, err = cfg.AdminToken()
	require.NoError(t, err)
	assert.Equal(t, "static-token", token)
}

func TestRetryPolicy(t *testing.T) {
	cfg := validConfig()
	assert.IsType(t, retry.None{}, cfg.RetryPolicy(nil))

	cfg.RetryMaxAttempts = 4
	cfg.RetryInitialInterval = 10 * time.Millisecond
	policy, ok := cfg.RetryPolicy(nil).(*retry.Exponential)
	require.True(t, ok)
	assert.Equal(t, 4, policy.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, policy.InitialInterval)
}

func TestBuildCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		catalog, closeFn, err := validConfig().BuildCatalog(ctx, nil)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &catalogmemory.Catalog{}, catalog)
	})

	t.Run("HTTPRequiresBaseURL", func(t *testing.T) {
		cfg := validConfig()
		cfg.CatalogType = CatalogHTTP
		_, closeFn, err := cfg.BuildCatalog(ctx, nil)
		require.Error(t, err)
		assert.NotNil(t, closeFn)
	})

	t.Run("PostgresRequiresURL", func(t *testing.T) {
		cfg := validConfig()
		cfg.CatalogType = CatalogPostgres
		_, _, err := cfg.BuildCatalog(ctx, nil)
		assert.EqualError(t, err, "database_url is required for the postgres catalog")
	})

	t.Run("HTTP", func(t *testing.T) {
		fake := testutil.NewFakeCatalog()
		fake.CleanupSecret = "s3cret"
		server := fake.Start(t)

		cfg := validConfig()
		cfg.CatalogType = CatalogHTTP
		cfg.APIBaseURL = server.URL
		cfg.APIToken = "token-1"
		cfg.CleanupSecret = "s3cret"

		catalog, closeFn, err := cfg.BuildCatalog(ctx, nil)
		require.NoError(t, err)
		defer closeFn()
		require.IsType(t, &httpapi.Client{}, catalog)

		created, err := catalog.CreateProduct(ctx, ingest.ProductRecord{Title: "Cats", Slug: "cats"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, []string{"Bearer token-1"}, fake.AuthHeaders())

		total, err := catalog.CountProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		_, err = catalog.DeleteAllProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, fake.CleanupCalls())
		assert.Equal(t, []string{httpapi.IdempotencyKey(server.URL, "cats")}, fake.IdempotencyKeys())
	})

	t.Run("HTTPWithoutIdempotencyKeys", func(t *testing.T) {
		fake := testutil.NewFakeCatalog()
		server := fake.Start(t)

		cfg := validConfig()
		cfg.CatalogType = CatalogHTTP
		cfg.APIBaseURL = server.URL
		cfg.APIToken = "token-1"
		cfg.DisableIdempotencyKeys = true

		catalog, closeFn, err := cfg.BuildCatalog(ctx, nil)
		require.NoError(t, err)
		defer closeFn()

		_, err = catalog.CreateProduct(ctx, ingest.ProductRecord{Title: "Cats", Slug: "cats"})
		require.NoError(t, err)
		assert.Equal(t, []string{""}, fake.IdempotencyKeys())
	})
}

func TestBuildOrchestratorDryRun(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Kitten Care.pdf", "Dog Training.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644))
	}

	cfg := validConfig()
	cfg.SourceDir = dir
	cfg.CatalogType = CatalogHTTP
	cfg.DryRun = true
	cfg.DescriptionTemplate = "Free eBook: {title}."

	orch, err := cfg.BuildOrchestrator(nil, nil, nil)
	require.NoError(t, err)

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalFound)
	assert.Equal(t, int64(2), result.Skipped)
	assert.Zero(t, result.Failed)

	t.Run("RequiresSourceDir", func(t *testing.T) {
		cfg := validConfig()
		cfg.SourceDir = ""
		_, err := cfg.BuildOrchestrator(nil, nil, nil)
		assert.EqualError(t, err, "source_dir is required")
	})

	t.Run("RequiresBackendsWhenLive", func(t *testing.T) {
		cfg := validConfig()
		cfg.SourceDir = dir
		_, err := cfg.BuildOrchestrator(nil, nil, nil)
		assert.Error(t, err)
	})
}

func TestUsage(t *testing.T) {
	usage := Usage()
	assert.Contains(t, usage, "SOURCE_DIR")
	assert.Contains(t, usage, "STORAGE_TYPE")
}
