package config

import (
	"fmt"
)

// WithSourceDir sets the directory to ingest
func WithSourceDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("source directory cannot be empty")
		}
		c.SourceDir = dir
		return nil
	}
}

// WithStorageType selects the object store backend
func WithStorageType(storageType string) Option {
	return func(c *Config) error {
		c.StorageType = storageType
		return nil
	}
}

// WithCatalogType selects the catalog backend
func WithCatalogType(catalogType string) Option {
	return func(c *Config) error {
		c.CatalogType = catalogType
		return nil
	}
}

// WithDryRun toggles dry-run mode
func WithDryRun(dryRun bool) Option {
	return func(c *Config) error {
		c.DryRun = dryRun
		return nil
	}
}

// WithWorkers sets the worker pool size
func WithWorkers(workers int) Option {
	return func(c *Config) error {
		if workers < 1 {
			return fmt.Errorf("workers must be at least 1, got: %d", workers)
		}
		c.Workers = workers
		return nil
	}
}

// WithDuplicatePolicy sets the duplicate policy (allow or skip-existing)
func WithDuplicatePolicy(policy string) Option {
	return func(c *Config) error {
		c.DuplicatePolicy = policy
		return nil
	}
}

// WithInsecureSkipVerify disables TLS verification for catalog calls
func WithInsecureSkipVerify(insecure bool) Option {
	return func(c *Config) error {
		c.InsecureSkipVerify = insecure
		return nil
	}
}

// WithLogging sets the log level and format
func WithLogging(level, format string) Option {
	return func(c *Config) error {
		if level != "" {
			c.LogLevel = level
		}
		if format != "" {
			c.LogFormat = format
		}
		return nil
	}
}
