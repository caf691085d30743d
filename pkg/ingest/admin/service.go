// Package admin wraps the destructive catalog operations used by operators.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// Cleaner runs destructive catalog operations. Callers are expected to gate
// it behind operator intent; every call is irreversible.
type Cleaner struct {
	admin  ingest.CatalogAdmin
	logger *slog.Logger
}

// New creates a Cleaner for the given catalog
func New(admin ingest.CatalogAdmin, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{admin: admin, logger: logger}
}

// CleanupResult reports what a cleanup did.
type CleanupResult struct {
	// TotalBefore is the product count observed before deleting (-1 when not counted)
	TotalBefore int64

	// Deleted is false when nothing was removed because the catalog was empty
	Deleted bool

	// Response is the raw body returned by the delete call
	Response []byte
}

// Count returns the current product total.
func (c *Cleaner) Count(ctx context.Context) (int64, error) {
	total, err := c.admin.CountProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// Cleanup counts products and deletes them all only when the total is positive.
func (c *Cleaner) Cleanup(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{TotalBefore: -1}

	total, err := c.Count(ctx)
	if err != nil {
		return result, err
	}
	result.TotalBefore = total
	c.logger.Info("products in catalog", "total", total)

	if total == 0 {
		c.logger.Info("catalog already empty, nothing to delete")
		return result, nil
	}

	c.logger.Warn("deleting all products", "total", total)
	body, err := c.admin.DeleteAllProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to delete products: %w", err)
	}
	result.Deleted = true
	result.Response = body
	c.logger.Info("cleanup finished", "deleted", total)
	return result, nil
}

// Purge deletes all products without counting first.
func (c *Cleaner) Purge(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{TotalBefore: -1}

	c.logger.Warn("purging all products")
	body, err := c.admin.DeleteAllProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to delete products: %w", err)
	}
	result.Deleted = true
	result.Response = body
	return result, nil
}
