// Package memory is an in-process catalog for tests and dry environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// Catalog keeps products in memory. Like the REST catalog it accepts
// duplicate slugs.
type Catalog struct {
	mu       sync.RWMutex
	products []ingest.ProductRecord
	nextID   int
	failures map[string]error
}

// New creates an empty in-memory catalog
func New() *Catalog {
	return &Catalog{failures: make(map[string]error)}
}

// FailSlug makes every create for slug return err.
func (c *Catalog) FailSlug(slug string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[slug] = err
}

func (c *Catalog) CreateProduct(ctx context.Context, record ingest.ProductRecord) (*ingest.CreatedProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failures[record.Slug]; err != nil {
		return nil, err
	}

	c.nextID++
	c.products = append(c.products, record)
	id := fmt.Sprintf("mem-%d", c.nextID)
	raw, _ := json.Marshal(map[string]string{"id": id, "slug": record.Slug})
	return &ingest.CreatedProduct{ID: id, Slug: record.Slug, Raw: raw}, nil
}

func (c *Catalog) ProductExists(ctx context.Context, slug string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (c *Catalog) CountProducts(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.products)), nil
}

func (c *Catalog) DeleteAllProducts(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := len(c.products)
	c.products = nil
	return json.Marshal(map[string]any{"success": true, "deleted": deleted})
}

// Products returns a copy of the stored records in creation order
func (c *Catalog) Products() []ingest.ProductRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ingest.ProductRecord(nil), c.products...)
}

var (
	_ ingest.Catalog      = (*Catalog)(nil)
	_ ingest.CatalogAdmin = (*Catalog)(nil)
)
