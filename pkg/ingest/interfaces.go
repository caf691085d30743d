package ingest

import (
	"context"
	"io"
)

// AssetStore defines the interface for remote object stores
type AssetStore interface {
	// Upload stores the reader's bytes under Folder/PublicID, overwriting any
	// existing object with the same identifier, and returns its public URL.
	Upload(ctx context.Context, params UploadParams) (*RemoteAsset, error)

	// Delete removes a previously uploaded object
	Delete(ctx context.Context, folder, publicID string) error
}

// Catalog defines the interface for product registration
type Catalog interface {
	// CreateProduct submits one record. Submitting the same record twice
	// creates two products.
	CreateProduct(ctx context.Context, record ProductRecord) (*CreatedProduct, error)

	// ProductExists reports whether a product with the slug is already registered
	ProductExists(ctx context.Context, slug string) (bool, error)
}

// CatalogAdmin defines destructive administrative catalog operations
type CatalogAdmin interface {
	// CountProducts returns the total number of products in the catalog
	CountProducts(ctx context.Context) (int64, error)

	// DeleteAllProducts irreversibly removes every product and returns the
	// backend's raw result body (if any)
	DeleteAllProducts(ctx context.Context) ([]byte, error)
}

// Source enumerates eligible local files and opens them for reading
type Source interface {
	// List returns the eligible files in processing order
	List(ctx context.Context) ([]SourceFile, error)

	// Open opens a listed file. Each call returns a fresh reader.
	Open(file SourceFile) (io.ReadCloser, error)
}
