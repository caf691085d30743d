// Package postgres registers products directly in the storefront database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Catalog writes into the Prisma-managed "Product" table, whose columns are
// quoted camelCase identifiers.
type Catalog struct {
	db       DBTX
	table    string
	vendorID string
}

// Option configures a Catalog
type Option func(*Catalog)

// WithTable overrides the product table name (default "Product")
func WithTable(table string) Option {
	return func(c *Catalog) {
		if table != "" {
			c.table = table
		}
	}
}

// WithVendorID sets the vendorId stored on every created product
func WithVendorID(id string) Option {
	return func(c *Catalog) {
		c.vendorID = id
	}
}

// New creates a catalog on top of db
func New(db DBTX, opts ...Option) *Catalog {
	c := &Catalog{db: db, table: "Product"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithPool creates a catalog with a connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Catalog {
	return New(pool, opts...)
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (c *Catalog) tableIdent() string {
	return pgx.Identifier{c.table}.Sanitize()
}

// Error handling helper
func (c *Catalog) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ingest.ErrDuplicateProduct, pgErr.Detail)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found: %s", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "22P02": // invalid_text_representation, e.g. unknown enum value
			return fmt.Errorf("invalid value in %s: %s", operation, pgErr.Message)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.ErrProductNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// CreateProduct inserts one row. Unlike the REST catalog, the slug column
// is unique, so a repeated slug fails with ingest.ErrDuplicateProduct.
func (c *Catalog) CreateProduct(ctx context.Context, record ingest.ProductRecord) (*ingest.CreatedProduct, error) {
	columns := []string{
		"id", "title", "slug", "description", "price", "categoryId", "fileUrl",
		"fileType", "fileSize", "status", "featured", "thumbnailUrl", "createdAt", "updatedAt",
	}
	id := uuid.NewString()
	args := []interface{}{
		id, record.Title, record.Slug, record.Description, record.Price, nullable(record.CategoryID),
		record.FileURL, record.FileType, record.FileSize, record.Status, record.Featured,
		nullable(record.ThumbnailURL),
	}
	if c.vendorID != "" {
		columns = append(columns, "vendorId")
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, 0, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
	}
	for i := range args {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	placeholders = append(placeholders, "NOW()", "NOW()")
	if c.vendorID != "" {
		args = append(args, c.vendorID)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		c.tableIdent(), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	if _, err := c.db.Exec(ctx, query, args...); err != nil {
		return nil, c.handlePostgresError("create_product", err)
	}

	raw, _ := json.Marshal(map[string]string{"id": id, "slug": record.Slug})
	return &ingest.CreatedProduct{ID: id, Slug: record.Slug, Raw: raw}, nil
}

func (c *Catalog) ProductExists(ctx context.Context, slug string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE "slug" = $1)`, c.tableIdent())
	var exists bool
	if err := c.db.QueryRow(ctx, query, slug).Scan(&exists); err != nil {
		return false, c.handlePostgresError("product_exists", err)
	}
	return exists, nil
}

func (c *Catalog) CountProducts(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableIdent())
	var total int64
	if err := c.db.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, c.handlePostgresError("count_products", err)
	}
	return total, nil
}

// DeleteAllProducts removes every row and reports the deleted count
func (c *Catalog) DeleteAllProducts(ctx context.Context) ([]byte, error) {
	tag, err := c.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, c.tableIdent()))
	if err != nil {
		return nil, c.handlePostgresError("delete_all_products", err)
	}
	return json.Marshal(map[string]any{"success": true, "deleted": tag.RowsAffected()})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var (
	_ ingest.Catalog      = (*Catalog)(nil)
	_ ingest.CatalogAdmin = (*Catalog)(nil)
)
