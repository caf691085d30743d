// Package testutil provides an in-process catalog API used by tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// FakeCatalog emulates the catalog REST API: product create, lookup by slug,
// paginated count and the admin cleanup endpoint.
type FakeCatalog struct {
	mu sync.Mutex

	products        []ingest.ProductRecord
	idempotencyKeys []string
	authHeaders     []string
	countCalls      int
	cleanupCalls    int

	// CleanupSecret is compared with the x-cleanup-secret header.
	CleanupSecret string
	// FailCreate makes POST /products answer with this status when non-zero.
	FailCreate int
	// FailSlugs makes POST /products answer with the mapped status for a slug.
	FailSlugs map[string]int
	// TotalOverride replaces the reported total when non-negative.
	TotalOverride int64
}

// NewFakeCatalog returns an empty fake catalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{TotalOverride: -1, FailSlugs: map[string]int{}}
}

// Start serves the fake on an httptest server closed at test cleanup.
func (f *FakeCatalog) Start(t testing.TB) *httptest.Server {
	server := httptest.NewServer(f.Routes())
	t.Cleanup(server.Close)
	return server
}

// Routes returns the catalog router.
func (f *FakeCatalog) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/products", f.createProduct)
	r.Get("/products", f.listProducts)
	r.Get("/products/{slug}", f.getProduct)
	r.Delete("/admin/products/cleanup-all", f.cleanupAll)
	return r
}

func (f *FakeCatalog) createProduct(w http.ResponseWriter, r *http.Request) {
	var record ingest.ProductRecord
	if err := render.DecodeJSON(r.Body, &record); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]any{"error": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	if status := f.FailSlugs[record.Slug]; status != 0 {
		render.Status(r, status)
		render.JSON(w, r, map[string]any{"error": "rejected " + record.Slug})
		return
	}
	if f.FailCreate != 0 {
		render.Status(r, f.FailCreate)
		render.JSON(w, r, map[string]any{"error": "injected failure"})
		return
	}

	f.products = append(f.products, record)
	f.idempotencyKeys = append(f.idempotencyKeys, r.Header.Get("Idempotency-Key"))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":   fmt.Sprintf("prod-%d", len(f.products)),
			"slug": record.Slug,
		},
	})
}

func (f *FakeCatalog) listProducts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.countCalls++
	total := int64(len(f.products))
	if f.TotalOverride >= 0 {
		total = f.TotalOverride
	}
	render.JSON(w, r, map[string]any{
		"success": true,
		"data": map[string]any{
			"products":   []any{},
			"pagination": map[string]any{"total": total, "page": 1},
		},
	})
}

func (f *FakeCatalog) getProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.products {
		if p.Slug == slug {
			render.JSON(w, r, map[string]any{"success": true, "data": p})
			return
		}
	}
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, map[string]any{"error": "Product not found"})
}

func (f *FakeCatalog) cleanupAll(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleanupCalls++
	if f.CleanupSecret == "" || r.Header.Get("x-cleanup-secret") != f.CleanupSecret {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]any{"error": "Unauthorized"})
		return
	}

	deleted := len(f.products)
	f.products = nil
	render.JSON(w, r, map[string]any{"success": true, "deleted": deleted})
}

// Products returns a copy of the stored records in creation order.
func (f *FakeCatalog) Products() []ingest.ProductRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingest.ProductRecord(nil), f.products...)
}

// IdempotencyKeys returns the Idempotency-Key header of each stored create.
func (f *FakeCatalog) IdempotencyKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.idempotencyKeys...)
}

// AuthHeaders returns the Authorization header of each create attempt.
func (f *FakeCatalog) AuthHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

// CountCalls returns how many times the product list was requested.
func (f *FakeCatalog) CountCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

// CleanupCalls returns how many times the cleanup endpoint was hit.
func (f *FakeCatalog) CleanupCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleanupCalls
}
