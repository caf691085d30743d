package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/catalog-ingest/internal/testutil"
	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/catalog/httpapi"
	"github.com/tendant/catalog-ingest/pkg/ingest/retry"
)

func sampleRecord(slug string) ingest.ProductRecord {
	return ingest.ProductRecord{
		Title:        "All About Dogs",
		Slug:         slug,
		Description:  "Free eBook: All About Dogs.",
		Price:        0,
		CategoryID:   "cat-1",
		FileURL:      "https://cdn.test/" + slug,
		FileType:     "pdf",
		FileSize:     1024,
		Status:       ingest.ProductStatusApproved,
		Featured:     false,
		ThumbnailURL: "https://images.test/dog.jpg",
	}
}

func TestNewClient(t *testing.T) {
	_, err := httpapi.NewClient("ftp://catalog.test")
	require.Error(t, err)

	_, err = httpapi.NewClient("http://catalog.test/api/")
	require.NoError(t, err)
}

func TestClient_CreateProduct(t *testing.T) {
	fake := testutil.NewFakeCatalog()
	server := fake.Start(t)

	client, err := httpapi.NewClient(server.URL, httpapi.WithBearerToken("tok"))
	require.NoError(t, err)

	created, err := client.CreateProduct(context.Background(), sampleRecord("all-about-dogs"))
	require.NoError(t, err)
	assert.Equal(t, "prod-1", created.ID)
	assert.Equal(t, "all-about-dogs", created.Slug)
	assert.NotEmpty(t, created.Raw)

	products := fake.Products()
	require.Len(t, products, 1)
	assert.Equal(t, sampleRecord("all-about-dogs"), products[0])
	assert.Equal(t, []string{"Bearer tok"}, fake.AuthHeaders())
	assert.Equal(t, []string{httpapi.IdempotencyKey(server.URL, "all-about-dogs")}, fake.IdempotencyKeys())
}

func TestClient_CreateProductTwiceCreatesTwoRecords(t *testing.T) {
	fake := testutil.NewFakeCatalog()
	server := fake.Start(t)

	client, err := httpapi.NewClient(server.URL)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := client.CreateProduct(context.Background(), sampleRecord("all-about-dogs"))
		require.NoError(t, err)
	}
	assert.Len(t, fake.Products(), 2)

	keys := fake.IdempotencyKeys()
	assert.Equal(t, keys[0], keys[1])
}

func TestClient_CreateProductRejected(t *testing.T) {
	fake := testutil.NewFakeCatalog()
	fake.FailCreate = http.StatusBadRequest
	server := fake.Start(t)

	client, err := httpapi.NewClient(server.URL, httpapi.WithRetry(retry.NewExponential(3, time.Millisecond)))
	require.NoError(t, err)

	_, err = client.CreateProduct(context.Background(), sampleRecord("dogs"))
	require.ErrorIs(t, err, ingest.ErrRegistrationFailed)

	var regErr *ingest.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, http.StatusBadRequest, regErr.StatusCode)
	assert.Contains(t, regErr.Body, "injected failure")
	assert.Len(t, fake.AuthHeaders(), 1, "4xx must not be retried")
}

func TestClient_CreateProductRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/products", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			render.Status(req, http.StatusServiceUnavailable)
			render.JSON(w, req, map[string]any{"error": "busy"})
			return
		}
		render.JSON(w, req, map[string]any{"id": "p-9"})
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client, err := httpapi.NewClient(server.URL, httpapi.WithRetry(retry.NewExponential(3, time.Millisecond)))
	require.NoError(t, err)

	created, err := client.CreateProduct(context.Background(), sampleRecord("dogs"))
	require.NoError(t, err)
	assert.Equal(t, "p-9", created.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ProductExists(t *testing.T) {
	fake := testutil.NewFakeCatalog()
	server := fake.Start(t)

	client, err := httpapi.NewClient(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := client.ProductExists(ctx, "all-about-dogs")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.CreateProduct(ctx, sampleRecord("all-about-dogs"))
	require.NoError(t, err)

	exists, err = client.ProductExists(ctx, "all-about-dogs")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_CountProducts(t *testing.T) {
	fake := testutil.NewFakeCatalog()
	fake.TotalOverride = 42
	server := fake.Start(t)

	client, err := httpapi.NewClient(server.URL)
	require.NoError(t, err)

	total, err := client.CountProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
}

func TestClient_CountProductsMissingTotal(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]any{"data": map[string]any{}})
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client, err := httpapi.NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.CountProducts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination.total")
}

func TestClient_DeleteAllProducts(t *testing.T) {
	t.Run("RequiresSecret", func(t *testing.T) {
		fake := testutil.NewFakeCatalog()
		server := fake.Start(t)
		client, err := httpapi.NewClient(server.URL)
		require.NoError(t, err)

		_, err = client.DeleteAllProducts(context.Background())
		assert.ErrorIs(t, err, ingest.ErrCleanupSecretRequired)
		assert.Equal(t, 0, fake.CleanupCalls())
	})

	t.Run("WrongSecret", func(t *testing.T) {
		fake := testutil.NewFakeCatalog()
		fake.CleanupSecret = "right"
		server := fake.Start(t)
		client, err := httpapi.NewClient(server.URL, httpapi.WithCleanupSecret("wrong"))
		require.NoError(t, err)

		_, err = client.DeleteAllProducts(context.Background())
		var regErr *ingest.RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, http.StatusUnauthorized, regErr.StatusCode)
	})

	t.Run("Deletes", func(t *testing.T) {
		fake := testutil.NewFakeCatalog()
		fake.CleanupSecret = "s3cret"
		server := fake.Start(t)
		client, err := httpapi.NewClient(server.URL, httpapi.WithCleanupSecret("s3cret"))
		require.NoError(t, err)

		_, err = client.CreateProduct(context.Background(), sampleRecord("dogs"))
		require.NoError(t, err)

		body, err := client.DeleteAllProducts(context.Background())
		require.NoError(t, err)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, float64(1), resp["deleted"])
		assert.Empty(t, fake.Products())
	})
}

func TestMintAdminToken(t *testing.T) {
	_, err := httpapi.MintAdminToken("", httpapi.AdminClaims{}, time.Hour)
	require.Error(t, err)

	token, err := httpapi.MintAdminToken("secret", httpapi.AdminClaims{ID: "u-1", Email: "ops@example.com"}, time.Hour)
	require.NoError(t, err)

	decoded, err := jwtauth.New("HS256", []byte("secret"), nil).Decode(token)
	require.NoError(t, err)

	role, ok := decoded.Get("role")
	require.True(t, ok)
	assert.Equal(t, "ADMIN", role)

	email, ok := decoded.Get("email")
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", email)
	assert.True(t, decoded.Expiration().After(time.Now()))

	_, err = jwtauth.New("HS256", []byte("other"), nil).Decode(token)
	assert.Error(t, err)
}
