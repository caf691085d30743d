// Package httpapi registers products through the catalog REST API.
package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/retry"
)

const (
	defaultCountTimeout  = 60 * time.Second
	defaultDeleteTimeout = 120 * time.Second

	maxBodyBytes = 1 << 20
)

// Client talks to the catalog API. It implements ingest.Catalog and
// ingest.CatalogAdmin.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	retry           retry.Policy
	bearerToken     string
	cleanupSecret   string
	logger          *slog.Logger
	countTimeout    time.Duration
	deleteTimeout   time.Duration
	idempotencyKeys bool
	insecure        bool
}

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// NewClient creates a catalog client for the API rooted at baseURL,
// e.g. https://api.example.com/api
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{Timeout: 5 * time.Minute},
		retry:           retry.None{},
		logger:          slog.Default(),
		countTimeout:    defaultCountTimeout,
		deleteTimeout:   defaultDeleteTimeout,
		idempotencyKeys: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed admin endpoints
		hc := *c.httpClient
		hc.Transport = transport
		c.httpClient = &hc
	}

	return c, nil
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetry sets the retry policy applied to every call
func WithRetry(policy retry.Policy) ClientOption {
	return func(c *Client) {
		if policy != nil {
			c.retry = policy
		}
	}
}

// WithBearerToken sends "Authorization: Bearer <token>" on every request
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.bearerToken = token
	}
}

// WithCleanupSecret sets the shared secret required by the cleanup endpoint
func WithCleanupSecret(secret string) ClientOption {
	return func(c *Client) {
		c.cleanupSecret = secret
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAdminTimeouts sets the timeouts of the count and cleanup calls
func WithAdminTimeouts(count, del time.Duration) ClientOption {
	return func(c *Client) {
		if count > 0 {
			c.countTimeout = count
		}
		if del > 0 {
			c.deleteTimeout = del
		}
	}
}

// WithIdempotencyKeys toggles the Idempotency-Key header on creates
func WithIdempotencyKeys(enabled bool) ClientOption {
	return func(c *Client) {
		c.idempotencyKeys = enabled
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(insecure bool) ClientOption {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// IdempotencyKey derives a stable key for a product slug on a catalog.
func IdempotencyKey(baseURL, slug string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimRight(baseURL, "/")+"/products/"+slug)).String()
}

type createResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Data *struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"data"`
}

// CreateProduct submits record with POST /products. 200 and 201 are success.
func (c *Client) CreateProduct(ctx context.Context, record ingest.ProductRecord) (*ingest.CreatedProduct, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product: %w", err)
	}

	var created *ingest.CreatedProduct
	err = c.retry.Do(ctx, "create_product", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodPost, "/products", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.idempotencyKeys && record.Slug != "" {
			req.Header.Set("Idempotency-Key", IdempotencyKey(c.baseURL, record.Slug))
		}

		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return &ingest.RegistrationError{Op: "create_product", StatusCode: status, Body: string(body)}
		}

		created = &ingest.CreatedProduct{Slug: record.Slug, Raw: body}
		var resp createResponse
		if json.Unmarshal(body, &resp) == nil {
			created.ID = resp.ID
			if resp.Data != nil {
				created.ID = resp.Data.ID
				if resp.Data.Slug != "" {
					created.Slug = resp.Data.Slug
				}
			} else if resp.Slug != "" {
				created.Slug = resp.Slug
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("product registered", "slug", created.Slug, "id", created.ID)
	return created, nil
}

// ProductExists looks the slug up with GET /products/{slug}
func (c *Client) ProductExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := c.retry.Do(ctx, "product_exists", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, "/products/"+url.PathEscape(slug), nil)
		if err != nil {
			return err
		}
		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			exists = true
		case http.StatusNotFound:
			exists = false
		default:
			return &ingest.RegistrationError{Op: "product_exists", StatusCode: status, Body: string(body)}
		}
		return nil
	})
	return exists, err
}

type listResponse struct {
	Data *struct {
		Pagination *struct {
			Total *int64 `json:"total"`
		} `json:"pagination"`
	} `json:"data"`
}

// CountProducts reads data.pagination.total from GET /products?limit=1
func (c *Client) CountProducts(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.countTimeout)
	defer cancel()

	var total int64
	err := c.retry.Do(ctx, "count_products", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, "/products?limit=1", nil)
		if err != nil {
			return err
		}
		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return &ingest.RegistrationError{Op: "count_products", StatusCode: status, Body: string(body)}
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("failed to decode product list: %w", err)
		}
		if resp.Data == nil || resp.Data.Pagination == nil || resp.Data.Pagination.Total == nil {
			return errors.New("product list response has no data.pagination.total")
		}
		total = *resp.Data.Pagination.Total
		return nil
	})
	return total, err
}

// DeleteAllProducts calls DELETE /admin/products/cleanup-all. It is
// destructive and irreversible.
func (c *Client) DeleteAllProducts(ctx context.Context) ([]byte, error) {
	if c.cleanupSecret == "" {
		return nil, ingest.ErrCleanupSecretRequired
	}

	ctx, cancel := context.WithTimeout(ctx, c.deleteTimeout)
	defer cancel()

	var result []byte
	err := c.retry.Do(ctx, "delete_all_products", func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodDelete, "/admin/products/cleanup-all", nil)
		if err != nil {
			return err
		}
		req.Header.Set("x-cleanup-secret", c.cleanupSecret)

		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return &ingest.RegistrationError{Op: "delete_all_products", StatusCode: status, Body: string(body)}
		}
		result = body
		return nil
	})
	return result, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

var (
	_ ingest.Catalog      = (*Client)(nil)
	_ ingest.CatalogAdmin = (*Client)(nil)
)
