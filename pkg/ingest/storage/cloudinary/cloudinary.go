package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	cldconfig "github.com/cloudinary/cloudinary-go/v2/config"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

const backendName = "cloudinary"

// Config options for the Cloudinary backend
type Config struct {
	CloudName    string // Account (cloud) name
	APIKey       string
	APISecret    string
	UploadPrefix string // Optional API base URL, defaults to the SDK's
	Invalidate   bool   // Invalidate CDN caches on delete
}

// Backend stores documents as Cloudinary raw assets.
type Backend struct {
	cld    *cloudinary.Cloudinary
	config Config
}

// New creates a new Cloudinary storage backend
func New(config Config) (*Backend, error) {
	switch {
	case config.CloudName == "":
		return nil, errors.New("cloud name is required")
	case config.APIKey == "" || config.APISecret == "":
		return nil, errors.New("api key and secret are required")
	}

	// the SDK copies the configuration into each API client, so the prefix
	// has to be set before the client is built
	cfg, err := cldconfig.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary config: %w", err)
	}
	if config.UploadPrefix != "" {
		cfg.API.UploadPrefix = strings.TrimRight(config.UploadPrefix, "/")
	}

	cld, err := cloudinary.NewFromConfiguration(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}

	return &Backend{cld: cld, config: config}, nil
}

// Upload sends the document as a raw resource with public id folder/publicID,
// overwriting any previous asset with the same id. The SDK posts to the
// auto upload endpoint and carries resource_type=raw as a form field.
func (b *Backend) Upload(ctx context.Context, params ingest.UploadParams) (*ingest.RemoteAsset, error) {
	key := assetKey(params.Folder, params.PublicID)
	if params.PublicID == "" || params.Reader == nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: ingest.ErrUploadFailed}
	}

	result, err := b.cld.Upload.Upload(ctx, params.Reader, uploader.UploadParams{
		PublicID:     params.PublicID,
		Folder:       params.Folder,
		ResourceType: ingest.ResourceTypeRaw,
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}
	if result.Error.Message != "" {
		return nil, &ingest.StorageError{
			Backend: backendName,
			Key:     key,
			Op:      "upload",
			Err:     fmt.Errorf("%w: %s", ingest.ErrUploadFailed, result.Error.Message),
		}
	}
	if result.SecureURL == "" {
		return nil, &ingest.StorageError{
			Backend: backendName,
			Key:     key,
			Op:      "upload",
			Err:     fmt.Errorf("%w: response carried no secure url", ingest.ErrUploadFailed),
		}
	}

	size := int64(result.Bytes)
	if size == 0 {
		size = params.Size
	}

	return &ingest.RemoteAsset{
		URL:          result.SecureURL,
		Folder:       params.Folder,
		PublicID:     params.PublicID,
		ResourceType: ingest.ResourceTypeRaw,
		Bytes:        size,
	}, nil
}

// Delete destroys the raw asset folder/publicID
func (b *Backend) Delete(ctx context.Context, folder, publicID string) error {
	key := assetKey(folder, publicID)
	result, err := b.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     key,
		ResourceType: ingest.ResourceTypeRaw,
		Invalidate:   api.Bool(b.config.Invalidate),
	})
	if err != nil {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}
	if result.Error.Message != "" {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: errors.New(result.Error.Message)}
	}
	if result.Result == "not found" {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: ingest.ErrObjectNotFound}
	}
	return nil
}

func assetKey(folder, publicID string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return publicID
	}
	return folder + "/" + publicID
}

var _ ingest.AssetStore = (*Backend)(nil)
