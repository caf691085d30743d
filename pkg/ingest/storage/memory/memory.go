package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/objectkey"
)

const backendName = "memory"

// Backend is an in-memory implementation of the ingest.AssetStore interface
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
	uploads   int
	keyGen    objectkey.Generator
	urlPrefix string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
		keyGen:    objectkey.NewFolderGenerator(),
		urlPrefix: "memory://",
	}
}

// WithURLPrefix changes the prefix of returned asset URLs
func (b *Backend) WithURLPrefix(prefix string) *Backend {
	b.urlPrefix = prefix
	return b
}

// Upload stores content in memory, replacing any object under the same key
func (b *Backend) Upload(ctx context.Context, params ingest.UploadParams) (*ingest.RemoteAsset, error) {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{
		Folder:   params.Folder,
		PublicID: params.PublicID,
		FileName: params.FileName,
	})
	if key == "" || params.Reader == nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: ingest.ErrUploadFailed}
	}

	data, err := io.ReadAll(params.Reader)
	if err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	mimeType := params.ContentType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	b.mimeTypes[key] = mimeType
	b.uploads++

	return &ingest.RemoteAsset{
		URL:          b.urlPrefix + key,
		Folder:       params.Folder,
		PublicID:     params.PublicID,
		ResourceType: ingest.ResourceTypeRaw,
		Bytes:        int64(len(data)),
	}, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, folder, publicID string) error {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{Folder: folder, PublicID: publicID})

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: ingest.ErrObjectNotFound}
	}

	delete(b.objects, key)
	delete(b.mimeTypes, key)
	return nil
}

// Get returns a copy of the stored bytes and content type
func (b *Backend) Get(key string) ([]byte, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, "", fmt.Errorf("%s: %w", key, ingest.ErrObjectNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, b.mimeTypes[key], nil
}

// Keys returns the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Uploads returns how many uploads were accepted, overwrites included
func (b *Backend) Uploads() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.uploads
}

var _ ingest.AssetStore = (*Backend)(nil)
