package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/objectkey"
)

const backendName = "fs"

// Config options for the filesystem backend
type Config struct {
	BaseDir     string // Base directory for storing files
	URLPrefix   string // Optional public URL prefix, e.g. https://files.example.com
	KeyStrategy string // objectkey strategy (default: extension)
}

// Backend is a filesystem implementation of the ingest.AssetStore interface
type Backend struct {
	mu        sync.Mutex
	baseDir   string
	urlPrefix string
	keyGen    objectkey.Generator
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	strategy := config.KeyStrategy
	if strategy == "" {
		strategy = objectkey.StrategyExtension
	}
	keyGen, err := objectkey.New(strategy)
	if err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   baseDir,
		urlPrefix: strings.TrimRight(config.URLPrefix, "/"),
		keyGen:    keyGen,
	}, nil
}

// Upload writes content under the base directory. The file is written to a
// temporary name first and renamed, so a failed upload never leaves a
// truncated object behind.
func (b *Backend) Upload(ctx context.Context, params ingest.UploadParams) (*ingest.RemoteAsset, error) {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{
		Folder:   params.Folder,
		PublicID: params.PublicID,
		FileName: params.FileName,
	})
	if key == "" || params.Reader == nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: ingest.ErrUploadFailed}
	}

	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, readerWithContext(ctx, params.Reader))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: fmt.Errorf("failed to write file: %w", err)}
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return nil, &ingest.StorageError{Backend: backendName, Key: key, Op: "upload", Err: fmt.Errorf("failed to move file into place: %w", err)}
	}

	return &ingest.RemoteAsset{
		URL:          b.publicURL(key, filePath),
		Folder:       params.Folder,
		PublicID:     params.PublicID,
		ResourceType: ingest.ResourceTypeRaw,
		Bytes:        written,
	}, nil
}

// Delete removes the file stored for folder/publicID with or without an extension
func (b *Backend) Delete(ctx context.Context, folder, publicID string) error {
	key := b.keyGen.GenerateKey(&objectkey.KeyMetadata{Folder: folder, PublicID: publicID})
	base := filepath.Join(b.baseDir, filepath.FromSlash(key))

	b.mu.Lock()
	defer b.mu.Unlock()

	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}
	if _, err := os.Stat(base); err == nil {
		matches = append(matches, base)
	}
	if len(matches) == 0 {
		return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: ingest.ErrObjectNotFound}
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return &ingest.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
		}
	}
	return nil
}

func (b *Backend) publicURL(key, filePath string) string {
	if b.urlPrefix != "" {
		return b.urlPrefix + "/" + key
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filePath)}).String()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

var _ ingest.AssetStore = (*Backend)(nil)
