package memory_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/catalog-ingest/pkg/ingest"
	memorystorage "github.com/tendant/catalog-ingest/pkg/ingest/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testData := "%PDF-1.4 fake document"

	t.Run("Upload", func(t *testing.T) {
		asset, err := backend.Upload(ctx, ingest.UploadParams{
			Folder:      "ebooks/dogs",
			PublicID:    "all-about-dogs",
			FileName:    "All_About-Dogs.pdf",
			ContentType: "application/pdf",
			Reader:      strings.NewReader(testData),
		})
		require.NoError(t, err)
		assert.Equal(t, "memory://ebooks/dogs/all-about-dogs", asset.URL)
		assert.Equal(t, ingest.ResourceTypeRaw, asset.ResourceType)
		assert.Equal(t, int64(len(testData)), asset.Bytes)

		data, mimeType, err := backend.Get("ebooks/dogs/all-about-dogs")
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
		assert.Equal(t, "application/pdf", mimeType)
	})

	t.Run("UploadOverwrites", func(t *testing.T) {
		_, err := backend.Upload(ctx, ingest.UploadParams{
			Folder:   "ebooks/dogs",
			PublicID: "all-about-dogs",
			Reader:   strings.NewReader("v2"),
		})
		require.NoError(t, err)

		data, mimeType, err := backend.Get("ebooks/dogs/all-about-dogs")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
		assert.Equal(t, "application/octet-stream", mimeType)
		assert.Len(t, backend.Keys(), 1)
		assert.Equal(t, 2, backend.Uploads())
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, "ebooks/dogs", "all-about-dogs"))
		assert.Empty(t, backend.Keys())

		err := backend.Delete(ctx, "ebooks/dogs", "all-about-dogs")
		assert.ErrorIs(t, err, ingest.ErrObjectNotFound)
	})

	t.Run("MissingReader", func(t *testing.T) {
		_, err := backend.Upload(ctx, ingest.UploadParams{PublicID: "x"})
		var storageErr *ingest.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "upload", storageErr.Op)
	})

	t.Run("CustomURLPrefix", func(t *testing.T) {
		b := memorystorage.New().WithURLPrefix("https://cdn.test/")
		asset, err := b.Upload(ctx, ingest.UploadParams{PublicID: "cats", Reader: strings.NewReader("x")})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.test/cats", asset.URL)
	})
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				_, err := backend.Upload(ctx, ingest.UploadParams{
					Folder:   "concurrent",
					PublicID: fmt.Sprintf("%d-%d", goroutineID, j),
					Reader:   strings.NewReader("data"),
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, backend.Keys(), numGoroutines*numOperations)
}
