// Package batch drives the per-file ingestion pipeline: derive title and
// slug, upload the document, then register the product.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/catalog-ingest/pkg/ingest"
	"github.com/tendant/catalog-ingest/pkg/ingest/retry"
)

// DefaultDescriptionTemplate is used when Options.DescriptionTemplate is empty.
const DefaultDescriptionTemplate = "Free eBook: {title}."

// DuplicatePolicy decides what happens when a slug may already be registered.
type DuplicatePolicy string

const (
	// DuplicateAllow submits every item; a rerun registers every product again.
	DuplicateAllow DuplicatePolicy = "allow"
	// DuplicateSkipExisting asks the catalog first and skips known slugs.
	DuplicateSkipExisting DuplicatePolicy = "skip-existing"
)

// EmptySlugPolicy decides what happens when a title yields no slug characters.
type EmptySlugPolicy string

const (
	// EmptySlugFail fails the item before any upload.
	EmptySlugFail EmptySlugPolicy = "fail"
	// EmptySlugGenerate substitutes item-<8 hex>.
	EmptySlugGenerate EmptySlugPolicy = "generate"
)

// Skip reasons reported in ingest.ItemResult.Reason
const (
	ReasonDryRun        = "dry-run"
	ReasonTooLarge      = "file exceeds maximum size"
	ReasonAlreadyExists = "product already registered"
)

// Options configures an Orchestrator.
type Options struct {
	// Source lists and opens the documents (required)
	Source ingest.Source

	// Store receives uploads (required unless DryRun)
	Store ingest.AssetStore

	// Catalog registers products (required unless DryRun)
	Catalog ingest.Catalog

	// Folder is the namespace every upload is stored under
	Folder string

	// Product fields shared by every record
	CategoryID          string
	DescriptionTemplate string // {title} is replaced with the normalized title
	ThumbnailURL        string
	Status              string  // default: APPROVED
	FileType            string  // default: pdf
	ContentType         string  // default: application/pdf
	Price               float64 // default: 0
	Featured            bool

	// Slug shaping
	SlugSuffix      string // appended before slugification, e.g. "-cat"
	SlugMaxLength   int    // 0 disables truncation
	ASCIIFold       bool   // fold Latin diacritics before slugifying
	EmptySlugPolicy EmptySlugPolicy
	DuplicatePolicy DuplicatePolicy

	// MaxFileSize skips larger files when positive
	MaxFileSize int64

	// DryRun derives titles and slugs but performs no network calls
	DryRun bool

	// Workers > 1 processes items concurrently (default: 1, sequential)
	Workers int

	// Per-call timeouts, 0 means no timeout beyond the run context
	UploadTimeout   time.Duration
	RegisterTimeout time.Duration

	// Retry wraps every remote call (default: retry.None)
	Retry retry.Policy

	Logger *slog.Logger

	// OnProgress is called after each item reaches a terminal state (optional)
	OnProgress func(processed, total int64)

	// OnItemDone receives every terminal item result (optional)
	OnItemDone func(item ingest.ItemResult)
}

// Orchestrator runs one ingestion batch.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts, applies defaults and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == nil {
		return nil, errors.New("source is required")
	}
	if !opts.DryRun {
		if opts.Store == nil {
			return nil, errors.New("asset store is required when DryRun is false")
		}
		if opts.Catalog == nil {
			return nil, errors.New("catalog is required when DryRun is false")
		}
	}

	switch opts.DuplicatePolicy {
	case "":
		opts.DuplicatePolicy = DuplicateAllow
	case DuplicateAllow, DuplicateSkipExisting:
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", opts.DuplicatePolicy)
	}
	switch opts.EmptySlugPolicy {
	case "":
		opts.EmptySlugPolicy = EmptySlugFail
	case EmptySlugFail, EmptySlugGenerate:
	default:
		return nil, fmt.Errorf("unknown empty slug policy %q", opts.EmptySlugPolicy)
	}

	if opts.DescriptionTemplate == "" {
		opts.DescriptionTemplate = DefaultDescriptionTemplate
	}
	if opts.Status == "" {
		opts.Status = ingest.ProductStatusApproved
	}
	if opts.FileType == "" {
		opts.FileType = "pdf"
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/pdf"
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retry == nil {
		opts.Retry = retry.None{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{opts: opts, logger: logger}, nil
}

// DeriveSlug turns a title into the product slug using the configured
// folding, suffix, truncation and empty-slug policy. With SlugMaxLength set,
// the base is shortened so the suffix is kept.
func (o *Orchestrator) DeriveSlug(title string) (string, error) {
	base := title
	if o.opts.ASCIIFold {
		base = ingest.FoldASCII(base)
	}
	slug := ingest.Slugify(base)
	if slug == "" {
		if o.opts.EmptySlugPolicy != EmptySlugGenerate {
			return "", ingest.ErrEmptySlug
		}
		slug = "item-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	maxLen := o.opts.SlugMaxLength
	suffix := ingest.Slugify(o.opts.SlugSuffix)
	if suffix == "" {
		return ingest.TruncateSlug(slug, maxLen), nil
	}
	// the suffix survives truncation; only the base is shortened
	if room := maxLen - len(suffix) - 1; maxLen > 0 && room > 0 {
		slug = ingest.TruncateSlug(slug, room)
	}
	return ingest.TruncateSlug(slug+"-"+suffix, maxLen), nil
}

// Describe renders the description template for title.
func (o *Orchestrator) Describe(title string) string {
	return strings.ReplaceAll(o.opts.DescriptionTemplate, "{title}", title)
}

// Run lists the source files and processes each one. A failing item is
// recorded and the batch continues; only a listing failure or cancellation
// of ctx ends the run early. The result always reflects the items handled.
func (o *Orchestrator) Run(ctx context.Context) (*ingest.BatchResult, error) {
	result := &ingest.BatchResult{}

	files, err := o.opts.Source.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list source files: %w", err)
	}
	result.TotalFound = int64(len(files))
	o.logger.Info("starting batch", "files", len(files), "workers", o.opts.Workers, "dry_run", o.opts.DryRun)

	items := make([]ingest.ItemResult, len(files))
	done := make([]bool, len(files))
	var mu sync.Mutex

	record := func(i int, item ingest.ItemResult) {
		mu.Lock()
		defer mu.Unlock()

		items[i] = item
		done[i] = true
		switch item.State {
		case ingest.ItemSucceeded:
			result.Succeeded++
		case ingest.ItemSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if o.opts.OnItemDone != nil {
			o.opts.OnItemDone(item)
		}
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(result.Processed(), result.TotalFound)
		}
	}

	if o.opts.Workers == 1 {
		for i, file := range files {
			if ctx.Err() != nil {
				break
			}
			record(i, o.processItem(ctx, i, len(files), file))
		}
	} else {
		// items never return errors, so the group only bounds concurrency
		var g errgroup.Group
		g.SetLimit(o.opts.Workers)
		for i, file := range files {
			if ctx.Err() != nil {
				break
			}
			i, file := i, file
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				record(i, o.processItem(ctx, i, len(files), file))
				return nil
			})
		}
		_ = g.Wait()
	}

	for i := range items {
		if done[i] {
			result.Items = append(result.Items, items[i])
		}
	}

	o.logger.Info("batch complete",
		"found", result.TotalFound,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("batch aborted after %d of %d items: %w", result.Processed(), result.TotalFound, err)
	}
	return result, nil
}

func (o *Orchestrator) processItem(ctx context.Context, index, total int, file ingest.SourceFile) ingest.ItemResult {
	start := time.Now()
	item := ingest.ItemResult{Source: file, State: ingest.ItemPending}
	logger := o.logger.With("file", file.Name, "item", fmt.Sprintf("%d/%d", index+1, total))

	finish := func(state ingest.ItemState, err error) ingest.ItemResult {
		item.Duration = time.Since(start)
		if err != nil {
			item.Err = &ingest.ItemError{Path: file.Path, State: item.State, Err: err}
			item.State = ingest.ItemFailed
			logger.Error("item failed", "slug", item.Slug, "err", err)
			return item
		}
		item.State = state
		return item
	}
	skip := func(reason string) ingest.ItemResult {
		item.Reason = reason
		logger.Info("item skipped", "slug", item.Slug, "reason", reason)
		return finish(ingest.ItemSkipped, nil)
	}

	item.Title = ingest.NormalizeTitle(file.Name)
	slug, err := o.DeriveSlug(item.Title)
	if err != nil {
		return finish(ingest.ItemFailed, err)
	}
	item.Slug = slug

	if o.opts.MaxFileSize > 0 && file.Size > o.opts.MaxFileSize {
		return skip(ReasonTooLarge)
	}
	if o.opts.DryRun {
		logger.Info("would ingest", "title", item.Title, "slug", item.Slug, "size", file.Size)
		return skip(ReasonDryRun)
	}

	if o.opts.DuplicatePolicy == DuplicateSkipExisting {
		var exists bool
		err := o.opts.Retry.Do(ctx, "product_exists", func(ctx context.Context) error {
			cctx, cancel := withTimeout(ctx, o.opts.RegisterTimeout)
			defer cancel()
			var err error
			exists, err = o.opts.Catalog.ProductExists(cctx, slug)
			return err
		})
		if err != nil {
			return finish(ingest.ItemFailed, fmt.Errorf("failed to check existing product: %w", err))
		}
		if exists {
			return skip(ReasonAlreadyExists)
		}
	}

	item.State = ingest.ItemUploading
	logger.Info("uploading", "title", item.Title, "slug", slug, "size", file.Size)
	asset, err := o.upload(ctx, file, slug)
	if err != nil {
		return finish(ingest.ItemFailed, err)
	}
	item.AssetURL = asset.URL

	item.State = ingest.ItemRegistering
	record := ingest.ProductRecord{
		Title:        item.Title,
		Slug:         slug,
		Description:  o.Describe(item.Title),
		Price:        o.opts.Price,
		CategoryID:   o.opts.CategoryID,
		FileURL:      asset.URL,
		FileType:     o.opts.FileType,
		FileSize:     file.Size,
		Status:       o.opts.Status,
		Featured:     o.opts.Featured,
		ThumbnailURL: o.opts.ThumbnailURL,
	}
	err = o.opts.Retry.Do(ctx, "create_product", func(ctx context.Context) error {
		cctx, cancel := withTimeout(ctx, o.opts.RegisterTimeout)
		defer cancel()
		_, err := o.opts.Catalog.CreateProduct(cctx, record)
		return err
	})
	if err != nil {
		return finish(ingest.ItemFailed, err)
	}

	logger.Info("product registered", "slug", slug, "url", asset.URL)
	return finish(ingest.ItemSucceeded, nil)
}

// upload reopens the file on every attempt since a failed attempt may have
// consumed the reader.
func (o *Orchestrator) upload(ctx context.Context, file ingest.SourceFile, slug string) (*ingest.RemoteAsset, error) {
	var asset *ingest.RemoteAsset
	err := o.opts.Retry.Do(ctx, "upload", func(ctx context.Context) error {
		rc, err := o.opts.Source.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer rc.Close()

		uctx, cancel := withTimeout(ctx, o.opts.UploadTimeout)
		defer cancel()

		asset, err = o.opts.Store.Upload(uctx, ingest.UploadParams{
			Folder:      o.opts.Folder,
			PublicID:    slug,
			FileName:    file.Name,
			ContentType: o.opts.ContentType,
			Size:        file.Size,
			Reader:      rc,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if asset == nil || asset.URL == "" {
		return nil, fmt.Errorf("%w: store returned no url", ingest.ErrUploadFailed)
	}
	return asset, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
