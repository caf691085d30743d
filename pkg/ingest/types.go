package ingest

import (
	"io"
	"time"
)

// ResourceTypeRaw is the resource type of every uploaded asset.
const ResourceTypeRaw = "raw"

// Product status values accepted by the catalog.
const (
	ProductStatusApproved = "APPROVED"
	ProductStatusPending  = "PENDING"
	ProductStatusDraft    = "DRAFT"
)

// SourceFile is a local file eligible for ingestion.
type SourceFile struct {
	Path string // absolute or working-directory relative path
	Name string // base filename including extension
	Size int64  // size in bytes at enumeration time
}

// UploadParams describes a single upload to an AssetStore.
type UploadParams struct {
	Folder      string
	PublicID    string
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// RemoteAsset is the result of a successful upload.
type RemoteAsset struct {
	URL          string
	Folder       string
	PublicID     string
	ResourceType string
	Bytes        int64
}

// ProductRecord is the payload submitted to the catalog.
type ProductRecord struct {
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	CategoryID   string  `json:"categoryId"`
	FileURL      string  `json:"fileUrl"`
	FileType     string  `json:"fileType"`
	FileSize     int64   `json:"fileSize"`
	Status       string  `json:"status"`
	Featured     bool    `json:"featured"`
	ThumbnailURL string  `json:"thumbnailUrl"`
}

// CreatedProduct is what the catalog reports back after a successful create.
// ID may be empty when the backend does not return one.
type CreatedProduct struct {
	ID   string
	Slug string
	Raw  []byte
}

// ItemState is the processing state of a single source file.
type ItemState string

const (
	ItemPending     ItemState = "pending"
	ItemUploading   ItemState = "uploading"
	ItemRegistering ItemState = "registering"
	ItemSucceeded   ItemState = "succeeded"
	ItemFailed      ItemState = "failed"
	ItemSkipped     ItemState = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s ItemState) Terminal() bool {
	return s == ItemSucceeded || s == ItemFailed || s == ItemSkipped
}

// ItemResult records the outcome of one source file.
type ItemResult struct {
	Source   SourceFile
	Title    string
	Slug     string
	State    ItemState
	AssetURL string
	Reason   string // skip reason, empty otherwise
	Err      error
	Duration time.Duration
}

// BatchResult tallies one orchestrator run. It is never persisted.
type BatchResult struct {
	TotalFound int64
	Succeeded  int64
	Failed     int64
	Skipped    int64
	Items      []ItemResult
}

// Processed returns the number of items that reached a terminal state.
func (r *BatchResult) Processed() int64 {
	return r.Succeeded + r.Failed + r.Skipped
}

// FailedItems returns the results of failed items in processing order.
func (r *BatchResult) FailedItems() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if item.State == ItemFailed {
			failed = append(failed, item)
		}
	}
	return failed
}
