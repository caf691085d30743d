package ingest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
var (
	// ErrEmptySlug indicates a title produced no slug characters
	ErrEmptySlug = errors.New("slug is empty")

	// ErrUploadFailed indicates an upload operation failed
	ErrUploadFailed = errors.New("upload failed")

	// ErrRegistrationFailed indicates the catalog rejected a product
	ErrRegistrationFailed = errors.New("product registration failed")

	// ErrDuplicateProduct indicates the catalog enforces slug uniqueness and
	// already holds the slug
	ErrDuplicateProduct = errors.New("product already exists")

	// ErrProductNotFound indicates a product lookup found nothing
	ErrProductNotFound = errors.New("product not found")

	// ErrObjectNotFound indicates a stored object was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrCleanupSecretRequired indicates the cleanup call has no shared secret
	ErrCleanupSecretRequired = errors.New("cleanup secret is required")
)

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RegistrationError represents a non-success response from the catalog
type RegistrationError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("catalog operation %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RegistrationError) Unwrap() error {
	return ErrRegistrationFailed
}

// Temporary reports whether the failure is worth retrying.
func (e *RegistrationError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// ItemError wraps a failure of one pipeline step for one source file
type ItemError struct {
	Path  string
	State ItemState
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Path, e.State, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether err is marked as retryable by any error in its chain.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
