package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("permission denied")

	// ErrNotEmpty is returned when deleting a folder that still holds documents or subfolders.
	ErrNotEmpty = fmt.Errorf("%w: folder is not empty", ErrValidation)

	// ErrNoSourceAvailable means a file reference has neither a readable local copy nor a URL.
	ErrNoSourceAvailable = errors.New("no source available")

	ErrCacheFailure = errors.New("cache failure")
	ErrStorageIO    = errors.New("storage i/o error")
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (document, folder, category)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageIOError wraps a failed operation against the local file store.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

func (e *StorageIOError) Is(target error) bool {
	return target == ErrStorageIO
}

// CacheFailureError describes why a remote file could not be cached.
// It is recorded on the reference and returned as a value, never treated as fatal.
type CacheFailureError struct {
	ReferenceID string
	Reason      string
}

func (e *CacheFailureError) Error() string {
	return fmt.Sprintf("cache reference %s: %s", e.ReferenceID, e.Reason)
}

func (e *CacheFailureError) Is(target error) bool {
	return target == ErrCacheFailure
}
