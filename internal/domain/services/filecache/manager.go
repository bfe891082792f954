package filecache

import (
	"context"
	"time"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models/filecache"
)

// RemoteFileManager resolves file bytes from the local cache or the remote URL and
// manages the one-way transition from remote-only to cached.
type RemoteFileManager interface {
	// Register records a pending reference without fetching it
	Register(ctx context.Context, req *RegisterRequest) (*filecache.FileReference, error)

	// GetFile returns bytes from the local cache when cached, else from the URL.
	// A plain read never changes cache state.
	GetFile(ctx context.Context, id string) ([]byte, *filecache.Metadata, error)

	// CacheFile downloads and stores a reference. Idempotent; at most one fetch per
	// reference is in flight. Fetch and disk errors are reported in the result.
	CacheFile(ctx context.Context, id string) (*CacheResult, error)

	// BulkCache caches every uncached reference of an owner, continuing past failures
	BulkCache(ctx context.Context, ownerID string) (*BulkResult, error)

	// CacheUncached caches up to limit uncached references across owners
	CacheUncached(ctx context.Context, limit int) (*BulkResult, error)

	// Retry moves a failed reference back to pending
	Retry(ctx context.Context, id string) (*filecache.FileReference, error)

	GetCacheStatus(ctx context.Context, ownerID string) (*filecache.Status, error)

	// ListUncached returns pending references for background caching
	ListUncached(ctx context.Context, limit int) ([]filecache.FileReference, error)

	// LocalPath returns the on-disk location of a cached copy
	LocalPath(ctx context.Context, id string) (string, error)
}

// RegisterRequest describes a newly discovered remote file
type RegisterRequest struct {
	OwnerID      string    `json:"owner_id"`
	FileName     string    `json:"file_name"`
	FileURL      string    `json:"file_url"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// CacheResult reports the outcome of one CacheFile call
type CacheResult struct {
	Reference  *filecache.FileReference
	Downloaded bool                      // false when the reference was already cached
	Failure    *domain.CacheFailureError // set when the reference ended in the failed state
}

// BulkResult counts outcomes of a batch; Errors aggregates individual failures
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    error
}
