package filecache

import (
	"context"

	"dmsiq/internal/domain/models/filecache"
)

// ReferenceRepository persists remote file references and their cache state
type ReferenceRepository interface {
	Create(ctx context.Context, ref *filecache.FileReference) error
	GetByID(ctx context.Context, id string) (*filecache.FileReference, error)

	// ListUncachedByOwner returns pending and failed references for an owner, oldest first
	ListUncachedByOwner(ctx context.Context, ownerID string) ([]filecache.FileReference, error)

	// ListUncached returns up to limit pending references across owners, oldest first
	ListUncached(ctx context.Context, limit int) ([]filecache.FileReference, error)

	// UpdateState persists State and FileSize
	UpdateState(ctx context.Context, ref *filecache.FileReference) error

	// CountByStatus counts an owner's references per cache status
	CountByStatus(ctx context.Context, ownerID string) (map[filecache.CacheStatus]int, error)
}
