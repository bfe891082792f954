package docsystem

import (
	"context"

	"dmsiq/internal/domain/models/docsystem"
)

// FolderRepository defines data access operations for folders.
// Every read skips soft-deleted rows.
type FolderRepository interface {
	// Create inserts a folder, assigning ID and timestamps
	Create(ctx context.Context, folder *docsystem.Folder) error

	// GetByID retrieves a folder by ID
	GetByID(ctx context.Context, id string) (*docsystem.Folder, error)

	// GetByPath retrieves a folder by its materialized path
	GetByPath(ctx context.Context, path string) (*docsystem.Folder, error)

	// Update persists name, parent, path and descriptive fields
	Update(ctx context.Context, folder *docsystem.Folder) error

	// SoftDelete marks a folder deleted
	SoftDelete(ctx context.Context, id string) error

	// ListChildren lists immediate child folders; parentID nil lists root folders
	ListChildren(ctx context.Context, parentID *string, filter docsystem.FolderFilter) ([]docsystem.Folder, error)

	// ListSubtree returns the folder at path and every descendant (path prefix match)
	ListSubtree(ctx context.Context, path string) ([]docsystem.Folder, error)

	// UpdatePaths rewrites materialized paths in bulk
	UpdatePaths(ctx context.Context, updates []docsystem.PathUpdate) error

	// CountChildren counts non-deleted immediate subfolders
	CountChildren(ctx context.Context, id string) (int, error)

	// AdjustDocumentCount adds delta to document_count, never going below zero.
	// Must run in the same transaction as the document mutation.
	AdjustDocumentCount(ctx context.Context, id string, delta int) error
}
