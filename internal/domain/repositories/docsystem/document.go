package docsystem

import (
	"context"
	"time"

	"dmsiq/internal/domain/models/docsystem"
)

// DocumentRepository defines data access operations for documents
type DocumentRepository interface {
	// Create inserts a document; ID, StoragePath and timestamps must already be set
	Create(ctx context.Context, doc *docsystem.Document) error

	// GetByID retrieves a non-deleted document by ID
	GetByID(ctx context.Context, id string) (*docsystem.Document, error)

	// Update persists mutable fields (name, folder, status, tags, version, ...)
	Update(ctx context.Context, doc *docsystem.Document) error

	// SoftDelete marks a document deleted
	SoftDelete(ctx context.Context, id string) error

	// List returns one page of matching documents and the total match count
	List(ctx context.Context, filter docsystem.DocumentFilter) ([]docsystem.Document, int, error)

	// CountByFolder counts non-deleted documents directly in a folder
	CountByFolder(ctx context.Context, folderID string) (int, error)

	// UpdateFolderPath rewrites the denormalized folder_path for documents in a folder
	UpdateFolderPath(ctx context.Context, folderID, path string) error

	// Summary aggregates storage statistics; uploads at or after since count as recent
	Summary(ctx context.Context, since time.Time) (*docsystem.Summary, error)
}

// VersionRepository stores immutable document versions
type VersionRepository interface {
	Create(ctx context.Context, version *docsystem.DocumentVersion) error

	// MaxVersionNumber returns the highest version number, or 0 when none exist
	MaxVersionNumber(ctx context.Context, documentID string) (int, error)

	// ListByDocument returns versions newest first
	ListByDocument(ctx context.Context, documentID string) ([]docsystem.DocumentVersion, error)

	GetByNumber(ctx context.Context, documentID string, number int) (*docsystem.DocumentVersion, error)
}

// CategoryRepository manages categories and the document/category join
type CategoryRepository interface {
	Create(ctx context.Context, category *docsystem.Category) error
	GetByID(ctx context.Context, id string) (*docsystem.Category, error)
	List(ctx context.Context) ([]docsystem.Category, error)

	// AddToDocument is a no-op when the association exists
	AddToDocument(ctx context.Context, documentID, categoryID string) error

	// RemoveFromDocument is a no-op when the association is absent
	RemoveFromDocument(ctx context.Context, documentID, categoryID string) error

	ListIDsForDocument(ctx context.Context, documentID string) ([]string, error)
}

// PermissionRepository stores folder and document grants
type PermissionRepository interface {
	Create(ctx context.Context, permission *docsystem.Permission) error
	GetByID(ctx context.Context, id string) (*docsystem.Permission, error)
	Delete(ctx context.Context, id string) error

	// ListByTarget returns every grant on a folder or document, expired ones included
	ListByTarget(ctx context.Context, kind docsystem.TargetKind, targetID string) ([]docsystem.Permission, error)

	// HasInheritable reports whether any grant on the folder has inherit_to_subfolders set
	HasInheritable(ctx context.Context, folderID string) (bool, error)
}
