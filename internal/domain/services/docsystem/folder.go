package docsystem

import (
	"context"

	"dmsiq/internal/domain/models"
	"dmsiq/internal/domain/models/docsystem"
)

// FolderService handles folder business logic
type FolderService interface {
	// CreateFolder creates a folder under an existing parent, or at the root
	CreateFolder(ctx context.Context, principal models.Principal, req *CreateFolderRequest) (*docsystem.Folder, error)

	// GetFolder retrieves a non-deleted folder
	GetFolder(ctx context.Context, principal models.Principal, id string) (*docsystem.Folder, error)

	// GetFolderByPath retrieves a folder by materialized path
	GetFolderByPath(ctx context.Context, principal models.Principal, path string) (*docsystem.Folder, error)

	// GetOrCreateByPath walks "/a/b/c/", creating each missing segment
	GetOrCreateByPath(ctx context.Context, principal models.Principal, path string) (*docsystem.Folder, error)

	// UpdateFolder updates descriptive fields; renaming cascades to descendants
	UpdateFolder(ctx context.Context, principal models.Principal, id string, req *UpdateFolderRequest) (*docsystem.Folder, error)

	// MoveFolder reparents a folder (nil = root) and cascades paths to descendants
	MoveFolder(ctx context.Context, principal models.Principal, id string, newParentID *string) (*docsystem.Folder, error)

	// DeleteFolder soft-deletes an empty folder
	DeleteFolder(ctx context.Context, principal models.Principal, id string) error

	// ListFolders lists children of parentID; nil lists root folders only
	ListFolders(ctx context.Context, principal models.Principal, parentID *string, filter docsystem.FolderFilter) ([]docsystem.Folder, error)

	// ListChildren lists subfolders and documents of a folder
	ListChildren(ctx context.Context, principal models.Principal, id string) (*FolderContents, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	Name                 string                    `json:"name"`
	ParentID             *string                   `json:"parent_folder_id,omitempty"` // nil for root
	Department           *string                   `json:"department,omitempty"`
	ConfidentialityLevel docsystem.Confidentiality `json:"confidentiality_level,omitempty"`
	Description          *string                   `json:"description,omitempty"`
	IsSystemFolder       bool                      `json:"is_system_folder,omitempty"`
}

// UpdateFolderRequest represents a folder update request; nil fields are left unchanged
type UpdateFolderRequest struct {
	Name                 *string                    `json:"name,omitempty"`
	Description          *string                    `json:"description,omitempty"`
	Department           *string                    `json:"department,omitempty"`
	ConfidentialityLevel *docsystem.Confidentiality `json:"confidentiality_level,omitempty"`
}

// FolderContents represents a folder with its children
type FolderContents struct {
	Folder    *docsystem.Folder    `json:"folder"`
	Folders   []docsystem.Folder   `json:"folders"`
	Documents []docsystem.Document `json:"documents"`
}
