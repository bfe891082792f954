package docsystem

import (
	"context"
	"io"

	"dmsiq/internal/domain/models"
	"dmsiq/internal/domain/models/docsystem"
)

// DocumentService handles document metadata, lifecycle and versions
type DocumentService interface {
	// CreateDocument registers metadata in the given status (pending by default)
	CreateDocument(ctx context.Context, principal models.Principal, req *CreateDocumentRequest) (*docsystem.Document, error)

	// UploadDocument creates an active document and stores its bytes atomically
	UploadDocument(ctx context.Context, principal models.Principal, req *CreateDocumentRequest, content io.Reader) (*docsystem.Document, error)

	GetDocument(ctx context.Context, principal models.Principal, id string) (*docsystem.Document, error)

	ListDocuments(ctx context.Context, principal models.Principal, filter docsystem.DocumentFilter) (*DocumentList, error)

	// UpdateDocument updates metadata; a folder change moves document_count between folders
	UpdateDocument(ctx context.Context, principal models.Principal, id string, req *UpdateDocumentRequest) (*docsystem.Document, error)

	// TransitionStatus applies one lifecycle transition
	TransitionStatus(ctx context.Context, principal models.Principal, id string, to docsystem.DocumentStatus) (*docsystem.Document, error)

	// ConfirmUpload marks a pending document active
	ConfirmUpload(ctx context.Context, principal models.Principal, id string) (*docsystem.Document, error)

	// DeleteDocument soft-deletes a document and moves its bytes to trash
	DeleteDocument(ctx context.Context, principal models.Principal, id string) error

	// AddVersion records a version whose bytes already exist at storagePath
	AddVersion(ctx context.Context, principal models.Principal, id string, req *AddVersionRequest) (*docsystem.DocumentVersion, error)

	// UploadVersion stores new bytes and records them as the next version
	UploadVersion(ctx context.Context, principal models.Principal, id string, content io.Reader, changeSummary *string) (*docsystem.DocumentVersion, error)

	ListVersions(ctx context.Context, principal models.Principal, id string) ([]docsystem.DocumentVersion, error)

	// OpenDocument returns the bytes of the current file, or of version when non-nil
	OpenDocument(ctx context.Context, principal models.Principal, id string, version *int) ([]byte, *docsystem.Document, error)

	Summary(ctx context.Context) (*docsystem.Summary, error)
}

// CategoryService manages document categories
type CategoryService interface {
	CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*docsystem.Category, error)
	ListCategories(ctx context.Context) ([]docsystem.Category, error)

	// AddCategory is idempotent
	AddCategory(ctx context.Context, principal models.Principal, documentID, categoryID string) (*docsystem.Document, error)

	// RemoveCategory is idempotent
	RemoveCategory(ctx context.Context, principal models.Principal, documentID, categoryID string) (*docsystem.Document, error)
}

// CreateDocumentRequest represents a document creation request
type CreateDocumentRequest struct {
	Name                 string                    `json:"name"`
	OriginalFilename     string                    `json:"original_filename"`
	MimeType             string                    `json:"mime_type"`
	SizeBytes            int64                     `json:"size_bytes"`
	FolderID             *string                   `json:"folder_id,omitempty"`
	Status               docsystem.DocumentStatus  `json:"status,omitempty"` // Defaults to pending
	ConfidentialityLevel docsystem.Confidentiality `json:"confidentiality_level,omitempty"`
	Tags                 []string                  `json:"tags,omitempty"`
	Metadata             map[string]any            `json:"metadata,omitempty"`
	CategoryID           *string                   `json:"category_id,omitempty"`
}

// UpdateDocumentRequest represents a document update request; nil fields are left unchanged.
// MoveToRoot detaches the document from its folder and takes precedence over FolderID.
type UpdateDocumentRequest struct {
	Name                 *string                    `json:"name,omitempty"`
	FolderID             *string                    `json:"folder_id,omitempty"`
	MoveToRoot           bool                       `json:"move_to_root,omitempty"`
	Tags                 []string                   `json:"tags,omitempty"`
	Status               *docsystem.DocumentStatus  `json:"status,omitempty"`
	ConfidentialityLevel *docsystem.Confidentiality `json:"confidentiality_level,omitempty"`
}

// AddVersionRequest describes bytes already written to storage
type AddVersionRequest struct {
	StoragePath   string  `json:"storage_path"`
	SizeBytes     int64   `json:"size_bytes"`
	ChangeSummary *string `json:"change_summary,omitempty"`
}

// CreateCategoryRequest represents a category creation request
type CreateCategoryRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
}

// DocumentList is one page of documents
type DocumentList struct {
	Documents []docsystem.Document `json:"documents"`
	Total     int                  `json:"total"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}
