package docsystem

import (
	"fmt"
	"time"
)

type Document struct {
	ID                   string          `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	OriginalFilename     string          `json:"original_filename" db:"original_filename"`
	MimeType             string          `json:"mime_type" db:"mime_type"`
	SizeBytes            int64           `json:"size_bytes" db:"size_bytes"`
	StoragePath          string          `json:"storage_path" db:"storage_path"`
	FolderID             *string         `json:"folder_id" db:"folder_id"`
	FolderPath           *string         `json:"folder_path" db:"folder_path"` // Mirrors the folder's materialized path
	Status               DocumentStatus  `json:"status" db:"status"`
	ConfidentialityLevel Confidentiality `json:"confidentiality_level" db:"confidentiality_level"`
	Tags                 []string        `json:"tags" db:"tags"`
	Metadata             map[string]any  `json:"metadata,omitempty" db:"metadata"`
	Version              int             `json:"version" db:"version"`
	CategoryIDs          []string        `json:"category_ids" db:"-"`
	UploadedBy           string          `json:"uploaded_by" db:"uploaded_by"`
	IsDeleted            bool            `json:"-" db:"is_deleted"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusActive   DocumentStatus = "active"
	StatusArchived DocumentStatus = "archived"
	StatusFailed   DocumentStatus = "failed"

	// StatusDeleted is terminal and persisted through is_deleted, not the status column.
	StatusDeleted DocumentStatus = "deleted"
)

var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:  {StatusActive, StatusFailed},
	StatusActive:   {StatusArchived, StatusFailed, StatusDeleted},
	StatusArchived: {StatusDeleted},
	StatusFailed:   {StatusDeleted},
}

// CanTransition reports whether a document may move from one status to another.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing a rejected status change.
func (s DocumentStatus) ValidateTransition(to DocumentStatus) error {
	if s.CanTransition(to) {
		return nil
	}
	return fmt.Errorf("cannot transition document from %s to %s", s, to)
}

// DocumentVersion is immutable once created.
type DocumentVersion struct {
	ID            string    `json:"id" db:"id"`
	DocumentID    string    `json:"document_id" db:"document_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	StoragePath   string    `json:"storage_path" db:"storage_path"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	UploadedBy    string    `json:"uploaded_by" db:"uploaded_by"`
	ChangeSummary *string   `json:"change_summary,omitempty" db:"change_summary"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Category struct {
	ID    string  `json:"id" db:"id"`
	Name  string  `json:"name" db:"name"`
	Color *string `json:"color,omitempty" db:"color"`
	Icon  *string `json:"icon,omitempty" db:"icon"`
}

// DocumentFilter narrows document listings. Zero values mean "no filter".
type DocumentFilter struct {
	FolderID             *string
	CategoryID           *string
	Search               string
	Tags                 []string
	Status               DocumentStatus
	ConfidentialityLevel Confidentiality
	Limit                int
	Offset               int
}

// Summary aggregates storage statistics across non-deleted documents.
type Summary struct {
	TotalDocuments  int    `json:"total_documents"`
	RecentUploads   int    `json:"recent_uploads"`
	StorageUsed     string `json:"storage_used"`
	StorageBytes    int64  `json:"storage_bytes"`
	SharedDocuments int    `json:"shared_documents"`
}
