package docsystem

import (
	"time"
)

type Folder struct {
	ID                   string          `json:"id" db:"id"`
	ParentID             *string         `json:"parent_folder_id" db:"parent_id"` // NULL = root level
	Name                 string          `json:"name" db:"name"`
	Path                 string          `json:"path" db:"path"` // Materialized: "/Legal/Cases/"
	DocumentCount        int             `json:"document_count" db:"document_count"`
	Department           *string         `json:"department,omitempty" db:"department"`
	ConfidentialityLevel Confidentiality `json:"confidentiality_level" db:"confidentiality_level"`
	Description          *string         `json:"description,omitempty" db:"description"`
	IsSystemFolder       bool            `json:"is_system_folder" db:"is_system_folder"`
	IsDeleted            bool            `json:"-" db:"is_deleted"`
	CreatedBy            string          `json:"created_by" db:"created_by"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// Confidentiality classifies folders and documents.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "public"
	ConfidentialityInternal     Confidentiality = "internal"
	ConfidentialityConfidential Confidentiality = "confidential"
	ConfidentialityRestricted   Confidentiality = "restricted"
)

// ConfidentialityLevels lists the accepted values, for validation rules.
var ConfidentialityLevels = []interface{}{
	ConfidentialityPublic,
	ConfidentialityInternal,
	ConfidentialityConfidential,
	ConfidentialityRestricted,
}

// FolderFilter narrows folder listings. Zero values mean "no filter".
type FolderFilter struct {
	Department string
	Search     string // Case-insensitive substring of the name
}

// PathUpdate rewrites one folder's materialized path.
type PathUpdate struct {
	FolderID string
	OldPath  string
	NewPath  string
}
