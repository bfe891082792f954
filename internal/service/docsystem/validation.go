package docsystem

import (
	"context"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"dmsiq/internal/config"
	models "dmsiq/internal/domain/models/docsystem"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
)

var noSlash = regexp.MustCompile(`^[^/]+$`)

// folderNameRules are shared by create and rename
func folderNameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(1, config.MaxFolderNameLength),
		validation.Match(noSlash).Error("folder name cannot contain slashes"),
	}
}

// ResourceValidator resolves the resources an operation targets before authorization,
// so that a missing or soft-deleted resource is reported as domain.ErrNotFound
type ResourceValidator struct {
	folderRepo docsysRepo.FolderRepository
	docRepo    docsysRepo.DocumentRepository
}

// NewResourceValidator creates a new resource validator
func NewResourceValidator(
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
) *ResourceValidator {
	return &ResourceValidator{
		folderRepo: folderRepo,
		docRepo:    docRepo,
	}
}

// ValidateFolder ensures a folder exists and is not soft-deleted
func (v *ResourceValidator) ValidateFolder(ctx context.Context, folderID string) (*models.Folder, error) {
	folder, err := v.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("invalid folder: %w", err)
	}
	return folder, nil
}

// ValidateParent resolves an optional parent folder. A nil or empty ID is the root.
func (v *ResourceValidator) ValidateParent(ctx context.Context, parentID *string) (*models.Folder, error) {
	if parentID == nil || *parentID == "" {
		return nil, nil
	}
	return v.ValidateFolder(ctx, *parentID)
}

// ValidateDocument ensures a document exists and is not soft-deleted
func (v *ResourceValidator) ValidateDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := v.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return doc, nil
}
