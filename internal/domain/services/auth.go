package services

import (
	"context"

	"dmsiq/internal/domain/models"
	"dmsiq/internal/domain/models/docsystem"
)

// ResourceAuthorizer checks if a principal holds a permission level on a resource.
// Returns an error wrapping domain.ErrForbidden when access is denied; callers check
// existence first so that missing resources surface as domain.ErrNotFound.
type ResourceAuthorizer interface {
	// CanAccessFolder checks the principal's level on a folder
	CanAccessFolder(ctx context.Context, principal models.Principal, folderID string, level docsystem.PermissionLevel) error

	// CanAccessDocument checks the principal's level on a document (falls back to its folder)
	CanAccessDocument(ctx context.Context, principal models.Principal, documentID string, level docsystem.PermissionLevel) error
}
