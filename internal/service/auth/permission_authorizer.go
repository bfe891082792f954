package auth

import (
	"context"
	"fmt"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsysModels "dmsiq/internal/domain/models/docsystem"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
)

// PermissionAuthorizer implements ResourceAuthorizer on top of folder and document grants.
// System principals are always allowed.
type PermissionAuthorizer struct {
	resolver docsysSvc.PermissionResolver
}

// NewPermissionAuthorizer creates a new grant-based authorizer
func NewPermissionAuthorizer(resolver docsysSvc.PermissionResolver) *PermissionAuthorizer {
	return &PermissionAuthorizer{resolver: resolver}
}

// CanAccessFolder checks the principal's level on a folder
func (a *PermissionAuthorizer) CanAccessFolder(ctx context.Context, principal models.Principal, folderID string, level docsysModels.PermissionLevel) error {
	if principal.System {
		return nil
	}

	ok, err := a.resolver.HasFolderPermission(ctx, folderID, principal, level)
	if err != nil {
		return fmt.Errorf("check folder access: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s access denied to folder %s: %w", level, folderID, domain.ErrForbidden)
	}
	return nil
}

// CanAccessDocument checks the principal's level on a document
func (a *PermissionAuthorizer) CanAccessDocument(ctx context.Context, principal models.Principal, documentID string, level docsysModels.PermissionLevel) error {
	if principal.System {
		return nil
	}

	ok, err := a.resolver.HasDocumentPermission(ctx, documentID, principal, level)
	if err != nil {
		return fmt.Errorf("check document access: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s access denied to document %s: %w", level, documentID, domain.ErrForbidden)
	}
	return nil
}
