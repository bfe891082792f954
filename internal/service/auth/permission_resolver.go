package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dmsiq/internal/domain/models"
	docsysModels "dmsiq/internal/domain/models/docsystem"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
)

// PermissionResolver evaluates direct and inherited grants. It never mutates state and
// reads through the context's transaction when one is present.
//
// Resolution order for a folder:
//  1. an unexpired grant to the user at or above the required level
//  2. an unexpired grant to the user's department at or above the required level
//  3. for each ancestor, nearest first, that carries any inheritable grant: the same
//     check against that ancestor's grants
//
// Documents check their own grants first and then fall back to their folder.
type PermissionResolver struct {
	folderRepo     docsysRepo.FolderRepository
	docRepo        docsysRepo.DocumentRepository
	permissionRepo docsysRepo.PermissionRepository
	now            func() time.Time
	logger         *slog.Logger
}

// NewPermissionResolver creates a resolver using the wall clock
func NewPermissionResolver(
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
	permissionRepo docsysRepo.PermissionRepository,
	logger *slog.Logger,
) *PermissionResolver {
	return &PermissionResolver{
		folderRepo:     folderRepo,
		docRepo:        docRepo,
		permissionRepo: permissionRepo,
		now:            time.Now,
		logger:         logger,
	}
}

// WithClock replaces the clock used for expiry checks
func (r *PermissionResolver) WithClock(now func() time.Time) *PermissionResolver {
	r.now = now
	return r
}

// HasFolderPermission reports whether principal holds required on the folder
func (r *PermissionResolver) HasFolderPermission(ctx context.Context, folderID string, principal models.Principal, required docsysModels.PermissionLevel) (bool, error) {
	now := r.now()
	visited := make(map[string]bool)

	grants, err := r.permissionRepo.ListByTarget(ctx, docsysModels.TargetFolder, folderID)
	if err != nil {
		return false, fmt.Errorf("list folder grants: %w", err)
	}
	if satisfiedBy(grants, principal, required, now) {
		return true, nil
	}

	folder, err := r.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return false, err
	}
	visited[folderID] = true

	for parentID := folder.ParentID; parentID != nil; {
		if visited[*parentID] {
			r.logger.Warn("folder parent chain revisits a folder", "folder_id", folderID, "at", *parentID)
			return false, nil
		}
		visited[*parentID] = true

		// Inheritance is structural: any inheritable grant on an ancestor opens all of
		// that ancestor's grants to its descendants, whoever that grant names.
		inheritable, err := r.permissionRepo.HasInheritable(ctx, *parentID)
		if err != nil {
			return false, fmt.Errorf("check inheritable grants: %w", err)
		}
		if inheritable {
			grants, err := r.permissionRepo.ListByTarget(ctx, docsysModels.TargetFolder, *parentID)
			if err != nil {
				return false, fmt.Errorf("list folder grants: %w", err)
			}
			if satisfiedBy(grants, principal, required, now) {
				return true, nil
			}
		}

		parent, err := r.folderRepo.GetByID(ctx, *parentID)
		if err != nil {
			return false, err
		}
		parentID = parent.ParentID
	}
	return false, nil
}

// HasDocumentPermission reports whether principal holds required on the document,
// falling back to the containing folder
func (r *PermissionResolver) HasDocumentPermission(ctx context.Context, documentID string, principal models.Principal, required docsysModels.PermissionLevel) (bool, error) {
	doc, err := r.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return false, err
	}

	grants, err := r.permissionRepo.ListByTarget(ctx, docsysModels.TargetDocument, documentID)
	if err != nil {
		return false, fmt.Errorf("list document grants: %w", err)
	}
	if satisfiedBy(grants, principal, required, r.now()) {
		return true, nil
	}

	if doc.FolderID == nil {
		return false, nil
	}
	return r.HasFolderPermission(ctx, *doc.FolderID, principal, required)
}

// satisfiedBy checks user grants, then department grants
func satisfiedBy(grants []docsysModels.Permission, principal models.Principal, required docsysModels.PermissionLevel, now time.Time) bool {
	for i := range grants {
		if grants[i].IsForUser(principal.UserID) && grants[i].Grants(required, now) {
			return true
		}
	}
	for i := range grants {
		if grants[i].IsForDepartment(principal.Department) && grants[i].Grants(required, now) {
			return true
		}
	}
	return false
}
