package docsystem

import (
	"context"
	"time"

	"dmsiq/internal/domain/models"
	"dmsiq/internal/domain/models/docsystem"
)

// PermissionService grants, revokes and lists folder and document permissions
type PermissionService interface {
	Grant(ctx context.Context, principal models.Principal, req *GrantRequest) (*docsystem.Permission, error)

	// Revoke deletes a grant; it must belong to the given target
	Revoke(ctx context.Context, principal models.Principal, kind docsystem.TargetKind, targetID, permissionID string) error

	List(ctx context.Context, principal models.Principal, kind docsystem.TargetKind, targetID string) ([]docsystem.Permission, error)
}

// PermissionResolver answers whether a principal holds a level on a target. Read-only.
type PermissionResolver interface {
	HasFolderPermission(ctx context.Context, folderID string, principal models.Principal, required docsystem.PermissionLevel) (bool, error)
	HasDocumentPermission(ctx context.Context, documentID string, principal models.Principal, required docsystem.PermissionLevel) (bool, error)
}

// GrantRequest grants a level to exactly one of UserID or Department
type GrantRequest struct {
	TargetKind          docsystem.TargetKind      `json:"target_kind"`
	TargetID            string                    `json:"target_id"`
	UserID              *string                   `json:"user_id,omitempty"`
	Department          *string                   `json:"department,omitempty"`
	Level               docsystem.PermissionLevel `json:"permission_level"`
	InheritToSubfolders bool                      `json:"inherit_to_subfolders"`
	ValidUntil          *time.Time                `json:"valid_until,omitempty"`
}
