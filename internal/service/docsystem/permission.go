package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/domain/repositories"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	"dmsiq/internal/domain/services"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
)

type permissionService struct {
	permissionRepo docsysRepo.PermissionRepository
	txManager      repositories.TransactionManager
	validator      *ResourceValidator
	authorizer     services.ResourceAuthorizer
	now            func() time.Time
	logger         *slog.Logger
}

// NewPermissionService creates a new permission service. Managing grants requires admin
// on the target.
func NewPermissionService(
	permissionRepo docsysRepo.PermissionRepository,
	txManager repositories.TransactionManager,
	validator *ResourceValidator,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) docsysSvc.PermissionService {
	return &permissionService{
		permissionRepo: permissionRepo,
		txManager:      txManager,
		validator:      validator,
		authorizer:     authorizer,
		now:            time.Now,
		logger:         logger,
	}
}

func (s *permissionService) Grant(ctx context.Context, principal models.Principal, req *docsysSvc.GrantRequest) (*docsys.Permission, error) {
	if err := s.validateGrantRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	permission := &docsys.Permission{
		TargetKind:          req.TargetKind,
		TargetID:            req.TargetID,
		UserID:              nonEmpty(req.UserID),
		Department:          nonEmpty(req.Department),
		Level:               req.Level,
		InheritToSubfolders: req.InheritToSubfolders && req.TargetKind == docsys.TargetFolder,
		GrantedBy:           principal.UserID,
		GrantedAt:           s.now(),
		ValidUntil:          req.ValidUntil,
	}

	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.authorizeTarget(ctx, principal, req.TargetKind, req.TargetID); err != nil {
			return err
		}
		return s.permissionRepo.Create(ctx, permission)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("permission granted",
		"id", permission.ID,
		"target_kind", permission.TargetKind,
		"target_id", permission.TargetID,
		"user_id", permission.UserID,
		"department", permission.Department,
		"level", permission.Level,
		"inherit", permission.InheritToSubfolders,
	)
	return permission, nil
}

// Revoke deletes a grant. A grant that exists on another target is reported as not found.
func (s *permissionService) Revoke(ctx context.Context, principal models.Principal, kind docsys.TargetKind, targetID, permissionID string) error {
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.authorizeTarget(ctx, principal, kind, targetID); err != nil {
			return err
		}

		permission, err := s.permissionRepo.GetByID(ctx, permissionID)
		if err != nil {
			return err
		}
		if permission.TargetKind != kind || permission.TargetID != targetID {
			return fmt.Errorf("permission %s on %s %s: %w", permissionID, kind, targetID, domain.ErrNotFound)
		}
		return s.permissionRepo.Delete(ctx, permissionID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("permission revoked", "id", permissionID, "target_kind", kind, "target_id", targetID)
	return nil
}

// List returns every grant on the target, expired ones included
func (s *permissionService) List(ctx context.Context, principal models.Principal, kind docsys.TargetKind, targetID string) ([]docsys.Permission, error) {
	if err := s.authorizeTarget(ctx, principal, kind, targetID); err != nil {
		return nil, err
	}

	permissions, err := s.permissionRepo.ListByTarget(ctx, kind, targetID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	if permissions == nil {
		permissions = []docsys.Permission{}
	}
	return permissions, nil
}

// authorizeTarget checks the target exists, then that the principal administers it
func (s *permissionService) authorizeTarget(ctx context.Context, principal models.Principal, kind docsys.TargetKind, targetID string) error {
	switch kind {
	case docsys.TargetFolder:
		if _, err := s.validator.ValidateFolder(ctx, targetID); err != nil {
			return err
		}
		return s.authorizer.CanAccessFolder(ctx, principal, targetID, docsys.LevelAdmin)
	case docsys.TargetDocument:
		if _, err := s.validator.ValidateDocument(ctx, targetID); err != nil {
			return err
		}
		return s.authorizer.CanAccessDocument(ctx, principal, targetID, docsys.LevelAdmin)
	default:
		return fmt.Errorf("%w: unknown target kind %q", domain.ErrValidation, kind)
	}
}

// nonEmpty treats a pointer to "" as unset
func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// validateGrantRequest enforces exactly one of user or department
func (s *permissionService) validateGrantRequest(req *docsysSvc.GrantRequest) error {
	hasUser := nonEmpty(req.UserID) != nil
	hasDepartment := nonEmpty(req.Department) != nil
	if hasUser == hasDepartment {
		return fmt.Errorf("exactly one of user_id or department must be set")
	}

	return validation.ValidateStruct(req,
		validation.Field(&req.TargetKind, validation.Required, validation.In(docsys.TargetFolder, docsys.TargetDocument)),
		validation.Field(&req.TargetID, validation.Required),
		validation.Field(&req.Level, validation.Required, validation.In(docsys.PermissionLevels...)),
		validation.Field(&req.ValidUntil, validation.By(func(value interface{}) error {
			until, _ := value.(*time.Time)
			if until != nil && !until.After(s.now()) {
				return fmt.Errorf("must be in the future")
			}
			return nil
		})),
	)
}
