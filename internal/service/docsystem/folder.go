package docsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"dmsiq/internal/config"
	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/domain/repositories"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	"dmsiq/internal/domain/services"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
	"dmsiq/internal/utils"
)

type folderService struct {
	folderRepo     docsysRepo.FolderRepository
	docRepo        docsysRepo.DocumentRepository
	permissionRepo docsysRepo.PermissionRepository
	txManager      repositories.TransactionManager
	validator      *ResourceValidator
	authorizer     services.ResourceAuthorizer
	logger         *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo docsysRepo.FolderRepository,
	docRepo docsysRepo.DocumentRepository,
	permissionRepo docsysRepo.PermissionRepository,
	txManager repositories.TransactionManager,
	validator *ResourceValidator,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) docsysSvc.FolderService {
	return &folderService{
		folderRepo:     folderRepo,
		docRepo:        docRepo,
		permissionRepo: permissionRepo,
		txManager:      txManager,
		validator:      validator,
		authorizer:     authorizer,
		logger:         logger,
	}
}

// CreateFolder creates a folder under an existing parent, or at the root.
// A non-system creator receives an inheritable admin grant on the new folder.
func (s *folderService) CreateFolder(ctx context.Context, principal models.Principal, req *docsysSvc.CreateFolderRequest) (*docsys.Folder, error) {
	var folder *docsys.Folder
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.create(ctx, principal, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"parent_folder_id", folder.ParentID,
		"path", folder.Path,
	)
	return folder, nil
}

// create runs inside the caller's transaction
func (s *folderService) create(ctx context.Context, principal models.Principal, req *docsysSvc.CreateFolderRequest) (*docsys.Folder, error) {
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	parent, err := s.validator.ValidateParent(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}

	var parentPath *string
	if parent != nil {
		if err := s.authorizer.CanAccessFolder(ctx, principal, parent.ID, docsys.LevelWrite); err != nil {
			return nil, err
		}
		parentPath = &parent.Path
	}

	if err := s.checkSiblingName(ctx, req.ParentID, req.Name, ""); err != nil {
		return nil, err
	}

	level := req.ConfidentialityLevel
	if level == "" {
		level = docsys.ConfidentialityInternal
	}

	folder := &docsys.Folder{
		ParentID:             req.ParentID,
		Name:                 req.Name,
		Path:                 ComputePath(req.Name, parentPath),
		Department:           req.Department,
		ConfidentialityLevel: level,
		Description:          req.Description,
		IsSystemFolder:       req.IsSystemFolder,
		CreatedBy:            principal.UserID,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	if !principal.System {
		owner := principal.UserID
		grant := &docsys.Permission{
			TargetKind:          docsys.TargetFolder,
			TargetID:            folder.ID,
			UserID:              &owner,
			Level:               docsys.LevelAdmin,
			InheritToSubfolders: true,
			GrantedBy:           principal.UserID,
		}
		if err := s.permissionRepo.Create(ctx, grant); err != nil {
			return nil, fmt.Errorf("grant creator access: %w", err)
		}
	}

	return folder, nil
}

// GetFolder retrieves a non-deleted folder
func (s *folderService) GetFolder(ctx context.Context, principal models.Principal, id string) (*docsys.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessFolder(ctx, principal, id, docsys.LevelRead); err != nil {
		return nil, err
	}
	return folder, nil
}

// GetFolderByPath retrieves a folder by materialized path; the path is normalized first
func (s *folderService) GetFolderByPath(ctx context.Context, principal models.Principal, path string) (*docsys.Folder, error) {
	normalized, err := utils.NormalizeFolderPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	folder, err := s.folderRepo.GetByPath(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessFolder(ctx, principal, folder.ID, docsys.LevelRead); err != nil {
		return nil, err
	}
	return folder, nil
}

// GetOrCreateByPath walks the path from the root, creating each missing segment
func (s *folderService) GetOrCreateByPath(ctx context.Context, principal models.Principal, path string) (*docsys.Folder, error) {
	segments, err := utils.SplitFolderPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var folder *docsys.Folder
	created := 0
	err = s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var parentID, parentPath *string
		for _, segment := range segments {
			segment = strings.TrimSpace(segment)
			existing, err := s.folderRepo.GetByPath(ctx, ComputePath(segment, parentPath))
			switch {
			case err == nil:
				folder = existing
			case errors.Is(err, domain.ErrNotFound):
				folder, err = s.create(ctx, principal, &docsysSvc.CreateFolderRequest{
					Name:     segment,
					ParentID: parentID,
				})
				if err != nil {
					return err
				}
				created++
			default:
				return err
			}
			parentID, parentPath = &folder.ID, &folder.Path
		}

		if created == 0 {
			return s.authorizer.CanAccessFolder(ctx, principal, folder.ID, docsys.LevelRead)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created > 0 {
		s.logger.Info("folder path created", "path", folder.Path, "created_segments", created)
	}
	return folder, nil
}

// UpdateFolder updates descriptive fields. A rename rewrites the folder's path and the
// paths of all descendants in the same transaction.
func (s *folderService) UpdateFolder(ctx context.Context, principal models.Principal, id string, req *docsysSvc.UpdateFolderRequest) (*docsys.Folder, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var folder *docsys.Folder
	var cascaded int
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.validator.ValidateFolder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.CanAccessFolder(ctx, principal, id, docsys.LevelWrite); err != nil {
			return err
		}

		if req.Description != nil {
			folder.Description = req.Description
		}
		if req.Department != nil {
			folder.Department = req.Department
		}
		if req.ConfidentialityLevel != nil {
			folder.ConfidentialityLevel = *req.ConfidentialityLevel
		}

		if req.Name != nil && strings.TrimSpace(*req.Name) != folder.Name {
			name := strings.TrimSpace(*req.Name)
			if err := s.checkSiblingName(ctx, folder.ParentID, name, folder.ID); err != nil {
				return err
			}

			var parentPath *string
			if folder.ParentID != nil {
				parent, err := s.validator.ValidateFolder(ctx, *folder.ParentID)
				if err != nil {
					return err
				}
				parentPath = &parent.Path
			}

			folder.Name = name
			cascaded, err = s.relocate(ctx, folder, ComputePath(name, parentPath))
			if err != nil {
				return err
			}
		}

		return s.folderRepo.Update(ctx, folder)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder updated",
		"id", folder.ID,
		"name", folder.Name,
		"path", folder.Path,
		"descendants_updated", cascaded,
	)
	return folder, nil
}

// MoveFolder reparents a folder (nil = root). Write access is required on the folder
// and on the destination.
func (s *folderService) MoveFolder(ctx context.Context, principal models.Principal, id string, newParentID *string) (*docsys.Folder, error) {
	if newParentID != nil && *newParentID == "" {
		newParentID = nil
	}

	var folder *docsys.Folder
	var cascaded int
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.validator.ValidateFolder(ctx, id)
		if err != nil {
			return err
		}
		parent, err := s.validator.ValidateParent(ctx, newParentID)
		if err != nil {
			return err
		}

		if err := s.authorizer.CanAccessFolder(ctx, principal, id, docsys.LevelWrite); err != nil {
			return err
		}
		var parentPath *string
		if parent != nil {
			if err := s.authorizer.CanAccessFolder(ctx, principal, parent.ID, docsys.LevelWrite); err != nil {
				return err
			}
			parentPath = &parent.Path
		}

		subtree, err := s.folderRepo.ListSubtree(ctx, folder.Path)
		if err != nil {
			return fmt.Errorf("load subtree: %w", err)
		}
		if err := ValidateMove(folder.ID, newParentID, subtree); err != nil {
			return err
		}
		if err := s.checkSiblingName(ctx, newParentID, folder.Name, folder.ID); err != nil {
			return err
		}

		folder.ParentID = newParentID
		cascaded, err = s.relocateSubtree(ctx, folder, ComputePath(folder.Name, parentPath), subtree)
		if err != nil {
			return err
		}
		return s.folderRepo.Update(ctx, folder)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder moved",
		"id", folder.ID,
		"parent_folder_id", folder.ParentID,
		"path", folder.Path,
		"descendants_updated", cascaded,
	)
	return folder, nil
}

// relocate loads the folder's subtree and cascades newPath through it
func (s *folderService) relocate(ctx context.Context, folder *docsys.Folder, newPath string) (int, error) {
	subtree, err := s.folderRepo.ListSubtree(ctx, folder.Path)
	if err != nil {
		return 0, fmt.Errorf("load subtree: %w", err)
	}
	return s.relocateSubtree(ctx, folder, newPath, subtree)
}

// relocateSubtree rewrites folder paths and the folder_path of their documents.
// folder.Path is set to newPath; the caller persists the folder itself.
func (s *folderService) relocateSubtree(ctx context.Context, folder *docsys.Folder, newPath string, subtree []docsys.Folder) (int, error) {
	updates, err := CascadePaths(*folder, newPath, subtree)
	if err != nil {
		return 0, err
	}

	// The folder row is written by the caller with its other changes.
	descendants := make([]docsys.PathUpdate, 0, len(updates))
	for _, u := range updates {
		if u.FolderID != folder.ID {
			descendants = append(descendants, u)
		}
	}
	if len(descendants) > 0 {
		if err := s.folderRepo.UpdatePaths(ctx, descendants); err != nil {
			return 0, fmt.Errorf("update descendant paths: %w", err)
		}
	}

	for _, u := range updates {
		if err := s.docRepo.UpdateFolderPath(ctx, u.FolderID, u.NewPath); err != nil {
			return 0, fmt.Errorf("update document folder paths: %w", err)
		}
	}

	folder.Path = newPath
	return len(descendants), nil
}

// DeleteFolder soft-deletes an empty folder. Subfolders and documents must be removed first.
func (s *folderService) DeleteFolder(ctx context.Context, principal models.Principal, id string) error {
	var folder *docsys.Folder
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		folder, err = s.validator.ValidateFolder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.CanAccessFolder(ctx, principal, id, docsys.LevelAdmin); err != nil {
			return err
		}

		subfolders, err := s.folderRepo.CountChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("count subfolders: %w", err)
		}
		docs, err := s.docRepo.CountByFolder(ctx, id)
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		if subfolders > 0 || docs > 0 {
			return fmt.Errorf("%w: %d subfolders, %d documents remain in %s",
				domain.ErrNotEmpty, subfolders, docs, folder.Path)
		}

		return s.folderRepo.SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("folder deleted", "id", id, "path", folder.Path)
	return nil
}

// ListFolders lists the children of parentID. A nil parent lists root folders, keeping
// only those the principal can read.
func (s *folderService) ListFolders(ctx context.Context, principal models.Principal, parentID *string, filter docsys.FolderFilter) ([]docsys.Folder, error) {
	if parentID != nil && *parentID == "" {
		parentID = nil
	}

	if parentID != nil {
		if _, err := s.validator.ValidateFolder(ctx, *parentID); err != nil {
			return nil, err
		}
		if err := s.authorizer.CanAccessFolder(ctx, principal, *parentID, docsys.LevelRead); err != nil {
			return nil, err
		}
	}

	folders, err := s.folderRepo.ListChildren(ctx, parentID, filter)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	if parentID != nil || principal.System {
		return folders, nil
	}

	visible := folders[:0]
	for _, f := range folders {
		err := s.authorizer.CanAccessFolder(ctx, principal, f.ID, docsys.LevelRead)
		switch {
		case err == nil:
			visible = append(visible, f)
		case errors.Is(err, domain.ErrForbidden):
		default:
			return nil, err
		}
	}
	return visible, nil
}

// ListChildren lists subfolders and documents of a folder
func (s *folderService) ListChildren(ctx context.Context, principal models.Principal, id string) (*docsysSvc.FolderContents, error) {
	folder, err := s.validator.ValidateFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessFolder(ctx, principal, id, docsys.LevelRead); err != nil {
		return nil, err
	}

	folders, err := s.folderRepo.ListChildren(ctx, &id, docsys.FolderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}
	docs, _, err := s.docRepo.List(ctx, docsys.DocumentFilter{FolderID: &id, Limit: config.MaxDocumentPageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return &docsysSvc.FolderContents{
		Folder:    folder,
		Folders:   folders,
		Documents: docs,
	}, nil
}

// checkSiblingName rejects a name already used by another non-deleted folder under parentID
func (s *folderService) checkSiblingName(ctx context.Context, parentID *string, name, selfID string) error {
	siblings, err := s.folderRepo.ListChildren(ctx, parentID, docsys.FolderFilter{})
	if err != nil {
		return fmt.Errorf("failed to check for duplicate names: %w", err)
	}
	for _, sibling := range siblings {
		if sibling.ID != selfID && sibling.Name == name {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
				ResourceType: "folder",
				ResourceID:   sibling.ID,
			}
		}
	}
	return nil
}

// validateCreateRequest validates a folder creation request
func (s *folderService) validateCreateRequest(req *docsysSvc.CreateFolderRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, folderNameRules()...),
		validation.Field(&req.ConfidentialityLevel, validation.In(docsys.ConfidentialityLevels...)),
	)
}

// validateUpdateRequest validates a folder update request
func (s *folderService) validateUpdateRequest(req *docsysSvc.UpdateFolderRequest) error {
	if req.Name == nil && req.Description == nil && req.Department == nil && req.ConfidentialityLevel == nil {
		return fmt.Errorf("at least one field must be provided")
	}

	var rules []*validation.FieldRules
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		rules = append(rules, validation.Field(&req.Name, folderNameRules()...))
	}
	if req.ConfidentialityLevel != nil {
		rules = append(rules, validation.Field(&req.ConfidentialityLevel,
			validation.Required,
			validation.In(docsys.ConfidentialityLevels...),
		))
	}

	return validation.ValidateStruct(req, rules...)
}
