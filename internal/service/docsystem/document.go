package docsystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

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

type documentService struct {
	docRepo        docsysRepo.DocumentRepository
	versionRepo    docsysRepo.VersionRepository
	folderRepo     docsysRepo.FolderRepository
	categoryRepo   docsysRepo.CategoryRepository
	permissionRepo docsysRepo.PermissionRepository
	fileStore      services.FileStore
	txManager      repositories.TransactionManager
	validator      *ResourceValidator
	authorizer     services.ResourceAuthorizer
	now            func() time.Time
	logger         *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docRepo docsysRepo.DocumentRepository,
	versionRepo docsysRepo.VersionRepository,
	folderRepo docsysRepo.FolderRepository,
	categoryRepo docsysRepo.CategoryRepository,
	permissionRepo docsysRepo.PermissionRepository,
	fileStore services.FileStore,
	txManager repositories.TransactionManager,
	validator *ResourceValidator,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) docsysSvc.DocumentService {
	return &documentService{
		docRepo:        docRepo,
		versionRepo:    versionRepo,
		folderRepo:     folderRepo,
		categoryRepo:   categoryRepo,
		permissionRepo: permissionRepo,
		fileStore:      fileStore,
		txManager:      txManager,
		validator:      validator,
		authorizer:     authorizer,
		now:            time.Now,
		logger:         logger,
	}
}

// StoragePath is the deterministic location of a document's first file:
// documents/YYYY/MM/{id}-{sanitized filename}
func StoragePath(id, filename string, at time.Time) string {
	return fmt.Sprintf("documents/%04d/%02d/%s-%s", at.Year(), int(at.Month()), id, utils.SanitizeFilename(filename))
}

// VersionStoragePath is the location of the bytes of version n
func VersionStoragePath(id string, n int, filename string, at time.Time) string {
	return fmt.Sprintf("documents/%04d/%02d/%s-v%d-%s", at.Year(), int(at.Month()), id, n, utils.SanitizeFilename(filename))
}

// CreateDocument registers document metadata without bytes
func (s *documentService) CreateDocument(ctx context.Context, principal models.Principal, req *docsysSvc.CreateDocumentRequest) (*docsys.Document, error) {
	if req.Status == "" {
		req.Status = docsys.StatusPending
	}
	return s.create(ctx, principal, req, nil)
}

// UploadDocument creates an active document and writes its bytes in the same transaction.
// A failed write rolls back the row, the initial version and the folder counter.
func (s *documentService) UploadDocument(ctx context.Context, principal models.Principal, req *docsysSvc.CreateDocumentRequest, content io.Reader) (*docsys.Document, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}
	req.Status = docsys.StatusActive
	return s.create(ctx, principal, req, content)
}

func (s *documentService) create(ctx context.Context, principal models.Principal, req *docsysSvc.CreateDocumentRequest, content io.Reader) (*docsys.Document, error) {
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.OriginalFilename == "" {
		req.OriginalFilename = req.Name
	}
	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	level := req.ConfidentialityLevel
	if level == "" {
		level = docsys.ConfidentialityInternal
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	id := uuid.NewString()
	doc := &docsys.Document{
		ID:                   id,
		Name:                 req.Name,
		OriginalFilename:     req.OriginalFilename,
		MimeType:             req.MimeType,
		SizeBytes:            req.SizeBytes,
		StoragePath:          StoragePath(id, req.OriginalFilename, now),
		FolderID:             req.FolderID,
		Status:               req.Status,
		ConfidentialityLevel: level,
		Tags:                 tags,
		Metadata:             req.Metadata,
		Version:              1,
		UploadedBy:           principal.UserID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	saved := false
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		folder, err := s.validator.ValidateParent(ctx, req.FolderID)
		if err != nil {
			return err
		}
		var category *docsys.Category
		if req.CategoryID != nil {
			if category, err = s.categoryRepo.GetByID(ctx, *req.CategoryID); err != nil {
				return err
			}
		}
		if folder != nil {
			if err := s.authorizer.CanAccessFolder(ctx, principal, folder.ID, docsys.LevelWrite); err != nil {
				return err
			}
			doc.FolderPath = &folder.Path
		}

		if err := s.docRepo.Create(ctx, doc); err != nil {
			return err
		}

		if content != nil {
			n, err := s.fileStore.Save(ctx, doc.StoragePath, content)
			if err != nil {
				return storageErr("save", doc.StoragePath, err)
			}
			saved = true
			if n != doc.SizeBytes {
				doc.SizeBytes = n
				if err := s.docRepo.Update(ctx, doc); err != nil {
					return err
				}
			}
		}

		if err := s.versionRepo.Create(ctx, &docsys.DocumentVersion{
			DocumentID:    doc.ID,
			VersionNumber: 1,
			StoragePath:   doc.StoragePath,
			SizeBytes:     doc.SizeBytes,
			UploadedBy:    principal.UserID,
		}); err != nil {
			return fmt.Errorf("record initial version: %w", err)
		}

		if folder != nil {
			if err := s.folderRepo.AdjustDocumentCount(ctx, folder.ID, 1); err != nil {
				return fmt.Errorf("increment document count: %w", err)
			}
		} else if !principal.System {
			// Root documents are reachable only through document grants.
			owner := principal.UserID
			if err := s.permissionRepo.Create(ctx, &docsys.Permission{
				TargetKind: docsys.TargetDocument,
				TargetID:   doc.ID,
				UserID:     &owner,
				Level:      docsys.LevelAdmin,
				GrantedBy:  principal.UserID,
			}); err != nil {
				return fmt.Errorf("grant creator access: %w", err)
			}
		}

		if category != nil {
			if err := s.categoryRepo.AddToDocument(ctx, doc.ID, category.ID); err != nil {
				return err
			}
			doc.CategoryIDs = []string{category.ID}
		}
		return nil
	})
	if err != nil {
		if saved {
			// no row points at the file once the transaction rolled back
			if delErr := s.fileStore.Delete(context.WithoutCancel(ctx), doc.StoragePath); delErr != nil {
				s.logger.Warn("failed to trash orphaned document file", "path", doc.StoragePath, "error", delErr)
			}
		}
		return nil, err
	}

	s.logger.Info("document created",
		"id", doc.ID,
		"name", doc.Name,
		"status", doc.Status,
		"folder_id", doc.FolderID,
		"storage_path", doc.StoragePath,
	)
	return doc, nil
}

// GetDocument retrieves a document with its category IDs
func (s *documentService) GetDocument(ctx context.Context, principal models.Principal, id string) (*docsys.Document, error) {
	doc, err := s.validator.ValidateDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelRead); err != nil {
		return nil, err
	}

	doc.CategoryIDs, err = s.categoryRepo.ListIDsForDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return doc, nil
}

// ListDocuments returns one page of documents. Users list within a folder they can read;
// listing across folders is reserved to system principals.
func (s *documentService) ListDocuments(ctx context.Context, principal models.Principal, filter docsys.DocumentFilter) (*docsysSvc.DocumentList, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = config.DefaultDocumentPageSize
	case filter.Limit > config.MaxDocumentPageSize:
		filter.Limit = config.MaxDocumentPageSize
	}
	filter.Offset = max(filter.Offset, 0)

	if filter.FolderID != nil {
		if _, err := s.validator.ValidateFolder(ctx, *filter.FolderID); err != nil {
			return nil, err
		}
		if err := s.authorizer.CanAccessFolder(ctx, principal, *filter.FolderID, docsys.LevelRead); err != nil {
			return nil, err
		}
	} else if !principal.System {
		return nil, fmt.Errorf("%w: folder_id is required", domain.ErrValidation)
	}

	docs, total, err := s.docRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []docsys.Document{}
	}

	return &docsysSvc.DocumentList{
		Documents: docs,
		Total:     total,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}, nil
}

// UpdateDocument updates metadata. Changing folder moves one unit of document_count
// from the old folder to the new one.
func (s *documentService) UpdateDocument(ctx context.Context, principal models.Principal, id string, req *docsysSvc.UpdateDocumentRequest) (*docsys.Document, error) {
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
		req.MoveToRoot = true
	}
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var doc *docsys.Document
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.validator.ValidateDocument(ctx, id)
		if err != nil {
			return err
		}

		var target *docsys.Folder
		if !req.MoveToRoot && req.FolderID != nil {
			if target, err = s.validator.ValidateFolder(ctx, *req.FolderID); err != nil {
				return err
			}
		}

		if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelWrite); err != nil {
			return err
		}
		if target != nil {
			if err := s.authorizer.CanAccessFolder(ctx, principal, target.ID, docsys.LevelWrite); err != nil {
				return err
			}
		}

		if req.Name != nil {
			doc.Name = strings.TrimSpace(*req.Name)
		}
		if req.Tags != nil {
			doc.Tags = req.Tags
		}
		if req.ConfidentialityLevel != nil {
			doc.ConfidentialityLevel = *req.ConfidentialityLevel
		}
		if req.Status != nil && *req.Status != doc.Status {
			if err := doc.Status.ValidateTransition(*req.Status); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrValidation, err)
			}
			doc.Status = *req.Status
		}

		if req.MoveToRoot || target != nil {
			if err := s.moveDocument(ctx, doc, target); err != nil {
				return err
			}
		}

		return s.docRepo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document updated",
		"id", doc.ID,
		"name", doc.Name,
		"status", doc.Status,
		"folder_id", doc.FolderID,
	)
	return doc, nil
}

// moveDocument reassigns doc to target (nil = root) and adjusts both counters
func (s *documentService) moveDocument(ctx context.Context, doc *docsys.Document, target *docsys.Folder) error {
	oldFolderID := doc.FolderID
	if target == nil && oldFolderID == nil {
		return nil
	}
	if target != nil && oldFolderID != nil && *oldFolderID == target.ID {
		return nil
	}

	if oldFolderID != nil {
		if err := s.folderRepo.AdjustDocumentCount(ctx, *oldFolderID, -1); err != nil {
			return fmt.Errorf("decrement document count: %w", err)
		}
	}
	if target != nil {
		if err := s.folderRepo.AdjustDocumentCount(ctx, target.ID, 1); err != nil {
			return fmt.Errorf("increment document count: %w", err)
		}
		doc.FolderID = &target.ID
		doc.FolderPath = &target.Path
	} else {
		doc.FolderID = nil
		doc.FolderPath = nil
	}

	s.logger.Debug("document moved", "id", doc.ID, "from_folder_id", oldFolderID, "to_folder_id", doc.FolderID)
	return nil
}

// TransitionStatus applies one lifecycle transition. Transitioning to deleted is a delete.
func (s *documentService) TransitionStatus(ctx context.Context, principal models.Principal, id string, to docsys.DocumentStatus) (*docsys.Document, error) {
	if to == docsys.StatusDeleted {
		if err := s.DeleteDocument(ctx, principal, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s.transition(ctx, principal, id, func(doc *docsys.Document) error {
		return doc.Status.ValidateTransition(to)
	}, to)
}

// ConfirmUpload marks a pending document active
func (s *documentService) ConfirmUpload(ctx context.Context, principal models.Principal, id string) (*docsys.Document, error) {
	return s.transition(ctx, principal, id, func(doc *docsys.Document) error {
		if doc.Status != docsys.StatusPending {
			return fmt.Errorf("document is %s, only pending uploads can be confirmed", doc.Status)
		}
		return nil
	}, docsys.StatusActive)
}

func (s *documentService) transition(ctx context.Context, principal models.Principal, id string, check func(*docsys.Document) error, to docsys.DocumentStatus) (*docsys.Document, error) {
	var doc *docsys.Document
	var from docsys.DocumentStatus
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.validator.ValidateDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelWrite); err != nil {
			return err
		}
		if err := check(doc); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		from = doc.Status
		doc.Status = to
		return s.docRepo.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document status changed", "id", id, "from", from, "to", to)
	return doc, nil
}

// DeleteDocument soft-deletes a document, then moves its files into the trash.
// The trash move happens after commit and failures are only logged.
func (s *documentService) DeleteDocument(ctx context.Context, principal models.Principal, id string) error {
	var doc *docsys.Document
	var paths []string
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.validator.ValidateDocument(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelWrite); err != nil {
			return err
		}
		if err := doc.Status.ValidateTransition(docsys.StatusDeleted); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}

		versions, err := s.versionRepo.ListByDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		paths = filePaths(doc, versions)

		if err := s.docRepo.SoftDelete(ctx, id); err != nil {
			return err
		}
		if doc.FolderID != nil {
			if err := s.folderRepo.AdjustDocumentCount(ctx, *doc.FolderID, -1); err != nil {
				return fmt.Errorf("decrement document count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		exists, err := s.fileStore.Exists(ctx, p)
		if err != nil || !exists {
			continue
		}
		if err := s.fileStore.Delete(ctx, p); err != nil {
			s.logger.Warn("failed to move document file to trash", "id", id, "path", p, "error", err)
		}
	}

	s.logger.Info("document deleted", "id", id, "name", doc.Name, "files_trashed", len(paths))
	return nil
}

// filePaths lists the distinct storage paths of a document and its versions
func filePaths(doc *docsys.Document, versions []docsys.DocumentVersion) []string {
	seen := map[string]bool{doc.StoragePath: true}
	paths := []string{doc.StoragePath}
	for _, v := range versions {
		if !seen[v.StoragePath] {
			seen[v.StoragePath] = true
			paths = append(paths, v.StoragePath)
		}
	}
	return paths
}

// AddVersion records a version whose bytes are already stored at req.StoragePath
func (s *documentService) AddVersion(ctx context.Context, principal models.Principal, id string, req *docsysSvc.AddVersionRequest) (*docsys.DocumentVersion, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.StoragePath, validation.Required),
		validation.Field(&req.SizeBytes, validation.Min(int64(0))),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var version *docsys.DocumentVersion
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		doc, err := s.writableDocument(ctx, principal, id)
		if err != nil {
			return err
		}
		version, err = s.addVersion(ctx, principal, doc, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document version added", "id", id, "version", version.VersionNumber)
	return version, nil
}

// UploadVersion writes new bytes under a version-specific path and records the version
func (s *documentService) UploadVersion(ctx context.Context, principal models.Principal, id string, content io.Reader, changeSummary *string) (*docsys.DocumentVersion, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: content is required", domain.ErrValidation)
	}

	var version *docsys.DocumentVersion
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		doc, err := s.writableDocument(ctx, principal, id)
		if err != nil {
			return err
		}

		highest, err := s.versionRepo.MaxVersionNumber(ctx, id)
		if err != nil {
			return fmt.Errorf("read version number: %w", err)
		}
		path := VersionStoragePath(id, highest+1, doc.OriginalFilename, s.now())

		n, err := s.fileStore.Save(ctx, path, content)
		if err != nil {
			return storageErr("save", path, err)
		}

		version, err = s.addVersion(ctx, principal, doc, &docsysSvc.AddVersionRequest{
			StoragePath:   path,
			SizeBytes:     n,
			ChangeSummary: changeSummary,
		})
		if err != nil {
			if delErr := s.fileStore.Delete(ctx, path); delErr != nil {
				s.logger.Warn("failed to trash orphaned version file", "path", path, "error", delErr)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document version uploaded",
		"id", id,
		"version", version.VersionNumber,
		"storage_path", version.StoragePath,
		"size_bytes", version.SizeBytes,
	)
	return version, nil
}

func (s *documentService) writableDocument(ctx context.Context, principal models.Principal, id string) (*docsys.Document, error) {
	doc, err := s.validator.ValidateDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelWrite); err != nil {
		return nil, err
	}
	return doc, nil
}

// addVersion is the only place a document's version number changes: next = max + 1.
// The new version becomes the document's current file.
func (s *documentService) addVersion(ctx context.Context, principal models.Principal, doc *docsys.Document, req *docsysSvc.AddVersionRequest) (*docsys.DocumentVersion, error) {
	highest, err := s.versionRepo.MaxVersionNumber(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("read version number: %w", err)
	}

	version := &docsys.DocumentVersion{
		DocumentID:    doc.ID,
		VersionNumber: highest + 1,
		StoragePath:   req.StoragePath,
		SizeBytes:     req.SizeBytes,
		UploadedBy:    principal.UserID,
		ChangeSummary: req.ChangeSummary,
	}
	if err := s.versionRepo.Create(ctx, version); err != nil {
		return nil, err
	}

	doc.Version = version.VersionNumber
	doc.StoragePath = version.StoragePath
	doc.SizeBytes = version.SizeBytes
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return version, nil
}

// ListVersions returns versions newest first
func (s *documentService) ListVersions(ctx context.Context, principal models.Principal, id string) ([]docsys.DocumentVersion, error) {
	if _, err := s.validator.ValidateDocument(ctx, id); err != nil {
		return nil, err
	}
	if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelRead); err != nil {
		return nil, err
	}

	versions, err := s.versionRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// OpenDocument reads the current file, or the file of a specific version
func (s *documentService) OpenDocument(ctx context.Context, principal models.Principal, id string, version *int) ([]byte, *docsys.Document, error) {
	doc, err := s.validator.ValidateDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizer.CanAccessDocument(ctx, principal, id, docsys.LevelRead); err != nil {
		return nil, nil, err
	}

	path := doc.StoragePath
	if version != nil {
		v, err := s.versionRepo.GetByNumber(ctx, id, *version)
		if err != nil {
			return nil, nil, err
		}
		path = v.StoragePath
	}

	data, err := s.fileStore.Read(ctx, path)
	if err != nil {
		return nil, nil, storageErr("read", path, err)
	}
	return data, doc, nil
}

// Summary reports document totals; uploads since the first of the current month are recent
func (s *documentService) Summary(ctx context.Context) (*docsys.Summary, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	summary, err := s.docRepo.Summary(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("document summary: %w", err)
	}
	summary.StorageUsed = utils.HumanBytes(summary.StorageBytes)
	return summary, nil
}

// storageErr keeps an existing StorageIOError and wraps anything else in one
func storageErr(op, path string, err error) error {
	var ioErr *domain.StorageIOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &domain.StorageIOError{Op: op, Path: path, Err: err}
}

// validateCreateRequest validates a document creation request
func (s *documentService) validateCreateRequest(req *docsysSvc.CreateDocumentRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxDocumentNameLength),
		),
		validation.Field(&req.OriginalFilename, validation.Required, validation.Length(1, config.MaxDocumentNameLength)),
		validation.Field(&req.SizeBytes, validation.Min(int64(0))),
		validation.Field(&req.Status, validation.In(docsys.StatusPending, docsys.StatusActive)),
		validation.Field(&req.ConfidentialityLevel, validation.In(docsys.ConfidentialityLevels...)),
	)
}

// validateUpdateRequest validates a document update request
func (s *documentService) validateUpdateRequest(req *docsysSvc.UpdateDocumentRequest) error {
	var rules []*validation.FieldRules
	if req.Name != nil {
		rules = append(rules, validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxDocumentNameLength),
		))
	}
	if req.Status != nil {
		rules = append(rules, validation.Field(&req.Status,
			validation.Required,
			validation.In(docsys.StatusPending, docsys.StatusActive, docsys.StatusArchived, docsys.StatusFailed).
				Error("status must be pending, active, archived or failed; use delete to remove a document"),
		))
	}
	if req.ConfidentialityLevel != nil {
		rules = append(rules, validation.Field(&req.ConfidentialityLevel,
			validation.Required,
			validation.In(docsys.ConfidentialityLevels...),
		))
	}
	return validation.ValidateStruct(req, rules...)
}
