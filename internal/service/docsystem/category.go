package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
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
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type categoryService struct {
	categoryRepo docsysRepo.CategoryRepository
	txManager    repositories.TransactionManager
	validator    *ResourceValidator
	authorizer   services.ResourceAuthorizer
	logger       *slog.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(
	categoryRepo docsysRepo.CategoryRepository,
	txManager repositories.TransactionManager,
	validator *ResourceValidator,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) docsysSvc.CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		txManager:    txManager,
		validator:    validator,
		authorizer:   authorizer,
		logger:       logger,
	}
}

func (s *categoryService) CreateCategory(ctx context.Context, req *docsysSvc.CreateCategoryRequest) (*docsys.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxCategoryNameLength)),
		validation.Field(&req.Color, validation.Match(hexColor).Error("color must look like #1a2b3c")),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	category := &docsys.Category{
		Name:  req.Name,
		Color: req.Color,
		Icon:  req.Icon,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("category created", "id", category.ID, "name", category.Name)
	return category, nil
}

func (s *categoryService) ListCategories(ctx context.Context) ([]docsys.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// AddCategory associates a category with a document. Adding twice is a no-op.
func (s *categoryService) AddCategory(ctx context.Context, principal models.Principal, documentID, categoryID string) (*docsys.Document, error) {
	return s.changeCategory(ctx, principal, documentID, categoryID, s.categoryRepo.AddToDocument)
}

// RemoveCategory removes the association. Removing a missing association is a no-op.
func (s *categoryService) RemoveCategory(ctx context.Context, principal models.Principal, documentID, categoryID string) (*docsys.Document, error) {
	return s.changeCategory(ctx, principal, documentID, categoryID, s.categoryRepo.RemoveFromDocument)
}

func (s *categoryService) changeCategory(
	ctx context.Context,
	principal models.Principal,
	documentID, categoryID string,
	apply func(ctx context.Context, documentID, categoryID string) error,
) (*docsys.Document, error) {
	var doc *docsys.Document
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.validator.ValidateDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
			return err
		}
		if err := s.authorizer.CanAccessDocument(ctx, principal, documentID, docsys.LevelWrite); err != nil {
			return err
		}

		if err := apply(ctx, documentID, categoryID); err != nil {
			return err
		}
		doc.CategoryIDs, err = s.categoryRepo.ListIDsForDocument(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("document categories changed", "id", documentID, "category_ids", doc.CategoryIDs)
	return doc, nil
}
