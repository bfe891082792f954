package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsys "dmsiq/internal/domain/models/docsystem"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
	"dmsiq/internal/service/docsystem"
	"dmsiq/internal/utils"
)

// Data is the seed document: system folders and document categories.
//
//	folders:
//	  - path: /Legal/Contracts/
//	    department: legal
//	    confidentiality: confidential
//	categories:
//	  - name: Contracts
//	    color: "#1f77b4"
type Data struct {
	Folders    []FolderSeed   `yaml:"folders"`
	Categories []CategorySeed `yaml:"categories"`
}

// FolderSeed describes one system folder. Missing ancestors are created as
// plain system folders; the attributes apply to the last segment only.
type FolderSeed struct {
	Path            string  `yaml:"path"`
	Department      *string `yaml:"department,omitempty"`
	Confidentiality string  `yaml:"confidentiality,omitempty"`
	Description     *string `yaml:"description,omitempty"`
}

type CategorySeed struct {
	Name  string  `yaml:"name"`
	Color *string `yaml:"color,omitempty"`
	Icon  *string `yaml:"icon,omitempty"`
}

// Parse decodes a seed document, rejecting unknown keys
func Parse(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var data Data
	if err := dec.Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return &Data{}, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, f := range data.Folders {
		if strings.TrimSpace(f.Path) == "" {
			return nil, fmt.Errorf("parse seed: folder %d has no path", i)
		}
	}
	for i, c := range data.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parse seed: category %d has no name", i)
		}
	}
	return &data, nil
}

// LoadFile reads and parses a seed file
func LoadFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(bytes.NewReader(raw))
}

// Result counts what Apply created versus found already present
type Result struct {
	FoldersCreated    int
	FoldersExisting   int
	CategoriesCreated int
	CategoriesExist   int
}

// Seeder applies seed data through the services, so paths, counters and
// validation follow the same rules as any other caller. Applying the same
// data twice creates nothing the second time.
type Seeder struct {
	folders    docsysSvc.FolderService
	categories docsysSvc.CategoryService
	principal  models.Principal
	logger     *slog.Logger
}

func NewSeeder(folders docsysSvc.FolderService, categories docsysSvc.CategoryService, systemUserID string, logger *slog.Logger) *Seeder {
	return &Seeder{
		folders:    folders,
		categories: categories,
		principal:  models.SystemPrincipal(systemUserID),
		logger:     logger,
	}
}

func (s *Seeder) Apply(ctx context.Context, data *Data) (*Result, error) {
	result := &Result{}

	for _, f := range data.Folders {
		if err := s.seedFolder(ctx, f, result); err != nil {
			return result, fmt.Errorf("seed folder %s: %w", f.Path, err)
		}
	}

	for _, c := range data.Categories {
		_, err := s.categories.CreateCategory(ctx, &docsysSvc.CreateCategoryRequest{
			Name:  c.Name,
			Color: c.Color,
			Icon:  c.Icon,
		})
		switch {
		case err == nil:
			result.CategoriesCreated++
		case errors.Is(err, domain.ErrConflict):
			result.CategoriesExist++
		default:
			return result, fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}

	s.logger.Info("seed applied",
		"folders_created", result.FoldersCreated,
		"folders_existing", result.FoldersExisting,
		"categories_created", result.CategoriesCreated,
		"categories_existing", result.CategoriesExist,
	)
	return result, nil
}

func (s *Seeder) seedFolder(ctx context.Context, f FolderSeed, result *Result) error {
	segments, err := utils.SplitFolderPath(f.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var parent *docsys.Folder
	for i, segment := range segments {
		segment = strings.TrimSpace(segment)
		var parentID, parentPath *string
		if parent != nil {
			parentID, parentPath = &parent.ID, &parent.Path
		}

		existing, err := s.folders.GetFolderByPath(ctx, s.principal, docsystem.ComputePath(segment, parentPath))
		if err == nil {
			parent = existing
			if i == len(segments)-1 {
				result.FoldersExisting++
			}
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		req := &docsysSvc.CreateFolderRequest{
			Name:           segment,
			ParentID:       parentID,
			IsSystemFolder: true,
		}
		if i == len(segments)-1 {
			req.Department = f.Department
			req.Description = f.Description
			req.ConfidentialityLevel = docsys.Confidentiality(f.Confidentiality)
		}
		created, err := s.folders.CreateFolder(ctx, s.principal, req)
		if err != nil {
			return err
		}
		s.logger.Debug("seeded folder", "folder_id", created.ID, "path", created.Path)
		result.FoldersCreated++
		parent = created
	}
	return nil
}
