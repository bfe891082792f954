package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmsiq/internal/domain"
	models "dmsiq/internal/domain/models/docsystem"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	"dmsiq/internal/repository/postgres"
)

const folderColumns = `id, parent_id, name, path, document_count, department, confidentiality_level,
	description, is_system_folder, is_deleted, created_by, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner, f *models.Folder) error {
	return row.Scan(
		&f.ID,
		&f.ParentID,
		&f.Name,
		&f.Path,
		&f.DocumentCount,
		&f.Department,
		&f.ConfidentialityLevel,
		&f.Description,
		&f.IsSystemFolder,
		&f.IsDeleted,
		&f.CreatedBy,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
}

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) docsysRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a folder. A live folder with the same path is a conflict.
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := time.Now()
	folder.CreatedAt, folder.UpdatedAt = now, now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, name, path, document_count, department, confidentiality_level,
			description, is_system_folder, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9, $10, $10)
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		folder.ID,
		folder.ParentID,
		folder.Name,
		folder.Path,
		folder.Department,
		folder.ConfidentialityLevel,
		folder.Description,
		folder.IsSystemFolder,
		folder.CreatedBy,
		now,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			conflict := &domain.ConflictError{
				Message:      fmt.Sprintf("folder path %q already exists", folder.Path),
				ResourceType: "folder",
			}
			if existing, getErr := r.GetByPath(ctx, folder.Path); getErr == nil {
				conflict.ResourceID = existing.ID
			}
			return conflict
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	folder.DocumentCount = 0
	return nil
}

// GetByID retrieves a live folder
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND NOT is_deleted`, folderColumns, r.tables.Folders)

	var folder models.Folder
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, id), &folder); err != nil {
		return nil, postgres.WrapGetError(err, "folder", id)
	}
	return &folder, nil
}

// GetByPath retrieves a live folder by materialized path
func (r *PostgresFolderRepository) GetByPath(ctx context.Context, path string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE path = $1 AND NOT is_deleted`, folderColumns, r.tables.Folders)

	var folder models.Folder
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, path), &folder); err != nil {
		return nil, postgres.WrapGetError(err, "folder path", path)
	}
	return &folder, nil
}

// Update writes every mutable column except document_count, which only
// AdjustDocumentCount changes
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $2, name = $3, path = $4, department = $5, confidentiality_level = $6,
			description = $7, is_system_folder = $8, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING document_count, updated_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.ID,
		folder.ParentID,
		folder.Name,
		folder.Path,
		folder.Department,
		folder.ConfidentialityLevel,
		folder.Description,
		folder.IsSystemFolder,
	).Scan(&folder.DocumentCount, &folder.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
		}
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder path %q already exists", folder.Path),
				ResourceType: "folder",
			}
		}
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

// SoftDelete marks a folder deleted
func (r *PostgresFolderRepository) SoftDelete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListChildren lists live direct children of parentID (roots when nil), by name
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID *string, filter models.FolderFilter) ([]models.Folder, error) {
	conds := []string{"NOT is_deleted"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if parentID == nil {
		conds = append(conds, "parent_id IS NULL")
	} else {
		conds = append(conds, "parent_id = "+arg(*parentID))
	}
	if filter.Department != "" {
		conds = append(conds, "department = "+arg(filter.Department))
	}
	if filter.Search != "" {
		conds = append(conds, "name ILIKE "+arg("%"+postgres.EscapeLike(filter.Search)+"%"))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY name`,
		folderColumns, r.tables.Folders, strings.Join(conds, " AND "))
	return r.queryFolders(ctx, query, args...)
}

// ListSubtree returns the live folder at path and all its descendants, by path
func (r *PostgresFolderRepository) ListSubtree(ctx context.Context, path string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE NOT is_deleted AND path LIKE $1
		ORDER BY path
	`, folderColumns, r.tables.Folders)
	return r.queryFolders(ctx, query, postgres.EscapeLike(path)+"%")
}

func (r *PostgresFolderRepository) queryFolders(ctx context.Context, query string, args ...any) ([]models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return []models.Folder{}, nil
		}
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var f models.Folder
		if err := scanFolder(rows, &f); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// UpdatePaths rewrites many materialized paths in one statement
func (r *PostgresFolderRepository) UpdatePaths(ctx context.Context, updates []models.PathUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	ids := make([]string, len(updates))
	paths := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.FolderID
		paths[i] = u.NewPath
	}

	query := fmt.Sprintf(`
		UPDATE %s AS f
		SET path = u.new_path, updated_at = now()
		FROM unnest($1::uuid[], $2::text[]) AS u(id, new_path)
		WHERE f.id = u.id
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, ids, paths)
	if err != nil {
		return fmt.Errorf("update folder paths: %w", err)
	}
	if int(result.RowsAffected()) != len(updates) {
		return fmt.Errorf("update folder paths: %d of %d folders: %w",
			result.RowsAffected(), len(updates), domain.ErrNotFound)
	}

	r.logger.Debug("folder paths rewritten", "count", len(updates))
	return nil
}

// CountChildren counts live direct subfolders
func (r *PostgresFolderRepository) CountChildren(ctx context.Context, id string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE parent_id = $1 AND NOT is_deleted`, r.tables.Folders)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subfolders: %w", err)
	}
	return n, nil
}

// AdjustDocumentCount applies delta in place; the row lock serializes concurrent
// adjustments until the surrounding transaction ends. The count never drops below zero.
func (r *PostgresFolderRepository) AdjustDocumentCount(ctx context.Context, id string, delta int) error {
	query := fmt.Sprintf(`
		UPDATE %s SET document_count = GREATEST(document_count + $2, 0), updated_at = now()
		WHERE id = $1
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjust document count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
