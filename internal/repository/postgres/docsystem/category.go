package docsystem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmsiq/internal/domain"
	models "dmsiq/internal/domain/models/docsystem"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	"dmsiq/internal/repository/postgres"
)

// PostgresCategoryRepository implements the CategoryRepository interface
type PostgresCategoryRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

func NewCategoryRepository(config *postgres.RepositoryConfig) docsysRepo.CategoryRepository {
	return &PostgresCategoryRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a category; names are unique
func (r *PostgresCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, name, color, icon) VALUES ($1, $2, $3, $4)`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query, category.ID, category.Name, category.Color, category.Icon)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			conflict := &domain.ConflictError{
				Message:      fmt.Sprintf("category %q already exists", category.Name),
				ResourceType: "category",
			}
			if id, getErr := r.idByName(ctx, category.Name); getErr == nil {
				conflict.ResourceID = id
			}
			return conflict
		}
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *PostgresCategoryRepository) idByName(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, r.tables.Categories)

	var id string
	err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, name).Scan(&id)
	return id, err
}

func (r *PostgresCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT id, name, color, icon FROM %s WHERE id = $1`, r.tables.Categories)

	var c models.Category
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Color, &c.Icon); err != nil {
		return nil, postgres.WrapGetError(err, "category", id)
	}
	return &c, nil
}

// List returns all categories by name
func (r *PostgresCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	query := fmt.Sprintf(`SELECT id, name, color, icon FROM %s ORDER BY name`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AddToDocument is idempotent
func (r *PostgresCategoryRepository) AddToDocument(ctx context.Context, documentID, categoryID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (document_id, category_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, r.tables.DocumentCategories)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID, categoryID); err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("document category: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("add document category: %w", err)
	}
	return nil
}

// RemoveFromDocument is idempotent
func (r *PostgresCategoryRepository) RemoveFromDocument(ctx context.Context, documentID, categoryID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1 AND category_id = $2`, r.tables.DocumentCategories)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, documentID, categoryID); err != nil {
		return fmt.Errorf("remove document category: %w", err)
	}
	return nil
}

func (r *PostgresCategoryRepository) ListIDsForDocument(ctx context.Context, documentID string) ([]string, error) {
	query := fmt.Sprintf(`SELECT category_id FROM %s WHERE document_id = $1 ORDER BY category_id`,
		r.tables.DocumentCategories)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document categories: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
