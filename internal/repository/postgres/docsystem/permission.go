package docsystem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmsiq/internal/domain"
	models "dmsiq/internal/domain/models/docsystem"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	"dmsiq/internal/repository/postgres"
)

const permissionColumns = `id, target_kind, target_id, user_id, department, permission_level,
	inherit_to_subfolders, granted_by, granted_at, valid_until`

func scanPermission(row rowScanner, p *models.Permission) error {
	return row.Scan(
		&p.ID,
		&p.TargetKind,
		&p.TargetID,
		&p.UserID,
		&p.Department,
		&p.Level,
		&p.InheritToSubfolders,
		&p.GrantedBy,
		&p.GrantedAt,
		&p.ValidUntil,
	)
}

// PostgresPermissionRepository stores folder and document grants in one table
// tagged by target_kind
type PostgresPermissionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

func NewPermissionRepository(config *postgres.RepositoryConfig) docsysRepo.PermissionRepository {
	return &PostgresPermissionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func (r *PostgresPermissionRepository) Create(ctx context.Context, permission *models.Permission) error {
	if permission.ID == "" {
		permission.ID = uuid.NewString()
	}
	if permission.GrantedAt.IsZero() {
		permission.GrantedAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, target_kind, target_id, user_id, department, permission_level,
			inherit_to_subfolders, granted_by, granted_at, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		permission.ID,
		permission.TargetKind,
		permission.TargetID,
		permission.UserID,
		permission.Department,
		permission.Level,
		permission.InheritToSubfolders,
		permission.GrantedBy,
		permission.GrantedAt,
		permission.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

func (r *PostgresPermissionRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, permissionColumns, r.tables.Permissions)

	var p models.Permission
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanPermission(executor.QueryRow(ctx, query, id), &p); err != nil {
		return nil, postgres.WrapGetError(err, "permission", id)
	}
	return &p, nil
}

// Delete removes a grant outright; grants are not soft deleted
func (r *PostgresPermissionRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete permission: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByTarget returns all grants on one folder or document, expired ones included, oldest first
func (r *PostgresPermissionRepository) ListByTarget(ctx context.Context, kind models.TargetKind, targetID string) ([]models.Permission, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE target_kind = $1 AND target_id = $2
		ORDER BY granted_at
	`, permissionColumns, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, kind, targetID)
	if err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return []models.Permission{}, nil
		}
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	permissions := []models.Permission{}
	for rows.Next() {
		var p models.Permission
		if err := scanPermission(rows, &p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// HasInheritable reports whether any grant on the folder is marked inheritable
func (r *PostgresPermissionRepository) HasInheritable(ctx context.Context, folderID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE target_kind = 'folder' AND target_id = $1 AND inherit_to_subfolders
		)
	`, r.tables.Permissions)

	var ok bool
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, folderID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check inheritable permissions: %w", err)
	}
	return ok, nil
}
