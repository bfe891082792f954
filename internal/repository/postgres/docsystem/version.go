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

const versionColumns = `id, document_id, version_number, storage_path, size_bytes, uploaded_by, change_summary, created_at`

func scanVersion(row rowScanner, v *models.DocumentVersion) error {
	return row.Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&v.StoragePath,
		&v.SizeBytes,
		&v.UploadedBy,
		&v.ChangeSummary,
		&v.CreatedAt,
	)
}

// PostgresVersionRepository stores immutable document versions
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

func NewVersionRepository(config *postgres.RepositoryConfig) docsysRepo.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a version. (document_id, version_number) is unique, so two writers
// racing for the same number cannot both succeed.
func (r *PostgresVersionRepository) Create(ctx context.Context, version *models.DocumentVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	version.CreatedAt = time.Now()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, version_number, storage_path, size_bytes, uploaded_by,
			change_summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.tables.DocumentVersions)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		version.ID,
		version.DocumentID,
		version.VersionNumber,
		version.StoragePath,
		version.SizeBytes,
		version.UploadedBy,
		version.ChangeSummary,
		version.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("version %d already exists", version.VersionNumber),
				ResourceType: "document_version",
				ResourceID:   version.DocumentID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("document %s: %w", version.DocumentID, domain.ErrNotFound)
		}
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

// MaxVersionNumber returns 0 for a document with no versions
func (r *PostgresVersionRepository) MaxVersionNumber(ctx context.Context, documentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version_number), 0) FROM %s WHERE document_id = $1`,
		r.tables.DocumentVersions)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return n, nil
}

// ListByDocument returns versions newest first
func (r *PostgresVersionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE document_id = $1 ORDER BY version_number DESC`,
		versionColumns, r.tables.DocumentVersions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	versions := []models.DocumentVersion{}
	for rows.Next() {
		var v models.DocumentVersion
		if err := scanVersion(rows, &v); err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *PostgresVersionRepository) GetByNumber(ctx context.Context, documentID string, number int) (*models.DocumentVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE document_id = $1 AND version_number = $2`,
		versionColumns, r.tables.DocumentVersions)

	var v models.DocumentVersion
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanVersion(executor.QueryRow(ctx, query, documentID, number), &v); err != nil {
		return nil, postgres.WrapGetError(err, "document version", fmt.Sprintf("%s#%d", documentID, number))
	}
	return &v, nil
}
