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

const documentColumns = `d.id, d.name, d.original_filename, d.mime_type, d.size_bytes, d.storage_path,
	d.folder_id, d.folder_path, d.status, d.confidentiality_level, d.tags, d.metadata, d.version,
	d.uploaded_by, d.is_deleted, d.created_at, d.updated_at`

func scanDocument(row rowScanner, d *models.Document) error {
	return row.Scan(
		&d.ID,
		&d.Name,
		&d.OriginalFilename,
		&d.MimeType,
		&d.SizeBytes,
		&d.StoragePath,
		&d.FolderID,
		&d.FolderPath,
		&d.Status,
		&d.ConfidentialityLevel,
		&d.Tags,
		&d.Metadata,
		&d.Version,
		&d.UploadedBy,
		&d.IsDeleted,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
}

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *postgres.RepositoryConfig) docsysRepo.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create creates a new document
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = doc.CreatedAt
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, original_filename, mime_type, size_bytes, storage_path, folder_id,
			folder_path, status, confidentiality_level, tags, metadata, version, uploaded_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		doc.ID,
		doc.Name,
		doc.OriginalFilename,
		doc.MimeType,
		doc.SizeBytes,
		doc.StoragePath,
		doc.FolderID,
		doc.FolderPath,
		doc.Status,
		doc.ConfidentialityLevel,
		doc.Tags,
		doc.Metadata,
		doc.Version,
		doc.UploadedBy,
		doc.CreatedAt,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("document %s already exists", doc.ID),
				ResourceType: "document",
				ResourceID:   doc.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("document folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves a live document. CategoryIDs is left empty.
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s d WHERE d.id = $1 AND NOT d.is_deleted`,
		documentColumns, r.tables.Documents)

	var doc models.Document
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanDocument(executor.QueryRow(ctx, query, id), &doc); err != nil {
		return nil, postgres.WrapGetError(err, "document", id)
	}
	return &doc, nil
}

// Update writes every mutable column of a live document
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $2, original_filename = $3, mime_type = $4, size_bytes = $5, storage_path = $6,
			folder_id = $7, folder_path = $8, status = $9, confidentiality_level = $10, tags = $11,
			metadata = $12, version = $13, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.ID,
		doc.Name,
		doc.OriginalFilename,
		doc.MimeType,
		doc.SizeBytes,
		doc.StoragePath,
		doc.FolderID,
		doc.FolderPath,
		doc.Status,
		doc.ConfidentialityLevel,
		doc.Tags,
		doc.Metadata,
		doc.Version,
	).Scan(&doc.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("document folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// SoftDelete marks a document deleted
func (r *PostgresDocumentRepository) SoftDelete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
	`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns one page of live documents matching filter, newest first, with the
// total number of matches
func (r *PostgresDocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	conds := []string{"NOT d.is_deleted"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.FolderID != nil {
		conds = append(conds, "d.folder_id = "+arg(*filter.FolderID))
	}
	if filter.CategoryID != nil {
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s dc WHERE dc.document_id = d.id AND dc.category_id = %s)",
			r.tables.DocumentCategories, arg(*filter.CategoryID)))
	}
	if filter.Search != "" {
		p := arg("%" + postgres.EscapeLike(filter.Search) + "%")
		conds = append(conds, fmt.Sprintf("(d.name ILIKE %s OR d.original_filename ILIKE %s)", p, p))
	}
	if len(filter.Tags) > 0 {
		conds = append(conds, "d.tags @> "+arg(filter.Tags))
	}
	if filter.Status != "" {
		conds = append(conds, "d.status = "+arg(filter.Status))
	}
	if filter.ConfidentialityLevel != "" {
		conds = append(conds, "d.confidentiality_level = "+arg(filter.ConfidentialityLevel))
	}
	where := strings.Join(conds, " AND ")

	executor := postgres.GetExecutor(ctx, r.pool)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s d WHERE %s`, r.tables.Documents, where)
	if err := executor.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		if postgres.IsPgInvalidInputError(err) {
			return []models.Document{}, 0, nil
		}
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s d WHERE %s ORDER BY d.created_at DESC, d.id`,
		documentColumns, r.tables.Documents, where)
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, total, nil
}

// CountByFolder counts live documents directly in a folder
func (r *PostgresDocumentRepository) CountByFolder(ctx context.Context, folderID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE folder_id = $1 AND NOT is_deleted`, r.tables.Documents)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, folderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// UpdateFolderPath mirrors a folder's new path onto all of its documents
func (r *PostgresDocumentRepository) UpdateFolderPath(ctx context.Context, folderID, path string) error {
	query := fmt.Sprintf(`UPDATE %s SET folder_path = $2 WHERE folder_id = $1`, r.tables.Documents)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, folderID, path); err != nil {
		return fmt.Errorf("update document folder paths: %w", err)
	}
	return nil
}

// Summary aggregates live documents. StorageUsed is left for the caller to format.
func (r *PostgresDocumentRepository) Summary(ctx context.Context, since time.Time) (*models.Summary, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE d.created_at >= $1),
			COALESCE(SUM(d.size_bytes), 0)::bigint,
			COUNT(*) FILTER (WHERE EXISTS (
				SELECT 1 FROM %s p WHERE p.target_kind = 'document' AND p.target_id = d.id
			))
		FROM %s d
		WHERE NOT d.is_deleted
	`, r.tables.Permissions, r.tables.Documents)

	var s models.Summary
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, since).Scan(
		&s.TotalDocuments,
		&s.RecentUploads,
		&s.StorageBytes,
		&s.SharedDocuments,
	)
	if err != nil {
		return nil, fmt.Errorf("document summary: %w", err)
	}
	return &s, nil
}
