package filecache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmsiq/internal/domain"
	models "dmsiq/internal/domain/models/filecache"
	fcRepo "dmsiq/internal/domain/repositories/filecache"
	"dmsiq/internal/repository/postgres"
)

const referenceColumns = `id, owner_id, file_name, file_url, dms_path, file_size,
	is_cached, cache_status, cache_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReference rebuilds the cache state from its three columns; a row whose
// columns contradict each other is an error rather than a silently wrong state
func scanReference(row rowScanner, ref *models.FileReference) error {
	var (
		isCached   bool
		status     models.CacheStatus
		cacheError *string
	)
	err := row.Scan(
		&ref.ID,
		&ref.OwnerID,
		&ref.FileName,
		&ref.FileURL,
		&ref.DMSPath,
		&ref.FileSize,
		&isCached,
		&status,
		&cacheError,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err != nil {
		return err
	}

	state, err := models.StateFromColumns(isCached, status, cacheError, ref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("file reference %s: %w", ref.ID, err)
	}
	ref.State = state
	return nil
}

// PostgresReferenceRepository implements the ReferenceRepository interface
type PostgresReferenceRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewReferenceRepository creates a new file reference repository
func NewReferenceRepository(config *postgres.RepositoryConfig) fcRepo.ReferenceRepository {
	return &PostgresReferenceRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func (r *PostgresReferenceRepository) Create(ctx context.Context, ref *models.FileReference) error {
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	if ref.State == nil {
		ref.State = models.Pending{}
	}
	now := time.Now()
	ref.CreatedAt, ref.UpdatedAt = now, now
	isCached, status, cacheError := models.Columns(ref.State)

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, file_name, file_url, dms_path, file_size,
			is_cached, cache_status, cache_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, r.tables.FileReferences)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		ref.ID,
		ref.OwnerID,
		ref.FileName,
		ref.FileURL,
		ref.DMSPath,
		ref.FileSize,
		isCached,
		status,
		cacheError,
		now,
	)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("file reference %s already exists", ref.ID),
				ResourceType: "file_reference",
				ResourceID:   ref.ID,
			}
		}
		return fmt.Errorf("create file reference: %w", err)
	}
	return nil
}

func (r *PostgresReferenceRepository) GetByID(ctx context.Context, id string) (*models.FileReference, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, referenceColumns, r.tables.FileReferences)

	var ref models.FileReference
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanReference(executor.QueryRow(ctx, query, id), &ref); err != nil {
		return nil, postgres.WrapGetError(err, "file reference", id)
	}
	return &ref, nil
}

func (r *PostgresReferenceRepository) ListUncachedByOwner(ctx context.Context, ownerID string) ([]models.FileReference, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND NOT is_cached
		ORDER BY created_at, id
	`, referenceColumns, r.tables.FileReferences)
	return r.query(ctx, query, ownerID)
}

func (r *PostgresReferenceRepository) ListUncached(ctx context.Context, limit int) ([]models.FileReference, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE cache_status = 'pending'
		ORDER BY created_at, id
		LIMIT $1
	`, referenceColumns, r.tables.FileReferences)
	return r.query(ctx, query, limit)
}

func (r *PostgresReferenceRepository) query(ctx context.Context, query string, args ...any) ([]models.FileReference, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list file references: %w", err)
	}
	defer rows.Close()

	refs := []models.FileReference{}
	for rows.Next() {
		var ref models.FileReference
		if err := scanReference(rows, &ref); err != nil {
			return nil, fmt.Errorf("scan file reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// UpdateState persists State and FileSize
func (r *PostgresReferenceRepository) UpdateState(ctx context.Context, ref *models.FileReference) error {
	isCached, status, cacheError := models.Columns(ref.State)

	query := fmt.Sprintf(`
		UPDATE %s
		SET is_cached = $2, cache_status = $3, cache_error = $4, file_size = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, r.tables.FileReferences)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, ref.ID, isCached, status, cacheError, ref.FileSize).Scan(&ref.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInputError(err) {
			return fmt.Errorf("file reference %s: %w", ref.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update file reference state: %w", err)
	}
	return nil
}

func (r *PostgresReferenceRepository) CountByStatus(ctx context.Context, ownerID string) (map[models.CacheStatus]int, error) {
	query := fmt.Sprintf(`
		SELECT cache_status, COUNT(*) FROM %s
		WHERE owner_id = $1
		GROUP BY cache_status
	`, r.tables.FileReferences)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count file references: %w", err)
	}
	defer rows.Close()

	counts := map[models.CacheStatus]int{}
	for rows.Next() {
		var (
			status models.CacheStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan cache status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
