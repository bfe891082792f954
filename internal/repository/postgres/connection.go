package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmsiq/internal/domain/repositories"
)

const (
	maxConns = 25
	minConns = 2
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Folders            string
	Documents          string
	DocumentVersions   string
	Categories         string
	DocumentCategories string
	Permissions        string
	FileReferences     string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Folders:            fmt.Sprintf("%sfolders", prefix),
		Documents:          fmt.Sprintf("%sdocuments", prefix),
		DocumentVersions:   fmt.Sprintf("%sdocument_versions", prefix),
		Categories:         fmt.Sprintf("%scategories", prefix),
		DocumentCategories: fmt.Sprintf("%sdocument_categories", prefix),
		Permissions:        fmt.Sprintf("%spermissions", prefix),
		FileReferences:     fmt.Sprintf("%sfile_references", prefix),
	}
}

// All returns every table, dependents first, in drop order
func (t *TableNames) All() []string {
	return []string{
		t.DocumentCategories,
		t.DocumentVersions,
		t.Permissions,
		t.Categories,
		t.Documents,
		t.Folders,
		t.FileReferences,
	}
}

// CreateConnectionPool creates a pgx pool and pings it.
//
// Prepared statements are used by default. When the URL points at a transaction
// pooler (port 6543) the pool switches to QueryExecModeCacheDescribe, which keeps the
// extended protocol for JSONB and TEXT[] parameters without server-side statements.
// An explicit default_query_exec_mode in the URL wins over this detection.
//
// Table names are interpolated with fmt.Sprintf before a statement is sent, so each
// prefix (dev_, test_, prod_) gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction carried by ctx, or the pool when there is none,
// so repository calls made inside ExecTx join that transaction.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}
