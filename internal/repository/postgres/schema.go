package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema returns the idempotent DDL for every table, in creation order
func Schema(t *TableNames) []string {
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id                    UUID PRIMARY KEY,
			parent_id             UUID REFERENCES %[1]s (id),
			name                  VARCHAR(255) NOT NULL,
			path                  TEXT NOT NULL,
			document_count        INTEGER NOT NULL DEFAULT 0 CHECK (document_count >= 0),
			department            VARCHAR(100),
			confidentiality_level VARCHAR(20) NOT NULL DEFAULT 'internal',
			description           TEXT,
			is_system_folder      BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted            BOOLEAN NOT NULL DEFAULT FALSE,
			created_by            TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Folders),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_path_key ON %[1]s (path) WHERE NOT is_deleted`, t.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_parent_idx ON %[1]s (parent_id)`, t.Folders),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id                    UUID PRIMARY KEY,
			name                  VARCHAR(255) NOT NULL,
			original_filename     TEXT NOT NULL,
			mime_type             TEXT NOT NULL DEFAULT '',
			size_bytes            BIGINT NOT NULL DEFAULT 0,
			storage_path          TEXT NOT NULL,
			folder_id             UUID REFERENCES %[2]s (id),
			folder_path           TEXT,
			status                VARCHAR(20) NOT NULL DEFAULT 'pending',
			confidentiality_level VARCHAR(20) NOT NULL DEFAULT 'internal',
			tags                  TEXT[] NOT NULL DEFAULT '{}',
			metadata              JSONB,
			version               INTEGER NOT NULL DEFAULT 1,
			uploaded_by           TEXT NOT NULL DEFAULT '',
			is_deleted            BOOLEAN NOT NULL DEFAULT FALSE,
			created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, t.Documents, t.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_folder_idx ON %[1]s (folder_id) WHERE NOT is_deleted`, t.Documents),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_tags_idx ON %[1]s USING GIN (tags)`, t.Documents),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id             UUID PRIMARY KEY,
			document_id    UUID NOT NULL REFERENCES %[2]s (id),
			version_number INTEGER NOT NULL CHECK (version_number > 0),
			storage_path   TEXT NOT NULL,
			size_bytes     BIGINT NOT NULL DEFAULT 0,
			uploaded_by    TEXT NOT NULL DEFAULT '',
			change_summary TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (document_id, version_number)
		)`, t.DocumentVersions, t.Documents),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id    UUID PRIMARY KEY,
			name  VARCHAR(100) NOT NULL UNIQUE,
			color VARCHAR(7),
			icon  TEXT
		)`, t.Categories),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			document_id UUID NOT NULL REFERENCES %[2]s (id),
			category_id UUID NOT NULL REFERENCES %[3]s (id),
			PRIMARY KEY (document_id, category_id)
		)`, t.DocumentCategories, t.Documents, t.Categories),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id                    UUID PRIMARY KEY,
			target_kind           VARCHAR(10) NOT NULL CHECK (target_kind IN ('folder', 'document')),
			target_id             UUID NOT NULL,
			user_id               TEXT,
			department            TEXT,
			permission_level      VARCHAR(10) NOT NULL CHECK (permission_level IN ('read', 'write', 'admin')),
			inherit_to_subfolders BOOLEAN NOT NULL DEFAULT FALSE,
			granted_by            TEXT NOT NULL DEFAULT '',
			granted_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
			valid_until           TIMESTAMPTZ,
			CHECK ((user_id IS NULL) <> (department IS NULL))
		)`, t.Permissions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_target_idx ON %[1]s (target_kind, target_id)`, t.Permissions),

		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id           UUID PRIMARY KEY,
			owner_id     TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			file_url     TEXT NOT NULL,
			dms_path     TEXT NOT NULL,
			file_size    BIGINT,
			is_cached    BOOLEAN NOT NULL DEFAULT FALSE,
			cache_status VARCHAR(10) NOT NULL DEFAULT 'pending'
				CHECK (cache_status IN ('pending', 'cached', 'failed')),
			cache_error  TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (is_cached = (cache_status = 'cached')),
			CHECK (NOT is_cached OR cache_error IS NULL)
		)`, t.FileReferences),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_owner_idx ON %[1]s (owner_id)`, t.FileReferences),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_status_idx ON %[1]s (cache_status, created_at)`, t.FileReferences),
	}
}

// RunSchema applies Schema in a single transaction
func RunSchema(ctx context.Context, pool *pgxpool.Pool, t *TableNames) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, stmt := range Schema(t) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w\n%s", err, strings.TrimSpace(stmt))
		}
	}
	return tx.Commit(ctx)
}

// DropAll drops every table. Callers must refuse to run this in production.
func DropAll(ctx context.Context, pool *pgxpool.Pool, t *TableNames) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", strings.Join(t.All(), ", "))
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
