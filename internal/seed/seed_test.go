package seed

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/service/auth"
	"dmsiq/internal/service/docsystem"
	"dmsiq/internal/testutil/memstore"
)

const sample = `
folders:
  - path: /Legal/Contracts/
    department: legal
    confidentiality: confidential
    description: Signed contracts
  - path: /Tenders/
categories:
  - name: Contracts
    color: "#1f77b4"
  - name: Invoices
`

func newSeeder(t *testing.T) (*Seeder, *memstore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()

	resolver := auth.NewPermissionResolver(store.Folders(), store.Documents(), store.Permissions(), logger)
	authorizer := auth.NewPermissionAuthorizer(resolver)
	validator := docsystem.NewResourceValidator(store.Folders(), store.Documents())
	folders := docsystem.NewFolderService(store.Folders(), store.Documents(), store.Permissions(),
		store, validator, authorizer, logger)
	categories := docsystem.NewCategoryService(store.Categories(), store, validator, authorizer, logger)

	return NewSeeder(folders, categories, "seed", logger), store
}

func TestParse(t *testing.T) {
	data, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, data.Folders, 2)
	assert.Equal(t, "/Legal/Contracts/", data.Folders[0].Path)
	assert.Equal(t, "legal", *data.Folders[0].Department)
	assert.Nil(t, data.Folders[1].Department)
	require.Len(t, data.Categories, 2)
	assert.Equal(t, "#1f77b4", *data.Categories[0].Color)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "folders:\n  - path: /A/\n    owner: bob\n"},
		{"folder without path", "folders:\n  - department: legal\n"},
		{"category without name", "categories:\n  - color: red\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	data, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, data.Folders)
}

func TestApply_IsIdempotent(t *testing.T) {
	seeder, store := newSeeder(t)
	ctx := context.Background()
	data, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	result, err := seeder.Apply(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 3, result.FoldersCreated)
	assert.Equal(t, 2, result.CategoriesCreated)

	contracts, err := store.Folders().GetByPath(ctx, "/Legal/Contracts/")
	require.NoError(t, err)
	assert.True(t, contracts.IsSystemFolder)
	assert.Equal(t, docsys.ConfidentialityConfidential, contracts.ConfidentialityLevel)
	assert.Equal(t, "Signed contracts", *contracts.Description)

	legal, err := store.Folders().GetByPath(ctx, "/Legal/")
	require.NoError(t, err)
	assert.True(t, legal.IsSystemFolder)
	assert.Equal(t, docsys.ConfidentialityInternal, legal.ConfidentialityLevel)
	assert.Nil(t, legal.Department)

	// system principals receive no creator grant
	grants, err := store.Permissions().ListByTarget(ctx, docsys.TargetFolder, legal.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)

	again, err := seeder.Apply(ctx, data)
	require.NoError(t, err)
	assert.Zero(t, again.FoldersCreated)
	assert.Equal(t, 2, again.FoldersExisting)
	assert.Zero(t, again.CategoriesCreated)
	assert.Equal(t, 2, again.CategoriesExist)
}

func TestApply_InvalidFolder(t *testing.T) {
	seeder, _ := newSeeder(t)
	_, err := seeder.Apply(context.Background(), &Data{
		Folders: []FolderSeed{{Path: "/Legal/", Confidentiality: "top-secret"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/Legal/")
}
