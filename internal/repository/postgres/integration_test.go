package postgres_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/domain/models/filecache"
	"dmsiq/internal/domain/repositories"
	docsysRepo "dmsiq/internal/domain/repositories/docsystem"
	fcRepo "dmsiq/internal/domain/repositories/filecache"
	"dmsiq/internal/domain/services"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
	"dmsiq/internal/repository/postgres"
	pgdocsys "dmsiq/internal/repository/postgres/docsystem"
	pgfilecache "dmsiq/internal/repository/postgres/filecache"
	"dmsiq/internal/service/auth"
	docsysService "dmsiq/internal/service/docsystem"
	"dmsiq/internal/storage/local"
)

var (
	testPool   *pgxpool.Pool
	skipReason string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		skipReason = "postgres integration tests are skipped with -short"
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("dmsiq_test"),
		tcpostgres.WithUsername("dmsiq"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		skipReason = fmt.Sprintf("postgres container unavailable: %v", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection string: %v\n", err)
			return 1
		}
		testPool, err = postgres.CreateConnectionPool(ctx, dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect: %v\n", err)
			return 1
		}
		defer testPool.Close()
		return m.Run()
	}()
	os.Exit(code)
}

type repos struct {
	tables      *postgres.TableNames
	tx          repositories.TransactionManager
	folders     docsysRepo.FolderRepository
	documents   docsysRepo.DocumentRepository
	versions    docsysRepo.VersionRepository
	categories  docsysRepo.CategoryRepository
	permissions docsysRepo.PermissionRepository
	references  fcRepo.ReferenceRepository
}

// newRepos gives each test its own table prefix
func newRepos(t *testing.T) *repos {
	t.Helper()
	if testPool == nil {
		t.Skip(skipReason)
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prefix := "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10] + "_"
	tables := postgres.NewTableNames(prefix)
	require.NoError(t, postgres.RunSchema(ctx, testPool, tables))
	require.NoError(t, postgres.RunSchema(ctx, testPool, tables), "schema must be idempotent")
	t.Cleanup(func() { _ = postgres.DropAll(context.Background(), testPool, tables) })

	cfg := &postgres.RepositoryConfig{Pool: testPool, Tables: tables, Logger: logger}
	return &repos{
		tables:      tables,
		tx:          postgres.NewTransactionManager(testPool, logger),
		folders:     pgdocsys.NewFolderRepository(cfg),
		documents:   pgdocsys.NewDocumentRepository(cfg),
		versions:    pgdocsys.NewVersionRepository(cfg),
		categories:  pgdocsys.NewCategoryRepository(cfg),
		permissions: pgdocsys.NewPermissionRepository(cfg),
		references:  pgfilecache.NewReferenceRepository(cfg),
	}
}

func (r *repos) folder(t *testing.T, name string, parent *docsys.Folder) *docsys.Folder {
	t.Helper()
	f := &docsys.Folder{Name: name, Path: "/" + name + "/", ConfidentialityLevel: docsys.ConfidentialityInternal}
	if parent != nil {
		f.ParentID = &parent.ID
		f.Path = parent.Path + name + "/"
	}
	require.NoError(t, r.folders.Create(context.Background(), f))
	return f
}

func TestFolderRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	legal := r.folder(t, "Legal", nil)
	cases := r.folder(t, "Cases", legal)
	r.folder(t, "Finance", nil)

	err := r.folders.Create(ctx, &docsys.Folder{Name: "Legal", Path: "/Legal/", ConfidentialityLevel: docsys.ConfidentialityInternal})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, legal.ID, conflict.ResourceID)

	byPath, err := r.folders.GetByPath(ctx, "/Legal/Cases/")
	require.NoError(t, err)
	assert.Equal(t, cases.ID, byPath.ID)

	_, err = r.folders.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	roots, err := r.folders.ListChildren(ctx, nil, docsys.FolderFilter{})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Finance", roots[0].Name)

	found, err := r.folders.ListChildren(ctx, &legal.ID, docsys.FolderFilter{Search: "cas"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	subtree, err := r.folders.ListSubtree(ctx, "/Legal/")
	require.NoError(t, err)
	require.Len(t, subtree, 2)
	assert.Equal(t, "/Legal/", subtree[0].Path)

	n, err := r.folders.CountChildren(ctx, legal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// counter floors at zero and is not written by Update
	require.NoError(t, r.folders.AdjustDocumentCount(ctx, legal.ID, -5))
	require.NoError(t, r.folders.AdjustDocumentCount(ctx, legal.ID, 2))
	legal.DocumentCount = 99
	desc := "contracts"
	legal.Description = &desc
	require.NoError(t, r.folders.Update(ctx, legal))
	got, err := r.folders.GetByID(ctx, legal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DocumentCount)
	assert.Equal(t, "contracts", *got.Description)

	require.NoError(t, r.folders.UpdatePaths(ctx, []docsys.PathUpdate{
		{FolderID: cases.ID, OldPath: "/Legal/Cases/", NewPath: "/Legal/Matters/"},
	}))
	_, err = r.folders.GetByPath(ctx, "/Legal/Matters/")
	require.NoError(t, err)

	// a deleted path can be reused
	require.NoError(t, r.folders.SoftDelete(ctx, cases.ID))
	_, err = r.folders.GetByID(ctx, cases.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	r.folder(t, "Matters", legal)
}

func TestDocumentRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	legal := r.folder(t, "Legal", nil)

	create := func(name string, tags []string, at time.Time) *docsys.Document {
		d := &docsys.Document{
			Name:                 name,
			OriginalFilename:     name + ".pdf",
			StoragePath:          "documents/" + name,
			SizeBytes:            1024,
			FolderID:             &legal.ID,
			FolderPath:           &legal.Path,
			Status:               docsys.StatusPending,
			ConfidentialityLevel: docsys.ConfidentialityInternal,
			Tags:                 tags,
			Metadata:             map[string]any{"source": "scan"},
			Version:              1,
			CreatedAt:            at,
		}
		require.NoError(t, r.documents.Create(ctx, d))
		return d
	}

	old := create("old-contract", []string{"contract"}, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	create("new-contract", []string{"contract", "urgent"}, time.Now())
	create("memo", nil, time.Now())

	got, err := r.documents.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"contract"}, got.Tags)
	assert.Equal(t, "scan", got.Metadata["source"])

	docs, total, err := r.documents.List(ctx, docsys.DocumentFilter{Tags: []string{"contract"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "new-contract", docs[0].Name, "newest first")

	docs, total, err = r.documents.List(ctx, docsys.DocumentFilter{Search: "MEMO"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, docs, 1)

	docs, total, err = r.documents.List(ctx, docsys.DocumentFilter{FolderID: &legal.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 1)

	require.NoError(t, r.documents.UpdateFolderPath(ctx, legal.ID, "/Archive/"))
	got, err = r.documents.GetByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, "/Archive/", *got.FolderPath)

	grantee := "bob"
	require.NoError(t, r.permissions.Create(ctx, &docsys.Permission{
		TargetKind: docsys.TargetDocument, TargetID: old.ID, UserID: &grantee, Level: docsys.LevelRead,
	}))
	summary, err := r.documents.Summary(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalDocuments)
	assert.Equal(t, 2, summary.RecentUploads)
	assert.Equal(t, int64(3072), summary.StorageBytes)
	assert.Equal(t, 1, summary.SharedDocuments)

	require.NoError(t, r.documents.SoftDelete(ctx, old.ID))
	n, err := r.documents.CountByFolder(ctx, legal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVersionAndCategoryRepositories(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	doc := &docsys.Document{Name: "d", OriginalFilename: "d.pdf", StoragePath: "documents/d",
		Status: docsys.StatusActive, ConfidentialityLevel: docsys.ConfidentialityInternal, Version: 1}
	require.NoError(t, r.documents.Create(ctx, doc))

	for n := 1; n <= 2; n++ {
		require.NoError(t, r.versions.Create(ctx, &docsys.DocumentVersion{
			DocumentID: doc.ID, VersionNumber: n, StoragePath: fmt.Sprintf("documents/d-v%d", n),
		}))
	}
	err := r.versions.Create(ctx, &docsys.DocumentVersion{DocumentID: doc.ID, VersionNumber: 2, StoragePath: "x"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	highest, err := r.versions.MaxVersionNumber(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, highest)

	versions, err := r.versions.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)

	_, err = r.versions.GetByNumber(ctx, doc.ID, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	contracts := &docsys.Category{Name: "Contracts"}
	require.NoError(t, r.categories.Create(ctx, contracts))
	err = r.categories.Create(ctx, &docsys.Category{Name: "Contracts"})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, contracts.ID, conflict.ResourceID)

	require.NoError(t, r.categories.AddToDocument(ctx, doc.ID, contracts.ID))
	require.NoError(t, r.categories.AddToDocument(ctx, doc.ID, contracts.ID))
	ids, err := r.categories.ListIDsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.ID}, ids)

	docs, total, err := r.documents.List(ctx, docsys.DocumentFilter{CategoryID: &contracts.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, docs, 1)

	require.NoError(t, r.categories.RemoveFromDocument(ctx, doc.ID, contracts.ID))
	require.NoError(t, r.categories.RemoveFromDocument(ctx, doc.ID, contracts.ID))
	ids, err = r.categories.ListIDsForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPermissionRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	legal := r.folder(t, "Legal", nil)

	dept := "legal"
	until := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	grant := &docsys.Permission{
		TargetKind:          docsys.TargetFolder,
		TargetID:            legal.ID,
		Department:          &dept,
		Level:               docsys.LevelWrite,
		InheritToSubfolders: true,
		ValidUntil:          &until,
	}
	require.NoError(t, r.permissions.Create(ctx, grant))

	inheritable, err := r.permissions.HasInheritable(ctx, legal.ID)
	require.NoError(t, err)
	assert.True(t, inheritable)

	grants, err := r.permissions.ListByTarget(ctx, docsys.TargetFolder, legal.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, docsys.LevelWrite, grants[0].Level)
	assert.True(t, until.Equal(*grants[0].ValidUntil))

	// exactly one of user and department
	user := "alice"
	err = r.permissions.Create(ctx, &docsys.Permission{
		TargetKind: docsys.TargetFolder, TargetID: legal.ID, UserID: &user, Department: &dept, Level: docsys.LevelRead,
	})
	assert.Error(t, err)

	require.NoError(t, r.permissions.Delete(ctx, grant.ID))
	assert.ErrorIs(t, r.permissions.Delete(ctx, grant.ID), domain.ErrNotFound)
}

func TestReferenceRepository(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	ref := &filecache.FileReference{
		OwnerID: "T1", FileName: "a.pdf", FileURL: "https://example.com/a.pdf", DMSPath: "/tenders/a.pdf",
	}
	require.NoError(t, r.references.Create(ctx, ref))
	other := &filecache.FileReference{
		OwnerID: "T1", FileName: "b.pdf", FileURL: "https://example.com/b.pdf", DMSPath: "/tenders/b.pdf",
	}
	require.NoError(t, r.references.Create(ctx, other))

	ref.State = filecache.Failed{Reason: "Download failed: 500"}
	require.NoError(t, r.references.UpdateState(ctx, ref))
	got, err := r.references.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	failed, ok := got.State.(filecache.Failed)
	require.True(t, ok)
	assert.Equal(t, "Download failed: 500", failed.Reason)

	uncached, err := r.references.ListUncachedByOwner(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, uncached, 2)

	size := int64(42)
	other.State = filecache.Cached{}
	other.FileSize = &size
	require.NoError(t, r.references.UpdateState(ctx, other))
	got, err = r.references.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCached())
	assert.Equal(t, int64(42), *got.FileSize)

	// failed rows are left for explicit retries
	uncached, err = r.references.ListUncached(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, uncached)

	third := &filecache.FileReference{
		OwnerID: "T2", FileName: "c.pdf", FileURL: "https://example.com/c.pdf", DMSPath: "/tenders/c.pdf",
	}
	require.NoError(t, r.references.Create(ctx, third))
	uncached, err = r.references.ListUncached(ctx, 10)
	require.NoError(t, err)
	require.Len(t, uncached, 1)
	assert.Equal(t, third.ID, uncached[0].ID)

	counts, err := r.references.CountByStatus(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, map[filecache.CacheStatus]int{filecache.StatusFailed: 1, filecache.StatusCached: 1}, counts)

	// the schema itself rejects a cached row carrying an error
	_, err = testPool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET cache_error = 'stale' WHERE id = $1`, r.tables.FileReferences), other.ID)
	assert.Error(t, err)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.tx.ExecTx(ctx, func(ctx context.Context) error {
		f := &docsys.Folder{Name: "Temp", Path: "/Temp/", ConfidentialityLevel: docsys.ConfidentialityInternal}
		require.NoError(t, r.folders.Create(ctx, f))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = r.folders.GetByPath(ctx, "/Temp/")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// failingFileStore rejects every write
type failingFileStore struct {
	services.FileStore
}

func (failingFileStore) Save(ctx context.Context, path string, content io.Reader) (int64, error) {
	return 0, &domain.StorageIOError{Op: "save", Path: path, Err: errors.New("disk full")}
}

func TestServicesOnPostgres(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	system := models.SystemPrincipal("system")

	resolver := auth.NewPermissionResolver(r.folders, r.documents, r.permissions, logger)
	authorizer := auth.NewPermissionAuthorizer(resolver)
	validator := docsysService.NewResourceValidator(r.folders, r.documents)
	folders := docsysService.NewFolderService(r.folders, r.documents, r.permissions, r.tx, validator, authorizer, logger)
	newDocs := func(files services.FileStore) docsysSvc.DocumentService {
		return docsysService.NewDocumentService(r.documents, r.versions, r.folders, r.categories, r.permissions,
			files, r.tx, validator, authorizer, logger)
	}
	docs := newDocs(local.NewFileStoreWithFs(afero.NewMemMapFs(), "/srv/dms", logger))

	a, err := folders.CreateFolder(ctx, system, &docsysSvc.CreateFolderRequest{Name: "A"})
	require.NoError(t, err)
	b, err := folders.CreateFolder(ctx, system, &docsysSvc.CreateFolderRequest{Name: "B", ParentID: &a.ID})
	require.NoError(t, err)
	c, err := folders.CreateFolder(ctx, system, &docsysSvc.CreateFolderRequest{Name: "C", ParentID: &b.ID})
	require.NoError(t, err)

	doc, err := docs.CreateDocument(ctx, system, &docsysSvc.CreateDocumentRequest{
		Name: "brief", OriginalFilename: "brief.pdf", FolderID: &c.ID,
	})
	require.NoError(t, err)

	_, err = folders.MoveFolder(ctx, system, b.ID, nil)
	require.NoError(t, err)

	movedC, err := r.folders.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "/B/C/", movedC.Path)
	assert.Equal(t, 1, movedC.DocumentCount)

	gotDoc, err := r.documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "/B/C/", *gotDoc.FolderPath)

	_, err = folders.MoveFolder(ctx, system, b.ID, &c.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// a storage failure leaves neither a row nor a counter change behind
	_, err = newDocs(failingFileStore{}).UploadDocument(ctx, system, &docsysSvc.CreateDocumentRequest{
		Name: "scan", OriginalFilename: "scan.pdf", FolderID: &c.ID,
	}, strings.NewReader("bytes"))
	assert.ErrorIs(t, err, domain.ErrStorageIO)

	movedC, err = r.folders.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, movedC.DocumentCount)
	_, total, err := r.documents.List(ctx, docsys.DocumentFilter{FolderID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
