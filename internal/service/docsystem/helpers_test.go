package docsystem

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models"
	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/domain/services"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
	"dmsiq/internal/service/auth"
	"dmsiq/internal/storage/local"
	"dmsiq/internal/testutil/memstore"
)

var (
	system = models.SystemPrincipal("system")
	alice  = models.Principal{UserID: "alice", Department: "legal"}
	bob    = models.Principal{UserID: "bob", Department: "finance"}
)

type testEnv struct {
	store       *memstore.Store
	files       services.FileStore
	folders     docsysSvc.FolderService
	docs        docsysSvc.DocumentService
	categories  docsysSvc.CategoryService
	permissions docsysSvc.PermissionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newTestEnvWithFiles(t, local.NewFileStoreWithFs(afero.NewMemMapFs(), "/srv/dms", logger))
}

func newTestEnvWithFiles(t *testing.T, files services.FileStore) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()

	folderRepo := store.Folders()
	docRepo := store.Documents()
	permissionRepo := store.Permissions()

	resolver := auth.NewPermissionResolver(folderRepo, docRepo, permissionRepo, logger)
	authorizer := auth.NewPermissionAuthorizer(resolver)
	validator := NewResourceValidator(folderRepo, docRepo)

	return &testEnv{
		store: store,
		files: files,
		folders: NewFolderService(folderRepo, docRepo, permissionRepo,
			store, validator, authorizer, logger),
		docs: NewDocumentService(docRepo, store.Versions(), folderRepo, store.Categories(), permissionRepo,
			files, store, validator, authorizer, logger),
		categories:  NewCategoryService(store.Categories(), store, validator, authorizer, logger),
		permissions: NewPermissionService(permissionRepo, store, validator, authorizer, logger),
	}
}

func (e *testEnv) mkdir(t *testing.T, principal models.Principal, name string, parent *docsys.Folder) *docsys.Folder {
	t.Helper()
	req := &docsysSvc.CreateFolderRequest{Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	folder, err := e.folders.CreateFolder(context.Background(), principal, req)
	require.NoError(t, err)
	return folder
}

func (e *testEnv) folder(t *testing.T, id string) *docsys.Folder {
	t.Helper()
	f, err := e.store.Folders().GetByID(context.Background(), id)
	require.NoError(t, err)
	return f
}

func (e *testEnv) newDoc(t *testing.T, principal models.Principal, name string, folder *docsys.Folder) *docsys.Document {
	t.Helper()
	req := &docsysSvc.CreateDocumentRequest{
		Name:             name,
		OriginalFilename: name + ".pdf",
		MimeType:         "application/pdf",
		SizeBytes:        100,
	}
	if folder != nil {
		req.FolderID = &folder.ID
	}
	doc, err := e.docs.CreateDocument(context.Background(), principal, req)
	require.NoError(t, err)
	return doc
}

// failingFileStore fails every write
type failingFileStore struct {
	services.FileStore
}

func (failingFileStore) Save(ctx context.Context, path string, content io.Reader) (int64, error) {
	return 0, &domain.StorageIOError{Op: "save", Path: path, Err: io.ErrShortWrite}
}
