package docsystem

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmsiq/internal/domain"
	docsys "dmsiq/internal/domain/models/docsystem"
	docsysSvc "dmsiq/internal/domain/services/docsystem"
)

func TestCreateFolder_Paths(t *testing.T) {
	env := newTestEnv(t)

	legal := env.mkdir(t, system, "Legal", nil)
	assert.Equal(t, "/Legal/", legal.Path)
	assert.Nil(t, legal.ParentID)
	assert.Equal(t, 0, legal.DocumentCount)
	assert.Equal(t, docsys.ConfidentialityInternal, legal.ConfidentialityLevel)

	cases := env.mkdir(t, system, "Cases", legal)
	assert.Equal(t, "/Legal/Cases/", cases.Path)
	require.NotNil(t, cases.ParentID)
	assert.Equal(t, legal.ID, *cases.ParentID)
}

func TestCreateFolder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *docsysSvc.CreateFolderRequest
	}{
		{name: "empty name", req: &docsysSvc.CreateFolderRequest{Name: "  "}},
		{name: "slash in name", req: &docsysSvc.CreateFolderRequest{Name: "a/b"}},
		{name: "name too long", req: &docsysSvc.CreateFolderRequest{Name: strings.Repeat("x", 256)}},
		{name: "bad confidentiality", req: &docsysSvc.CreateFolderRequest{Name: "ok", ConfidentialityLevel: "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.folders.CreateFolder(ctx, system, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateFolder_MissingParent(t *testing.T) {
	env := newTestEnv(t)
	missing := "does-not-exist"

	_, err := env.folders.CreateFolder(context.Background(), system, &docsysSvc.CreateFolderRequest{
		Name:     "Orphan",
		ParentID: &missing,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateFolder_DuplicateSibling(t *testing.T) {
	env := newTestEnv(t)
	legal := env.mkdir(t, system, "Legal", nil)
	env.mkdir(t, system, "Cases", legal)

	_, err := env.folders.CreateFolder(context.Background(), system, &docsysSvc.CreateFolderRequest{
		Name:     "Cases",
		ParentID: &legal.ID,
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "folder", conflict.ResourceType)
}

func TestCreateFolder_CreatorBecomesAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	projects := env.mkdir(t, alice, "Projects", nil)
	grants, err := env.store.Permissions().ListByTarget(ctx, docsys.TargetFolder, projects.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, docsys.LevelAdmin, grants[0].Level)
	assert.True(t, grants[0].InheritToSubfolders)

	// Inherited admin lets alice build below her folder.
	child := env.mkdir(t, alice, "Bridge", projects)
	assert.Equal(t, "/Projects/Bridge/", child.Path)

	// Bob holds nothing here.
	_, err = env.folders.CreateFolder(ctx, bob, &docsysSvc.CreateFolderRequest{Name: "Intrusion", ParentID: &projects.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateFolder_RenameCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, system, "A", nil)
	b := env.mkdir(t, system, "B", a)
	c := env.mkdir(t, system, "C", b)
	doc := env.newDoc(t, system, "memo", c)

	renamed := "Archive"
	updated, err := env.folders.UpdateFolder(ctx, system, a.ID, &docsysSvc.UpdateFolderRequest{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "/Archive/", updated.Path)

	assert.Equal(t, "/Archive/B/", env.folder(t, b.ID).Path)
	assert.Equal(t, "/Archive/B/C/", env.folder(t, c.ID).Path)

	got, err := env.store.Documents().GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FolderPath)
	assert.Equal(t, "/Archive/B/C/", *got.FolderPath)
}

func TestUpdateFolder_DescriptiveFieldsKeepPath(t *testing.T) {
	env := newTestEnv(t)
	legal := env.mkdir(t, system, "Legal", nil)

	desc := "contracts and cases"
	restricted := docsys.ConfidentialityRestricted
	updated, err := env.folders.UpdateFolder(context.Background(), system, legal.ID, &docsysSvc.UpdateFolderRequest{
		Description:          &desc,
		ConfidentialityLevel: &restricted,
	})
	require.NoError(t, err)
	assert.Equal(t, "/Legal/", updated.Path)
	assert.Equal(t, restricted, updated.ConfidentialityLevel)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)
}

func TestUpdateFolder_EmptyRequest(t *testing.T) {
	env := newTestEnv(t)
	legal := env.mkdir(t, system, "Legal", nil)

	_, err := env.folders.UpdateFolder(context.Background(), system, legal.ID, &docsysSvc.UpdateFolderRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMoveFolder_ToRoot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, system, "A", nil)
	b := env.mkdir(t, system, "B", a)
	c := env.mkdir(t, system, "C", b)
	require.Equal(t, "/A/B/C/", c.Path)

	moved, err := env.folders.MoveFolder(ctx, system, b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "/B/", moved.Path)
	assert.Nil(t, moved.ParentID)

	children, err := env.folders.ListFolders(ctx, system, &a.ID, docsys.FolderFilter{})
	require.NoError(t, err)
	assert.Empty(t, children)

	assert.Equal(t, "/B/C/", env.folder(t, c.ID).Path)
}

func TestMoveFolder_IntoOwnSubtreeLeavesTreeUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, system, "A", nil)
	b := env.mkdir(t, system, "B", a)
	c := env.mkdir(t, system, "C", b)

	_, err := env.folders.MoveFolder(ctx, system, a.ID, &c.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.folders.MoveFolder(ctx, system, a.ID, &a.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, "/A/", env.folder(t, a.ID).Path)
	assert.Nil(t, env.folder(t, a.ID).ParentID)
	assert.Equal(t, "/A/B/", env.folder(t, b.ID).Path)
	assert.Equal(t, "/A/B/C/", env.folder(t, c.ID).Path)
}

func TestMoveFolder_MissingDestination(t *testing.T) {
	env := newTestEnv(t)
	a := env.mkdir(t, system, "A", nil)
	missing := "nowhere"

	_, err := env.folders.MoveFolder(context.Background(), system, a.ID, &missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveFolder_RequiresWriteOnDestination(t *testing.T) {
	env := newTestEnv(t)
	mine := env.mkdir(t, alice, "Mine", nil)
	theirs := env.mkdir(t, bob, "Theirs", nil)

	_, err := env.folders.MoveFolder(context.Background(), alice, mine.ID, &theirs.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "/Mine/", env.folder(t, mine.ID).Path)
}

func TestMoveFolder_RepeatedMovesKeepPathsConsistent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	x := env.mkdir(t, system, "X", nil)
	y := env.mkdir(t, system, "Y", nil)
	p := env.mkdir(t, system, "P", x)
	q := env.mkdir(t, system, "Q", p)
	r := env.mkdir(t, system, "R", q)

	steps := []struct {
		folder string
		parent *string
	}{
		{folder: p.ID, parent: &y.ID},
		{folder: q.ID, parent: &x.ID},
		{folder: x.ID, parent: &y.ID},
		{folder: q.ID, parent: nil},
		{folder: p.ID, parent: &q.ID},
	}
	for _, step := range steps {
		_, err := env.folders.MoveFolder(ctx, system, step.folder, step.parent)
		require.NoError(t, err)
	}

	// Every path must equal the concatenation of ancestor names.
	for _, id := range []string{x.ID, y.ID, p.ID, q.ID, r.ID} {
		f := env.folder(t, id)
		assert.Equal(t, expectedPath(t, env, f), f.Path, f.Name)
	}
	assert.Equal(t, "/Q/R/", env.folder(t, r.ID).Path)
	assert.Equal(t, "/Q/P/", env.folder(t, p.ID).Path)
	assert.Equal(t, "/Y/X/", env.folder(t, x.ID).Path)
}

func expectedPath(t *testing.T, env *testEnv, f *docsys.Folder) string {
	t.Helper()
	path := f.Name + "/"
	for f.ParentID != nil {
		f = env.folder(t, *f.ParentID)
		path = f.Name + "/" + path
	}
	return "/" + path
}

func TestDeleteFolder_MustBeEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mkdir(t, system, "A", nil)
	b := env.mkdir(t, system, "B", a)

	err := env.folders.DeleteFolder(ctx, system, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotEmpty)
	assert.ErrorIs(t, err, domain.ErrValidation)

	doc := env.newDoc(t, system, "notes", b)
	err = env.folders.DeleteFolder(ctx, system, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotEmpty)

	_, err = env.docs.TransitionStatus(ctx, system, doc.ID, docsys.StatusFailed)
	require.NoError(t, err)
	require.NoError(t, env.docs.DeleteDocument(ctx, system, doc.ID))
	require.NoError(t, env.folders.DeleteFolder(ctx, system, b.ID))
	require.NoError(t, env.folders.DeleteFolder(ctx, system, a.ID))

	_, err = env.folders.GetFolder(ctx, system, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteFolder_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shared := env.mkdir(t, alice, "Shared", nil)

	bobID := bob.UserID
	_, err := env.permissions.Grant(ctx, alice, &docsysSvc.GrantRequest{
		TargetKind: docsys.TargetFolder,
		TargetID:   shared.ID,
		UserID:     &bobID,
		Level:      docsys.LevelWrite,
	})
	require.NoError(t, err)

	err = env.folders.DeleteFolder(ctx, bob, shared.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	require.NoError(t, env.folders.DeleteFolder(ctx, alice, shared.ID))
}

func TestGetFolder_NotFoundBeforeForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	private := env.mkdir(t, alice, "Private", nil)

	_, err := env.folders.GetFolder(ctx, bob, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.folders.GetFolder(ctx, bob, private.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestListFolders_RootOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	legal := env.mkdir(t, system, "Legal", nil)
	env.mkdir(t, system, "Finance", nil)
	env.mkdir(t, system, "Cases", legal)

	roots, err := env.folders.ListFolders(ctx, system, nil, docsys.FolderFilter{})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	for _, f := range roots {
		assert.Nil(t, f.ParentID)
	}

	filtered, err := env.folders.ListFolders(ctx, system, nil, docsys.FolderFilter{Search: "fin"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Finance", filtered[0].Name)
}

func TestListFolders_RootsFilteredByAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.mkdir(t, alice, "AliceOnly", nil)
	env.mkdir(t, bob, "BobOnly", nil)

	roots, err := env.folders.ListFolders(ctx, alice, nil, docsys.FolderFilter{})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "AliceOnly", roots[0].Name)
}

func TestListChildren(t *testing.T) {
	env := newTestEnv(t)
	legal := env.mkdir(t, system, "Legal", nil)
	env.mkdir(t, system, "Cases", legal)
	env.newDoc(t, system, "policy", legal)

	contents, err := env.folders.ListChildren(context.Background(), system, legal.ID)
	require.NoError(t, err)
	assert.Equal(t, legal.ID, contents.Folder.ID)
	assert.Len(t, contents.Folders, 1)
	assert.Len(t, contents.Documents, 1)
}

func TestGetOrCreateByPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenders := env.mkdir(t, system, "tenders", nil)

	leaf, err := env.folders.GetOrCreateByPath(ctx, system, "/tenders/2025/03/14/T-100/files/")
	require.NoError(t, err)
	assert.Equal(t, "/tenders/2025/03/14/T-100/files/", leaf.Path)

	again, err := env.folders.GetOrCreateByPath(ctx, system, "tenders/2025/03/14/T-100/files")
	require.NoError(t, err)
	assert.Equal(t, leaf.ID, again.ID)

	year, err := env.folders.GetFolderByPath(ctx, system, "/tenders/2025")
	require.NoError(t, err)
	require.NotNil(t, year.ParentID)
	assert.Equal(t, tenders.ID, *year.ParentID)

	_, err = env.folders.GetOrCreateByPath(ctx, system, "//")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
