package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmsiq/internal/domain"
)

func newTestStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	memFs := afero.NewMemMapFs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFileStoreWithFs(memFs, "/srv/dms", logger), memFs
}

func TestFileStore_SaveAndRead(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.Save(ctx, "documents/2025/01/abc-report.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	data, err := store.Read(ctx, "/documents/2025/01/abc-report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := store.Exists(ctx, "documents/2025/01/abc-report.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := store.Size(ctx, "documents/2025/01/abc-report.pdf")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "a/b.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "a/b.txt", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := store.Read(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileStore_ReadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Read(context.Background(), "nope/missing.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorageIO))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFileStore_PathsStayInsideRoot(t *testing.T) {
	store, memFs := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)

	exists, err := afero.Exists(memFs, "/etc/passwd")
	require.NoError(t, err)
	assert.True(t, exists, "traversal collapses onto a path below the root")
	assert.Equal(t, "/srv/dms/etc/passwd", store.FullPath("../../etc/passwd"))

	_, err = store.Save(ctx, ".trash/sneaky", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Save(ctx, "/", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFileStore_DeleteMovesToTrash(t *testing.T) {
	store, memFs := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "tenders/2025/03/14/T1/files/boq.xlsx", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "tenders/2025/03/14/T1/files/boq.xlsx"))

	exists, err := store.Exists(ctx, "tenders/2025/03/14/T1/files/boq.xlsx")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := afero.ReadDir(memFs, "/"+TrashDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_boq.xlsx"))

	// Three empty levels pruned: files, T1, 14. The month directory stays.
	for _, dir := range []string{"/tenders/2025/03/14/T1/files", "/tenders/2025/03/14/T1", "/tenders/2025/03/14"} {
		exists, err := afero.DirExists(memFs, dir)
		require.NoError(t, err)
		assert.False(t, exists, dir)
	}
	exists, err = afero.DirExists(memFs, "/tenders/2025/03")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStore_DeleteKeepsNonEmptyParents(t *testing.T) {
	store, memFs := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "docs/a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "docs/b.txt", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "docs/a.txt"))

	exists, err := afero.Exists(memFs, "/docs/b.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStore_DeleteMissing(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Delete(context.Background(), "ghost.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFileStore_StatsSkipsTrash(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "x/one.bin", strings.NewReader("12345"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "y/two.bin", strings.NewReader("123"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "z/gone.bin", strings.NewReader("1234567890"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "z/gone.bin"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FileCount)
	assert.EqualValues(t, 8, stats.TotalBytes)
	assert.Equal(t, "8.00 B", stats.TotalHuman)
}
