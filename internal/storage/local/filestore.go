// Package local stores document and cached file bytes on the local filesystem.
//
// Every storage_path / dms_path maps 1:1 onto a file below the configured root.
// Deleting never unlinks: files are moved into the .trash subtree.
package local

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid"
	"github.com/spf13/afero"

	"dmsiq/internal/domain"
	"dmsiq/internal/utils"
)

// TrashDir is the subtree holding deleted files, relative to the root
const TrashDir = ".trash"

// maxCleanupDepth bounds how many empty parent directories are pruned after a delete
const maxCleanupDepth = 3

// FileStore implements services.FileStore over an afero filesystem rooted at root
type FileStore struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
	now    func() time.Time

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewFileStore creates a store rooted at the directory root on the OS filesystem
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFileStoreWithFs(afero.NewBasePathFs(osFs, abs), abs, logger), nil
}

// NewFileStoreWithFs creates a store over an existing filesystem whose "/" is the root
func NewFileStoreWithFs(fsys afero.Fs, root string, logger *slog.Logger) *FileStore {
	return &FileStore{
		fs:      fsys,
		root:    root,
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(crand.Reader, 0),
	}
}

// clean maps a storage path onto an absolute path inside the store, refusing the
// root itself and the trash subtree.
func clean(p string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if cleaned == "/" {
		return "", fmt.Errorf("empty storage path")
	}
	if cleaned == "/"+TrashDir || strings.HasPrefix(cleaned, "/"+TrashDir+"/") {
		return "", fmt.Errorf("storage path %q is inside trash", p)
	}
	return cleaned, nil
}

func ioErr(op, p string, err error) error {
	return &domain.StorageIOError{Op: op, Path: p, Err: err}
}

// Save writes content to p, creating parent directories. The file appears atomically.
func (s *FileStore) Save(ctx context.Context, p string, content io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, ioErr("save", p, err)
	}
	target, err := clean(p)
	if err != nil {
		return 0, ioErr("save", p, err)
	}

	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return 0, ioErr("save", p, err)
	}

	tmp := target + ".tmp-" + s.newID()
	f, err := s.fs.Create(tmp)
	if err != nil {
		return 0, ioErr("save", p, err)
	}

	n, copyErr := io.Copy(f, content)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.fs.Remove(tmp)
		return 0, ioErr("save", p, err)
	}

	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return 0, ioErr("save", p, err)
	}

	s.logger.Debug("file saved", "path", target, "bytes", n)
	return n, nil
}

// Read returns the whole file at p. A missing file yields an error matching fs.ErrNotExist.
func (s *FileStore) Read(ctx context.Context, p string) ([]byte, error) {
	target, err := clean(p)
	if err != nil {
		return nil, ioErr("read", p, err)
	}
	data, err := afero.ReadFile(s.fs, target)
	if err != nil {
		return nil, ioErr("read", p, err)
	}
	return data, nil
}

// Exists reports whether a regular file exists at p
func (s *FileStore) Exists(ctx context.Context, p string) (bool, error) {
	target, err := clean(p)
	if err != nil {
		return false, ioErr("stat", p, err)
	}
	info, err := s.fs.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("stat", p, err)
	}
	return !info.IsDir(), nil
}

// Size returns the file size in bytes
func (s *FileStore) Size(ctx context.Context, p string) (int64, error) {
	target, err := clean(p)
	if err != nil {
		return 0, ioErr("stat", p, err)
	}
	info, err := s.fs.Stat(target)
	if err != nil {
		return 0, ioErr("stat", p, err)
	}
	return info.Size(), nil
}

// Delete moves the file at p into the trash as "{ulid}_{name}" and prunes empty parents
func (s *FileStore) Delete(ctx context.Context, p string) error {
	target, err := clean(p)
	if err != nil {
		return ioErr("delete", p, err)
	}
	if _, err := s.fs.Stat(target); err != nil {
		return ioErr("delete", p, err)
	}

	trash := "/" + TrashDir
	if err := s.fs.MkdirAll(trash, 0o755); err != nil {
		return ioErr("delete", p, err)
	}

	trashed := path.Join(trash, s.newID()+"_"+path.Base(target))
	if err := s.fs.Rename(target, trashed); err != nil {
		return ioErr("delete", p, err)
	}

	s.cleanupEmptyDirs(path.Dir(target), maxCleanupDepth)
	s.logger.Info("file moved to trash", "path", target, "trash_path", trashed)
	return nil
}

// FullPath returns the on-disk location of p
func (s *FileStore) FullPath(p string) string {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	return filepath.Join(s.root, filepath.FromSlash(cleaned))
}

// Stats walks the store, excluding the trash
func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Root: s.root}
	err := afero.Walk(s.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == TrashDir {
				return filepath.SkipDir
			}
			return nil
		}
		stats.TotalBytes += info.Size()
		stats.FileCount++
		return nil
	})
	if err != nil {
		return nil, ioErr("walk", "/", err)
	}
	stats.TotalHuman = utils.HumanBytes(stats.TotalBytes)
	return stats, nil
}

// Stats summarizes stored files
type Stats struct {
	Root       string `json:"dms_root"`
	TotalBytes int64  `json:"total_size_bytes"`
	TotalHuman string `json:"total_size_human"`
	FileCount  int    `json:"file_count"`
}

func (s *FileStore) cleanupEmptyDirs(dir string, depth int) {
	for ; depth > 0 && dir != "/" && dir != "."; depth-- {
		empty, err := afero.IsEmpty(s.fs, dir)
		if err != nil || !empty {
			return
		}
		if err := s.fs.Remove(dir); err != nil {
			s.logger.Debug("could not prune empty directory", "dir", dir, "error", err)
			return
		}
		dir = path.Dir(dir)
	}
}

func (s *FileStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}
