package services

import (
	"context"
	"io"
)

// FileStore is the local physical store. Paths are relative to its root and map 1:1
// onto storage_path / dms_path strings.
type FileStore interface {
	Save(ctx context.Context, path string, content io.Reader) (int64, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Size(ctx context.Context, path string) (int64, error)

	// Delete moves the file into the trash subtree instead of unlinking it
	Delete(ctx context.Context, path string) error

	// FullPath returns the absolute on-disk location of path
	FullPath(path string) string
}
