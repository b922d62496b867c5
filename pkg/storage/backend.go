package storage

import (
	"context"
	"time"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Path         string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
	RelativePath string // POSIX-style, relative to the backend's root
}

// Backend defines the filesystem operations over a local root: the
// PreTrash step uses it to enumerate local_dir, and MkdirAll creates
// directories. The engine never reads or writes file
// bytes itself; transfer is delegated entirely to rsync/sftp.
type Backend interface {
	// List returns all files in the specified directory recursively,
	// skipping unreadable subdirectories with a warning rather than
	// failing the walk.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error
}
