package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Warn is called with a human-readable warning whenever List skips an
// unreadable subdirectory. Defaults to a no-op; callers that want these
// surfaced (e.g. through the Logger) should replace it.
var Warn = func(msg string) {}

// Local is a filesystem-based storage backend rooted at a local directory.
type Local struct {
	rootPath string
}

// NewLocal creates a new local filesystem backend.
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{rootPath: absPath}, nil
}

// List walks the directory recursively, skipping unreadable
// subdirectories with a warning instead of failing the whole walk, per
// the PreTrash enumeration contract (§4.5 step 1). RelativePath is
// always POSIX-style regardless of host OS.
func (l *Local) List(ctx context.Context, path string) ([]FileInfo, error) {
	fullPath := filepath.Join(l.rootPath, path)
	var files []FileInfo

	err := filepath.WalkDir(fullPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				Warn(fmt.Sprintf("skipping unreadable directory %s: %v", p, err))
				return fs.SkipDir
			}
			Warn(fmt.Sprintf("skipping unreadable entry %s: %v", p, err))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(l.rootPath, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			Warn(fmt.Sprintf("skipping unreadable entry %s: %v", p, err))
			return nil
		}

		files = append(files, FileInfo{
			Path:         p,
			Size:         info.Size(),
			ModTime:      info.ModTime(),
			IsDir:        info.IsDir(),
			Permissions:  uint32(info.Mode().Perm()),
			RelativePath: filepath.ToSlash(relPath),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(l.rootPath, path)

	_, err := os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence: %w", err)
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := filepath.Join(l.rootPath, path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	relPath, err := filepath.Rel(l.rootPath, fullPath)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Path:         fullPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		Permissions:  uint32(info.Mode().Perm()),
		RelativePath: filepath.ToSlash(relPath),
	}, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	fullPath := filepath.Join(l.rootPath, path)

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return nil
}
