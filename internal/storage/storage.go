// Package storage provides the file primitives the token store and the
// response cache persist through.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotExist is returned when a file does not exist.
var ErrNotExist = errors.New("file does not exist")

// Store is a minimal file store rooted at a base directory. Paths are relative
// to that directory and use forward slashes.
type Store interface {
	// Exists reports whether a file or directory exists.
	Exists(ctx context.Context, path string) (bool, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(ctx context.Context, path string) error

	// ReadFile returns the content of a file, or ErrNotExist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces the content of a file, creating parent directories.
	WriteFile(ctx context.Context, path string, data []byte) error

	// Remove deletes a file. Missing files are not an error.
	Remove(ctx context.Context, path string) error

	// ModTime returns when a file was last written, or ErrNotExist.
	ModTime(ctx context.Context, path string) (time.Time, error)

	// Sync makes sure a file is available locally before it is read.
	// Stores without a remote backing return nil.
	Sync(ctx context.Context, path string) error
}

// Local is a Store on the local filesystem.
type Local struct {
	basePath string
}

// NewLocal creates a local store rooted at basePath, creating the directory.
func NewLocal(basePath string) (*Local, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &Local{basePath: abs}, nil
}

// BasePath returns the absolute root of the store.
func (s *Local) BasePath() string {
	return s.basePath
}

func (s *Local) full(path string) string {
	return filepath.Join(s.basePath, filepath.Clean("/"+filepath.FromSlash(path)))
}

// Exists reports whether path exists.
func (s *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.full(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// MkdirAll creates path and its parents.
func (s *Local) MkdirAll(_ context.Context, path string) error {
	if err := os.MkdirAll(s.full(path), 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// ReadFile reads path.
func (s *Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.full(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path with owner-only permissions.
func (s *Local) WriteFile(_ context.Context, path string, data []byte) error {
	full := s.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Remove deletes path, ignoring missing files.
func (s *Local) Remove(_ context.Context, path string) error {
	if err := os.Remove(s.full(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ModTime returns the modification time of path.
func (s *Local) ModTime(_ context.Context, path string) (time.Time, error) {
	info, err := os.Stat(s.full(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, ErrNotExist
		}
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

// Sync is a no-op for local files.
func (s *Local) Sync(context.Context, string) error {
	return nil
}
