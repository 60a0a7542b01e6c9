// Package local stores transfer records as JSON files under a base
// directory on the invoking machine. It is the default backend: a single
// operator deploying from their own workstation needs history without
// any cloud configuration.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

func init() {
	backend.Register("local", NewBackend)
}

// Store is the raw filesystem object surface. backend.NewBackend wraps
// it with the shared record semantics (advisory locks, idempotent
// delete, prefix listing).
type Store struct {
	basePath string
}

// NewBackend creates a local backend rooted at config["path"],
// defaulting to ~/.mdpack/transfers.
func NewBackend(config map[string]string) (backend.Backend, error) {
	st, err := NewStore(config)
	if err != nil {
		return nil, err
	}
	return backend.NewBackend(st), nil
}

// NewStore builds the raw filesystem store.
func NewStore(config map[string]string) (*Store, error) {
	path := config["path"]
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".mdpack", "transfers")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transfer store directory: %w", err)
	}

	return &Store{basePath: path}, nil
}

func (s *Store) Type() string {
	return "local"
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return file, nil
}

// Put writes to a temp file in the destination directory and renames it
// into place, so a concurrent `transfer list` never observes a
// half-written record.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	fullPath := s.fullPath(key)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".mdpack-transfer-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	_, err = tempFile.Write(data)
	if closeErr := tempFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	if err := os.Remove(s.fullPath(key)); err != nil {
		if os.IsNotExist(err) {
			return backend.ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(s.fullPath(prefix), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(s.basePath, p)
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) fullPath(key string) string {
	return filepath.Join(s.basePath, key)
}

var _ backend.ObjectStore = (*Store)(nil)
