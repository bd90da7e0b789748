package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Permission presets.
const (
	PrivateFileMode fs.FileMode = 0o600
	PrivateDirMode  fs.FileMode = 0o700
	SharedFileMode  fs.FileMode = 0o644
	SharedDirMode   fs.FileMode = 0o755
)

// FileStore keeps the record in a single file replaced via rename.
type FileStore struct {
	path     string
	fileMode fs.FileMode
	dirMode  fs.FileMode
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string, fileMode, dirMode fs.FileMode) *FileStore {
	return &FileStore{path: path, fileMode: fileMode, dirMode: dirMode}
}

// Load reads the whole file.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return data, nil
}

// Replace writes data to a temp file in the same directory, syncs it and
// renames it over the target.
func (s *FileStore) Replace(ctx context.Context, data []byte) error {
	dir := filepath.Dir(s.path)
	if err := s.ensureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(s.fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (s *FileStore) Remove(ctx context.Context) error {
	err := os.Remove(s.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to remove %s: %w", s.path, err)
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

func (s *FileStore) ensureDir(dir string) error {
	mkErr := os.MkdirAll(dir, s.dirMode)
	if mkErr == nil {
		return nil
	}
	// The directory might exist but be unusable for mkdir; writability is what matters.
	probe, err := os.CreateTemp(dir, ".probe.*")
	if err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", dir, mkErr)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}
