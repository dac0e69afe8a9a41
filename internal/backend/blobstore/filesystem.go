package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tmpPrefix = ".tmp-"

// FilesystemStore keeps one file per blob in <root>/ImageData.
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore creates <root>/ImageData if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", dir, err)
	}
	return &FilesystemStore{dir: dir}, nil
}

// Dir returns the directory the blobs live in.
func (s *FilesystemStore) Dir() string {
	return s.dir
}

// Write stores data atomically: temp file in the same directory, then rename.
func (s *FilesystemStore) Write(_ context.Context, name string, data []byte) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("failed to write blob %s: %w", name, err), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		return errors.Join(fmt.Errorf("failed to move blob %s into place: %w", name, err), os.Remove(tmpPath))
	}
	return nil
}

func (s *FilesystemStore) Read(_ context.Context, name string) ([]byte, error) {
	if err := ValidateFilename(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, nil
}

func (s *FilesystemStore) Delete(_ context.Context, name string) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// List returns blob names sorted; in-flight temp files are skipped.
func (s *FilesystemStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read blob directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes everything in the blob directory, leftover temp files included.
// All failures are joined; the directory itself is kept.
func (s *FilesystemStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read blob directory: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", entry.Name(), err))
		}
	}
	return errors.Join(errs...)
}
