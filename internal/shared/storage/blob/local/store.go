package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"carelog-backend/internal/shared/storage/blob"
)

// Store implements blob.Store on the local filesystem; each container is a directory.
type Store struct {
	baseDir string
}

// New creates a new local blob store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// List walks the container directory. Names use forward slashes.
func (s *Store) List(ctx context.Context, container string) iter.Seq2[blob.Blob, error] {
	return func(yield func(blob.Blob, error) bool) {
		root, err := s.containerDir(container)
		if err != nil {
			yield(blob.Blob{}, err)
			return
		}

		stopped := false
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return filepath.SkipAll
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !yield(blob.Blob{Name: filepath.ToSlash(rel), Size: info.Size()}, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped {
			yield(blob.Blob{}, fmt.Errorf("walk container %s: %w", container, walkErr))
		}
	}
}

// Delete removes a file. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, container, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.blobPath(container, name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Put writes the reader to container/name.
func (s *Store) Put(ctx context.Context, container, name, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath, err := s.blobPath(container, name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write body: %w", err)
	}
	_ = contentType
	return written, nil
}

func (s *Store) containerDir(container string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(container))
	if clean == "." || clean == "" || escapesDir(clean) || filepath.IsAbs(clean) {
		return "", blob.ErrInvalidName
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *Store) blobPath(container, name string) (string, error) {
	dir, err := s.containerDir(container)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || escapesDir(clean) || filepath.IsAbs(clean) {
		return "", blob.ErrInvalidName
	}
	return filepath.Join(dir, clean), nil
}

// escapesDir reports whether a cleaned relative path climbs out of its root.
func escapesDir(clean string) bool {
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

var (
	_ blob.Store  = (*Store)(nil)
	_ blob.Writer = (*Store)(nil)
)
