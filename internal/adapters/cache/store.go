// Package cache keeps downloaded snapshot workbooks on local disk.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store writes cache files create-if-absent. An existing file is never
// overwritten, so concurrent writers for the same snapshot leave exactly one
// complete file behind.
type Store struct {
	dir string
}

// New returns a store rooted at dir. Relative cache paths resolve against it.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	if rel, err := filepath.Rel(s.dir, path); err == nil && !startsWithParent(rel) {
		return path
	}
	return filepath.Join(s.dir, path)
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// Exists reports whether a cache file is present at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(s.resolve(path))
	return err == nil && info.Mode().IsRegular()
}

// Read returns the cached bytes at path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}
	return data, nil
}

// Put stores data at path unless a file is already there, in which case it
// returns ErrExists and leaves the existing file untouched. Readers never
// observe a partially written file.
func (s *Store) Put(path string, data []byte) error {
	dst := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrIO, filepath.Dir(dst), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, tmpName, err)
	}

	// link fails with EEXIST when another writer got there first
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("%w: publish %s: %v", ErrIO, path, err)
	}
	return nil
}

// Remove deletes the cache file at path; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(s.resolve(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrIO, path, err)
	}
	return nil
}
