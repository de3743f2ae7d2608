// Package workspace provides the shared-file collaborator used for
// artifact-mediated collaboration between agents. Orchestration steps read
// and write files through the Store interface; a sandboxed directory-backed
// implementation and an in-memory implementation are provided.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when the requested workspace file does not exist.
var ErrNotFound = errors.New("workspace file not found")

// ErrOutsideRoot is returned when a path would escape the workspace root.
var ErrOutsideRoot = errors.New("path escapes workspace root")

// Store abstracts workspace file I/O. Paths are slash-separated and relative
// to the workspace root.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	List(ctx context.Context) ([]string, error)
}

// InMemoryStore is a trivial in-process Store useful for tests and
// single-process prototypes. Data is copied on read and write to avoid
// accidental external mutation of internal buffers.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewInMemoryStore returns an empty in-memory workspace store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[string][]byte)}
}

// Read implements Store.
func (s *InMemoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Write implements Store.
func (s *InMemoryStore) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[path] = cp
	return nil
}

// List implements Store.
func (s *InMemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// DirStore is a Store rooted at a filesystem directory. Every path is
// resolved against the root and rejected if it would escape it.
type DirStore struct {
	root string
}

// NewDirStore constructs a directory-backed store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Read implements Store.
func (s *DirStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read workspace file %s: %w", path, err)
	}
	return data, nil
}

// Write implements Store.
func (s *DirStore) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write workspace file %s: %w", path, err)
	}
	return nil
}

// List implements Store.
func (s *DirStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// resolve maps a relative workspace path to an absolute one under the root.
func (s *DirStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.Join(s.root, clean), nil
}
