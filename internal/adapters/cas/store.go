// Package cas implements the content addressed store of fetched source trees.
package cas

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store keeps source trees under <dir>/<hash>-source, where the name is derived
// from the tree's narHash.
type Store struct {
	dir      string
	hasher   *fsadapter.Hasher
	verifier *fsadapter.Verifier
	mu       sync.Mutex
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, hasher *fsadapter.Hasher, verifier *fsadapter.Verifier) *Store {
	return &Store{
		dir:      filepath.Clean(dir),
		hasher:   hasher,
		verifier: verifier,
	}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the store path for a tree with the given narHash.
func (s *Store) Path(narHash string) string {
	return filepath.Join(s.dir, s.hasher.StoreName(narHash))
}

// Lookup returns the store path for narHash if the tree is already present.
func (s *Store) Lookup(narHash string) (string, bool) {
	if narHash == "" {
		return "", false
	}
	path := s.Path(narHash)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}

// Contains reports whether path is a tree inside the store.
func (s *Store) Contains(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	return err == nil && rel != "." && filepath.Dir(rel) == "." && rel != ".."
}

// Add stages a new tree with fill, hashes it and moves it to its store path. When
// expected is set the staged tree must match it. Adding a tree that is already
// present keeps the existing copy.
func (s *Store) Add(expected string, fill func(dir string) error) (*domain.Tree, error) {
	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create store"), "path", s.dir)
	}

	staging, err := os.MkdirTemp(s.dir, ".staging-")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create staging directory"), "path", s.dir)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	tree := filepath.Join(staging, "tree")
	if err := fill(tree); err != nil {
		return nil, err
	}

	narHash, err := s.verifier.VerifyTree(tree, expected)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(narHash)
	if err := os.Rename(tree, path); err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return nil, zerr.With(zerr.Wrap(err, "failed to move tree into store"), "path", path)
			}
			return nil, zerr.With(zerr.Wrap(statErr, "failed to stat store path"), "path", path)
		}
	}

	return &domain.Tree{ActualPath: path, StorePath: path, NarHash: narHash}, nil
}
