// Package fs provides file system adapters for walking, hashing and copying source trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// Entry is a non-directory entry of a tree.
type Entry struct {
	// Path is the absolute path of the entry.
	Path string
	// Rel is the slash separated path relative to the walked root.
	Rel string
	// Type is the file mode type bits of the entry.
	Type fs.FileMode
}

// WalkFiles yields every regular file and symlink below root in lexical order,
// skipping version control directories and ignored names. Walk errors are yielded
// with a zero Entry and stop the walk.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if path != root && w.shouldSkip(d, ignores) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !yield(Entry{Path: path, Rel: filepath.ToSlash(rel), Type: d.Type()}, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, err)
		}
	}
}

// shouldSkip reports whether the entry is a version control directory or matches
// one of the ignore patterns.
func (w *Walker) shouldSkip(d fs.DirEntry, ignores []string) bool {
	name := d.Name()

	if d.IsDir() && (name == ".git" || name == ".jj") {
		return true
	}

	for _, ignore := range ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			return true
		}
	}

	return false
}
