package fs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

const narHashPrefix = "sha256-"

// Entry kinds written into the tree hash.
const (
	kindRegular    = 'f'
	kindExecutable = 'x'
	kindSymlink    = 'l'
)

// Hasher computes content hashes of source trees.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// HashTree returns the SRI sha256 hash of the tree at root. The hash covers the
// relative path, kind and content of every file and symlink, in lexical order.
func (h *Hasher) HashTree(root string) (string, error) {
	digest := sha256.New()

	for entry, err := range h.walker.WalkFiles(root, nil) {
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to walk tree"), "root", root)
		}
		if err := h.hashEntry(digest, entry); err != nil {
			return "", err
		}
	}

	return narHashPrefix + base64.StdEncoding.EncodeToString(digest.Sum(nil)), nil
}

func (h *Hasher) hashEntry(digest io.Writer, entry Entry) error {
	switch {
	case entry.Type&fs.ModeSymlink != 0:
		target, err := os.Readlink(entry.Path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", entry.Path)
		}
		writeField(digest, []byte{kindSymlink})
		writeField(digest, []byte(entry.Rel))
		writeField(digest, []byte(target))
		return nil
	case entry.Type.IsRegular():
		info, err := os.Stat(entry.Path)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to stat file"), "path", entry.Path)
		}
		kind := byte(kindRegular)
		if info.Mode().Perm()&0o111 != 0 {
			kind = kindExecutable
		}
		writeField(digest, []byte{kind})
		writeField(digest, []byte(entry.Rel))
		return h.hashContent(digest, entry.Path, info.Size())
	default:
		return zerr.With(zerr.New("unsupported file type"), "path", entry.Path)
	}
}

func (h *Hasher) hashContent(digest io.Writer, path string, size int64) error {
	f, err := os.Open(path) //nolint:gosec // path comes from walking the tree
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if err := binary.Write(digest, binary.LittleEndian, uint64(size)); err != nil { //nolint:gosec // size is non-negative
		return zerr.Wrap(err, "failed to write size to digest")
	}
	if _, err := io.Copy(digest, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return nil
}

// writeField writes a length-prefixed field.
func writeField(w io.Writer, b []byte) {
	_ = binary.Write(w, binary.LittleEndian, uint64(len(b)))
	_, _ = w.Write(b)
}

// StoreName returns the store directory name for a tree with the given hash.
func (h *Hasher) StoreName(narHash string) string {
	return fmt.Sprintf("%016x-source", xxhash.Sum64String(narHash))
}

// IsNarHash reports whether s looks like a hash produced by HashTree.
func IsNarHash(s string) bool {
	if len(s) <= len(narHashPrefix) || s[:len(narHashPrefix)] != narHashPrefix {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(narHashPrefix):])
	return err == nil && len(raw) == sha256.Size
}
