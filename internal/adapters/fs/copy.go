package fs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// CopyTree copies the tree at src into dst, which must not exist yet. Symlinks are
// recreated as symlinks and version control directories are skipped.
func (w *Walker) CopyTree(src, dst string) error {
	if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", dst)
	}

	for entry, err := range w.WalkFiles(src, nil) {
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to walk tree"), "root", src)
		}

		target := filepath.Join(dst, filepath.FromSlash(entry.Rel))
		if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", filepath.Dir(target))
		}

		if entry.Type&fs.ModeSymlink != 0 {
			link, err := os.Readlink(entry.Path)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", entry.Path)
			}
			if err := os.Symlink(link, target); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create symlink"), "path", target)
			}
			continue
		}

		if err := copyFile(entry.Path, target); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat file"), "path", src)
	}

	in, err := os.Open(src) //nolint:gosec // src comes from walking the tree
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open file"), "path", src)
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	perm := os.FileMode(domain.FilePerm)
	if info.Mode().Perm()&0o111 != 0 {
		perm = 0o755
	}

	//nolint:gosec // dst is inside a fresh store directory
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create file"), "path", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(err, "failed to copy file"), "path", dst)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close file"), "path", dst)
	}
	return nil
}
