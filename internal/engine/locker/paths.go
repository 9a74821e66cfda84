package locker

import (
	"path/filepath"
	"strings"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// resolveInTree joins relPath onto root and resolves symlinks. The result must stay
// inside the real location of root. Missing trailing components are allowed.
func resolveInTree(root, relPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrPathEscape.Error()), "root", root)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrPathEscape.Error()), "root", root)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, filepath.FromSlash(relPath)))
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrPathEscape.Error()), "path", relPath)
	}

	rootPrefix := realRoot + string(filepath.Separator)
	if resolved != realRoot && !strings.HasPrefix(resolved, rootPrefix) {
		return "", zerr.With(zerr.With(domain.ErrPathEscape, "path", relPath), "resolved", resolved)
	}
	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of path and
// appends the rest unchanged.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}
