package fetcher

import (
	"context"
	"os"
	"path/filepath"

	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// PathScheme copies local directories.
type PathScheme struct {
	walker fsadapter.Walker
}

// Fetch copies the directory named by ref into dir.
func (s *PathScheme) Fetch(_ context.Context, ref domain.Ref, dir string) (domain.Ref, error) {
	src, _ := ref.StringAttr(domain.AttrPath)
	if !filepath.IsAbs(src) {
		return domain.Ref{}, zerr.With(zerr.With(domain.ErrUnsupportedReference, "ref", ref.String()),
			"reason", "path references must be absolute")
	}

	info, err := os.Stat(src)
	if err != nil {
		return domain.Ref{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "path", src)
	}
	if !info.IsDir() {
		return domain.Ref{}, zerr.With(zerr.With(domain.ErrFetchFailed, "path", src), "reason", "not a directory")
	}

	if err := s.walker.CopyTree(src, dir); err != nil {
		return domain.Ref{}, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}

	return ref.Without(domain.AttrNarHash), nil
}

// MarkChangedFile does nothing: the file was written in place.
func (s *PathScheme) MarkChangedFile(_ context.Context, _ domain.Ref, _ string, _ *string) error {
	return nil
}
