package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// TarballScheme downloads and unpacks archives.
type TarballScheme struct {
	client *http.Client
}

// Fetch downloads the archive named by ref and unpacks it into dir. An archive
// holding a single top-level directory is unpacked from inside that directory.
func (s *TarballScheme) Fetch(ctx context.Context, ref domain.Ref, dir string) (domain.Ref, error) {
	rawURL, _ := ref.StringAttr(domain.AttrURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.Ref{}, zerr.With(zerr.Wrap(err, domain.ErrInvalidRef.Error()), "url", rawURL)
	}

	format, err := archiveFormat(u.Path)
	if err != nil {
		return domain.Ref{}, zerr.With(err, "url", rawURL)
	}

	archive := dir + ".archive"
	defer func() { _ = os.Remove(archive) }()
	if err := s.download(ctx, u, archive); err != nil {
		return domain.Ref{}, zerr.With(err, "url", rawURL)
	}

	unpacked := dir + ".unpack"
	defer func() { _ = os.RemoveAll(unpacked) }()
	lastModified, err := unpack(format, archive, unpacked)
	if err != nil {
		return domain.Ref{}, zerr.With(err, "url", rawURL)
	}

	root, err := singleTopDir(unpacked)
	if err != nil {
		return domain.Ref{}, err
	}
	if err := os.Rename(root, dir); err != nil {
		return domain.Ref{}, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}

	locked := ref.Without(domain.AttrNarHash)
	if lastModified > 0 {
		locked = locked.With(domain.AttrLastModified, domain.IntAttr(lastModified))
	}
	return locked, nil
}

// MarkChangedFile fails: archives cannot be written back.
func (s *TarballScheme) MarkChangedFile(_ context.Context, ref domain.Ref, _ string, _ *string) error {
	return zerr.With(domain.ErrLockWriteForbidden, "ref", ref.String())
}

func (s *TarballScheme) download(ctx context.Context, u *url.URL, dst string) error {
	var body io.ReadCloser

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}
		body = f
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}
		resp, err := s.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zerr.Wrap(ctxErr, domain.ErrCancelled.Error())
			}
			return zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return zerr.With(domain.ErrFetchFailed, "status", fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		}
		body = resp.Body
	default:
		return zerr.With(domain.ErrUnsupportedReference, "scheme", u.Scheme)
	}
	defer body.Close() //nolint:errcheck // Best effort close in defer

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, domain.PrivateFilePerm) //nolint:gosec // dst is in the staging area
	if err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if err := out.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	return nil
}

// singleTopDir returns the only entry of dir when it is a directory, else dir.
func singleTopDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

type format int

const (
	formatTar format = iota
	formatTarGzip
	formatTarBzip2
	formatTarZstd
	formatZip
)

func archiveFormat(p string) (format, error) {
	switch {
	case strings.HasSuffix(p, ".tar.gz"), strings.HasSuffix(p, ".tgz"):
		return formatTarGzip, nil
	case strings.HasSuffix(p, ".tar.bz2"):
		return formatTarBzip2, nil
	case strings.HasSuffix(p, ".tar.zst"):
		return formatTarZstd, nil
	case strings.HasSuffix(p, ".tar"):
		return formatTar, nil
	case strings.HasSuffix(p, ".zip"):
		return formatZip, nil
	default:
		return 0, zerr.With(domain.ErrUnsupportedReference, "reason", "unknown archive format")
	}
}
