package fetcher

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// unpack extracts archive into dir and returns the newest modification time seen.
func unpack(f format, archive, dir string) (int64, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if f == formatZip {
		return unzip(archive, dir)
	}

	file, err := os.Open(archive) //nolint:gosec // archive is in the staging area
	if err != nil {
		return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	defer file.Close() //nolint:errcheck // Best effort close in defer

	var r io.Reader = file
	switch f {
	case formatTarGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}
		defer gz.Close() //nolint:errcheck // Best effort close in defer
		r = gz
	case formatTarBzip2:
		r = bzip2.NewReader(file)
	case formatTarZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}
		defer zr.Close()
		r = zr
	}

	return untar(r, dir)
}

func untar(r io.Reader, dir string) (int64, error) {
	var newest int64
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return newest, nil
		}
		if err != nil {
			return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
		}

		target, ok, err := entryPath(dir, hdr.Name)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		newest = max(newest, hdr.ModTime.Unix())

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = os.MkdirAll(target, domain.DirPerm)
		case tar.TypeReg:
			err = writeEntry(target, hdr.FileInfo().Mode(), tr)
		case tar.TypeSymlink:
			err = writeSymlink(target, hdr.Linkname)
		default:
			// Hard links, devices and other special files are not part of source trees.
			continue
		}
		if err != nil {
			return 0, err
		}
	}
}

func unzip(archive, dir string) (int64, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	defer zr.Close() //nolint:errcheck // Best effort close in defer

	var newest int64
	for _, zf := range zr.File {
		target, ok, err := entryPath(dir, zf.Name)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		newest = max(newest, zf.Modified.Unix())

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			err = os.MkdirAll(target, domain.DirPerm)
		case mode&fs.ModeSymlink != 0:
			err = unzipSymlink(zf, target)
		case mode.IsRegular():
			err = unzipFile(zf, target)
		}
		if err != nil {
			return 0, err
		}
	}
	return newest, nil
}

func unzipFile(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	defer rc.Close() //nolint:errcheck // Best effort close in defer
	return writeEntry(target, zf.Mode(), rc)
}

func unzipSymlink(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	defer rc.Close() //nolint:errcheck // Best effort close in defer

	link, err := io.ReadAll(rc)
	if err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	return writeSymlink(target, string(link))
}

// entryPath maps an archive member name into dir. Members that would land outside
// dir are rejected; the root entry itself is skipped.
func entryPath(dir, name string) (string, bool, error) {
	norm := strings.ReplaceAll(name, "\\", "/")
	for _, seg := range strings.Split(norm, "/") {
		if seg == ".." {
			return "", false, zerr.With(domain.ErrPathEscape, "entry", name)
		}
	}

	rel := strings.TrimPrefix(path.Clean("/"+norm), "/")
	if rel == "" {
		return "", false, nil
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), true, nil
}

func writeEntry(target string, mode fs.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}

	perm := os.FileMode(domain.FilePerm)
	if mode.Perm()&0o111 != 0 {
		perm = 0o755
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) //nolint:gosec // target is confined to the unpack directory
	if err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // archives come from pinned or user given sources
		_ = out.Close()
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if err := out.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	return nil
}

func writeSymlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	if err := os.Symlink(link, target); err != nil {
		return zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}
	return nil
}
