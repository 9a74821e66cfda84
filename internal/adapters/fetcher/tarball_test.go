package fetcher_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/adapters/fetcher"
	"go.trai.ch/pin/internal/core/domain"
)

var archiveTime = time.Unix(1700000000, 0)

type member struct {
	name    string
	content string
	link    string
	dir     bool
}

func tarBytes(t *testing.T, members []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, ModTime: archiveTime, Mode: 0o644}
		switch {
		case m.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		case m.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = m.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(m.content))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(m.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: archiveTime})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serve(t *testing.T, files map[string][]byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

var sourceMembers = []member{
	{name: "source-1.0/", dir: true},
	{name: "source-1.0/pin.yaml", content: "outputs: !fn [self]\n"},
	{name: "source-1.0/lib/a.txt", content: "a"},
	{name: "source-1.0/alias", link: "lib/a.txt"},
}

func TestTarball_Formats(t *testing.T) {
	tarData := tarBytes(t, sourceMembers)
	srv, _ := serve(t, map[string][]byte{
		"/src.tar":     tarData,
		"/src.tar.gz":  gzipBytes(t, tarData),
		"/src.tgz":     gzipBytes(t, tarData),
		"/src.tar.zst": zstdBytes(t, tarData),
		"/src.zip": zipBytes(t, map[string]string{
			"source-1.0/pin.yaml":  "outputs: !fn [self]\n",
			"source-1.0/lib/a.txt": "a",
		}),
	})

	for _, name := range []string{"src.tar", "src.tar.gz", "src.tgz", "src.tar.zst", "src.zip"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, fetcherClient(srv))

			ref := domain.MustParseRef(srv.URL + "/" + name)
			require.Equal(t, domain.RefTypeTarball, ref.Type())

			tree, locked, err := h.fetcher.Fetch(context.Background(), ref)
			require.NoError(t, err)

			data, err := os.ReadFile(filepath.Join(tree.ActualPath, "lib", "a.txt"))
			require.NoError(t, err)
			assert.Equal(t, "a", string(data))

			_, err = os.Stat(filepath.Join(tree.ActualPath, "pin.yaml"))
			require.NoError(t, err, "single top-level directory is stripped")

			assert.Equal(t, tree.NarHash, locked.NarHash())
			assert.Equal(t, archiveTime.Unix(), locked.LastModified())
			assert.True(t, locked.IsImmutable())
		})
	}
}

func TestTarball_SymlinksAreKept(t *testing.T) {
	srv, _ := serve(t, map[string][]byte{"/src.tar": tarBytes(t, sourceMembers)})
	h := newHarness(t, fetcherClient(srv))

	tree, _, err := h.fetcher.Fetch(context.Background(), domain.MustParseRef(srv.URL+"/src.tar"))
	require.NoError(t, err)

	link, err := os.Readlink(filepath.Join(tree.ActualPath, "alias"))
	require.NoError(t, err)
	assert.Equal(t, "lib/a.txt", link)
}

func TestTarball_CachedAcrossFetches(t *testing.T) {
	srv, hits := serve(t, map[string][]byte{"/src.tar.gz": gzipBytes(t, tarBytes(t, sourceMembers))})
	h := newHarness(t, fetcherClient(srv))
	ref := domain.MustParseRef(srv.URL + "/src.tar.gz")

	first, locked, err := h.fetcher.Fetch(context.Background(), ref)
	require.NoError(t, err)
	second, relocked, err := h.fetcher.Fetch(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.StorePath, second.StorePath)
	assert.True(t, locked.Equal(relocked))

	// The locked form is substituted without a download.
	_, _, err = h.fetcher.Fetch(context.Background(), locked)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTarball_Errors(t *testing.T) {
	srv, _ := serve(t, map[string][]byte{
		"/escape.tar": tarBytes(t, []member{{name: "../evil", content: "x"}}),
	})

	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{name: "not found", ref: srv.URL + "/missing.tar.gz", wantErr: domain.ErrFetchFailed},
		{name: "escaping member", ref: srv.URL + "/escape.tar", wantErr: domain.ErrPathEscape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fetcherClient(srv))
			_, _, err := h.fetcher.Fetch(context.Background(), domain.MustParseRef(tt.ref))
			require.ErrorContains(t, err, tt.wantErr.Error())
		})
	}
}

func TestTarball_MarkChangedFileIsForbidden(t *testing.T) {
	h := newHarness(t)
	err := h.fetcher.MarkChangedFile(context.Background(), domain.MustParseRef("https://example.com/src.tar.gz"), "pin.lock", nil)
	require.ErrorContains(t, err, domain.ErrLockWriteForbidden.Error())
}

func fetcherClient(srv *httptest.Server) fetcher.Option {
	return fetcher.WithHTTPClient(srv.Client())
}
