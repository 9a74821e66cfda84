package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/adapters/registry"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const testRev = "0123456789abcdef0123456789abcdef01234567"

const userRegistry = `{
  "version": 2,
  "flakes": [
    {
      "from": {"type": "indirect", "id": "nixpkgs"},
      "to": {"type": "git", "url": "https://example.com/nixpkgs.git"}
    },
    {
      "from": {"type": "indirect", "id": "tools", "ref": "stable"},
      "to": {"type": "git", "url": "https://example.com/tools.git", "ref": "v1"},
      "exact": true
    },
    {
      "from": {"type": "indirect", "id": "tools"},
      "to": {"type": "tarball", "url": "https://example.com/tools.tar.gz"}
    }
  ]
}`

const globalRegistry = `{
  "version": 2,
  "flakes": [
    {
      "from": {"type": "indirect", "id": "nixpkgs"},
      "to": {"type": "git", "url": "https://example.com/other.git"}
    },
    {
      "from": {"type": "indirect", "id": "utils"},
      "to": {"type": "path", "path": "/srv/utils"}
    }
  ]
}`

func newLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	return log
}

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRegistry_ResolveLocal(t *testing.T) {
	user := writeRegistry(t, userRegistry)
	global := writeRegistry(t, globalRegistry)
	missing := filepath.Join(t.TempDir(), "missing.json")
	reg := registry.New([]string{missing, user, "file://" + global}, newLogger(t))

	tests := []struct {
		name     string
		ref      string
		wantType string
		wantURL  string
		wantRef  string
		wantRev  string
		wantDir  string
	}{
		{name: "first match wins", ref: "nixpkgs", wantType: domain.RefTypeGit, wantURL: "https://example.com/nixpkgs.git"},
		{name: "branch is carried over", ref: "nixpkgs/release-24.05", wantType: domain.RefTypeGit, wantURL: "https://example.com/nixpkgs.git", wantRef: "release-24.05"},
		{name: "revision is carried over", ref: "nixpkgs/main/" + testRev, wantType: domain.RefTypeGit, wantURL: "https://example.com/nixpkgs.git", wantRef: "main", wantRev: testRev},
		{name: "subdirectory is carried over", ref: "flake:nixpkgs#lib", wantType: domain.RefTypeGit, wantURL: "https://example.com/nixpkgs.git", wantDir: "lib"},
		{name: "exact entry ignores the branch", ref: "tools/stable", wantType: domain.RefTypeGit, wantURL: "https://example.com/tools.git", wantRef: "v1"},
		{name: "pinned branch does not match others", ref: "tools", wantType: domain.RefTypeTarball, wantURL: "https://example.com/tools.tar.gz"},
		{name: "later registry is consulted", ref: "utils", wantType: domain.RefTypePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := reg.Resolve(context.Background(), domain.MustParseRef(tt.ref))
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, resolved.Type())
			if tt.wantURL != "" {
				u, _ := resolved.StringAttr(domain.AttrURL)
				assert.Equal(t, tt.wantURL, u)
			}
			assert.Equal(t, tt.wantRef, resolved.GitRef())
			assert.Equal(t, tt.wantRev, resolved.Rev())
			assert.Equal(t, tt.wantDir, resolved.Subdir)
		})
	}
}

func TestRegistry_ResolveErrors(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		reg := registry.New([]string{writeRegistry(t, userRegistry)}, newLogger(t))
		_, err := reg.Resolve(context.Background(), domain.MustParseRef("unknown"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrRegistryNotFound.Error())
	})

	t.Run("no registries", func(t *testing.T) {
		reg := registry.New(nil, newLogger(t))
		_, err := reg.Resolve(context.Background(), domain.MustParseRef("nixpkgs"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrRegistryNotFound.Error())
	})

	t.Run("unsupported version", func(t *testing.T) {
		reg := registry.New([]string{writeRegistry(t, `{"version": 1, "flakes": []}`)}, newLogger(t))
		_, err := reg.Resolve(context.Background(), domain.MustParseRef("nixpkgs"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrRegistryParse.Error())
	})

	t.Run("malformed document", func(t *testing.T) {
		reg := registry.New([]string{writeRegistry(t, `{"version": 2, "flakes": [`)}, newLogger(t))
		_, err := reg.Resolve(context.Background(), domain.MustParseRef("nixpkgs"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrRegistryParse.Error())
	})

	t.Run("invalid target", func(t *testing.T) {
		doc := `{"version": 2, "flakes": [{"from": {"type": "indirect", "id": "bad"}, "to": {"type": "git"}}]}`
		reg := registry.New([]string{writeRegistry(t, doc)}, newLogger(t))
		_, err := reg.Resolve(context.Background(), domain.MustParseRef("bad"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrRegistryParse.Error())
	})

	t.Run("cancelled", func(t *testing.T) {
		reg := registry.New([]string{writeRegistry(t, userRegistry)}, newLogger(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := reg.Resolve(ctx, domain.MustParseRef("nixpkgs"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrCancelled.Error())
	})
}

func TestRegistry_DirectRefUnchanged(t *testing.T) {
	reg := registry.New(nil, newLogger(t))
	ref := domain.MustParseRef("git+https://example.com/repo.git?ref=main")

	resolved, err := reg.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, ref.Equal(resolved))
}

func serveRegistry(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRegistry_Remote(t *testing.T) {
	t.Run("documents are cached", func(t *testing.T) {
		srv, hits := serveRegistry(t, http.StatusOK, globalRegistry)
		cache, err := registry.OpenInMemoryDocCache(time.Hour)
		require.NoError(t, err)

		reg := registry.New([]string{srv.URL + "/registry.json"}, newLogger(t),
			registry.WithHTTPClient(srv.Client()), registry.WithCache(cache))
		t.Cleanup(func() { _ = reg.Close() })

		for range 3 {
			resolved, err := reg.Resolve(context.Background(), domain.MustParseRef("utils"))
			require.NoError(t, err)
			assert.Equal(t, domain.RefTypePath, resolved.Type())
		}
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("without cache every lookup downloads", func(t *testing.T) {
		srv, hits := serveRegistry(t, http.StatusOK, globalRegistry)
		reg := registry.New([]string{srv.URL}, newLogger(t), registry.WithHTTPClient(srv.Client()))

		for range 2 {
			_, err := reg.Resolve(context.Background(), domain.MustParseRef("utils"))
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("invalid documents are not cached", func(t *testing.T) {
		srv, hits := serveRegistry(t, http.StatusOK, `{"version": 7}`)
		cache, err := registry.OpenInMemoryDocCache(time.Hour)
		require.NoError(t, err)

		reg := registry.New([]string{srv.URL}, newLogger(t),
			registry.WithHTTPClient(srv.Client()), registry.WithCache(cache))
		t.Cleanup(func() { _ = reg.Close() })

		for range 2 {
			_, err := reg.Resolve(context.Background(), domain.MustParseRef("utils"))
			require.Error(t, err)
			assert.ErrorContains(t, err, domain.ErrRegistryParse.Error())
		}
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("http error", func(t *testing.T) {
		srv, _ := serveRegistry(t, http.StatusNotFound, "")
		reg := registry.New([]string{srv.URL}, newLogger(t), registry.WithHTTPClient(srv.Client()))

		_, err := reg.Resolve(context.Background(), domain.MustParseRef("utils"))
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrFetchFailed.Error())
	})
}

func TestDocCache(t *testing.T) {
	t.Run("persists across reopen", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := registry.OpenDocCache(dir, time.Hour)
		require.NoError(t, err)
		require.NoError(t, cache.Put("https://example.com/registry.json", []byte("doc")))
		require.NoError(t, cache.Close())

		cache, err = registry.OpenDocCache(dir, time.Hour)
		require.NoError(t, err)
		t.Cleanup(func() { _ = cache.Close() })

		data, ok, err := cache.Get("https://example.com/registry.json")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "doc", string(data))

		_, ok, err = cache.Get("https://example.com/other.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero ttl disables caching", func(t *testing.T) {
		cache, err := registry.OpenInMemoryDocCache(0)
		require.NoError(t, err)
		t.Cleanup(func() { _ = cache.Close() })

		require.NoError(t, cache.Put("src", []byte("doc")))
		_, ok, err := cache.Get("src")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
