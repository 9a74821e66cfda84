package fetcher_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/adapters/cas"
	"go.trai.ch/pin/internal/adapters/fetcher"
	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/pin/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestFetcher_CacheFailuresAreWarnings(t *testing.T) {
	srv, hits := serve(t, map[string][]byte{"/src.tar.gz": gzipBytes(t, tarBytes(t, sourceMembers))})

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockCache := mocks.NewMockFetchCache(ctrl)

	var warnings []string
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		warnings = append(warnings, msg)
	}).Times(2)

	mockCache.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(nil, errors.New("database is locked"))
	mockCache.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	hasher := fsadapter.NewHasher(fsadapter.NewWalker())
	store := cas.NewStore(filepath.Join(t.TempDir(), "store"), hasher, fsadapter.NewVerifier(hasher))
	f := fetcher.New(store, mockCache, mockLogger, fetcherClient(srv))

	tree, locked, err := f.Fetch(context.Background(), domain.MustParseRef(srv.URL+"/src.tar.gz"))
	require.NoError(t, err)
	assert.True(t, store.Contains(tree.StorePath))
	assert.True(t, locked.IsImmutable())
	assert.Equal(t, int32(1), hits.Load())

	require.Len(t, warnings, 2)
	assert.True(t, strings.HasPrefix(warnings[0], "ignoring fetch cache"))
	assert.Contains(t, warnings[1], "disk full")
}

func TestFetcher_CacheHitSkipsDownload(t *testing.T) {
	srv, hits := serve(t, map[string][]byte{"/src.tar.gz": gzipBytes(t, tarBytes(t, sourceMembers))})
	h := newHarness(t, fetcherClient(srv))
	ref := domain.MustParseRef(srv.URL + "/src.tar.gz")

	tree, locked, err := h.fetcher.Fetch(context.Background(), ref)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockFetchCache(ctrl)
	mockCache.EXPECT().Lookup(gomock.Any(), ref.ToAttrs()).Return(&ports.CachedFetch{
		Locked:    locked.ToAttrs(),
		StorePath: tree.StorePath,
		NarHash:   tree.NarHash,
	}, nil)

	f := fetcher.New(h.store, mockCache, h.logger, fetcherClient(srv))
	again, relocked, err := f.Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, tree.StorePath, again.StorePath)
	assert.True(t, locked.Equal(relocked))
	assert.Equal(t, int32(1), hits.Load())
}
