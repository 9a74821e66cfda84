package cas_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/adapters/cas"
	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
)

func newStore(t *testing.T) *cas.Store {
	t.Helper()
	hasher := fsadapter.NewHasher(fsadapter.NewWalker())
	return cas.NewStore(filepath.Join(t.TempDir(), "store"), hasher, fsadapter.NewVerifier(hasher))
}

func fillWith(content string) func(string) error {
	return func(dir string) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "pin.yaml"), []byte(content), 0o600)
	}
}

func TestStore_Add(t *testing.T) {
	store := newStore(t)

	tree, err := store.Add("", fillWith("outputs: !fn [self]\n"))
	require.NoError(t, err)

	assert.True(t, fsadapter.IsNarHash(tree.NarHash))
	assert.Equal(t, store.Path(tree.NarHash), tree.StorePath)
	assert.Equal(t, tree.StorePath, tree.ActualPath)
	assert.True(t, store.Contains(tree.StorePath))

	data, err := os.ReadFile(filepath.Join(tree.StorePath, "pin.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "outputs: !fn [self]\n", string(data))

	path, ok := store.Lookup(tree.NarHash)
	require.True(t, ok)
	assert.Equal(t, tree.StorePath, path)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directories are removed")
}

func TestStore_AddIsIdempotent(t *testing.T) {
	store := newStore(t)

	first, err := store.Add("", fillWith("a"))
	require.NoError(t, err)
	second, err := store.Add(first.NarHash, fillWith("a"))
	require.NoError(t, err)

	assert.Equal(t, first.StorePath, second.StorePath)
}

func TestStore_AddRejectsHashMismatch(t *testing.T) {
	store := newStore(t)

	_, err := store.Add("sha256-47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", fillWith("a"))
	require.ErrorContains(t, err, domain.ErrNarHashMismatch.Error())
}

func TestStore_LookupMissing(t *testing.T) {
	store := newStore(t)

	_, ok := store.Lookup("sha256-AAAA")
	assert.False(t, ok)
	_, ok = store.Lookup("")
	assert.False(t, ok)
	assert.False(t, store.Contains(filepath.Join(t.TempDir(), "elsewhere")))
}
