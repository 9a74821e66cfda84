package fetcher_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pin/internal/core/domain"
	"go.uber.org/mock/gomock"
)

// initRepo creates a git repository with one commit holding files.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	t.Setenv("GIT_AUTHOR_NAME", "pin")
	t.Setenv("GIT_AUTHOR_EMAIL", "pin@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "pin")
	t.Setenv("GIT_COMMITTER_EMAIL", "pin@example.com")
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))

	dir := t.TempDir()
	writeFiles(t, dir, files)
	git(t, dir, "init", "--quiet", "--initial-branch=main")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "--quiet", "-m", "initial")
	return dir
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestGit_LocalCleanTree(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "outputs: !fn [self]\n"})
	head := git(t, repo, "rev-parse", "HEAD")
	h := newHarness(t)

	ref := domain.MustParseRef("git+file://" + repo)
	tree, locked, err := h.fetcher.Fetch(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, head, locked.Rev())
	assert.Equal(t, int64(1), locked.RevCount())
	assert.NotZero(t, locked.LastModified())
	assert.Equal(t, tree.NarHash, locked.NarHash())
	assert.True(t, locked.IsImmutable())

	_, err = os.Stat(filepath.Join(tree.ActualPath, ".git"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tree.ActualPath, "pin.yaml"))
	require.NoError(t, err)
}

func TestGit_DirtyTreeStaysMutable(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "outputs: !fn [self]\n"})
	writeFiles(t, repo, map[string]string{"extra.txt": "uncommitted"})

	h := newHarness(t, withWarnDirty())
	h.logger.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		assert.Contains(t, msg, "is dirty")
	})

	tree, locked, err := h.fetcher.Fetch(context.Background(), domain.MustParseRef("git+file://"+repo))
	require.NoError(t, err)

	assert.Empty(t, locked.Rev())
	assert.Empty(t, locked.NarHash())
	assert.False(t, locked.IsImmutable())

	data, err := os.ReadFile(filepath.Join(tree.ActualPath, "extra.txt"))
	require.NoError(t, err)
	assert.Equal(t, "uncommitted", string(data))
}

func TestGit_PinnedRevision(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "v1"})
	first := git(t, repo, "rev-parse", "HEAD")
	writeFiles(t, repo, map[string]string{"pin.yaml": "v2"})
	git(t, repo, "commit", "--quiet", "-am", "second")

	h := newHarness(t)
	ref := domain.MustParseRef("git+file://" + repo + "?rev=" + first)
	tree, locked, err := h.fetcher.Fetch(context.Background(), ref)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tree.ActualPath, "pin.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
	assert.Equal(t, first, locked.Rev())
	assert.Equal(t, int64(1), locked.RevCount())
}

func TestGit_Branch(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "main"})
	git(t, repo, "checkout", "--quiet", "-b", "feature")
	writeFiles(t, repo, map[string]string{"pin.yaml": "feature"})
	git(t, repo, "commit", "--quiet", "-am", "feature")
	git(t, repo, "checkout", "--quiet", "main")

	h := newHarness(t)
	tree, locked, err := h.fetcher.Fetch(context.Background(), domain.MustParseRef("git+file://"+repo+"?ref=feature"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tree.ActualPath, "pin.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "feature", string(data))
	assert.Equal(t, "feature", locked.GitRef())
	assert.Equal(t, int64(2), locked.RevCount())
}

func TestGit_MarkChangedFile(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "outputs: !fn [self]\n"})
	h := newHarness(t)
	ref := domain.MustParseRef("git+file://" + repo)

	writeFiles(t, repo, map[string]string{"pin.lock": "{}\n"})
	msg := "pin.lock: Add\n\nFlake input changes:\n\n"
	require.NoError(t, h.fetcher.MarkChangedFile(context.Background(), ref, "pin.lock", &msg))

	assert.Empty(t, git(t, repo, "status", "--porcelain"))
	assert.Equal(t, "pin.lock: Add", git(t, repo, "log", "-1", "--format=%s"))
}

func TestGit_MarkChangedFileStagesWithoutCommit(t *testing.T) {
	repo := initRepo(t, map[string]string{"pin.yaml": "outputs: !fn [self]\n"})
	h := newHarness(t)

	writeFiles(t, repo, map[string]string{"pin.lock": "{}\n"})
	require.NoError(t, h.fetcher.MarkChangedFile(context.Background(), domain.MustParseRef("git+file://"+repo), "pin.lock", nil))

	assert.Contains(t, git(t, repo, "ls-files"), "pin.lock")
	assert.Equal(t, "initial", git(t, repo, "log", "-1", "--format=%s"))
}
