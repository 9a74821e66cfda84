package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

// GitScheme fetches git repositories with the git CLI.
type GitScheme struct {
	git       string
	logger    ports.Logger
	warnDirty bool
	walker    fsadapter.Walker
}

// Fetch checks out the revision of ref into dir and locks rev, revCount and
// lastModified. A local repository without ref or rev is taken from its working
// tree; when that tree has uncommitted changes the result stays unlocked.
func (s *GitScheme) Fetch(ctx context.Context, ref domain.Ref, dir string) (domain.Ref, error) {
	repoURL, _ := ref.StringAttr(domain.AttrURL)

	if local, ok := ref.SourcePath(); ok && ref.Rev() == "" && ref.GitRef() == "" {
		dirty, err := s.isDirty(ctx, local)
		if err != nil {
			return domain.Ref{}, err
		}
		if dirty {
			if s.warnDirty {
				s.logger.Warn(fmt.Sprintf("Git tree '%s' is dirty", local))
			}
			if err := s.walker.CopyTree(local, dir); err != nil {
				return domain.Ref{}, zerr.Wrap(err, domain.ErrFetchFailed.Error())
			}
			return ref, nil
		}
	}

	cloneArgs := []string{"clone", "--quiet", "--no-checkout"}
	if branch := ref.GitRef(); branch != "" && ref.Rev() == "" {
		cloneArgs = append(cloneArgs, "--branch", branch)
	}
	cloneArgs = append(cloneArgs, "--", cloneSource(repoURL), dir)
	if _, err := s.run(ctx, "", cloneArgs...); err != nil {
		return domain.Ref{}, zerr.With(err, "url", repoURL)
	}

	rev := ref.Rev()
	if rev == "" {
		out, err := s.run(ctx, dir, "rev-parse", "HEAD")
		if err != nil {
			return domain.Ref{}, err
		}
		rev = out
	}

	if _, err := s.run(ctx, dir, "checkout", "--quiet", rev); err != nil {
		return domain.Ref{}, zerr.With(err, "rev", rev)
	}

	countOut, err := s.run(ctx, dir, "rev-list", "--count", rev)
	if err != nil {
		return domain.Ref{}, err
	}
	revCount, err := strconv.ParseInt(countOut, 10, 64)
	if err != nil {
		return domain.Ref{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "output", countOut)
	}

	timeOut, err := s.run(ctx, dir, "log", "-1", "--format=%ct", rev)
	if err != nil {
		return domain.Ref{}, err
	}
	lastModified, err := strconv.ParseInt(timeOut, 10, 64)
	if err != nil {
		return domain.Ref{}, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "output", timeOut)
	}

	if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
		return domain.Ref{}, zerr.Wrap(err, domain.ErrFetchFailed.Error())
	}

	return ref.
		Without(domain.AttrNarHash).
		With(domain.AttrRev, domain.StringAttr(rev)).
		With(domain.AttrRevCount, domain.IntAttr(revCount)).
		With(domain.AttrLastModified, domain.IntAttr(lastModified)), nil
}

// MarkChangedFile stages relPath in the local repository of ref and commits it when
// commitMsg is set.
func (s *GitScheme) MarkChangedFile(ctx context.Context, ref domain.Ref, relPath string, commitMsg *string) error {
	local, ok := ref.SourcePath()
	if !ok {
		return zerr.With(domain.ErrLockWriteForbidden, "ref", ref.String())
	}

	if _, err := s.run(ctx, local, "add", "--intent-to-add", "--", relPath); err != nil {
		return err
	}
	if commitMsg == nil {
		return nil
	}
	if _, err := s.run(ctx, local, "add", "--", relPath); err != nil {
		return err
	}
	_, err := s.run(ctx, local, "commit", "--quiet", "-m", *commitMsg, "--", relPath)
	return err
}

func (s *GitScheme) isDirty(ctx context.Context, dir string) (bool, error) {
	out, err := s.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// run executes git and returns its trimmed standard output.
func (s *GitScheme) run(ctx context.Context, dir string, args ...string) (string, error) {
	//nolint:gosec // arguments are built from parsed references
	cmd := exec.CommandContext(ctx, s.git, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", zerr.Wrap(ctxErr, domain.ErrCancelled.Error())
		}
		err = zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "command", "git "+strings.Join(args, " "))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = zerr.With(err, "stderr", msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// cloneSource returns the argument git clone understands for repoURL.
func cloneSource(repoURL string) string {
	u, err := url.Parse(repoURL)
	if err == nil && u.Scheme == "file" {
		return u.Path
	}
	return repoURL
}
