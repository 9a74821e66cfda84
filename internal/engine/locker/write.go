package locker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// applyLockFile decides whether a changed lock file is written back to the source of
// topRef, writes it, and reloads the manifest afterwards. It returns the manifest that
// matches the lock file on disk.
func (l *Locker) applyLockFile(
	ctx context.Context,
	topRef domain.Ref,
	flake *domain.Flake,
	oldLockFile, newLockFile *domain.LockFile,
	flags domain.LockFlags,
) (*domain.Flake, error) {
	if newLockFile.Equal(oldLockFile) {
		return flake, nil
	}

	diff := domain.DiffLockFiles(oldLockFile, newLockFile)

	if !flags.WriteLockFile {
		l.logger.Warn(fmt.Sprintf("not writing modified lock file of '%s':\n%s", topRef, diff))
		return flake, nil
	}

	sourcePath, ok := topRef.SourcePath()
	if !ok {
		return nil, zerr.With(zerr.With(domain.ErrLockWriteForbidden, "ref", topRef.String()),
			"hint", "use '--no-write-lock-file' to ignore")
	}

	if !flags.UpdateLockFile {
		if !newLockFile.IsImmutable() {
			l.logger.Warn(fmt.Sprintf("will not write lock file of '%s' because it has a mutable input", topRef))
			return flake, nil
		}
		return nil, zerr.With(zerr.With(domain.ErrLockWriteForbidden, "ref", topRef.String()),
			"reason", "lock file changes are not allowed due to '--no-update-lock-file'")
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	relPath := filepath.ToSlash(domain.LockFilePath(topRef.Subdir))
	lockPath, err := resolveInTree(sourcePath, relPath)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(lockPath)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return nil, zerr.With(zerr.Wrap(statErr, domain.ErrLockWriteFailed.Error()), "path", lockPath)
	}
	if exists {
		l.logger.Warn(fmt.Sprintf("updating lock file '%s':\n%s", lockPath, diff))
	} else {
		l.logger.Warn(fmt.Sprintf("creating lock file '%s'", lockPath))
	}

	if err := domain.WriteLockFile(lockPath, newLockFile); err != nil {
		return nil, err
	}

	var commitMsg *string
	if flags.CommitLockFile {
		msg := commitMessage(relPath, exists, diff)
		commitMsg = &msg
	}
	if err := l.fetcher.MarkChangedFile(ctx, topRef, relPath, commitMsg); err != nil {
		return nil, err
	}

	prevLocked := flake.LockedRef
	reloaded, err := l.getFlake(ctx, topRef, flags.UseRegistries, newFetchCache())
	if err != nil {
		return nil, err
	}

	if flags.CommitLockFile && reloaded.LockedRef.Rev() != "" && reloaded.LockedRef.Rev() != prevLocked.Rev() {
		l.logger.Warn(fmt.Sprintf("committed new revision '%s'", reloaded.LockedRef.Rev()))
	}

	if prevLocked.IsImmutable() && reloaded.LockedRef.Equal(prevLocked) {
		return nil, zerr.With(domain.ErrLockUnchangedAfterWrite, "ref", prevLocked.String())
	}

	return reloaded, nil
}

func commitMessage(relPath string, exists bool, diff string) string {
	verb := "Add"
	if exists {
		verb = "Update"
	}
	return fmt.Sprintf("%s: %s\n\nFlake input changes:\n\n%s", relPath, verb, diff)
}
