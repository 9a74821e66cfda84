// Package locker resolves the inputs of a manifest into a lock graph.
package locker

import (
	"context"
	"fmt"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

// Locker computes lock files for manifests.
type Locker struct {
	fetcher   ports.Fetcher
	registry  ports.Registry
	evaluator ports.Evaluator
	logger    ports.Logger
	tracer    ports.Tracer
}

// New creates a Locker from its collaborators.
func New(
	fetcher ports.Fetcher,
	registry ports.Registry,
	evaluator ports.Evaluator,
	logger ports.Logger,
	tracer ports.Tracer,
) *Locker {
	return &Locker{
		fetcher:   fetcher,
		registry:  registry,
		evaluator: evaluator,
		logger:    logger,
		tracer:    tracer,
	}
}

// GetFlake fetches and loads the manifest behind ref without locking it.
func (l *Locker) GetFlake(ctx context.Context, ref domain.Ref, allowLookup bool) (*domain.Flake, error) {
	return l.getFlake(ctx, ref, allowLookup, newFetchCache())
}

// LockFlake loads the manifest behind topRef and resolves its inputs into a lock graph
// according to flags. Depending on flags the lock file is written back to the source.
func (l *Locker) LockFlake(ctx context.Context, topRef domain.Ref, flags domain.LockFlags) (*domain.LockedFlake, error) {
	ctx, span := l.tracer.Start(ctx, "lock", ports.WithAttribute("ref", topRef.String()))
	defer span.End()

	locked, err := l.lockFlake(ctx, topRef, flags)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return locked, nil
}

func (l *Locker) lockFlake(ctx context.Context, topRef domain.Ref, flags domain.LockFlags) (*domain.LockedFlake, error) {
	cache := newFetchCache()

	flake, err := l.getFlake(ctx, topRef, flags.UseRegistries, cache)
	if err != nil {
		return nil, err
	}

	lockPath, err := resolveInTree(flake.Tree.ActualPath, domain.LockFilePath(flake.LockedRef.Subdir))
	if err != nil {
		return nil, err
	}
	oldLockFile, err := domain.ReadLockFile(lockPath)
	if err != nil {
		return nil, err
	}
	l.logger.Debug(fmt.Sprintf("old lock file: %s", oldLockFile))

	overrides := domain.OverrideTree{}
	for _, o := range flags.InputOverrides {
		overrides.Set(o.Path, o.Ref)
	}

	var oldRoot *domain.Node
	if !flags.RecreateLockFile {
		oldRoot = oldLockFile.Root
	}

	newLockFile := domain.NewLockFile()
	r := newResolver(l, flags, cache, topRef)
	if err := r.computeLocks(ctx, flake.Inputs, newLockFile.Root, domain.InputPath{}, oldRoot, overrides); err != nil {
		return nil, err
	}

	for _, path := range flags.InputUpdates {
		if !r.updateUsed(path) {
			l.logger.Warn(fmt.Sprintf("the flag '--update-input %s' does not match any input", path))
		}
	}

	if err := newLockFile.Check(); err != nil {
		return nil, err
	}
	l.logger.Debug(fmt.Sprintf("new lock file: %s", newLockFile))

	flake, err = l.applyLockFile(ctx, topRef, flake, oldLockFile, newLockFile, flags)
	if err != nil {
		return nil, err
	}

	return &domain.LockedFlake{
		Flake:        flake,
		LockFile:     newLockFile,
		TouchedPaths: cache.touchedPaths(),
	}, nil
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return zerr.Wrap(err, domain.ErrCancelled.Error())
	}
	return nil
}
