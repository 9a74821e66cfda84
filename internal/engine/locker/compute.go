package locker

import (
	"context"
	"fmt"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/zerr"
)

// resolver holds the state of a single LockFlake run.
type resolver struct {
	locker *Locker
	flags  domain.LockFlags
	cache  *fetchCache
	// parents is the chain of references currently being resolved, root first.
	parents []domain.Ref
	// updatesUsed records every input path resolution visited, keyed by its string form.
	updatesUsed map[string]struct{}
}

func newResolver(l *Locker, flags domain.LockFlags, cache *fetchCache, topRef domain.Ref) *resolver {
	return &resolver{
		locker:      l,
		flags:       flags,
		cache:       cache,
		parents:     []domain.Ref{topRef},
		updatesUsed: make(map[string]struct{}),
	}
}

func (r *resolver) updateUsed(path domain.InputPath) bool {
	_, ok := r.updatesUsed[path.String()]
	return ok
}

// computeLocks fills node with the lock entries for inputs. prefix is the input path
// of node, oldNode is the matching node of the previous lock file (nil if none) and
// overrides are the residual overrides aimed at node's inputs.
func (r *resolver) computeLocks(
	ctx context.Context,
	inputs *domain.Inputs,
	node *domain.Node,
	prefix domain.InputPath,
	oldNode *domain.Node,
	overrides domain.OverrideTree,
) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	for id, declared := range inputs.All() {
		if err := r.computeInput(ctx, id, declared, node, prefix, oldNode, overrides); err != nil {
			return err
		}
	}

	r.warnUnused(overrides, prefix)
	return nil
}

func (r *resolver) warnUnused(overrides domain.OverrideTree, prefix domain.InputPath) {
	if unused := overrides.Describe(prefix); unused != "" {
		r.locker.logger.Warn(fmt.Sprintf("unused input override(s): %s", unused))
	}
}

func (r *resolver) computeInput(
	ctx context.Context,
	id string,
	declared *domain.InputSpec,
	node *domain.Node,
	prefix domain.InputPath,
	oldNode *domain.Node,
	overrides domain.OverrideTree,
) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	inputPath := prefix.Child(id)
	input := *declared
	input.Overrides = declared.Overrides.Clone()
	// The overrides of the declaring manifest are relative to it; anchor them before
	// the residual overrides from above are merged in.
	input.Overrides.Anchor(prefix)

	hasOverride := false
	if o, ok := overrides.Extract(id); ok {
		if o.Ref != nil {
			r.locker.logger.Debug(fmt.Sprintf("overriding input '%s' with '%s'", inputPath, o.Ref))
			input.Ref = o.Ref
			input.Follows = nil
			hasOverride = true
		}
		if o.Follows != nil {
			r.locker.logger.Debug(fmt.Sprintf("overriding input '%s' to follow '%s'", inputPath, o.Follows))
			input.Follows = o.Follows
			input.Absolute = o.Absolute
			hasOverride = true
		}
		if input.Overrides == nil {
			input.Overrides = domain.OverrideTree{}
		}
		input.Overrides.Merge(o.Overrides)
	}

	if input.Follows != nil {
		target := input.Follows
		if !hasOverride && !input.Absolute {
			target = prefix.Concat(input.Follows)
		}
		r.locker.logger.Debug(fmt.Sprintf("input '%s' follows '%s'", inputPath, target))
		node.Inputs[id] = domain.FollowsEdge{Path: target}
		r.warnUnused(input.Overrides, inputPath)
		return nil
	}

	if input.Ref == nil {
		return zerr.With(domain.ErrInvalidRef, "input", inputPath.String())
	}
	r.updatesUsed[inputPath.String()] = struct{}{}

	// An input named by an update is resolved as if it had never been locked.
	var oldLock *domain.LockedNode
	if !r.flags.IsUpdated(inputPath) {
		oldLock, _ = oldNode.LockedInput(id)
	}
	if oldLock != nil && oldLock.Original.Equal(*input.Ref) && !hasOverride {
		return r.reuse(ctx, id, &input, node, inputPath, oldLock)
	}

	var declaredRef domain.Ref
	if declared.Ref != nil {
		declaredRef = *declared.Ref
	} else {
		declaredRef = *input.Ref
	}
	return r.lockFresh(ctx, id, &input, declaredRef, node, inputPath, oldLock)
}

// reuse copies the previous lock entry of an input. Descendants are re-resolved only
// when an update targets a path below the input.
func (r *resolver) reuse(
	ctx context.Context,
	id string,
	input *domain.InputSpec,
	node *domain.Node,
	inputPath domain.InputPath,
	oldLock *domain.LockedNode,
) error {
	r.locker.logger.Debug(fmt.Sprintf("keeping existing input '%s'", inputPath))

	child := domain.NewLockedNode(oldLock.Locked, oldLock.Original, oldLock.IsFlake)
	node.Inputs[id] = child

	if oldLock.IsFlake && r.flags.HasChildUpdate(inputPath) {
		flake, err := r.locker.getFlake(ctx, oldLock.Locked, false, r.cache)
		if err != nil {
			return err
		}
		return r.computeLocks(ctx, flake.Inputs, &child.Node, inputPath, &oldLock.Node, input.Overrides)
	}

	// Re-declare the previous child edges so that overrides and follows are applied
	// to them without fetching anything.
	synthetic := domain.NewInputs()
	for _, childID := range oldLock.InputIDs() {
		spec := domain.NewInputSpec()
		switch e := oldLock.Inputs[childID].(type) {
		case *domain.LockedNode:
			ref := e.Original
			spec.Ref = &ref
			spec.IsFlake = e.IsFlake
		case domain.FollowsEdge:
			spec.Follows = e.Path
			spec.Absolute = true
		}
		synthetic.Set(childID, spec)
	}
	return r.computeLocks(ctx, synthetic, &child.Node, inputPath, &oldLock.Node, input.Overrides)
}

// lockFresh fetches an input and locks it. declaredRef is the reference before any
// override and becomes the node's original reference.
func (r *resolver) lockFresh(
	ctx context.Context,
	id string,
	input *domain.InputSpec,
	declaredRef domain.Ref,
	node *domain.Node,
	inputPath domain.InputPath,
	oldLock *domain.LockedNode,
) error {
	r.locker.logger.Debug(fmt.Sprintf("creating new input '%s'", inputPath))

	if !r.flags.AllowMutable && !input.Ref.IsImmutable() {
		return zerr.With(zerr.With(domain.ErrPureModeViolation, "input", inputPath.String()), "ref", input.Ref.String())
	}

	if !input.IsFlake {
		_, _, locked, err := r.locker.fetchOrResolve(ctx, *input.Ref, r.flags.UseRegistries, r.cache)
		if err != nil {
			return zerr.With(err, "input", inputPath.String())
		}
		node.Inputs[id] = domain.NewLockedNode(locked, declaredRef, false)
		r.warnUnused(input.Overrides, inputPath)
		return nil
	}

	for _, parent := range r.parents {
		if parent.Equal(*input.Ref) {
			return zerr.With(zerr.With(domain.ErrCircularImport, "input", inputPath.String()), "ref", input.Ref.String())
		}
	}

	flake, err := r.locker.getFlake(ctx, *input.Ref, r.flags.UseRegistries, r.cache)
	if err != nil {
		return zerr.With(err, "input", inputPath.String())
	}

	child := domain.NewLockedNode(flake.LockedRef, declaredRef, true)
	node.Inputs[id] = child

	r.parents = append(r.parents, *input.Ref)
	defer func() { r.parents = r.parents[:len(r.parents)-1] }()

	var childOld *domain.Node
	if oldLock != nil {
		// The input changed, but its previous children may still be reusable.
		childOld = &oldLock.Node
	} else {
		lockPath, err := resolveInTree(flake.Tree.ActualPath, domain.LockFilePath(flake.LockedRef.Subdir))
		if err != nil {
			return err
		}
		own, err := domain.ReadLockFile(lockPath)
		if err != nil {
			return zerr.With(err, "input", inputPath.String())
		}
		childOld = own.Root
	}

	return r.computeLocks(ctx, flake.Inputs, &child.Node, inputPath, childOld, input.Overrides)
}
