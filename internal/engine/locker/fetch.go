package locker

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

type fetchedTree struct {
	tree     *domain.Tree
	resolved domain.Ref
	locked   domain.Ref
}

type cacheEntry struct {
	ref     domain.Ref
	fetched fetchedTree
}

// fetchCache memoizes fetches for the duration of a single resolution run. Entries
// are matched by reference equality.
type fetchCache struct {
	entries []cacheEntry
	touched map[string]struct{}
}

func newFetchCache() *fetchCache {
	return &fetchCache{touched: make(map[string]struct{})}
}

func (c *fetchCache) lookup(ref domain.Ref) (fetchedTree, bool) {
	for _, e := range c.entries {
		if e.ref.Equal(ref) {
			return e.fetched, true
		}
	}
	return fetchedTree{}, false
}

func (c *fetchCache) add(ref domain.Ref, ft fetchedTree) {
	c.entries = append(c.entries, cacheEntry{ref: ref, fetched: ft})
	c.touched[ft.tree.StorePath] = struct{}{}
}

// touchedPaths returns the store paths fetched during the run, sorted.
func (c *fetchCache) touchedPaths() []string {
	return slices.Sorted(maps.Keys(c.touched))
}

// fetchOrResolve materializes the tree behind original, resolving it through the
// registry first when it is indirect. It returns the tree together with the resolved
// and locked references.
func (l *Locker) fetchOrResolve(
	ctx context.Context,
	original domain.Ref,
	allowLookup bool,
	cache *fetchCache,
) (*domain.Tree, domain.Ref, domain.Ref, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, domain.Ref{}, domain.Ref{}, err
	}

	ft, ok := cache.lookup(original)
	if !ok {
		var err error
		ft, err = l.fetchUncached(ctx, original, allowLookup, cache)
		if err != nil {
			return nil, domain.Ref{}, domain.Ref{}, err
		}
		cache.add(original, ft)
	}

	if h := original.NarHash(); h != "" && h != ft.tree.NarHash {
		return nil, domain.Ref{}, domain.Ref{}, zerr.With(zerr.With(zerr.With(domain.ErrNarHashMismatch,
			"ref", original.String()), "expected", h), "got", ft.tree.NarHash)
	}

	subdir := original.Subdir
	if subdir == "" {
		subdir = ft.resolved.Subdir
	}
	return ft.tree, ft.resolved, ft.locked.WithSubdir(subdir), nil
}

func (l *Locker) fetchUncached(
	ctx context.Context,
	original domain.Ref,
	allowLookup bool,
	cache *fetchCache,
) (fetchedTree, error) {
	resolved := original
	if !original.IsDirect() {
		if !allowLookup {
			return fetchedTree{}, zerr.With(domain.ErrIndirectLookupForbidden, "ref", original.String())
		}

		var err error
		resolved, err = l.resolveIndirect(ctx, original)
		if err != nil {
			return fetchedTree{}, err
		}
		if ft, ok := cache.lookup(resolved); ok {
			return ft, nil
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return fetchedTree{}, err
	}

	ctx, span := l.tracer.Start(ctx, "fetch", ports.WithAttribute("ref", resolved.String()))
	defer span.End()

	l.logger.Debug(fmt.Sprintf("fetching '%s'", resolved))
	tree, locked, err := l.fetcher.Fetch(ctx, resolved.WithSubdir(""))
	if err != nil {
		span.RecordError(err)
		return fetchedTree{}, zerr.With(err, "ref", resolved.String())
	}
	span.SetAttribute("store_path", tree.StorePath)

	ft := fetchedTree{tree: tree, resolved: resolved, locked: locked}
	if !resolved.Equal(original) {
		cache.add(resolved, ft)
	}
	return ft, nil
}

func (l *Locker) resolveIndirect(ctx context.Context, ref domain.Ref) (domain.Ref, error) {
	ctx, span := l.tracer.Start(ctx, "registry.resolve", ports.WithAttribute("ref", ref.String()))
	defer span.End()

	resolved, err := l.registry.Resolve(ctx, ref)
	if err != nil {
		span.RecordError(err)
		return domain.Ref{}, err
	}
	if !resolved.IsDirect() {
		return domain.Ref{}, zerr.With(zerr.With(domain.ErrRegistryNotFound, "ref", ref.String()), "resolved", resolved.String())
	}
	l.logger.Debug(fmt.Sprintf("resolved '%s' to '%s'", ref, resolved))
	return resolved, nil
}
