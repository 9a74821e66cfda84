// Package fetcher materializes source trees for direct references into the store.
package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"go.trai.ch/pin/internal/adapters/cas"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
)

// Scheme fetches one reference type.
type Scheme interface {
	// Fetch writes the tree behind ref into dir, which does not exist yet, and
	// returns the locked form of ref without a narHash.
	Fetch(ctx context.Context, ref domain.Ref, dir string) (domain.Ref, error)

	// MarkChangedFile records that relPath inside the source of ref was rewritten.
	MarkChangedFile(ctx context.Context, ref domain.Ref, relPath string, commitMsg *string) error
}

// Fetcher implements ports.Fetcher on top of the tree store and the persistent
// fetch cache.
type Fetcher struct {
	store   *cas.Store
	cache   ports.FetchCache
	logger  ports.Logger
	schemes map[string]Scheme
}

var _ ports.Fetcher = (*Fetcher)(nil)

// Option configures a Fetcher.
type Option func(*options)

type options struct {
	client    *http.Client
	warnDirty bool
	git       string
}

// WithHTTPClient sets the client used to download tarballs.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithWarnDirty enables warnings about uncommitted changes in local git trees.
func WithWarnDirty(warn bool) Option {
	return func(o *options) { o.warnDirty = warn }
}

// WithGit sets the git executable.
func WithGit(path string) Option {
	return func(o *options) { o.git = path }
}

// New creates a Fetcher with the path, git and tarball schemes.
func New(store *cas.Store, cache ports.FetchCache, logger ports.Logger, opts ...Option) *Fetcher {
	o := &options{client: http.DefaultClient, git: "git"}
	for _, opt := range opts {
		opt(o)
	}

	return &Fetcher{
		store:  store,
		cache:  cache,
		logger: logger,
		schemes: map[string]Scheme{
			domain.RefTypePath:    &PathScheme{},
			domain.RefTypeGit:     &GitScheme{git: o.git, logger: logger, warnDirty: o.warnDirty},
			domain.RefTypeTarball: &TarballScheme{client: o.client},
		},
	}
}

func (f *Fetcher) scheme(ref domain.Ref) (Scheme, error) {
	s, ok := f.schemes[ref.Type()]
	if !ok {
		return nil, zerr.With(zerr.With(domain.ErrUnsupportedReference, "ref", ref.String()), "type", ref.Type())
	}
	return s, nil
}

// Fetch materializes the tree behind ref and returns it with the locked reference.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.Ref) (*domain.Tree, domain.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Ref{}, zerr.Wrap(err, domain.ErrCancelled.Error())
	}

	scheme, err := f.scheme(ref)
	if err != nil {
		return nil, domain.Ref{}, err
	}

	if tree, ok := f.substitute(ref); ok {
		f.logger.Debug(fmt.Sprintf("using '%s' from the store", tree.StorePath))
		return tree, ref, nil
	}

	if tree, locked, ok := f.lookupCache(ctx, ref); ok {
		return tree, locked, nil
	}

	var locked domain.Ref
	tree, err := f.store.Add(ref.NarHash(), func(dir string) error {
		var fetchErr error
		locked, fetchErr = scheme.Fetch(ctx, ref, dir)
		return fetchErr
	})
	if err != nil {
		return nil, domain.Ref{}, err
	}

	if pinsContent(locked) {
		locked = locked.With(domain.AttrNarHash, domain.StringAttr(tree.NarHash))
	}

	f.remember(ctx, ref, locked, tree)
	return tree, locked, nil
}

// substitute returns the stored tree of an immutable ref with a known narHash.
func (f *Fetcher) substitute(ref domain.Ref) (*domain.Tree, bool) {
	if !ref.IsImmutable() || ref.NarHash() == "" {
		return nil, false
	}
	path, ok := f.store.Lookup(ref.NarHash())
	if !ok {
		return nil, false
	}
	return &domain.Tree{ActualPath: path, StorePath: path, NarHash: ref.NarHash()}, true
}

func (f *Fetcher) lookupCache(ctx context.Context, ref domain.Ref) (*domain.Tree, domain.Ref, bool) {
	if !cacheable(ref) {
		return nil, domain.Ref{}, false
	}

	entry, err := f.cache.Lookup(ctx, ref.ToAttrs())
	if err != nil {
		f.logger.Warn(fmt.Sprintf("ignoring fetch cache: %v", err))
		return nil, domain.Ref{}, false
	}
	if entry == nil {
		return nil, domain.Ref{}, false
	}

	path, ok := f.store.Lookup(entry.NarHash)
	if !ok || path != entry.StorePath {
		return nil, domain.Ref{}, false
	}
	locked, err := domain.RefFromAttrs(entry.Locked)
	if err != nil {
		return nil, domain.Ref{}, false
	}

	f.logger.Debug(fmt.Sprintf("using cached fetch of '%s'", ref))
	return &domain.Tree{ActualPath: path, StorePath: path, NarHash: entry.NarHash}, locked, true
}

func (f *Fetcher) remember(ctx context.Context, ref, locked domain.Ref, tree *domain.Tree) {
	if !cacheable(ref) {
		return
	}

	entry := ports.CachedFetch{
		Locked:    locked.ToAttrs(),
		StorePath: tree.StorePath,
		NarHash:   tree.NarHash,
		Immutable: ref.IsImmutable(),
	}
	if err := f.cache.Add(ctx, ref.ToAttrs(), entry); err != nil {
		f.logger.Warn(fmt.Sprintf("failed to record fetch of '%s': %v", ref, err))
		return
	}
	if locked.IsImmutable() && !locked.Equal(ref) {
		entry.Immutable = true
		if err := f.cache.Add(ctx, locked.ToAttrs(), entry); err != nil {
			f.logger.Warn(fmt.Sprintf("failed to record fetch of '%s': %v", locked, err))
		}
	}
}

// MarkChangedFile records that relPath inside the source of ref was rewritten.
func (f *Fetcher) MarkChangedFile(ctx context.Context, ref domain.Ref, relPath string, commitMsg *string) error {
	scheme, err := f.scheme(ref)
	if err != nil {
		return err
	}
	return scheme.MarkChangedFile(ctx, ref, relPath, commitMsg)
}

// cacheable reports whether fetches of ref may be served from the persistent
// cache. Local sources change under our feet unless they are pinned.
func cacheable(ref domain.Ref) bool {
	if ref.IsImmutable() {
		return true
	}
	_, local := ref.SourcePath()
	return !local && ref.Type() != domain.RefTypePath
}

// pinsContent reports whether the locked ref gets the tree's narHash. Git refs are
// pinned by revision, so dirty working trees stay mutable.
func pinsContent(locked domain.Ref) bool {
	if locked.Type() == domain.RefTypeGit {
		return domain.IsValidRev(locked.Rev())
	}
	return true
}
