// Package registry resolves indirect references through registry documents.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// maxDocumentSize bounds the size of a downloaded registry document.
const maxDocumentSize = 8 << 20

// Registry implements ports.Registry over an ordered list of registry documents.
// Local documents are read on every lookup; remote ones go through the cache.
type Registry struct {
	sources []string
	cache   *DocCache
	client  *http.Client
	logger  ports.Logger

	requestGroup singleflight.Group
}

var _ ports.Registry = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithHTTPClient sets the client used to download remote documents.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) { r.client = client }
}

// WithCache sets the cache for remote documents. The registry owns it afterwards.
func WithCache(cache *DocCache) Option {
	return func(r *Registry) { r.cache = cache }
}

// New creates a Registry consulting sources in order.
func New(sources []string, logger ports.Logger, opts ...Option) *Registry {
	r := &Registry{
		sources: sources,
		client:  http.DefaultClient,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps an indirect reference to the target of the first matching entry.
func (r *Registry) Resolve(ctx context.Context, ref domain.Ref) (domain.Ref, error) {
	if ref.IsDirect() {
		return ref, nil
	}

	for _, source := range r.sources {
		if err := ctx.Err(); err != nil {
			return domain.Ref{}, zerr.Wrap(err, domain.ErrCancelled.Error())
		}

		doc, err := r.document(ctx, source)
		if err != nil {
			return domain.Ref{}, zerr.With(err, "ref", ref.String())
		}
		if doc == nil {
			continue
		}

		resolved, ok, err := doc.lookup(source, ref)
		if err != nil {
			return domain.Ref{}, err
		}
		if ok {
			r.logger.Debug(fmt.Sprintf("registry '%s' maps '%s' to '%s'", source, ref, resolved))
			return resolved, nil
		}
	}

	return domain.Ref{}, zerr.With(domain.ErrRegistryNotFound, "ref", ref.String())
}

// Close releases the document cache.
func (r *Registry) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}

// document loads the registry at source. A missing local file yields nil.
func (r *Registry) document(ctx context.Context, source string) (*document, error) {
	var (
		data []byte
		err  error
	)
	if isRemote(source) {
		data, err = r.remote(ctx, source)
	} else {
		data, err = readLocal(source)
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug(fmt.Sprintf("registry '%s' does not exist", source))
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return parseDocument(source, data)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func readLocal(source string) ([]byte, error) {
	p := source
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrRegistryParse.Error()), "registry", source)
		}
		p = u.Path
	}
	//nolint:gosec // registry locations come from the user settings
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "registry", source)
	}
	return data, nil
}

// remote returns the document at a URL, serving it from the cache while it is fresh.
// Concurrent loads of the same URL share one download.
func (r *Registry) remote(ctx context.Context, source string) ([]byte, error) {
	if r.cache != nil {
		data, ok, err := r.cache.Get(source)
		if err != nil {
			r.logger.Warn(fmt.Sprintf("ignoring registry cache: %v", err))
		} else if ok {
			return data, nil
		}
	}

	v, err, _ := r.requestGroup.Do(source, func() (any, error) {
		data, err := r.download(ctx, source)
		if err != nil {
			return nil, err
		}
		if _, err := parseDocument(source, data); err != nil {
			return nil, err
		}
		if r.cache != nil {
			if err := r.cache.Put(source, data); err != nil {
				r.logger.Warn(fmt.Sprintf("cannot cache registry '%s': %v", source, err))
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, zerr.With(domain.ErrRegistryParse, "registry", source)
	}
	return data, nil
}

func (r *Registry) download(ctx context.Context, source string) ([]byte, error) {
	r.logger.Debug(fmt.Sprintf("downloading registry '%s'", source))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "registry", source)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, zerr.Wrap(ctxErr, domain.ErrCancelled.Error())
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "registry", source)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode != http.StatusOK {
		return nil, zerr.With(zerr.With(domain.ErrFetchFailed, "registry", source),
			"status", fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFetchFailed.Error()), "registry", source)
	}
	return data, nil
}
