package ports

import (
	"context"

	"go.trai.ch/pin/internal/core/domain"
)

// CachedFetch is a persisted fetch result.
type CachedFetch struct {
	// Locked is the attribute form of the locked reference.
	Locked domain.Attrs
	// StorePath is the tree location in the store.
	StorePath string
	// NarHash is the SRI content hash of the tree.
	NarHash string
	// Immutable marks entries that never expire.
	Immutable bool
}

// FetchCache persists fetch results across runs.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetch_cache.go -destination=mocks/mock_fetch_cache.go -package=mocks
type FetchCache interface {
	// Lookup returns the entry stored for the input attributes.
	// Returns nil, nil if not found.
	Lookup(ctx context.Context, input domain.Attrs) (*CachedFetch, error)

	// Add stores an entry for the input attributes.
	Add(ctx context.Context, input domain.Attrs, entry CachedFetch) error

	// Close releases the underlying database.
	Close() error
}
