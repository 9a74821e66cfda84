package ports

import (
	"context"

	"go.trai.ch/pin/internal/core/domain"
)

// Registry resolves indirect references to direct ones.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type Registry interface {
	// Resolve maps an indirect reference to a direct one.
	// It returns domain.ErrRegistryNotFound when no registry knows the reference.
	Resolve(ctx context.Context, ref domain.Ref) (domain.Ref, error)

	// Close releases the document cache.
	Close() error
}
