package ports

import (
	"context"

	"go.trai.ch/pin/internal/core/domain"
)

// Fetcher materializes source trees for direct references.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch materializes the tree behind ref and returns it with the locked form of ref.
	// The locked reference pins the content, e.g. with a narHash or a full revision,
	// where the scheme allows it.
	Fetch(ctx context.Context, ref domain.Ref) (*domain.Tree, domain.Ref, error)

	// MarkChangedFile records that relPath inside the source behind ref was rewritten.
	// For version controlled sources the file is staged, and committed with
	// commitMsg when it is not nil.
	MarkChangedFile(ctx context.Context, ref domain.Ref, relPath string, commitMsg *string) error
}
