package ports

import (
	"context"

	"go.trai.ch/pin/internal/core/domain"
)

// Evaluator turns a manifest file into a structured value.
//
//go:generate go run go.uber.org/mock/mockgen -source=evaluator.go -destination=mocks/mock_evaluator.go -package=mocks
type Evaluator interface {
	// Evaluate reads and evaluates the manifest at path.
	Evaluate(ctx context.Context, path string) (domain.Value, error)
}
