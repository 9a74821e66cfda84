package locker

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/evaluator" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pin/internal/adapters/fetcher"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pin/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pin/internal/adapters/registry"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pin/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pin/internal/core/ports"
)

// NodeID is the unique identifier for the locker Graft node.
const NodeID graft.ID = "engine.locker"

func init() {
	graft.Register(graft.Node[*Locker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fetcher.NodeID,
			registry.NodeID,
			evaluator.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Locker, error) {
			fetch, err := graft.Dep[ports.Fetcher](ctx)
			if err != nil {
				return nil, err
			}

			reg, err := graft.Dep[ports.Registry](ctx)
			if err != nil {
				return nil, err
			}

			eval, err := graft.Dep[ports.Evaluator](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			return New(fetch, reg, eval, log, tracer), nil
		},
	})
}
