package app

import (
	"context"
	"errors"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/config"     //nolint:depguard // Wired in app layer
	"go.trai.ch/pin/internal/adapters/fetchcache" //nolint:depguard // Wired in app layer
	"go.trai.ch/pin/internal/adapters/logger"     //nolint:depguard // Wired in app layer
	"go.trai.ch/pin/internal/adapters/registry"   //nolint:depguard // Wired in app layer
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
	"go.trai.ch/pin/internal/engine/locker"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger

	fetchCache ports.FetchCache
	registry   ports.Registry
}

// Close releases the persistent caches.
func (c *Components) Close() error {
	var errs error
	if c.registry != nil {
		errs = errors.Join(errs, c.registry.Close())
	}
	if c.fetchCache != nil {
		errs = errors.Join(errs, c.fetchCache.Close())
	}
	return errs
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			locker.NodeID,
			logger.NodeID,
			config.SettingsNodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			l, err := graft.Dep[*locker.Locker](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}

			return New(l, log, settings), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			fetchcache.NodeID,
			registry.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cache, err := graft.Dep[ports.FetchCache](ctx)
	if err != nil {
		return nil, err
	}

	reg, err := graft.Dep[ports.Registry](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:        a,
		Logger:     log,
		fetchCache: cache,
		registry:   reg,
	}, nil
}
