package fetcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/cas"
	"go.trai.ch/pin/internal/adapters/config"
	"go.trai.ch/pin/internal/adapters/fetchcache"
	"go.trai.ch/pin/internal/adapters/logger"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
)

// NodeID is the graft node ID for the fetcher.
const NodeID graft.ID = "adapter.fetcher"

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cas.NodeID, fetchcache.NodeID, logger.NodeID, config.SettingsNodeID},
		Run: func(ctx context.Context) (ports.Fetcher, error) {
			store, err := graft.Dep[*cas.Store](ctx)
			if err != nil {
				return nil, err
			}
			cache, err := graft.Dep[ports.FetchCache](ctx)
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
			return New(store, cache, log, WithWarnDirty(settings.WarnDirty)), nil
		},
	})
}
