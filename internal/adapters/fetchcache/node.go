package fetchcache

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/config"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
)

// NodeID is the graft node ID for the persistent fetch cache.
const NodeID graft.ID = "adapter.fetch_cache"

func init() {
	graft.Register(graft.Node[ports.FetchCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID},
		Run: func(ctx context.Context) (ports.FetchCache, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return Open(filepath.Join(settings.CacheDir, domain.FetchCacheFileName), WithTTL(settings.RegistryTTL))
		},
	})
}
