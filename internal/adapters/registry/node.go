package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/config"
	"go.trai.ch/pin/internal/adapters/logger"
	"go.trai.ch/pin/internal/core/domain"
	"go.trai.ch/pin/internal/core/ports"
)

// NodeID is the graft node ID for the registry.
const NodeID graft.ID = "adapter.registry"

func init() {
	graft.Register(graft.Node[ports.Registry]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Registry, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			var opts []Option
			cache, err := OpenDocCache(filepath.Join(settings.CacheDir, domain.RegistryCacheDirName), settings.RegistryTTL)
			if err != nil {
				// Another process may hold the cache; resolve without it.
				log.Warn(fmt.Sprintf("registry cache unavailable: %v", err))
			} else {
				opts = append(opts, WithCache(cache))
			}
			return New(settings.Registries, log, opts...), nil
		},
	})
}
