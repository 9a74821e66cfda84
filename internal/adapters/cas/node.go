package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pin/internal/adapters/config"
	fsadapter "go.trai.ch/pin/internal/adapters/fs"
	"go.trai.ch/pin/internal/core/domain"
)

// NodeID is the graft node ID for the tree store.
const NodeID graft.ID = "adapter.tree_store"

func init() {
	graft.Register(graft.Node[*Store]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID, fsadapter.HasherNodeID, fsadapter.VerifierNodeID},
		Run: func(ctx context.Context) (*Store, error) {
			settings, err := graft.Dep[domain.Settings](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[*fsadapter.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			verifier, err := graft.Dep[*fsadapter.Verifier](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(settings.StoreDir, hasher, verifier), nil
		},
	})
}
