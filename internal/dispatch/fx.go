package dispatch

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/peerloop/relay/internal/cache"
	"github.com/peerloop/relay/internal/clock"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
)

type Params struct {
	fx.In

	Store   store.Store
	Emitter *events.Emitter
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
}

var Module = fx.Module("dispatch",
	fx.Provide(BuildRegistry),
	fx.Provide(NewDeps),
)

func NewDeps(p Params) *Deps {
	return &Deps{
		Store:         p.Store,
		Emitter:       p.Emitter,
		Log:           p.Log.Named("dispatch"),
		Clock:         p.Clock,
		GenID:         p.GenID,
		RecoveryCache: cache.NewTTLCache[string, int](),
	}
}
