package consumer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("consumer",
	fx.Provide(New),
	fx.Invoke(Run),
)

// Run ties the consumer loop to the fx application lifecycle.
func Run(lc fx.Lifecycle, c *Consumer, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := c.RunForever(ctx); err != nil {
					log.Error("consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return c.Close()
		},
	})
}
