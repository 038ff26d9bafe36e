package stream

import (
	"context"

	"go.uber.org/fx"

	"magic_bot/internal/modules/config"
	"magic_bot/internal/modules/stream/service"
)

func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(
			service.NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, c *service.Client) {
			if !cfg.StreamEnabled {
				return
			}
			streamCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go c.Run(streamCtx)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
