package guard

import (
	"go.uber.org/fx"

	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	"magic_bot/internal/modules/guard/service"
)

func Module() fx.Option {
	return fx.Module("guard",
		fx.Provide(
			func(cfg *config.Config, broker *alpaca.Client) *service.Guard {
				return service.NewGuard(cfg, broker)
			},
		),
	)
}
