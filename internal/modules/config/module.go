package config

import "go.uber.org/fx"

// Регистрируем конфиг как fx-провайдер.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}
