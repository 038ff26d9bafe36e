package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"magic_bot/internal/modules/alpaca"
	"magic_bot/internal/modules/config"
	"magic_bot/internal/modules/forensics"
	"magic_bot/internal/modules/guard"
	"magic_bot/internal/modules/predictor"
	"magic_bot/internal/modules/status"
	"magic_bot/internal/modules/stream"
	"magic_bot/internal/modules/trading"
	"magic_bot/internal/notify"
	"magic_bot/pkg/logger"
	"magic_bot/pkg/tracing"
)

const serviceName = "magic_bot"

func main() {
	if err := logger.Init(serviceName); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			notify.NewNotifier,
		),
		config.Module(),
		alpaca.Module(),
		stream.Module(),
		predictor.Module(),
		guard.Module(),
		forensics.Module(),
		trading.Module(),
		status.Module(),
		fx.Invoke(initTracing),
	)
	// Run блокирует до сигнала: циклы живут в fx-горутинах, сам процесс
	// должен ждать, а не завершаться после OnStart-хуков.
	app.Run()
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Jaeger.Host == "" {
		return nil
	}
	tracing.SetServiceName(serviceName)
	_, closer, err := tracing.InitTracer(tracing.Config{Host: cfg.Jaeger.Host, Port: cfg.Jaeger.Port})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}
