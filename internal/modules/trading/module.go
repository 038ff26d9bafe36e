package trading

import (
	"context"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"

	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	guard "magic_bot/internal/modules/guard/service"
	predictor "magic_bot/internal/modules/predictor/service"
	stream "magic_bot/internal/modules/stream/service"
	"magic_bot/internal/modules/trading/service"
	"magic_bot/internal/notify"
	"magic_bot/pkg/logger"
)

func newService(
	cfg *config.Config,
	broker *alpaca.Client,
	quotes *stream.Client,
	engine *predictor.Engine,
	g *guard.Guard,
	f *forensics.Forensics,
	n notify.Notifier,
) *service.Service {
	return service.NewService(cfg, broker, quotes, engine, g, f, n)
}

// Сверка вочлиста с биржевым справочником: неторгуемый символ — это
// ошибка конфигурации, о ней надо знать на старте, а не на первом ордере.
func checkWatchlist(ctx context.Context, cfg *config.Config, broker *alpaca.Client) {
	tradable := make(map[string]bool)
	for _, class := range watchlistClasses(cfg.Watchlist) {
		assets, err := broker.ListAssets(ctx, class, "active")
		if err != nil {
			logger.Warn("watchlist_check_skipped class=%s err=%v", class, err)
			return
		}
		for _, a := range assets {
			if a.Tradable {
				tradable[a.Symbol] = true
			}
		}
	}
	for _, symbol := range cfg.Watchlist {
		if !tradable[symbol] {
			logger.Warn("watchlist_symbol_not_tradable symbol=%s", symbol)
		}
	}
}

func watchlistClasses(watchlist []string) []string {
	var classes []string
	seen := make(map[string]bool)
	for _, symbol := range watchlist {
		class := "us_equity"
		if strings.Contains(symbol, "/") {
			class = "crypto"
		}
		if !seen[class] {
			seen[class] = true
			classes = append(classes, class)
		}
	}
	return classes
}

// Циклы движка — независимые тикеры; тик каждого открывает спан.
func runLoops(lc fx.Lifecycle, cfg *config.Config, svc *service.Service, broker *alpaca.Client, eq *forensics.EquityTracker) {
	loopCtx, cancel := context.WithCancel(context.Background())

	loop := func(name string, every time.Duration, tick func(context.Context)) {
		go func() {
			t := time.NewTicker(every)
			defer t.Stop()
			logger.Info("loop_started name=%s every=%s", name, every)
			for {
				select {
				case <-loopCtx.Done():
					logger.Info("loop_stopped name=%s", name)
					return
				case <-t.C:
					span := opentracing.StartSpan(name)
					tick(opentracing.ContextWithSpan(loopCtx, span))
					span.Finish()
				}
			}
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			checkWatchlist(ctx, cfg, broker)
			// стартовый repair до первого скана: поднимаем защиту сирот
			if err := svc.RepairOrphanExits(loopCtx); err != nil {
				logger.Error("startup_repair_failed err=%v", err)
			}
			loop("entry_scan", cfg.EntryScanEvery, svc.EntryScan)
			loop("exit_scan", cfg.ExitScanEvery, func(ctx context.Context) {
				svc.ExitScan(ctx)
				if err := svc.RepairOrphanExits(ctx); err != nil {
					logger.Error("orphan_repair_failed err=%v", err)
				}
			})
			loop("dust_scan", cfg.DustScanEvery, svc.DustScan)
			loop("equity_snapshot", cfg.EquitySnapEvery, func(ctx context.Context) {
				if err := eq.Snapshot(ctx); err != nil {
					logger.Error("equity_snapshot_failed err=%v", err)
				}
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("trading",
		fx.Provide(
			newService,
		),
		fx.Invoke(runLoops),
	)
}
