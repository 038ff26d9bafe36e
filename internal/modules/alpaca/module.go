package alpaca

import (
	"go.uber.org/fx"

	"magic_bot/internal/httpx"
	"magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	"magic_bot/internal/ratelimit"
)

// Очереди лимитера конструирует этот модуль: торговый класс, котировки и
// бары — раздельно, формы берутся из конфига.
func newQueues(cfg *config.Config) *ratelimit.Set {
	return &ratelimit.Set{
		Trading: ratelimit.NewQueue(ratelimit.ClassTrading, cfg.AlpacaMaxConc, cfg.AlpacaMinSpacing),
		Quotes:  ratelimit.NewQueue(ratelimit.ClassQuotes, cfg.QuoteMaxConc, cfg.QuoteMinSpacing),
		Bars:    ratelimit.NewQueue(ratelimit.ClassBars, cfg.BarsMaxConc, cfg.BarsMinSpacing),
	}
}

func newHTTPClient(cfg *config.Config, queues *ratelimit.Set, lastErr *httpx.LastError) *httpx.Client {
	return httpx.NewClient(queues, lastErr, cfg.HTTPTimeout)
}

func Module() fx.Option {
	return fx.Module("alpaca",
		fx.Provide(
			httpx.NewLastError,
			newQueues,
			newHTTPClient,
			service.NewClient,
		),
	)
}
