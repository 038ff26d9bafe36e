package status

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"magic_bot/internal/httpx"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	guard "magic_bot/internal/modules/guard/service"
	trading "magic_bot/internal/modules/trading/service"
	"magic_bot/internal/ratelimit"
)

// Статусная поверхность только на чтение: оператор по ней отличает
// «бот молчит — нет сигнала» от «бот деградировал из-за апстрима».
func NewMux(
	cfg *config.Config,
	g *guard.Guard,
	queues *ratelimit.Set,
	lastErr *httpx.LastError,
	svc *trading.Service,
	broker *alpaca.Client,
	ledger *forensics.Forensics,
	equity *forensics.EquityTracker,
) *http.ServeMux {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		b, err := sonic.Marshal(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(b)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/debug/status", func(w http.ResponseWriter, r *http.Request) {
		var weekly any
		if pct, ok, err := equity.WeeklyChangePct(r.Context()); err == nil && ok {
			weekly = pct
		}
		writeJSON(w, map[string]any{
			"equity_weekly_change_pct": weekly,
			"trading_enabled":      cfg.TradingEnabled,
			"sell_reprice_enabled": cfg.SellRepriceEnabled,
			"exit_cancels_enabled": cfg.ExitCancelsEnabled,
			"exit_market_exits":    cfg.ExitMarketExits,
			"enforce_entry_floor":  cfg.EnforceEntryFloor,
			"min_prob_to_enter":    cfg.MinProbToEnter,
			"guard":                g.LastStatus(),
			"limiters":             queues.Statuses(),
			"last_http_error":      lastErr.Snapshot(),
		})
	})

	mux.HandleFunc("/debug/exitstate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.ExitStates())
	})

	mux.HandleFunc("/diagnostics/orphans", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.LastOrphans())
	})

	// ?symbol= — последнее решение по символу со слитыми патчами,
	// без параметра — свежий хвост леджера
	mux.HandleFunc("/debug/decisions", func(w http.ResponseWriter, r *http.Request) {
		if symbol := r.URL.Query().Get("symbol"); symbol != "" {
			merged, err := ledger.LatestDecision(r.Context(), symbol)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, merged)
			return
		}
		events, err := ledger.Recent(r.Context(), 50)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
	})

	mux.HandleFunc("/debug/clock", func(w http.ResponseWriter, r *http.Request) {
		clock, err := broker.GetClock(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, clock)
	})

	mux.HandleFunc("/debug/fills", func(w http.ResponseWriter, r *http.Request) {
		acts, err := broker.GetActivities(r.Context(), "FILL")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, acts)
	})

	// последний принт и котировка по каждому символу — быстрая проверка фида
	mux.HandleFunc("/debug/market", func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]any, len(cfg.Watchlist))
		for _, symbol := range cfg.Watchlist {
			entry := map[string]any{}
			if q, err := broker.GetLatestQuote(r.Context(), symbol); err == nil {
				entry["quote"] = q
			} else {
				entry["quote_error"] = err.Error()
			}
			if tr, err := broker.GetLatestTrade(r.Context(), symbol); err == nil {
				entry["trade"] = tr
			} else {
				entry["trade_error"] = err.Error()
			}
			out[symbol] = entry
		}
		writeJSON(w, out)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.PublicPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("status",
		fx.Provide(
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
