package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/httpx"
	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	guard "magic_bot/internal/modules/guard/service"
	trading "magic_bot/internal/modules/trading/service"
	"magic_bot/internal/notify"
	"magic_bot/internal/ratelimit"
)

type stubQuotes struct{}

func (stubQuotes) GetQuote(context.Context, string) (*models.Quote, error) {
	return &models.Quote{}, nil
}

type stubPredictor struct{}

func (stubPredictor) Predict([]models.Bar, []models.Bar, []models.Bar, *models.OrderBook, float64) models.Decision {
	return models.Decision{}
}

type stubGuardBroker struct{}

func (stubGuardBroker) ListPositions(context.Context) ([]models.Position, error) { return nil, nil }
func (stubGuardBroker) ListOrders(context.Context, string, bool) ([]models.Order, error) {
	return nil, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *forensics.Forensics) {
	t.Helper()

	cfg := &config.Config{
		Watchlist:          []string{"BTC/USD"},
		TradingEnabled:     true,
		MinProbToEnter:     0.62,
		CapEnabled:         true,
		CapMax:             5,
		SellRepriceEnabled: true,
	}
	cfg.Alpaca.TradingURL = "http://127.0.0.1:0"
	cfg.Alpaca.DataURL = "http://127.0.0.1:0"

	queues := &ratelimit.Set{
		Trading: ratelimit.NewQueue("trading", 1, 0),
		Quotes:  ratelimit.NewQueue("quotes", 1, 0),
		Bars:    ratelimit.NewQueue("bars", 1, 0),
	}
	lastErr := httpx.NewLastError()
	broker := alpaca.NewClient(cfg, httpx.NewClient(queues, lastErr, time.Second))

	ledger := forensics.NewForensics(forensics.NewMemStore())

	eqStore := forensics.NewMemEquityStore()
	require.NoError(t, eqStore.Append(context.Background(), 100, time.Now().Add(-6*24*time.Hour)))
	require.NoError(t, eqStore.Append(context.Background(), 110, time.Now()))
	equity := forensics.NewEquityTracker(broker, eqStore)

	g := guard.NewGuard(cfg, stubGuardBroker{})
	svc := trading.NewService(cfg, broker, stubQuotes{}, stubPredictor{}, g, ledger, notify.NewNotifier(cfg))

	return NewMux(cfg, g, queues, lastErr, svc, broker, ledger, equity), ledger
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := get(t, mux, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDebugStatusCarriesWeeklyChange(t *testing.T) {
	mux, _ := newTestMux(t)
	rec := get(t, mux, "/debug/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["trading_enabled"])
	assert.InDelta(t, 10.0, got["equity_weekly_change_pct"], 1e-9)
	assert.Contains(t, got, "limiters")
	assert.Contains(t, got, "guard")
}

func TestDebugDecisions(t *testing.T) {
	mux, ledger := newTestMux(t)
	ctx := context.Background()

	ledger.RecordDecision(ctx, "BTC/USD-t1", "BTC/USD", models.Decision{OK: true, Probability: 0.7}, map[string]any{
		"entry_limit": 99.9,
	})
	ledger.RecordUpdate(ctx, "BTC/USD-t1", "BTC/USD", map[string]any{
		"exit_outcome": "closed",
	})

	t.Run("latest by symbol merges patches", func(t *testing.T) {
		rec := get(t, mux, "/debug/decisions?symbol=BTC%2FUSD")
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]any
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "BTC/USD-t1", got["trade_id"])
		assert.InDelta(t, 99.9, got["entry_limit"], 1e-9)
		assert.Equal(t, "closed", got["exit_outcome"])
	})

	t.Run("without symbol returns recent tail", func(t *testing.T) {
		rec := get(t, mux, "/debug/decisions")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []forensics.Event
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "BTC/USD-t1", got[0].TradeID)
	})
}
