package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	"magic_bot/internal/notify"
)

type fakePredictor struct {
	decision models.Decision
}

func (p *fakePredictor) Predict([]models.Bar, []models.Bar, []models.Bar, *models.OrderBook, float64) models.Decision {
	return p.decision
}

type fakeGuard struct {
	status models.GuardStatus
	admit  bool
}

func (g *fakeGuard) Status(context.Context) (models.GuardStatus, error) { return g.status, nil }
func (g *fakeGuard) Admit(models.GuardStatus) bool                      { return g.admit }

func entryConfig() *config.Config {
	cfg := testConfig()
	cfg.TradingEnabled = true
	cfg.Watchlist = []string{"BTC/USD"}
	cfg.MinProbToEnter = 0.6
	cfg.EntryNotional = 100
	cfg.WarmupEnabled = true
	cfg.WarmupBlockTrades = true
	cfg.WarmupMin1m = 3
	cfg.WarmupMin5m = 3
	cfg.WarmupMin15m = 3
	return cfg
}

func seedBars(broker *fakeBroker, symbol string, n int) {
	mk := func(n int) []models.Bar {
		bars := make([]models.Bar, n)
		for i := range bars {
			bars[i] = models.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
		}
		return bars
	}
	broker.bars[symbol+"/1Min"] = mk(n)
	broker.bars[symbol+"/5Min"] = mk(n)
	broker.bars[symbol+"/15Min"] = mk(n)
}

func entryService(cfg *config.Config, broker *fakeBroker, quotes *fakeQuotes, p Predictor, g Admission) *Service {
	f := forensics.NewForensics(forensics.NewMemStore())
	return NewService(cfg, broker, quotes, p, g, f, notify.NewNotifier(cfg))
}

func TestEntryScan(t *testing.T) {
	ctx := context.Background()
	quote := models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100.1}

	t.Run("places maker buy at bid when admitted and confident", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 5)
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.8, Regime: models.RegimeMomentum}},
			&fakeGuard{admit: true})

		svc.EntryScan(ctx)

		require.Len(t, broker.submitted, 1)
		assert.Equal(t, "buy", broker.submitted[0].Side)
		assert.Equal(t, "limit", broker.submitted[0].Type)
		assert.Equal(t, "99.9", broker.submitted[0].LimitPrice)

		_, pending := svc.getPending("BTC/USD")
		assert.True(t, pending)
	})

	t.Run("warmup gate blocks entry and reports deficit", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 2) // меньше порога 3
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.9}},
			&fakeGuard{admit: true})

		svc.EntryScan(ctx)

		assert.Empty(t, broker.submitted)
	})

	t.Run("guard cap blocks entry", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 5)
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.9}},
			&fakeGuard{admit: false})

		svc.EntryScan(ctx)

		assert.Empty(t, broker.submitted)
	})

	t.Run("probability below threshold skips", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 5)
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.3}},
			&fakeGuard{admit: true})

		svc.EntryScan(ctx)

		assert.Empty(t, broker.submitted)
	})

	t.Run("insufficient balance is terminal, not an error", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 5)
		broker.submitErr = &alpaca.APIError{StatusCode: 403, Code: 40310000, Message: "insufficient balance"}
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.9}},
			&fakeGuard{admit: true})

		svc.EntryScan(ctx)

		_, pending := svc.getPending("BTC/USD")
		assert.False(t, pending)
	})

	t.Run("fill attaches protective sell and exit state", func(t *testing.T) {
		broker := newFakeBroker()
		seedBars(broker, "BTC/USD", 5)
		svc := entryService(entryConfig(), broker, &fakeQuotes{quote: quote},
			&fakePredictor{decision: models.Decision{OK: true, Probability: 0.8}},
			&fakeGuard{admit: true})

		svc.EntryScan(ctx)
		require.Len(t, broker.submitted, 1)

		// брокер исполнил вход
		broker.mu.Lock()
		broker.orders[0].Status = models.OrderStatusFilled
		broker.orders[0].FilledQty = broker.orders[0].Qty
		broker.orders[0].FilledAvgPrice = "99.9"
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: broker.orders[0].Qty, AvgEntryPrice: "99.9", MarketValue: "100"},
		}
		broker.mu.Unlock()

		svc.EntryScan(ctx)

		sells := broker.submittedSells()
		require.Len(t, sells, 1)
		st, ok := svc.exits.Get("BTC/USD")
		require.True(t, ok)
		assert.Equal(t, models.EntryBasisAlpacaAvgEntry, st.EntryBasisType)
		assert.InDelta(t, 99.9, st.EntryPriceUsed, 1e-9)
		assert.NotEmpty(t, st.SellOrderID)
		assert.NotEmpty(t, st.TradeID)

		_, pending := svc.getPending("BTC/USD")
		assert.False(t, pending)
	})
}
