package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/models"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	"magic_bot/internal/notify"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		TickSize:           0.01,
		DesiredNetExitBps:  45,
		MinNetProfitBps:    20,
		FeeBpsRoundTrip:    50,
		EnforceEntryFloor:  true,
		RepriceAwayBps:     15,
		SellRepriceEnabled: true,
		DustMinNotional:    1.0,
	}
	return cfg
}

func testService(cfg *config.Config, broker *fakeBroker, quotes *fakeQuotes) *Service {
	f := forensics.NewForensics(forensics.NewMemStore())
	return NewService(cfg, broker, quotes, nil, nil, f, notify.NewNotifier(cfg))
}

func TestRepairOrphanExits(t *testing.T) {
	ctx := context.Background()

	t.Run("orphan gets protective sell", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: "1", AvgEntryPrice: "100", MarketValue: "100"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		svc := testService(testConfig(), broker, quotes)

		orphans, err := svc.ScanOrphanPositions(ctx)
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, "BTC/USD", orphans[0].Symbol)
		assert.False(t, orphans[0].HasExitState)

		require.NoError(t, svc.RepairOrphanExits(ctx))

		sells := broker.submittedSells()
		require.Len(t, sells, 1)
		// required = max(45,20) + 50 = 95 bps от входа 100
		limit, err := strconv.ParseFloat(sells[0].LimitPrice, 64)
		require.NoError(t, err)
		assert.InDelta(t, 100.95, limit, 1e-9)

		st, ok := svc.exits.Get("BTC/USD")
		require.True(t, ok)
		assert.Equal(t, models.EntryBasisAlpacaAvgEntry, st.EntryBasisType)
		assert.InDelta(t, 95, st.RequiredExitBps, 1e-9)
	})

	t.Run("second run is idempotent", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: "1", AvgEntryPrice: "100", MarketValue: "100"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		svc := testService(testConfig(), broker, quotes)

		require.NoError(t, svc.RepairOrphanExits(ctx))
		require.NoError(t, svc.RepairOrphanExits(ctx))

		assert.Len(t, broker.submittedSells(), 1)

		orphans := svc.LastOrphans()
		assert.Empty(t, orphans)
	})

	t.Run("covered position is not an orphan", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "ETH/USD", Qty: "2", AvgEntryPrice: "50", MarketValue: "100"},
		}
		broker.orders = []models.Order{
			{ID: "ord-x", Symbol: "ETH/USD", Side: "sell", Status: models.OrderStatusAccepted, LimitPrice: "51"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "ETH/USD", BidPrice: 49.9, AskPrice: 50}}
		svc := testService(testConfig(), broker, quotes)

		orphans, err := svc.ScanOrphanPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, orphans)
	})

	t.Run("nested bracket legs count as cover", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "LTC/USD", Qty: "3", AvgEntryPrice: "10", MarketValue: "30"},
		}
		broker.orders = []models.Order{
			{
				ID: "parent", Symbol: "LTC/USD", Side: "buy", Status: models.OrderStatusFilled,
				Legs: []models.Order{
					{ID: "leg-sell", Symbol: "LTC/USD", Side: "sell", Status: models.OrderStatusNew, LimitPrice: "10.2"},
				},
			},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "LTC/USD", BidPrice: 9.9, AskPrice: 10}}
		svc := testService(testConfig(), broker, quotes)

		orphans, err := svc.ScanOrphanPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, orphans)
	})
}
