package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/models"
)

func TestExitScan(t *testing.T) {
	ctx := context.Background()

	t.Run("reprices stale sell when drifted past threshold", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: "1", AvgEntryPrice: "100", MarketValue: "100"},
		}
		broker.orders = []models.Order{
			{ID: "stale", Symbol: "BTC/USD", Side: "sell", Status: models.OrderStatusAccepted, LimitPrice: "102"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		svc := testService(testConfig(), broker, quotes)
		svc.exits.Put(models.ExitState{
			Symbol:          "BTC/USD",
			RequiredExitBps: 95,
			EntryPriceUsed:  100,
			SellOrderID:     "stale",
			SellLimitPrice:  102,
			SellLimitSource: models.SellLimitSourceExitState,
			SellSubmittedAt: time.Now(),
		})

		svc.ExitScan(ctx)

		require.Contains(t, broker.canceled, "stale")
		sells := broker.submittedSells()
		require.Len(t, sells, 1)
		limit, err := strconv.ParseFloat(sells[0].LimitPrice, 64)
		require.NoError(t, err)
		assert.InDelta(t, 100.95, limit, 1e-9)

		st, ok := svc.exits.Get("BTC/USD")
		require.True(t, ok)
		assert.Equal(t, 1, st.SliceIndex)
		assert.InDelta(t, 100.95, st.SellLimitPrice, 1e-9)
		assert.Equal(t, models.SellLimitSourceExitState, st.SellLimitSource)
	})

	t.Run("holds when within drift threshold", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: "1", AvgEntryPrice: "100", MarketValue: "100"},
		}
		broker.orders = []models.Order{
			{ID: "fresh", Symbol: "BTC/USD", Side: "sell", Status: models.OrderStatusAccepted, LimitPrice: "100.96"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		svc := testService(testConfig(), broker, quotes)
		svc.exits.Put(models.ExitState{
			Symbol:          "BTC/USD",
			RequiredExitBps: 95,
			EntryPriceUsed:  100,
			SellOrderID:     "fresh",
			SellLimitPrice:  100.96,
		})

		svc.ExitScan(ctx)

		assert.Empty(t, broker.canceled)
		assert.Empty(t, broker.submittedSells())
		// активный лимит подтянут из open_orders
		st, _ := svc.exits.Get("BTC/USD")
		assert.Equal(t, models.SellLimitSourceOpenOrders, st.SellLimitSource)
	})

	t.Run("does not cancel when repricing disabled", func(t *testing.T) {
		broker := newFakeBroker()
		broker.positions = []models.Position{
			{Symbol: "BTC/USD", Qty: "1", AvgEntryPrice: "100", MarketValue: "100"},
		}
		broker.orders = []models.Order{
			{ID: "stale", Symbol: "BTC/USD", Side: "sell", Status: models.OrderStatusAccepted, LimitPrice: "102"},
		}
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		cfg := testConfig()
		cfg.SellRepriceEnabled = false
		svc := testService(cfg, broker, quotes)
		svc.exits.Put(models.ExitState{
			Symbol:          "BTC/USD",
			RequiredExitBps: 95,
			EntryPriceUsed:  100,
			SellOrderID:     "stale",
			SellLimitPrice:  102,
		})

		svc.ExitScan(ctx)

		assert.Empty(t, broker.canceled)
		assert.Empty(t, broker.submittedSells())
	})

	t.Run("clears state when position is gone", func(t *testing.T) {
		broker := newFakeBroker()
		quotes := &fakeQuotes{quote: models.Quote{Symbol: "BTC/USD", BidPrice: 99.9, AskPrice: 100}}
		svc := testService(testConfig(), broker, quotes)
		svc.exits.Put(models.ExitState{Symbol: "BTC/USD", EntryPriceUsed: 100})

		svc.ExitScan(ctx)

		_, ok := svc.exits.Get("BTC/USD")
		assert.False(t, ok)
	})
}

func TestDustScan(t *testing.T) {
	broker := newFakeBroker()
	broker.positions = []models.Position{
		{Symbol: "BTC/USD", Qty: "0.001", AvgEntryPrice: "100", MarketValue: "0.10"},
		{Symbol: "ETH/USD", Qty: "1", AvgEntryPrice: "50", MarketValue: "50"},
	}
	broker.orders = []models.Order{
		{ID: "dusty-sell", Symbol: "BTC/USD", Side: "sell", Status: models.OrderStatusNew, LimitPrice: "101"},
	}
	quotes := &fakeQuotes{quote: models.Quote{BidPrice: 99.9, AskPrice: 100}}
	svc := testService(testConfig(), broker, quotes)
	svc.exits.Put(models.ExitState{Symbol: "BTC/USD", EntryPriceUsed: 100})

	svc.DustScan(context.Background())

	require.Contains(t, broker.canceled, "dusty-sell")
	sells := broker.submittedSells()
	require.Len(t, sells, 1)
	assert.Equal(t, "BTC/USD", sells[0].Symbol)
	assert.Equal(t, "market", sells[0].Type)
	_, ok := svc.exits.Get("BTC/USD")
	assert.False(t, ok)
}
