package service

import (
	"context"
	"strconv"
	"sync"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
)

// fakeBroker — брокер в памяти для тестов жизненного цикла.
type fakeBroker struct {
	mu        sync.Mutex
	positions []models.Position
	orders    []models.Order
	bars      map[string][]models.Bar
	book      *models.OrderBook
	nextID    int

	submitted []alpaca.OrderRequest
	canceled  []string
	submitErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{bars: make(map[string][]models.Bar)}
}

func (b *fakeBroker) ListPositions(context.Context) ([]models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Position, len(b.positions))
	copy(out, b.positions)
	return out, nil
}

func (b *fakeBroker) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.positions {
		if p.Symbol == symbol {
			cp := p
			return &cp, nil
		}
	}
	return nil, &alpaca.APIError{StatusCode: 404, Message: "position does not exist"}
}

func (b *fakeBroker) ListOrders(context.Context, string, bool) ([]models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Order, len(b.orders))
	copy(out, b.orders)
	return out, nil
}

func (b *fakeBroker) GetOrder(_ context.Context, id string) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, &alpaca.APIError{StatusCode: 404, Message: "order not found"}
}

func (b *fakeBroker) SubmitOrder(_ context.Context, req alpaca.OrderRequest) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	b.nextID++
	o := models.Order{
		ID:         "ord-" + strconv.Itoa(b.nextID),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		Status:     models.OrderStatusNew,
	}
	b.orders = append(b.orders, o)
	b.submitted = append(b.submitted, req)
	return &o, nil
}

func (b *fakeBroker) CancelOrder(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, o := range b.orders {
		if o.ID == id {
			b.orders[i].Status = models.OrderStatusCanceled
		}
	}
	b.canceled = append(b.canceled, id)
	return nil
}

func (b *fakeBroker) GetBars(_ context.Context, symbol, timeframe string, _ int) ([]models.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bars[symbol+"/"+timeframe], nil
}

func (b *fakeBroker) GetOrderBook(_ context.Context, symbol string) (*models.OrderBook, error) {
	if b.book != nil {
		return b.book, nil
	}
	return &models.OrderBook{Symbol: symbol}, nil
}

func (b *fakeBroker) submittedSells() []alpaca.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []alpaca.OrderRequest
	for _, r := range b.submitted {
		if r.Side == "sell" {
			out = append(out, r)
		}
	}
	return out
}

// fakeQuotes — фиксированная котировка.
type fakeQuotes struct {
	quote models.Quote
}

func (q *fakeQuotes) GetQuote(context.Context, string) (*models.Quote, error) {
	cp := q.quote
	return &cp, nil
}
