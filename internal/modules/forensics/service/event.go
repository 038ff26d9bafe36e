package service

import (
	"context"
	"time"
)

// Виды записей в леджере: первичное решение и последующие патчи к нему.
const (
	EventKindDecision = "decision"
	EventKindUpdate   = "update"
)

// Event — одна append-only запись, привязанная к trade id.
type Event struct {
	ID      int64          `json:"id"`
	TradeID string         `json:"trade_id"`
	Kind    string         `json:"kind"`
	Symbol  string         `json:"symbol"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// Store — хранилище леджера. Postgres в бою, память в тестах и без DSN.
type Store interface {
	Append(ctx context.Context, ev Event) error
	ByTradeID(ctx context.Context, tradeID string) ([]Event, error)
	LatestBySymbol(ctx context.Context, symbol string) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// EquityStore — лента снимков equity счёта.
type EquityStore interface {
	Append(ctx context.Context, equity float64, at time.Time) error
	// Первый снимок не моложе since и последний — для недельной динамики.
	Range(ctx context.Context, since time.Time) (first, last float64, ok bool, err error)
}
