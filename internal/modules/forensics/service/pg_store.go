package service

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"magic_bot/pkg/db"
)

// PgStore пишет леджер в postgres.
//
//	CREATE TABLE forensics_events (
//	    id BIGSERIAL PRIMARY KEY,
//	    trade_id TEXT NOT NULL,
//	    kind TEXT NOT NULL,
//	    symbol TEXT NOT NULL,
//	    payload JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PgStore struct {
	txm db.TxManager
}

func NewPgStore(txm db.TxManager) *PgStore {
	return &PgStore{txm: txm}
}

func (s *PgStore) Append(ctx context.Context, ev Event) error {
	payload, err := sonic.Marshal(ev.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	return s.txm.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO forensics_events (trade_id, kind, symbol, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			ev.TradeID, ev.Kind, ev.Symbol, payload, ev.At)
		return err
	})
}

func (s *PgStore) ByTradeID(ctx context.Context, tradeID string) ([]Event, error) {
	return s.query(ctx,
		`SELECT id, trade_id, kind, symbol, payload, created_at
		 FROM forensics_events WHERE trade_id = $1 ORDER BY id`, tradeID)
}

func (s *PgStore) LatestBySymbol(ctx context.Context, symbol string) (*Event, error) {
	evs, err := s.query(ctx,
		`SELECT id, trade_id, kind, symbol, payload, created_at
		 FROM forensics_events WHERE symbol = $1 AND kind = $2
		 ORDER BY id DESC LIMIT 1`, symbol, EventKindDecision)
	if err != nil || len(evs) == 0 {
		return nil, err
	}
	return &evs[0], nil
}

func (s *PgStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.query(ctx,
		`SELECT id, trade_id, kind, symbol, payload, created_at
		 FROM forensics_events ORDER BY id DESC LIMIT $1`, limit)
}

func (s *PgStore) query(ctx context.Context, sql string, args ...any) ([]Event, error) {
	var out []Event
	err := s.txm.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var ev Event
			var payload []byte
			if err := rows.Scan(&ev.ID, &ev.TradeID, &ev.Kind, &ev.Symbol, &payload, &ev.At); err != nil {
				return err
			}
			if err := sonic.Unmarshal(payload, &ev.Payload); err != nil {
				return errors.Wrap(err, "unmarshal payload")
			}
			out = append(out, ev)
		}
		return rows.Err()
	})
	return out, err
}

// PgEquityStore — снимки equity в postgres.
//
//	CREATE TABLE equity_snapshots (
//	    id BIGSERIAL PRIMARY KEY,
//	    equity DOUBLE PRECISION NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PgEquityStore struct {
	txm db.TxManager
}

func NewPgEquityStore(txm db.TxManager) *PgEquityStore {
	return &PgEquityStore{txm: txm}
}

func (s *PgEquityStore) Append(ctx context.Context, equity float64, at time.Time) error {
	return s.txm.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO equity_snapshots (equity, created_at) VALUES ($1, $2)`, equity, at)
		return err
	})
}

func (s *PgEquityStore) Range(ctx context.Context, since time.Time) (first, last float64, ok bool, err error) {
	err = s.txm.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		row := tx.QueryRow(ctx,
			`SELECT equity FROM equity_snapshots WHERE created_at >= $1 ORDER BY id LIMIT 1`, since)
		if err := row.Scan(&first); err != nil {
			return err
		}
		row = tx.QueryRow(ctx,
			`SELECT equity FROM equity_snapshots ORDER BY id DESC LIMIT 1`)
		if err := row.Scan(&last); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		// пустая лента — не ошибка
		return 0, 0, false, nil
	}
	return first, last, ok, nil
}
