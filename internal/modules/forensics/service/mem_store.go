package service

import (
	"context"
	"sync"
	"time"
)

// MemStore — леджер в памяти: без DSN и в тестах.
type MemStore struct {
	mu     sync.RWMutex
	events []Event
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

func (s *MemStore) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	ev.ID = s.nextID
	s.nextID++
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) ByTradeID(_ context.Context, tradeID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, ev := range s.events {
		if ev.TradeID == tradeID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemStore) LatestBySymbol(_ context.Context, symbol string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Symbol == symbol && s.events[i].Kind == EventKindDecision {
			ev := s.events[i]
			return &ev, nil
		}
	}
	return nil, nil
}

func (s *MemStore) Recent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

type equityPoint struct {
	equity float64
	at     time.Time
}

// MemEquityStore — снимки equity в памяти.
type MemEquityStore struct {
	mu     sync.RWMutex
	points []equityPoint
}

func NewMemEquityStore() *MemEquityStore {
	return &MemEquityStore{}
}

func (s *MemEquityStore) Append(_ context.Context, equity float64, at time.Time) error {
	s.mu.Lock()
	s.points = append(s.points, equityPoint{equity: equity, at: at})
	s.mu.Unlock()
	return nil
}

func (s *MemEquityStore) Range(_ context.Context, since time.Time) (first, last float64, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.points {
		if !p.at.Before(since) {
			return p.equity, s.points[len(s.points)-1].equity, true, nil
		}
	}
	return 0, 0, false, nil
}
