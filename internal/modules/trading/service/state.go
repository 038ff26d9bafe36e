package service

import (
	"sort"
	"sync"

	"magic_bot/internal/models"
)

// ExitStates — состояние защитных выходов по символам. Общая мутабельная
// карта entry- и exit-циклов, поэтому всегда под мьютексом.
type ExitStates struct {
	mu sync.RWMutex
	m  map[string]*models.ExitState
}

func NewExitStates() *ExitStates {
	return &ExitStates{m: make(map[string]*models.ExitState)}
}

func (s *ExitStates) Get(symbol string) (models.ExitState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[symbol]
	if !ok {
		return models.ExitState{}, false
	}
	return *st, true
}

func (s *ExitStates) Put(st models.ExitState) {
	s.mu.Lock()
	cp := st
	s.m[st.Symbol] = &cp
	s.mu.Unlock()
}

func (s *ExitStates) Delete(symbol string) {
	s.mu.Lock()
	delete(s.m, symbol)
	s.mu.Unlock()
}

// All — снимок всех состояний, отсортированный по символу.
func (s *ExitStates) All() []models.ExitState {
	s.mu.RLock()
	out := make([]models.ExitState, 0, len(s.m))
	for _, st := range s.m {
		out = append(out, *st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// symbolLocks сериализует работу циклов по одному символу: два тика над
// одним символом не идут параллельно.
type symbolLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{m: make(map[string]*sync.Mutex)}
}

func (l *symbolLocks) lock(symbol string) func() {
	l.mu.Lock()
	sm, ok := l.m[symbol]
	if !ok {
		sm = &sync.Mutex{}
		l.m[symbol] = sm
	}
	l.mu.Unlock()
	sm.Lock()
	return sm.Unlock
}
