package service

import (
	"context"
	"sync"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	forensics "magic_bot/internal/modules/forensics/service"
	"magic_bot/internal/notify"
)

// Broker — операции брокера, нужные торговому циклу. Интерфейс, чтобы в
// тестах жил фейк.
type Broker interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	ListOrders(ctx context.Context, status string, nested bool) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	SubmitOrder(ctx context.Context, req alpaca.OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, id string) error
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]models.Bar, error)
	GetOrderBook(ctx context.Context, symbol string) (*models.OrderBook, error)
}

// QuoteSource — источник лучшего bid/ask (стрим с REST-фолбэком).
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

type Predictor interface {
	Predict(bars1m, bars5m, bars15m []models.Bar, book *models.OrderBook, refPrice float64) models.Decision
}

type Admission interface {
	Status(ctx context.Context) (models.GuardStatus, error)
	Admit(st models.GuardStatus) bool
}

// pendingEntry — выставленный, но ещё не исполненный вход.
type pendingEntry struct {
	TradeID        string
	OrderID        string
	LimitPrice     float64
	EntrySpreadBps float64
	Decision       models.Decision
}

// Service — конечный автомат жизненного цикла ордеров: скан входов,
// обработка филлов, перевыставление выходов, починка сирот, чистка пыли.
type Service struct {
	cfg       *config.Config
	broker    Broker
	quotes    QuoteSource
	predictor Predictor
	guard     Admission
	forensics *forensics.Forensics
	notifier  notify.Notifier

	exits *ExitStates
	locks *symbolLocks

	mu      sync.RWMutex
	pending map[string]*pendingEntry
	orphans []models.OrphanReport
}

func NewService(
	cfg *config.Config,
	broker Broker,
	quotes QuoteSource,
	predictor Predictor,
	guard Admission,
	f *forensics.Forensics,
	notifier notify.Notifier,
) *Service {
	return &Service{
		cfg:       cfg,
		broker:    broker,
		quotes:    quotes,
		predictor: predictor,
		guard:     guard,
		forensics: f,
		notifier:  notifier,
		exits:     NewExitStates(),
		locks:     newSymbolLocks(),
		pending:   make(map[string]*pendingEntry),
	}
}

// ExitStates — снимок состояний выхода, для статусной поверхности.
func (s *Service) ExitStates() []models.ExitState {
	return s.exits.All()
}

// LastOrphans — сироты, найденные последним repair-проходом.
func (s *Service) LastOrphans() []models.OrphanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OrphanReport, len(s.orphans))
	copy(out, s.orphans)
	return out
}

func (s *Service) setOrphans(orphans []models.OrphanReport) {
	s.mu.Lock()
	s.orphans = orphans
	s.mu.Unlock()
}

func (s *Service) getPending(symbol string) (*pendingEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[symbol]
	return p, ok
}

func (s *Service) setPending(symbol string, p *pendingEntry) {
	s.mu.Lock()
	if p == nil {
		delete(s.pending, symbol)
	} else {
		s.pending[symbol] = p
	}
	s.mu.Unlock()
}
