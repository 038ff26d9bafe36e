package service

import (
	"context"
	"sync"
	"time"

	"magic_bot/internal/models"
	"magic_bot/internal/modules/config"
)

// Broker — то, что guard читает у брокера. Принимаем интерфейс, чтобы в
// тестах подставлять фейк.
type Broker interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
	ListOrders(ctx context.Context, status string, nested bool) ([]models.Order, error)
}

// Guard — admission-контроль: сколько слотов (позиции + открытые ордера)
// занято против потолка. Проверка советующая: read-then-decide без лока,
// планировщик у нас один.
type Guard struct {
	cfg    *config.Config
	broker Broker

	mu   sync.RWMutex
	last models.GuardStatus
}

func NewGuard(cfg *config.Config, broker Broker) *Guard {
	return &Guard{cfg: cfg, broker: broker}
}

// Status пересчитывает занятость слотов по живым данным брокера.
func (g *Guard) Status(ctx context.Context) (models.GuardStatus, error) {
	positions, err := g.broker.ListPositions(ctx)
	if err != nil {
		return models.GuardStatus{}, err
	}
	orders, err := g.broker.ListOrders(ctx, "open", true)
	if err != nil {
		return models.GuardStatus{}, err
	}
	openLike := models.OpenLikeOrders(orders)

	st := models.GuardStatus{
		OpenPositions:   len(positions),
		OpenOrders:      len(openLike),
		ActiveSlotsUsed: len(positions) + len(openLike),
		CapMaxEnv:       g.cfg.CapMaxEnv,
		CapMaxEffective: g.cfg.CapMax,
		CapEnabled:      g.cfg.CapEnabled,
		LastScanAt:      time.Now(),
	}

	g.mu.Lock()
	g.last = st
	g.mu.Unlock()
	return st, nil
}

// Admit — можно ли открывать новый вход при данном статусе.
func (g *Guard) Admit(st models.GuardStatus) bool {
	if !st.CapEnabled {
		return true
	}
	return st.ActiveSlotsUsed < st.CapMaxEffective
}

// LastStatus — последний посчитанный снимок, для статусной поверхности.
func (g *Guard) LastStatus() models.GuardStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}
