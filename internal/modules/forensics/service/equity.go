package service

import (
	"context"
	"strconv"
	"time"

	"magic_bot/internal/models"
	"magic_bot/pkg/logger"
)

type AccountReader interface {
	GetAccount(ctx context.Context) (*models.Account, error)
	GetPortfolioHistory(ctx context.Context, period, timeframe string) (*models.PortfolioHistory, error)
}

// EquityTracker периодически снимает equity счёта и считает недельную
// динамику по ленте снимков.
type EquityTracker struct {
	account AccountReader
	store   EquityStore
}

func NewEquityTracker(account AccountReader, store EquityStore) *EquityTracker {
	return &EquityTracker{account: account, store: store}
}

func (t *EquityTracker) Snapshot(ctx context.Context) error {
	acc, err := t.account.GetAccount(ctx)
	if err != nil {
		return err
	}
	equity, err := strconv.ParseFloat(acc.Equity, 64)
	if err != nil {
		logger.Warn("equity_parse_failed raw=%q", acc.Equity)
		return err
	}
	return t.store.Append(ctx, equity, time.Now())
}

// WeeklyChangePct — изменение equity за последние 7 суток в процентах;
// ok=false, когда снимков ещё не накопилось.
func (t *EquityTracker) WeeklyChangePct(ctx context.Context) (pct float64, ok bool, err error) {
	first, last, ok, err := t.store.Range(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return 0, false, err
	}
	if !ok || first == 0 {
		// локальной ленты ещё нет — спрашиваем историю портфеля у брокера
		return t.weeklyFromBroker(ctx)
	}
	return (last - first) / first * 100, true, nil
}

func (t *EquityTracker) weeklyFromBroker(ctx context.Context) (float64, bool, error) {
	hist, err := t.account.GetPortfolioHistory(ctx, "1W", "1D")
	if err != nil {
		return 0, false, err
	}
	if len(hist.Equity) < 2 || hist.Equity[0] == 0 {
		return 0, false, nil
	}
	first, last := hist.Equity[0], hist.Equity[len(hist.Equity)-1]
	return (last - first) / first * 100, true, nil
}
