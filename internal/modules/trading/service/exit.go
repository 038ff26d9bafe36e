package service

import (
	"context"
	"strconv"
	"time"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/pricing"
	"magic_bot/pkg/logger"
)

// ExitScan — один тик exit-менеджера: по каждой позиции пересчитать якорную
// цену и решить, перевыставлять ли защитный sell.
func (s *Service) ExitScan(ctx context.Context) {
	positions, err := s.broker.ListPositions(ctx)
	if err != nil {
		logger.Error("exit_scan_failed err=%v", err)
		return
	}
	orders, err := s.broker.ListOrders(ctx, "open", true)
	if err != nil {
		logger.Error("exit_scan_failed err=%v", err)
		return
	}
	sells := openSellsBySymbol(orders)

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		held[pos.Symbol] = true
		if err := s.manageExit(ctx, pos, sells[pos.Symbol]); err != nil {
			logger.Error("exit_manage_failed symbol=%s err=%v", pos.Symbol, err)
		}
	}

	// позиции нет — выход закрыт, состояние больше не нужно
	for _, st := range s.exits.All() {
		if !held[st.Symbol] {
			s.onExitClosed(ctx, st)
		}
	}
}

func (s *Service) onExitClosed(ctx context.Context, st models.ExitState) {
	unlock := s.locks.lock(st.Symbol)
	defer unlock()
	s.exits.Delete(st.Symbol)
	if st.TradeID != "" {
		s.forensics.RecordUpdate(ctx, st.TradeID, st.Symbol, map[string]any{
			"exit_outcome":    "closed",
			"exit_sell_limit": st.SellLimitPrice,
		})
	}
	s.notifier.Sendf(ctx, "exited %s, target was %.4f", st.Symbol, st.TargetPrice)
	logger.Info("exit_closed symbol=%s", st.Symbol)
}

func (s *Service) manageExit(ctx context.Context, pos models.Position, sells []models.Order) error {
	unlock := s.locks.lock(pos.Symbol)
	defer unlock()

	st, ok := s.exits.Get(pos.Symbol)
	if !ok {
		// позиция без состояния — её чинит repair-проход
		return nil
	}

	// активный лимит: самый низкий открытый sell, иначе из ExitState
	currentLimit := st.SellLimitPrice
	source := models.SellLimitSourceExitState
	activeOrderID := st.SellOrderID
	if lowest, id, ok := lowestSellLimit(sells); ok {
		currentLimit = lowest
		source = models.SellLimitSourceOpenOrders
		activeOrderID = id
	}

	quote, err := s.quotes.GetQuote(ctx, pos.Symbol)
	if err != nil {
		return err
	}
	newLimit := pricing.ComputeBookAnchoredSellLimit(pricing.SellLimitInput{
		EntryPrice:        st.EntryPriceUsed,
		Bid:               quote.BidPrice,
		Ask:               quote.AskPrice,
		RequiredExitBps:   st.RequiredExitBps,
		TickSize:          s.cfg.TickSize,
		EnforceEntryFloor: s.cfg.EnforceEntryFloor,
	})

	// TWAP-гонка: со второго слайса уводим цену к более быстрому филлу,
	// но не ниже пола от входа
	if s.cfg.TwapSlices > 1 && st.SliceIndex > 0 {
		chase := pricing.ComputeNextLimitPrice(pricing.NextLimitInput{
			Side:        "sell",
			Bid:         quote.BidPrice,
			Ask:         quote.AskPrice,
			RefPrice:    st.TargetPrice,
			SliceIndex:  st.SliceIndex,
			MaxChaseBps: s.cfg.TwapMaxChaseBps,
			TickSize:    s.cfg.TickSize,
		})
		if chase < newLimit {
			newLimit = chase
		}
		if s.cfg.EnforceEntryFloor {
			floor := pricing.ComputeTargetSellPrice(st.EntryPriceUsed, st.RequiredExitBps, s.cfg.TickSize)
			if newLimit < floor {
				newLimit = floor
			}
		}
	}

	st.SellLimitPrice = currentLimit
	st.SellLimitSource = source
	st.TargetPrice = newLimit
	st.UpdatedAt = time.Now()

	away := pricing.ComputeAwayBps(currentLimit, newLimit)
	if away < s.cfg.RepriceAwayBps {
		s.exits.Put(st)
		return nil
	}
	if !ShouldCancelExitSell(s.cfg.SellRepriceEnabled, s.cfg.ExitCancelsEnabled, s.cfg.ExitMarketExits) {
		logger.Info("exit_reprice_skipped symbol=%s away_bps=%.1f", pos.Symbol, away)
		s.exits.Put(st)
		return nil
	}

	// последовательный cancel-and-replace внутри тика одного символа
	if activeOrderID != "" {
		if err := s.broker.CancelOrder(ctx, activeOrderID); err != nil {
			return err
		}
	}
	sell, err := s.broker.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:      pos.Symbol,
		Qty:         pos.Qty,
		Side:        "sell",
		Type:        "limit",
		TimeInForce: "gtc",
		LimitPrice:  formatPrice(newLimit),
	})
	if err != nil {
		return err
	}

	st.SellOrderID = sell.ID
	st.SellSubmittedAt = time.Now()
	st.SellLimitPrice = newLimit
	st.SellLimitSource = models.SellLimitSourceExitState
	st.SliceIndex++
	s.exits.Put(st)

	logger.Info("exit_reprice symbol=%s old=%.4f new=%.4f away_bps=%.1f slice=%d", pos.Symbol, currentLimit, newLimit, away, st.SliceIndex)
	return nil
}

// openSellsBySymbol — открытые sell-ордера по символам (ноги развёрнуты).
func openSellsBySymbol(orders []models.Order) map[string][]models.Order {
	out := make(map[string][]models.Order)
	for _, o := range models.OpenLikeOrders(orders) {
		if o.Side == "sell" {
			out[o.Symbol] = append(out[o.Symbol], o)
		}
	}
	return out
}

// lowestSellLimit — минимальный лимит среди открытых sell и его ордер.
func lowestSellLimit(sells []models.Order) (limit float64, orderID string, ok bool) {
	for _, o := range sells {
		p, err := strconv.ParseFloat(o.LimitPrice, 64)
		if err != nil || p <= 0 {
			continue
		}
		if !ok || p < limit {
			limit = p
			orderID = o.ID
			ok = true
		}
	}
	return limit, orderID, ok
}
