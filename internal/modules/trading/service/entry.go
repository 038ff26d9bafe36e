package service

import (
	"context"
	"strconv"
	"time"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	predictor "magic_bot/internal/modules/predictor/service"
	"magic_bot/internal/pricing"
	"magic_bot/pkg/logger"
)

// EntryScan — один тик entry-цикла: прогрев, guard, предиктор, вход.
// Ошибка по одному символу не прерывает обход остальных.
func (s *Service) EntryScan(ctx context.Context) {
	if !s.cfg.TradingEnabled {
		return
	}
	for _, symbol := range s.cfg.Watchlist {
		if err := s.scanSymbol(ctx, symbol); err != nil {
			logger.Error("entry_scan_failed symbol=%s err=%v", symbol, err)
		}
	}
}

func (s *Service) scanSymbol(ctx context.Context, symbol string) error {
	unlock := s.locks.lock(symbol)
	defer unlock()

	if p, ok := s.getPending(symbol); ok {
		return s.checkPendingFill(ctx, symbol, p)
	}
	if _, ok := s.exits.Get(symbol); ok {
		// позиция уже под защитой, этим символом занимается exit-цикл
		return nil
	}

	bars1m, err := s.broker.GetBars(ctx, symbol, "1Min", s.cfg.WarmupMin1m)
	if err != nil {
		return err
	}
	bars5m, err := s.broker.GetBars(ctx, symbol, "5Min", s.cfg.WarmupMin5m)
	if err != nil {
		return err
	}
	bars15m, err := s.broker.GetBars(ctx, symbol, "15Min", s.cfg.WarmupMin15m)
	if err != nil {
		return err
	}

	gate := predictor.EvaluateWarmupGate(predictor.WarmupInput{
		Lengths:     map[string]int{"1m": len(bars1m), "5m": len(bars5m), "15m": len(bars15m)},
		Thresholds:  map[string]int{"1m": s.cfg.WarmupMin1m, "5m": s.cfg.WarmupMin5m, "15m": s.cfg.WarmupMin15m},
		Enabled:     s.cfg.WarmupEnabled,
		BlockTrades: s.cfg.WarmupBlockTrades,
	})
	if gate.Skip {
		logger.Info("entry_skip symbol=%s reason=%s missing=%d", symbol, gate.Reason, len(gate.Missing))
		return nil
	}

	st, err := s.guard.Status(ctx)
	if err != nil {
		return err
	}
	if !s.guard.Admit(st) {
		logger.Info("entry_skip symbol=%s reason=guard_cap used=%d cap=%d", symbol, st.ActiveSlotsUsed, st.CapMaxEffective)
		return nil
	}

	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}
	book, err := s.broker.GetOrderBook(ctx, symbol)
	if err != nil {
		return err
	}
	refPrice := quote.Mid()
	if refPrice <= 0 && len(bars1m) > 0 {
		refPrice = bars1m[len(bars1m)-1].Close
	}

	d := s.predictor.Predict(bars1m, bars5m, bars15m, book, refPrice)
	if !d.OK {
		logger.Info("entry_skip symbol=%s reason=%s", symbol, d.Reason)
		return nil
	}
	if d.Probability < s.cfg.MinProbToEnter {
		logger.Info("entry_skip symbol=%s reason=below_threshold prob=%.4f min=%.4f", symbol, d.Probability, s.cfg.MinProbToEnter)
		return nil
	}

	return s.placeEntry(ctx, symbol, quote, d)
}

// placeEntry выставляет мейкерский лимит-бай по биду.
func (s *Service) placeEntry(ctx context.Context, symbol string, quote *models.Quote, d models.Decision) error {
	bid := quote.BidPrice
	if bid <= 0 {
		logger.Warn("entry_skip symbol=%s reason=empty_book", symbol)
		return nil
	}
	limit := pricing.RoundToTick(bid, s.cfg.TickSize)
	qty := s.cfg.EntryNotional / limit

	tradeID := symbol + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)

	order, err := s.broker.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:      symbol,
		Qty:         formatQty(qty),
		Side:        "buy",
		Type:        "limit",
		TimeInForce: "gtc",
		LimitPrice:  formatPrice(limit),
		ClientID:    tradeID,
	})
	if err != nil {
		if IsInsufficientBalanceError(err) {
			// терминально для символа в этом цикле, не ретраим
			logger.Warn("entry_rejected symbol=%s reason=insufficient_balance", symbol)
			return nil
		}
		return err
	}

	entrySpreadBps := 0.0
	if mid := quote.Mid(); mid > 0 {
		entrySpreadBps = (quote.AskPrice - quote.BidPrice) / mid * 10000
	}
	s.setPending(symbol, &pendingEntry{
		TradeID:        tradeID,
		OrderID:        order.ID,
		LimitPrice:     limit,
		EntrySpreadBps: entrySpreadBps,
		Decision:       d,
	})

	s.forensics.RecordDecision(ctx, tradeID, symbol, d, map[string]any{
		"entry_limit":      limit,
		"entry_qty":        qty,
		"entry_spread_bps": entrySpreadBps,
		"order_id":         order.ID,
	})
	logger.Info("entry_placed symbol=%s order_id=%s limit=%.4f prob=%.4f regime=%s", symbol, order.ID, limit, d.Probability, d.Regime)
	return nil
}

// checkPendingFill тянет статус висящего входа и на филле вешает защиту.
func (s *Service) checkPendingFill(ctx context.Context, symbol string, p *pendingEntry) error {
	order, err := s.broker.GetOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case models.OrderStatusFilled:
		return s.onEntryFill(ctx, symbol, p, order)
	case models.OrderStatusCanceled, models.OrderStatusRejected, models.OrderStatusExpired:
		logger.Info("entry_terminal symbol=%s order_id=%s status=%s", symbol, order.ID, order.Status)
		s.setPending(symbol, nil)
		return nil
	}
	return nil
}

// onEntryFill — базис входа, требуемая маржа, якорный sell-лимит, ExitState.
func (s *Service) onEntryFill(ctx context.Context, symbol string, p *pendingEntry, order *models.Order) error {
	avgEntry := order.FilledAvgPrice
	if pos, err := s.broker.GetPosition(ctx, symbol); err == nil && pos != nil {
		avgEntry = pos.AvgEntryPrice
	}
	basis := pricing.ResolveEntryBasis(avgEntry, p.LimitPrice)

	requiredBps := pricing.ComputeRequiredExitBps(pricing.RequiredExitInput{
		DesiredNetExitBps: s.cfg.DesiredNetExitBps,
		MinNetProfitBps:   s.cfg.MinNetProfitBps,
		FeeBpsRoundTrip:   s.cfg.FeeBpsRoundTrip,
		EntrySpreadBps:    p.EntrySpreadBps,
	})

	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}
	sellLimit := pricing.ComputeBookAnchoredSellLimit(pricing.SellLimitInput{
		EntryPrice:        basis.EntryBasis,
		Bid:               quote.BidPrice,
		Ask:               quote.AskPrice,
		RequiredExitBps:   requiredBps,
		TickSize:          s.cfg.TickSize,
		EnforceEntryFloor: s.cfg.EnforceEntryFloor,
	})

	qty := order.FilledQty
	if qty == "" {
		qty = order.Qty
	}
	sell, err := s.broker.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:      symbol,
		Qty:         qty,
		Side:        "sell",
		Type:        "limit",
		TimeInForce: "gtc",
		LimitPrice:  formatPrice(sellLimit),
	})
	if err != nil {
		return err
	}

	now := time.Now()
	s.exits.Put(models.ExitState{
		Symbol:            symbol,
		TradeID:           p.TradeID,
		RequiredExitBps:   requiredBps,
		MinNetProfitBps:   s.cfg.MinNetProfitBps,
		TargetPrice:       pricing.ComputeTargetSellPrice(basis.EntryBasis, requiredBps, s.cfg.TickSize),
		BreakevenPrice:    pricing.ComputeTargetSellPrice(basis.EntryBasis, s.cfg.FeeBpsRoundTrip, s.cfg.TickSize),
		FeeBpsRoundTrip:   s.cfg.FeeBpsRoundTrip,
		EntrySpreadBps:    p.EntrySpreadBps,
		DesiredNetExitBps: s.cfg.DesiredNetExitBps,
		EntryPriceUsed:    basis.EntryBasis,
		EntryBasisType:    basis.EntryBasisType,
		SellOrderID:       sell.ID,
		SellSubmittedAt:   now,
		SellLimitPrice:    sellLimit,
		SellLimitSource:   models.SellLimitSourceExitState,
		UpdatedAt:         now,
	})
	s.setPending(symbol, nil)

	s.forensics.RecordUpdate(ctx, p.TradeID, symbol, map[string]any{
		"fill_price":        basis.EntryBasis,
		"entry_basis_type":  basis.EntryBasisType,
		"required_exit_bps": requiredBps,
		"sell_limit":        sellLimit,
		"sell_order_id":     sell.ID,
	})
	s.notifier.Sendf(ctx, "filled %s @ %.4f, exit @ %.4f (+%.0f bps)", symbol, basis.EntryBasis, sellLimit, requiredBps)
	logger.Info("entry_filled symbol=%s basis=%.4f basis_type=%s sell_limit=%.4f", symbol, basis.EntryBasis, basis.EntryBasisType, sellLimit)
	return nil
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', 6, 64)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
