package service

import (
	"context"
	"strconv"

	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/pkg/logger"
)

// DustScan закрывает маркетом позиции, чей нотионал меньше порога пыли:
// лимитный выход по ним уже не отобьёт комиссию.
func (s *Service) DustScan(ctx context.Context) {
	positions, err := s.broker.ListPositions(ctx)
	if err != nil {
		logger.Error("dust_scan_failed err=%v", err)
		return
	}
	orders, err := s.broker.ListOrders(ctx, "open", true)
	if err != nil {
		logger.Error("dust_scan_failed err=%v", err)
		return
	}
	sells := openSellsBySymbol(orders)

	for _, pos := range positions {
		mv, err := strconv.ParseFloat(pos.MarketValue, 64)
		if err != nil || mv >= s.cfg.DustMinNotional {
			continue
		}

		unlock := s.locks.lock(pos.Symbol)
		// сперва снимаем висящие sell, иначе брокер не отдаст количество
		for _, o := range sells[pos.Symbol] {
			if err := s.broker.CancelOrder(ctx, o.ID); err != nil {
				logger.Warn("dust_cancel_failed symbol=%s order_id=%s err=%v", pos.Symbol, o.ID, err)
			}
		}
		_, err = s.broker.SubmitOrder(ctx, alpaca.OrderRequest{
			Symbol:      pos.Symbol,
			Qty:         pos.Qty,
			Side:        "sell",
			Type:        "market",
			TimeInForce: "gtc",
		})
		if err != nil {
			logger.Error("dust_exit_failed symbol=%s err=%v", pos.Symbol, err)
			unlock()
			continue
		}
		s.exits.Delete(pos.Symbol)
		logger.Info("dust_exit symbol=%s notional=%.4f", pos.Symbol, mv)
		unlock()
	}
}
