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

// ScanOrphanPositions сверяет позиции с открытыми sell-ордерами (после
// разворота bracket-ног) и возвращает символы без защитного выхода.
func (s *Service) ScanOrphanPositions(ctx context.Context) ([]models.OrphanReport, error) {
	positions, err := s.broker.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.broker.ListOrders(ctx, "open", true)
	if err != nil {
		return nil, err
	}
	sells := openSellsBySymbol(orders)

	var orphans []models.OrphanReport
	for _, pos := range positions {
		if len(sells[pos.Symbol]) > 0 {
			continue
		}
		qty, _ := strconv.ParseFloat(pos.Qty, 64)
		if qty <= 0 {
			continue
		}
		avg, _ := strconv.ParseFloat(pos.AvgEntryPrice, 64)
		_, hasState := s.exits.Get(pos.Symbol)
		orphans = append(orphans, models.OrphanReport{
			Symbol:        pos.Symbol,
			Qty:           qty,
			AvgEntryPrice: avg,
			HasExitState:  hasState,
		})
	}
	s.setOrphans(orphans)
	return orphans, nil
}

// RepairOrphanExits восстанавливает ExitState сирот и перевыставляет
// защитный sell. Идемпотентно: после починки символ перестаёт быть сиротой,
// повторный проход его не трогает.
func (s *Service) RepairOrphanExits(ctx context.Context) error {
	orphans, err := s.ScanOrphanPositions(ctx)
	if err != nil {
		return err
	}
	for _, orphan := range orphans {
		if err := s.repairOne(ctx, orphan); err != nil {
			logger.Error("orphan_repair_failed symbol=%s err=%v", orphan.Symbol, err)
		}
	}
	return nil
}

func (s *Service) repairOne(ctx context.Context, orphan models.OrphanReport) error {
	unlock := s.locks.lock(orphan.Symbol)
	defer unlock()

	pos, err := s.broker.GetPosition(ctx, orphan.Symbol)
	if err != nil {
		return err
	}

	// базис — прежнее состояние, если оно уцелело, иначе средняя цена брокера
	var fallback float64
	if st, ok := s.exits.Get(orphan.Symbol); ok {
		fallback = st.EntryPriceUsed
	}
	basis := pricing.ResolveEntryBasis(pos.AvgEntryPrice, fallback)
	if basis.EntryBasis <= 0 {
		logger.Warn("orphan_repair_skipped symbol=%s reason=no_entry_basis", orphan.Symbol)
		return nil
	}

	quote, err := s.quotes.GetQuote(ctx, orphan.Symbol)
	if err != nil {
		return err
	}
	requiredBps := pricing.ComputeRequiredExitBps(pricing.RequiredExitInput{
		DesiredNetExitBps: s.cfg.DesiredNetExitBps,
		MinNetProfitBps:   s.cfg.MinNetProfitBps,
		FeeBpsRoundTrip:   s.cfg.FeeBpsRoundTrip,
	})
	sellLimit := pricing.ComputeBookAnchoredSellLimit(pricing.SellLimitInput{
		EntryPrice:        basis.EntryBasis,
		Bid:               quote.BidPrice,
		Ask:               quote.AskPrice,
		RequiredExitBps:   requiredBps,
		TickSize:          s.cfg.TickSize,
		EnforceEntryFloor: s.cfg.EnforceEntryFloor,
	})

	sell, err := s.broker.SubmitOrder(ctx, alpaca.OrderRequest{
		Symbol:      orphan.Symbol,
		Qty:         pos.Qty,
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
		Symbol:            orphan.Symbol,
		RequiredExitBps:   requiredBps,
		MinNetProfitBps:   s.cfg.MinNetProfitBps,
		TargetPrice:       pricing.ComputeTargetSellPrice(basis.EntryBasis, requiredBps, s.cfg.TickSize),
		BreakevenPrice:    pricing.ComputeTargetSellPrice(basis.EntryBasis, s.cfg.FeeBpsRoundTrip, s.cfg.TickSize),
		FeeBpsRoundTrip:   s.cfg.FeeBpsRoundTrip,
		DesiredNetExitBps: s.cfg.DesiredNetExitBps,
		EntryPriceUsed:    basis.EntryBasis,
		EntryBasisType:    basis.EntryBasisType,
		SellOrderID:       sell.ID,
		SellSubmittedAt:   now,
		SellLimitPrice:    sellLimit,
		SellLimitSource:   models.SellLimitSourceExitState,
		UpdatedAt:         now,
	})

	s.notifier.Sendf(ctx, "repaired orphan %s: sell %.4f", orphan.Symbol, sellLimit)
	logger.Info("orphan_repaired symbol=%s sell_limit=%.4f basis_type=%s", orphan.Symbol, sellLimit, basis.EntryBasisType)
	return nil
}
