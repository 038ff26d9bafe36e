package service

import (
	"context"
	"time"

	"magic_bot/internal/models"
	"magic_bot/pkg/logger"
)

// Forensics — фасад леджера для торгового цикла: первичная запись решения и
// патчи к ней по trade id. Ошибки записи не валят цикл — только лог.
type Forensics struct {
	store Store
}

func NewForensics(store Store) *Forensics {
	return &Forensics{store: store}
}

// RecordDecision пишет первичную запись: прогноз и посчитанное
// ценообразование на момент входа.
func (f *Forensics) RecordDecision(ctx context.Context, tradeID, symbol string, d models.Decision, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["decision"] = d
	err := f.store.Append(ctx, Event{
		TradeID: tradeID,
		Kind:    EventKindDecision,
		Symbol:  symbol,
		Payload: payload,
		At:      time.Now(),
	})
	if err != nil {
		logger.Error("forensics_append_failed trade_id=%s err=%v", tradeID, err)
	}
}

// RecordUpdate — частичный патч (филл, экскурсия после входа, исход выхода).
func (f *Forensics) RecordUpdate(ctx context.Context, tradeID, symbol string, patch map[string]any) {
	err := f.store.Append(ctx, Event{
		TradeID: tradeID,
		Kind:    EventKindUpdate,
		Symbol:  symbol,
		Payload: patch,
		At:      time.Now(),
	})
	if err != nil {
		logger.Error("forensics_update_failed trade_id=%s err=%v", tradeID, err)
	}
}

// LatestDecision — последнее решение по символу со слитыми поверх патчами.
func (f *Forensics) LatestDecision(ctx context.Context, symbol string) (map[string]any, error) {
	latest, err := f.store.LatestBySymbol(ctx, symbol)
	if err != nil || latest == nil {
		return nil, err
	}
	events, err := f.store.ByTradeID(ctx, latest.TradeID)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{"trade_id": latest.TradeID, "symbol": latest.Symbol}
	for _, ev := range events {
		for k, v := range ev.Payload {
			merged[k] = v
		}
	}
	return merged, nil
}

func (f *Forensics) Recent(ctx context.Context, limit int) ([]Event, error) {
	return f.store.Recent(ctx, limit)
}
