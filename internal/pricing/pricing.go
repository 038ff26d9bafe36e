// Package pricing — чистые функции ценообразования: якорение sell-лимита к
// стакану, базис входа, дистанции в б.п. Никакого I/O.
package pricing

import (
	"math"
	"strconv"

	"magic_bot/internal/models"
)

const bpsDenominator = 10000.0

// RoundToTick округляет цену к ближайшему тику.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

type SellLimitInput struct {
	EntryPrice       float64
	Bid              float64
	Ask              float64
	RequiredExitBps  float64
	TickSize         float64
	EnforceEntryFloor bool
}

// ComputeBookAnchoredSellLimit строит лимит от текущего ask; при включённом
// поле EnforceEntryFloor результат не опускается ниже требуемой маржи от
// цены входа, даже если книга ушла против позиции.
func ComputeBookAnchoredSellLimit(in SellLimitInput) float64 {
	mult := 1 + in.RequiredExitBps/bpsDenominator
	limit := RoundToTick(in.Ask*mult, in.TickSize)
	if in.EnforceEntryFloor {
		floor := RoundToTick(in.EntryPrice*mult, in.TickSize)
		if floor > limit {
			limit = floor
		}
	}
	return limit
}

type EntryBasis struct {
	EntryBasis     float64
	EntryBasisType string
}

// ResolveEntryBasis — средняя цена входа брокера, если она конечна и
// положительна, иначе локальный фолбэк. Брокер отдаёт её строкой.
func ResolveEntryBasis(avgEntryPrice string, fallbackEntryPrice float64) EntryBasis {
	if v, err := strconv.ParseFloat(avgEntryPrice, 64); err == nil && v > 0 && !math.IsInf(v, 0) {
		return EntryBasis{EntryBasis: v, EntryBasisType: models.EntryBasisAlpacaAvgEntry}
	}
	return EntryBasis{EntryBasis: fallbackEntryPrice, EntryBasisType: models.EntryBasisFallbackLocal}
}

// ComputeTargetSellPrice — basis + bps, округлённые к тику.
func ComputeTargetSellPrice(basis, bps, tick float64) float64 {
	return RoundToTick(basis*(1+bps/bpsDenominator), tick)
}

// ComputeAwayBps — модуль дистанции price от ref в базисных пунктах.
// Симметрична вокруг нуля: 110 от 100 и 90 от 100 — одинаково 1000.
func ComputeAwayBps(price, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return math.Abs(price-ref) / ref * bpsDenominator
}

type RequiredExitInput struct {
	DesiredNetExitBps float64
	MinNetProfitBps   float64
	FeeBpsRoundTrip   float64
	EntrySpreadBps    float64
}

// ComputeRequiredExitBps — политика сборки требуемой маржи выхода: желаемый
// чистый выход не ниже минимального профита, плюс комиссия туда-обратно и
// спред, заплаченный на входе.
func ComputeRequiredExitBps(in RequiredExitInput) float64 {
	net := in.DesiredNetExitBps
	if in.MinNetProfitBps > net {
		net = in.MinNetProfitBps
	}
	return net + in.FeeBpsRoundTrip + in.EntrySpreadBps
}
