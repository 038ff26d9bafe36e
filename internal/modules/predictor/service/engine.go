package service

import (
	"math"

	"magic_bot/internal/models"
	"magic_bot/internal/modules/config"
	"magic_bot/pkg/logger"
)

// Веса итоговой вероятности. Сумма с полом 0.05 даёт максимум 1.05,
// результат зажимается в [0,1].
const (
	probFloor        = 0.05
	weightBranch     = 0.45
	weightConfirm    = 0.20
	weightVolume     = 0.15
	weightLiquidity  = 0.10
	weightImbalance  = 0.10
	zscoreWindow     = 20
	oversoldEdge     = 1.5 // |z|, с которого начинается кредит mean-reversion
	oversoldFull     = 3.0 // |z| полного кредита
	strongNegative5mBps = -5.0 // гистограмма 5m в б.п. от цены
)

// Engine — предиктор: по трём таймфреймам и стакану даёт вероятность
// благоприятного движения. Чистый расчёт, за данными не ходит.
type Engine struct {
	cfg   *config.Config
	calib *Calibration
}

func NewEngine(cfg *config.Config, calib *Calibration) *Engine {
	return &Engine{cfg: cfg, calib: calib}
}

// Predict никогда не паникует наружу: любой сбой расчёта превращается в
// решение predictor_exception, символ просто пропускается в этом цикле.
func (e *Engine) Predict(bars1m, bars5m, bars15m []models.Bar, book *models.OrderBook, refPrice float64) (d models.Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("predictor_panic recovered=%v", r)
			d = models.Decision{OK: false, Reason: models.ReasonPredictorException}
		}
	}()

	if len(bars1m) < 3 {
		return models.Decision{OK: false, Reason: models.ReasonInsufficientBars1m}
	}
	if len(bars5m) < 3 {
		return models.Decision{OK: false, Reason: models.ReasonInsufficientBars5m}
	}
	if len(bars15m) < 3 {
		return models.Decision{OK: false, Reason: models.ReasonInsufficientBars15m}
	}

	closes1m := closesOf(bars1m)
	closes5m := closesOf(bars5m)
	closes15m := closesOf(bars15m)

	vol, drift := volatilityAndDrift(closes1m)
	// ожидаемое движение за горизонт ~10 баров против целевого
	expectedMoveBps := vol * math.Sqrt(10) * 10000
	feasibility := 0.0
	driftScore := 0.5
	if e.cfg.TargetMoveBps > 0 {
		feasibility = clamp01(expectedMoveBps / e.cfg.TargetMoveBps)
		driftScore = clamp01(0.5 + drift*10000/e.cfg.TargetMoveBps)
	}

	tf1 := tfSignals(closes1m)
	tf5 := tfSignals(closes5m)
	tf15 := tfSignals(closes15m)

	regime := models.RegimeMomentum
	if math.Max(math.Abs(tf1.ZScore), math.Abs(tf5.ZScore)) > e.cfg.MRZScoreThreshold {
		regime = models.RegimeMeanReversion
	}

	branch := 0.0
	if regime == models.RegimeMomentum {
		if tf1.MACDHist > 0 {
			branch += 0.5
		}
		if tf1.MACDHistSlope > 0 {
			branch += 0.3
		}
		last5 := closes5m[len(closes5m)-1]
		if last5 > 0 && tf5.MACDHist/last5*10000 > strongNegative5mBps {
			branch += 0.2
		}
		tf1.Confirmed = tf1.MACDHist > 0 && tf1.MACDHistSlope > 0
		tf5.Confirmed = tf5.MACDHist > 0 && tf5.MACDHistSlope > 0
		tf15.Confirmed = tf15.MACDHist > 0 && tf15.MACDHistSlope > 0
	} else {
		// глубина перепроданности: кредит с −1.5σ, полный на −3σ
		depth := clamp01((-tf1.ZScore - oversoldEdge) / (oversoldFull - oversoldEdge))
		branch += 0.7 * depth
		if tf1.MACDHistSlope > 0 {
			branch += 0.3
		}
		tf1.Confirmed = tf1.ZScore < -oversoldEdge
		tf5.Confirmed = tf5.ZScore < -oversoldEdge
		tf15.Confirmed = tf15.ZScore < -oversoldEdge
	}
	branch = clamp01(branch)

	confirmed := 0
	for _, c := range []bool{tf1.Confirmed, tf5.Confirmed, tf15.Confirmed} {
		if c {
			confirmed++
		}
	}
	required := e.cfg.ConfirmTFsRequired
	if required < 1 {
		required = 1
	}
	confirmScore := clamp01(float64(confirmed) / float64(required))

	volumeScore := clamp01(volumeTrendRatio(volumesOf(bars1m)) / 2)

	liquidity, impactBps, imbalance := e.bookScores(book, refPrice)

	raw := probFloor +
		weightBranch*branch +
		weightConfirm*confirmScore +
		weightVolume*volumeScore +
		weightLiquidity*liquidity +
		weightImbalance*imbalance
	raw = clamp01(raw)

	prob, calibrated := e.calib.Apply(raw)

	return models.Decision{
		OK:               true,
		Probability:      prob,
		RawProbability:   raw,
		Regime:           regime,
		BranchScore:      branch,
		ConfirmScore:     confirmScore,
		VolumeScore:      volumeScore,
		LiquidityScore:   liquidity,
		ImbalanceScore:   imbalance,
		ImpactBps:        impactBps,
		Volatility:       vol,
		Drift:            drift,
		FeasibilityScore: feasibility,
		DriftScore:       driftScore,
		ConfirmedCount:   confirmed,
		Calibrated:       calibrated,
		TF1m:             tf1,
		TF5m:             tf5,
		TF15m:            tf15,
	}
}

// bookScores — ликвидность в полосе вокруг лучших цен, ожидаемый удар по
// цене при сборе референсного нотионала и перекос стакана.
func (e *Engine) bookScores(book *models.OrderBook, refPrice float64) (liquidity, impactBps, imbalance float64) {
	if book == nil || (len(book.Bids) == 0 && len(book.Asks) == 0) {
		return 0, 0, 0.5
	}
	bestBid := book.BestBid()
	bestAsk := book.BestAsk()
	band := e.cfg.BookBandPct / 100

	bidDepth := depthWithin(book.Bids, bestBid*(1-band), bestBid)
	askDepth := depthWithin(book.Asks, bestAsk, bestAsk*(1+band))

	if e.cfg.ReferenceNotional > 0 {
		liquidity = clamp01((bidDepth + askDepth) / (2 * e.cfg.ReferenceNotional))
	}

	impactBps = walkImpactBps(book.Asks, e.cfg.ReferenceNotional, refPrice)
	// ожидаемый удар по цене съедает до половины кредита за глубину
	if e.cfg.TargetMoveBps > 0 {
		liquidity *= 1 - 0.5*clamp01(impactBps/e.cfg.TargetMoveBps)
	}

	total := bidDepth + askDepth
	if total > 0 {
		imbalance = bidDepth / total
	} else {
		imbalance = 0.5
	}
	return liquidity, impactBps, imbalance
}

// depthWithin — нотионал уровней в ценовой полосе [lo, hi].
func depthWithin(levels []models.BookLevel, lo, hi float64) float64 {
	depth := 0.0
	for _, lv := range levels {
		if lv.Price >= lo && lv.Price <= hi {
			depth += lv.Price * lv.Size
		}
	}
	return depth
}

// walkImpactBps — на сколько б.п. уйдёт цена, если собрать notional по аскам.
func walkImpactBps(asks []models.BookLevel, notional, refPrice float64) float64 {
	if len(asks) == 0 || notional <= 0 || refPrice <= 0 {
		return 0
	}
	remaining := notional
	last := asks[0].Price
	for _, lv := range asks {
		take := lv.Price * lv.Size
		last = lv.Price
		if take >= remaining {
			remaining = 0
			break
		}
		remaining -= take
	}
	if remaining > 0 {
		// книги не хватило — удар считаем до последнего уровня
		last = asks[len(asks)-1].Price
	}
	return (last - refPrice) / refPrice * 10000
}

func tfSignals(closes []float64) models.TimeframeSignals {
	hist, slope := macdHist(closes)
	return models.TimeframeSignals{
		MACDHist:      hist,
		MACDHistSlope: slope,
		ZScore:        zscore(closes, zscoreWindow),
	}
}

func closesOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func volumesOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
