package service

import "magic_bot/internal/models"

type WarmupInput struct {
	Lengths     map[string]int
	Thresholds  map[string]int
	Enabled     bool
	BlockTrades bool
}

// EvaluateWarmupGate сравнивает накопленные бары с порогами по таймфреймам.
// Нехватка всегда попадает в Missing; блокирует вход она только когда гейт
// включён и настроен блокировать — иначе это чистая диагностика.
func EvaluateWarmupGate(in WarmupInput) models.WarmupReport {
	report := models.WarmupReport{}
	for _, tf := range []string{"1m", "5m", "15m"} {
		need := in.Thresholds[tf]
		have := in.Lengths[tf]
		if have < need {
			report.Missing = append(report.Missing, models.WarmupDeficit{
				Timeframe: tf,
				Have:      have,
				Need:      need,
				Deficit:   need - have,
			})
		}
	}
	if len(report.Missing) > 0 && in.Enabled && in.BlockTrades {
		report.Skip = true
		report.Reason = models.ReasonPredictorWarmup
	}
	return report
}
