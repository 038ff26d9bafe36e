package service

import "math"

// Индикаторы считаются на срезах close-цен, от старых к новым.

func ema(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / (float64(period) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// macdHist — гистограмма MACD(12,26,9) и её наклон на последнем баре.
func macdHist(closes []float64) (hist, slope float64) {
	if len(closes) < 2 {
		return 0, 0
	}
	fast := ema(closes, 12)
	slow := ema(closes, 26)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal := ema(macd, 9)
	n := len(closes)
	hist = macd[n-1] - signal[n-1]
	prev := macd[n-2] - signal[n-2]
	slope = hist - prev
	return hist, slope
}

// zscore последнего close относительно скользящего окна (обычно 20).
func zscore(closes []float64, window int) float64 {
	if len(closes) < 2 {
		return 0
	}
	if window > len(closes) {
		window = len(closes)
	}
	tail := closes[len(closes)-window:]
	mean := 0.0
	for _, v := range tail {
		mean += v
	}
	mean /= float64(len(tail))
	variance := 0.0
	for _, v := range tail {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(tail))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return (closes[len(closes)-1] - mean) / sd
}

func logReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			out = append(out, math.Log(closes[i]/closes[i-1]))
		}
	}
	return out
}

// volatilityAndDrift — sigma и среднее лог-доходностей за окно.
func volatilityAndDrift(closes []float64) (vol, drift float64) {
	rets := logReturns(closes)
	if len(rets) == 0 {
		return 0, 0
	}
	for _, r := range rets {
		drift += r
	}
	drift /= float64(len(rets))
	for _, r := range rets {
		d := r - drift
		vol += d * d
	}
	vol = math.Sqrt(vol / float64(len(rets)))
	return vol, drift
}

// volumeTrendRatio — средний объём последних 5 баров к среднему за 20.
func volumeTrendRatio(volumes []float64) float64 {
	if len(volumes) < 5 {
		return 1
	}
	recent := avgTail(volumes, 5)
	baseWindow := 20
	if baseWindow > len(volumes) {
		baseWindow = len(volumes)
	}
	base := avgTail(volumes, baseWindow)
	if base <= 0 {
		return 1
	}
	return recent / base
}

func avgTail(values []float64, n int) float64 {
	tail := values[len(values)-n:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
