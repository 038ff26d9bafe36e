package pricing

// PlanTwap делит количество на slices равных частей; остаток от плавающей
// арифметики забирает последний слайс, сумма сходится к totalQty точно.
func PlanTwap(totalQty float64, slices int) []float64 {
	if slices < 1 {
		slices = 1
	}
	out := make([]float64, slices)
	per := totalQty / float64(slices)
	acc := 0.0
	for i := 0; i < slices-1; i++ {
		out[i] = per
		acc += per
	}
	out[slices-1] = totalQty - acc
	return out
}

type NextLimitInput struct {
	Side        string // buy | sell
	Bid         float64
	Ask         float64
	RefPrice    float64
	SliceIndex  int
	MaxChaseBps float64
	TickSize    float64
}

// ComputeNextLimitPrice — цена очередного TWAP-слайса: старт от середины
// книги (или RefPrice при пустой книге), шаг на maxChaseBps·idx/10 б.п. в
// сторону более быстрого исполнения — покупка вверх, продажа вниз.
func ComputeNextLimitPrice(in NextLimitInput) float64 {
	mid := 0.0
	if in.Bid > 0 && in.Ask > 0 {
		mid = (in.Bid + in.Ask) / 2
	} else {
		mid = in.RefPrice
	}
	stepBps := in.MaxChaseBps * float64(in.SliceIndex) / 10
	frac := stepBps / bpsDenominator
	price := mid
	if in.Side == "buy" {
		price = mid * (1 + frac)
	} else {
		price = mid * (1 - frac)
	}
	return RoundToTick(price, in.TickSize)
}
