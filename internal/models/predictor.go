package models

// Режим рынка по классификации предиктора.
const (
	RegimeMomentum      = "momentum"
	RegimeMeanReversion = "mean_reversion"
)

// Коды причин, по которым решения нет. Это не ошибки — символ просто
// пропускается в этом цикле.
const (
	ReasonInsufficientBars1m  = "insufficient_bars_1m"
	ReasonInsufficientBars5m  = "insufficient_bars_5m"
	ReasonInsufficientBars15m = "insufficient_bars_15m"
	ReasonPredictorException  = "predictor_exception"
	ReasonPredictorWarmup     = "predictor_warmup"
)

// TimeframeSignals — сигналы одного таймфрейма.
type TimeframeSignals struct {
	MACDHist      float64 `json:"macd_hist"`
	MACDHistSlope float64 `json:"macd_hist_slope"`
	ZScore        float64 `json:"zscore"`
	Confirmed     bool    `json:"confirmed"`
}

// Decision — результат одного прогона предиктора по символу.
type Decision struct {
	OK                bool    `json:"ok"`
	Reason            string  `json:"reason,omitempty"`
	Probability       float64 `json:"probability"`
	RawProbability    float64 `json:"raw_probability"`
	Regime            string  `json:"regime"`
	BranchScore       float64 `json:"branch_score"`
	ConfirmScore      float64 `json:"confirm_score"`
	VolumeScore       float64 `json:"volume_score"`
	LiquidityScore    float64 `json:"liquidity_score"`
	ImbalanceScore    float64 `json:"imbalance_score"`
	ImpactBps         float64 `json:"impact_bps"`
	Volatility        float64 `json:"volatility"`
	Drift             float64 `json:"drift"`
	FeasibilityScore  float64 `json:"feasibility_score"`
	DriftScore        float64 `json:"drift_score"`
	ConfirmedCount    int     `json:"confirmed_count"`
	Calibrated        bool    `json:"calibrated"`

	TF1m  TimeframeSignals `json:"tf_1m"`
	TF5m  TimeframeSignals `json:"tf_5m"`
	TF15m TimeframeSignals `json:"tf_15m"`
}

// WarmupDeficit — нехватка баров одного таймфрейма.
type WarmupDeficit struct {
	Timeframe string `json:"timeframe"`
	Have      int    `json:"have"`
	Need      int    `json:"need"`
	Deficit   int    `json:"deficit"`
}

// WarmupReport — результат проверки прогрева предиктора.
type WarmupReport struct {
	Skip    bool            `json:"skip"`
	Reason  string          `json:"reason,omitempty"`
	Missing []WarmupDeficit `json:"missing"`
}
