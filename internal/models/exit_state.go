package models

import "time"

// Источник активного sell-лимита в ExitState.
const (
	SellLimitSourceOpenOrders = "open_orders"
	SellLimitSourceExitState  = "exit_state"
)

// Откуда взята цена входа.
const (
	EntryBasisAlpacaAvgEntry = "alpaca_avg_entry"
	EntryBasisFallbackLocal  = "fallback_local"
)

// ExitState — состояние защитного выхода по символу. Живёт в памяти движка,
// создаётся при исполнении входа, мутируется на каждом тике exit-менеджера.
type ExitState struct {
	Symbol            string    `json:"symbol"`
	TradeID           string    `json:"trade_id,omitempty"`
	RequiredExitBps   float64   `json:"required_exit_bps"`
	MinNetProfitBps   float64   `json:"min_net_profit_bps"`
	TargetPrice       float64   `json:"target_price"`
	BreakevenPrice    float64   `json:"breakeven_price"`
	FeeBpsRoundTrip   float64   `json:"fee_bps_round_trip"`
	EntrySpreadBps    float64   `json:"entry_spread_bps_used"`
	DesiredNetExitBps float64   `json:"desired_net_exit_bps"`
	EntryPriceUsed    float64   `json:"entry_price_used"`
	EntryBasisType    string    `json:"entry_basis_type"`
	SellOrderID       string    `json:"sell_order_id"`
	SellSubmittedAt   time.Time `json:"sell_submitted_at"`
	SellLimitPrice    float64   `json:"sell_limit_price"`
	SellLimitSource   string    `json:"sell_limit_source"`
	SliceIndex        int       `json:"slice_index"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GuardStatus — снимок admission-контроля. Пересчитывается на каждой проверке.
type GuardStatus struct {
	OpenPositions    int       `json:"open_positions"`
	OpenOrders       int       `json:"open_orders"`
	ActiveSlotsUsed  int       `json:"active_slots_used"`
	CapMaxEnv        string    `json:"cap_max_env"`
	CapMaxEffective  int       `json:"cap_max_effective"`
	CapEnabled       bool      `json:"cap_enabled"`
	LastScanAt       time.Time `json:"last_scan_at"`
}

// OrphanReport — позиция без защитного sell-ордера.
type OrphanReport struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	HasExitState  bool    `json:"has_exit_state"`
}
