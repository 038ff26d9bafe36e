package models

import "time"

// Статусы ордера у брокера. Open-like — всё, что ещё может исполниться.
const (
	OrderStatusNew             = "new"
	OrderStatusAccepted        = "accepted"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusFilled          = "filled"
	OrderStatusCanceled        = "canceled"
	OrderStatusRejected        = "rejected"
	OrderStatusExpired         = "expired"
)

type Order struct {
	ID             string     `json:"id"`
	ClientOrderID  string     `json:"client_order_id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"` // buy | sell
	Type           string     `json:"type"` // limit | market
	Qty            string     `json:"qty"`
	FilledQty      string     `json:"filled_qty"`
	LimitPrice     string     `json:"limit_price"`
	FilledAvgPrice string     `json:"filled_avg_price"`
	Status         string     `json:"status"`
	TimeInForce    string     `json:"time_in_force"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at"`
	CanceledAt     *time.Time `json:"canceled_at"`
	// Вложенные ноги bracket-ордера.
	Legs []Order `json:"legs"`
}

// IsOpenLikeOrderStatus — статус, при котором ордер ещё живой.
func IsOpenLikeOrderStatus(status string) bool {
	switch status {
	case OrderStatusNew, OrderStatusAccepted, OrderStatusPartiallyFilled:
		return true
	}
	// pending_new, pending_cancel, pending_replace и т.п.
	return len(status) > 8 && status[:8] == "pending_"
}

// FlattenOrders разворачивает вложенные ноги в один плоский список.
func FlattenOrders(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		legs := o.Legs
		o.Legs = nil
		out = append(out, o)
		if len(legs) > 0 {
			out = append(out, FlattenOrders(legs)...)
		}
	}
	return out
}

// OpenLikeOrders — плоский список только открытых ордеров.
func OpenLikeOrders(orders []Order) []Order {
	flat := FlattenOrders(orders)
	out := flat[:0]
	for _, o := range flat {
		if IsOpenLikeOrderStatus(o.Status) {
			out = append(out, o)
		}
	}
	return out
}

type Position struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
	Side           string `json:"side"`
}

type Account struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Currency       string `json:"currency"`
	Cash           string `json:"cash"`
	BuyingPower    string `json:"buying_power"`
	Equity         string `json:"equity"`
	LastEquity     string `json:"last_equity"`
	PortfolioValue string `json:"portfolio_value"`
}

type Activity struct {
	ID              string    `json:"id"`
	ActivityType    string    `json:"activity_type"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Qty             string    `json:"qty"`
	Price           string    `json:"price"`
	TransactionTime time.Time `json:"transaction_time"`
	OrderID         string    `json:"order_id"`
}

type PortfolioHistory struct {
	Timestamp    []int64   `json:"timestamp"`
	Equity       []float64 `json:"equity"`
	ProfitLoss   []float64 `json:"profit_loss"`
	BaseValue    float64   `json:"base_value"`
	Timeframe    string    `json:"timeframe"`
	ProfitLossPc []float64 `json:"profit_loss_pct"`
}
