package domain

import "time"

// TradeSide is BUY or SELL.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Trade is an immutable entry in the ledger's append-only trade log.
type Trade struct {
	ID        string    `json:"id"`
	BondID    string    `json:"bond_id"`
	Side      TradeSide `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	// RealizedPnL is set on SELL trades only.
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
}

// Notional returns Price × Quantity.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}

// TradeStatus names the outcome of a trade request.
type TradeStatus string

const (
	TradeStatusFilled               TradeStatus = "filled"
	TradeStatusInsufficientCash     TradeStatus = "insufficient_cash"
	TradeStatusInsufficientHoldings TradeStatus = "insufficient_holdings"
)

// TradeResult is the outcome of a ledger trade. Business-rule rejections are
// reported here rather than as errors; Trade is nil unless Status is filled.
type TradeResult struct {
	Status TradeStatus `json:"status"`
	Trade  *Trade      `json:"trade,omitempty"`
	Cash   float64     `json:"cash"`
}

// OK reports whether the trade was filled.
func (r TradeResult) OK() bool {
	return r.Status == TradeStatusFilled
}
