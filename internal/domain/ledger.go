package domain

// DefaultCash is the starting balance of a fresh ledger.
const DefaultCash = 1_000_000.0

// LedgerState is a complete, self-consistent copy of the ledger.
type LedgerState struct {
	Cash      float64    `json:"cash"`
	Positions []Position `json:"positions"`
	Trades    []Trade    `json:"trades"`
}

// DefaultLedgerState returns the state of a brand new session.
func DefaultLedgerState() LedgerState {
	return LedgerState{
		Cash:      DefaultCash,
		Positions: []Position{},
		Trades:    []Trade{},
	}
}

// Valuation summarises held positions at the supplied quotes.
type Valuation struct {
	TotalValue    float64 `json:"total_value"`
	TotalCost     float64 `json:"total_cost"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Exposure is the portfolio-level risk summary.
type Exposure struct {
	Cash             float64 `json:"cash"`
	HoldingsValue    float64 `json:"holdings_value"`
	TotalEquity      float64 `json:"total_equity"`
	WeightedDuration float64 `json:"weighted_duration"`
	WeightedYield    float64 `json:"weighted_yield"` // percent
	RealizedPnL      float64 `json:"realized_pnl"`
	PositionCount    int     `json:"position_count"`
}
