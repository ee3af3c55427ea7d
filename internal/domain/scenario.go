package domain

// PositionImpact is the projected effect of a yield shock on one position.
type PositionImpact struct {
	BondID         string  `json:"bond_id"`
	Issuer         string  `json:"issuer"`
	MaturityDate   string  `json:"maturity_date"`
	Quantity       int64   `json:"quantity"`
	CurrentYield   float64 `json:"current_yield"`
	NewYield       float64 `json:"new_yield"`
	CurrentPrice   float64 `json:"current_price"`
	NewPrice       float64 `json:"new_price"`
	ValueChange    float64 `json:"value_change"`
	ProjectedValue float64 `json:"projected_value"`
	// EstimatedChange is the duration + convexity approximation of
	// ValueChange.
	EstimatedChange   float64 `json:"estimated_change"`
	ModifiedDuration  float64 `json:"modified_duration"`
	Convexity         float64 `json:"convexity"`
	YearsUsed         float64 `json:"years_used"`
	YearsFromDuration bool    `json:"years_from_duration"`
	// YieldApproximate is set when CurrentYield could not be solved from
	// CurrentPrice, so ValueChange is not zero at a zero shock.
	YieldApproximate bool `json:"yield_approximate"`
}

// Projection aggregates a parallel yield-shock scenario.
type Projection struct {
	RateShockBps        float64          `json:"rate_shock_bps"`
	CurrentTotalValue   float64          `json:"current_total_value"`
	ProjectedTotalValue float64          `json:"projected_total_value"`
	TotalChange         float64          `json:"total_change"`
	PercentChange       float64          `json:"percent_change"`
	Impacts             []PositionImpact `json:"impacts"` // ranked by |ValueChange| desc
}

// Top returns at most n of the largest impacts.
func (p Projection) Top(n int) []PositionImpact {
	if n < 0 || n >= len(p.Impacts) {
		return p.Impacts
	}
	return p.Impacts[:n]
}
