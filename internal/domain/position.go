package domain

// Position is a held quantity of a single bond. Positions are owned by the
// ledger; everything handed out to callers is a copy.
type Position struct {
	BondID      string    `json:"bond_id"`
	Bond        Bond      `json:"bond"`
	Terms       BondTerms `json:"terms"`
	Quantity    int64     `json:"quantity"`
	AverageCost float64   `json:"average_cost"`
	// LastPrice is the most recent fill price. It stands in for a live quote
	// when the caller does not supply one.
	LastPrice float64 `json:"last_price"`
}

// Cost returns AverageCost × Quantity.
func (p Position) Cost() float64 {
	return p.AverageCost * float64(p.Quantity)
}
