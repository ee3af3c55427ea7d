package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// quote returns the caller's price for p, or the position's last fill price
// when none was supplied.
func quote(p domain.Position, quotes domain.Quotes) decimal.Decimal {
	if q, ok := quotes[p.BondID]; ok && q > 0 && finite(q) {
		return decimal.NewFromFloat(q)
	}
	return decimal.NewFromFloat(p.LastPrice)
}

// Valuation marks every position at quotes. Positions missing from quotes
// are marked at their last fill price, which is only an approximation of
// the market.
func (l *Ledger) Valuation(quotes domain.Quotes) domain.Valuation {
	l.mu.Lock()
	defer l.mu.Unlock()

	var value, cost decimal.Decimal
	for _, h := range l.holdings {
		qty := decimal.NewFromInt(h.pos.Quantity)
		value = value.Add(quote(h.pos, quotes).Mul(qty))
		cost = cost.Add(h.avgCost.Mul(qty))
	}
	return domain.Valuation{
		TotalValue:    value.InexactFloat64(),
		TotalCost:     cost.InexactFloat64(),
		UnrealizedPnL: value.Sub(cost).InexactFloat64(),
	}
}

// Exposure returns the value-weighted duration and yield of the holdings
// together with cash, equity and realized P&L to date.
func (l *Ledger) Exposure(quotes domain.Quotes) domain.Exposure {
	l.mu.Lock()
	defer l.mu.Unlock()

	var value, durSum, yieldSum float64
	for _, h := range l.holdings {
		mv := quote(h.pos, quotes).Mul(decimal.NewFromInt(h.pos.Quantity)).InexactFloat64()
		value += mv
		durSum += h.pos.Bond.Duration * mv
		yieldSum += h.pos.Bond.Yield * mv
	}

	var realized decimal.Decimal
	for _, t := range l.trades {
		if t.RealizedPnL != nil {
			realized = realized.Add(decimal.NewFromFloat(*t.RealizedPnL))
		}
	}

	exp := domain.Exposure{
		Cash:          l.cash.InexactFloat64(),
		HoldingsValue: value,
		RealizedPnL:   realized.InexactFloat64(),
		PositionCount: len(l.holdings),
	}
	exp.TotalEquity = exp.Cash + value
	if value > 0 {
		exp.WeightedDuration = durSum / value
		exp.WeightedYield = yieldSum / value
	}
	return exp
}
