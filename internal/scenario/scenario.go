// Package scenario projects held positions under parallel yield shocks.
//
// Every function here is pure: it reads the holdings the caller supplies and
// never touches the ledger.
package scenario

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

const (
	bpsPerUnit       = 10000
	defaultFrequency = 2
)

// DefaultLadder is the shock range offered to clients, in basis points.
var DefaultLadder = []float64{-200, -150, -100, -50, 0, 50, 100, 150, 200}

// Holding is one position as seen by a scenario: the ledger's position plus
// the market's view of it at query time.
type Holding struct {
	Position     domain.Position
	CurrentPrice float64
	CurrentYield float64 // fraction
	// YieldApproximate marks a CurrentYield the caller could not solve
	// exactly from CurrentPrice.
	YieldApproximate bool
	// YearsToMaturity is the exact remaining tenor. Zero means unknown, in
	// which case the quoted duration stands in for it.
	YearsToMaturity float64
}

// Terms returns the pricing terms for h with the tenor resolved. proxied
// reports whether the tenor came from the duration proxy.
func (h Holding) Terms() (terms domain.BondTerms, proxied bool) {
	terms = h.Position.Terms
	if terms.Frequency <= 0 {
		terms.Frequency = defaultFrequency
	}
	if terms.FaceValue <= 0 {
		terms.FaceValue = h.Position.Bond.FaceValue
	}
	if h.YearsToMaturity > 0 {
		terms.YearsToMaturity = h.YearsToMaturity
		return terms, false
	}
	terms.YearsToMaturity = valuation.YearsFromDuration(h.Position.Bond.Duration)
	return terms, true
}

// Project reprices every holding at CurrentYield + rateShockBps/10000.
// Impacts come back ranked by |ValueChange|, largest first.
func Project(holdings []Holding, rateShockBps float64) (domain.Projection, error) {
	if math.IsNaN(rateShockBps) || math.IsInf(rateShockBps, 0) {
		return domain.Projection{}, fmt.Errorf("scenario: shock %v: %w", rateShockBps, domain.ErrInvalidYield)
	}

	proj := domain.Projection{
		RateShockBps: rateShockBps,
		Impacts:      make([]domain.PositionImpact, 0, len(holdings)),
	}
	shock := rateShockBps / bpsPerUnit

	for _, h := range holdings {
		impact, err := project(h, shock)
		if err != nil {
			return domain.Projection{}, fmt.Errorf("scenario: %s: %w", h.Position.BondID, err)
		}
		proj.CurrentTotalValue += h.CurrentPrice * float64(h.Position.Quantity)
		proj.ProjectedTotalValue += impact.ProjectedValue
		proj.Impacts = append(proj.Impacts, impact)
	}

	proj.TotalChange = proj.ProjectedTotalValue - proj.CurrentTotalValue
	if proj.CurrentTotalValue != 0 {
		proj.PercentChange = proj.TotalChange / proj.CurrentTotalValue * 100
	}

	slices.SortStableFunc(proj.Impacts, func(a, b domain.PositionImpact) int {
		return cmp.Compare(math.Abs(b.ValueChange), math.Abs(a.ValueChange))
	})
	return proj, nil
}

func project(h Holding, shock float64) (domain.PositionImpact, error) {
	terms, proxied := h.Terms()
	newYield := h.CurrentYield + shock

	newPrice, err := valuation.Price(terms, newYield)
	if err != nil {
		return domain.PositionImpact{}, err
	}
	mac, err := valuation.MacaulayDuration(terms, h.CurrentYield)
	if err != nil {
		return domain.PositionImpact{}, err
	}
	mod, err := valuation.ModifiedDuration(mac, h.CurrentYield, terms.Frequency)
	if err != nil {
		return domain.PositionImpact{}, err
	}
	convexity, err := valuation.Convexity(terms, h.CurrentYield)
	if err != nil {
		return domain.PositionImpact{}, err
	}

	qty := float64(h.Position.Quantity)
	// ΔP/P ≈ -D·Δy + ½·C·Δy²
	estimate := (-mod*shock + 0.5*convexity*shock*shock) * h.CurrentPrice * qty

	return domain.PositionImpact{
		BondID:            h.Position.BondID,
		Issuer:            h.Position.Bond.Issuer,
		MaturityDate:      h.Position.Bond.MaturityDate,
		Quantity:          h.Position.Quantity,
		CurrentYield:      h.CurrentYield,
		NewYield:          newYield,
		CurrentPrice:      h.CurrentPrice,
		NewPrice:          newPrice,
		ValueChange:       (newPrice - h.CurrentPrice) * qty,
		ProjectedValue:    newPrice * qty,
		EstimatedChange:   estimate,
		ModifiedDuration:  mod,
		Convexity:         convexity,
		YearsUsed:         terms.YearsToMaturity,
		YearsFromDuration: proxied,
		YieldApproximate:  h.YieldApproximate,
	}, nil
}

// Ladder runs Project once per shock, in the order given.
func Ladder(holdings []Holding, shocks []float64) ([]domain.Projection, error) {
	out := make([]domain.Projection, 0, len(shocks))
	for _, bps := range shocks {
		p, err := Project(holdings, bps)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
