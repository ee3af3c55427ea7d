package valuation

import "github.com/alanyoungcy/bonddesk/internal/domain"

// CurvePoint is one point of a price/yield curve.
type CurvePoint struct {
	Yield float64 `json:"yield"`
	Price float64 `json:"price"`
}

// PriceYieldCurve prices terms at center + i·step for i in [-n, n]. Negative
// yields are skipped.
func PriceYieldCurve(terms domain.BondTerms, center, step float64, n int) ([]CurvePoint, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	points := make([]CurvePoint, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		y := center + float64(i)*step
		if y < 0 {
			continue
		}
		p, err := Price(terms, y)
		if err != nil {
			return nil, err
		}
		points = append(points, CurvePoint{Yield: y, Price: p})
	}
	return points, nil
}
