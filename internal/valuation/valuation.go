package valuation

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Price returns the present value of the bond at the annual yield ytm.
func Price(terms domain.BondTerms, ytm float64) (float64, error) {
	flows, err := CashFlows(terms, ytm)
	if err != nil {
		return 0, err
	}
	return sumPV(flows), nil
}

// MacaulayDuration returns the PV-weighted mean payment time in years.
func MacaulayDuration(terms domain.BondTerms, ytm float64) (float64, error) {
	flows, err := CashFlows(terms, ytm)
	if err != nil {
		return 0, err
	}
	price := sumPV(flows)

	var weighted float64
	for _, cf := range flows {
		weighted += cf.Period * cf.PV()
	}
	return weighted / price / float64(terms.Frequency), nil
}

// ModifiedDuration adjusts a Macaulay duration for compounding frequency.
func ModifiedDuration(macDuration, ytm float64, frequency int) (float64, error) {
	base, err := discountBase(ytm, frequency)
	if err != nil {
		return 0, err
	}
	return macDuration / base, nil
}

// Convexity returns the annualised second-order price sensitivity.
//
//	C = Σ t(t+1)·PV_t / (P·(1+y/f)²) / f²
func Convexity(terms domain.BondTerms, ytm float64) (float64, error) {
	flows, err := CashFlows(terms, ytm)
	if err != nil {
		return 0, err
	}
	price := sumPV(flows)
	base := 1 + ytm/float64(terms.Frequency)

	var weighted float64
	for _, cf := range flows {
		weighted += cf.Period * (cf.Period + 1) * cf.PV()
	}
	f := float64(terms.Frequency)
	return weighted / (price * base * base) / (f * f), nil
}

// Metrics bundles yield and risk measures for one bond at one price.
type Metrics struct {
	Price            float64 `json:"price"`
	YTM              float64 `json:"ytm"` // fraction
	MacaulayDuration float64 `json:"macaulay_duration"`
	ModifiedDuration float64 `json:"modified_duration"`
	Convexity        float64 `json:"convexity"`
	Iterations       int     `json:"iterations"`
	Converged        bool    `json:"converged"`
}

// Analyze solves the yield implied by price and evaluates the risk measures
// at that yield.
func Analyze(terms domain.BondTerms, price float64) (Metrics, error) {
	res, err := SolveYield(terms, price)
	if err != nil {
		return Metrics{}, err
	}
	mac, err := MacaulayDuration(terms, res.Yield)
	if err != nil {
		return Metrics{}, err
	}
	mod, err := ModifiedDuration(mac, res.Yield, terms.Frequency)
	if err != nil {
		return Metrics{}, err
	}
	conv, err := Convexity(terms, res.Yield)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Price:            price,
		YTM:              res.Yield,
		MacaulayDuration: mac,
		ModifiedDuration: mod,
		Convexity:        conv,
		Iterations:       res.Iterations,
		Converged:        res.Converged,
	}, nil
}

// ---------------------------------------------------------------------------
// Yield search
// ---------------------------------------------------------------------------

const (
	yieldFloor     = 0.0
	yieldCeiling   = 1.0 // 100% annual yield cap
	yieldMaxIter   = 100
	priceTolerance = 1e-3
)

// YieldResult is the outcome of a bisection yield search.
type YieldResult struct {
	Yield      float64
	Iterations int
	// Converged is false when the iteration budget ran out before the
	// estimated price came within tolerance. Yield is still the best
	// midpoint found.
	Converged bool
}

// YieldFromPrice returns the yield at which Price(terms, yield) equals
// targetPrice, searched by bisection over [0, 1]. The result is best-effort:
// a target outside the bracket yields a value pinned near the bound.
func YieldFromPrice(terms domain.BondTerms, targetPrice float64) (float64, error) {
	res, err := SolveYield(terms, targetPrice)
	if err != nil {
		return 0, err
	}
	return res.Yield, nil
}

// SolveYield is YieldFromPrice with the search diagnostics attached.
func SolveYield(terms domain.BondTerms, targetPrice float64) (YieldResult, error) {
	if err := ValidateTerms(terms); err != nil {
		return YieldResult{}, err
	}
	if !(targetPrice > 0) || math.IsInf(targetPrice, 0) {
		return YieldResult{}, fmt.Errorf("valuation: target price %v must be positive: %w", targetPrice, domain.ErrInvalidPrice)
	}

	low, high := yieldFloor, yieldCeiling
	var mid float64
	for i := 0; i < yieldMaxIter; i++ {
		mid = (low + high) / 2
		est, err := Price(terms, mid)
		if err != nil {
			return YieldResult{}, err
		}
		if math.Abs(est-targetPrice) < priceTolerance {
			return YieldResult{Yield: mid, Iterations: i + 1, Converged: true}, nil
		}
		// Price falls as yield rises: too expensive means the yield is too low.
		if est > targetPrice {
			low = mid
		} else {
			high = mid
		}
	}
	return YieldResult{Yield: mid, Iterations: yieldMaxIter}, nil
}

func sumPV(flows []CashFlow) float64 {
	var pv float64
	for _, cf := range flows {
		pv += cf.PV()
	}
	return pv
}
