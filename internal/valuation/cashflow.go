// Package valuation prices fixed-coupon bonds and computes their yield and
// risk measures. Every function is pure and safe for concurrent use.
//
// Price, duration and convexity are all computed from the same cash-flow
// schedule (CashFlows) so the measures stay consistent with each other for a
// given set of terms and yield.
package valuation

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// periodEpsilon absorbs binary rounding in years × frequency (2.3 × 2 is
// 4.6000000000000005) before the coupon count is truncated.
const periodEpsilon = 1e-9

// CashFlow is one scheduled payment.
type CashFlow struct {
	// Period is the payment time in coupon periods. The final face repayment
	// may fall on a fractional period.
	Period   float64
	Amount   float64
	Discount float64 // (1 + ytm/f)^-Period
}

// PV returns the discounted value of the flow.
func (c CashFlow) PV() float64 {
	return c.Amount * c.Discount
}

// CashFlows builds the discounted schedule for terms at ytm.
//
// Coupons are paid at whole periods t = 1..⌊N⌋ where N = years × frequency.
// The face value is repaid at N itself, so a fractional N discounts the
// principal over the exact fractional horizon while the coupon count is
// truncated.
func CashFlows(terms domain.BondTerms, ytm float64) ([]CashFlow, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	base, err := discountBase(ytm, terms.Frequency)
	if err != nil {
		return nil, err
	}

	n := terms.Periods()
	coupons := int(math.Floor(n + periodEpsilon))
	coupon := terms.CouponRate * terms.FaceValue / float64(terms.Frequency)

	flows := make([]CashFlow, 0, coupons+1)
	for t := 1; t <= coupons; t++ {
		flows = append(flows, CashFlow{
			Period:   float64(t),
			Amount:   coupon,
			Discount: math.Pow(base, -float64(t)),
		})
	}
	flows = append(flows, CashFlow{
		Period:   n,
		Amount:   terms.FaceValue,
		Discount: math.Pow(base, -n),
	})
	return flows, nil
}

// ValidateTerms rejects terms that cannot be priced.
func ValidateTerms(terms domain.BondTerms) error {
	switch {
	case terms.Frequency <= 0:
		return fmt.Errorf("valuation: frequency %d must be positive: %w", terms.Frequency, domain.ErrInvalidTerms)
	case !(terms.FaceValue > 0) || math.IsInf(terms.FaceValue, 0):
		return fmt.Errorf("valuation: face value %v must be positive: %w", terms.FaceValue, domain.ErrInvalidTerms)
	case !(terms.YearsToMaturity > 0) || math.IsInf(terms.YearsToMaturity, 0):
		return fmt.Errorf("valuation: years to maturity %v must be positive: %w", terms.YearsToMaturity, domain.ErrInvalidTerms)
	case math.IsNaN(terms.CouponRate) || math.IsInf(terms.CouponRate, 0):
		return fmt.Errorf("valuation: coupon rate %v is not finite: %w", terms.CouponRate, domain.ErrInvalidTerms)
	}
	return nil
}

// discountBase returns 1 + ytm/f, rejecting a zero or negative base.
func discountBase(ytm float64, frequency int) (float64, error) {
	if frequency <= 0 {
		return 0, fmt.Errorf("valuation: frequency %d must be positive: %w", frequency, domain.ErrInvalidTerms)
	}
	if math.IsNaN(ytm) || math.IsInf(ytm, 0) {
		return 0, fmt.Errorf("valuation: yield %v is not finite: %w", ytm, domain.ErrInvalidYield)
	}
	base := 1 + ytm/float64(frequency)
	if base <= 0 {
		return 0, fmt.Errorf("valuation: discount base 1 + %g/%d is not positive: %w", ytm, frequency, domain.ErrInvalidYield)
	}
	return base, nil
}
