package valuation

import (
	"math"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Day-count conventions are out of scope; remaining tenor uses a flat
// 365.25-day year.
const daysPerYear = 365.25

// minProxyYears floors the duration-derived tenor proxy.
const minProxyYears = 0.5

// YearsFromDuration is the tenor proxy used when the exact remaining tenor
// is unknown: the quoted duration, floored at half a year.
func YearsFromDuration(duration float64) float64 {
	if math.IsNaN(duration) || duration < minProxyYears {
		return minProxyYears
	}
	return duration
}

// YearsToMaturity returns the remaining tenor of b as of asOf. ok is false
// when the maturity date is missing, unparsable or not after asOf.
func YearsToMaturity(b domain.Bond, asOf time.Time) (years float64, ok bool) {
	if b.MaturityDate == "" {
		return 0, false
	}
	maturity, err := time.Parse(time.DateOnly, b.MaturityDate)
	if err != nil {
		return 0, false
	}
	days := maturity.Sub(asOf).Hours() / 24
	if days <= 0 {
		return 0, false
	}
	return days / daysPerYear, true
}

// TermsFromBond derives pricing terms from a market-data record.
func TermsFromBond(b domain.Bond, frequency int, asOf time.Time) domain.BondTerms {
	years, ok := YearsToMaturity(b, asOf)
	if !ok {
		years = YearsFromDuration(b.Duration)
	}
	return domain.BondTerms{
		FaceValue:       b.FaceValue,
		CouponRate:      b.Coupon / 100,
		YearsToMaturity: years,
		Frequency:       frequency,
	}
}
