package valuation

import (
	"testing"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func TestTermsFromBond(t *testing.T) {
	asOf := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		bond      domain.Bond
		wantYears float64
	}{
		{
			name:      "maturity date drives tenor",
			bond:      domain.Bond{Coupon: 5, FaceValue: 1000, MaturityDate: "2030-01-01", Duration: 4},
			wantYears: 1826 / daysPerYear,
		},
		{
			name:      "unparsable maturity falls back to duration",
			bond:      domain.Bond{Coupon: 5, FaceValue: 1000, MaturityDate: "soon", Duration: 7.2},
			wantYears: 7.2,
		},
		{
			name:      "matured bond falls back to floored duration",
			bond:      domain.Bond{Coupon: 5, FaceValue: 1000, MaturityDate: "2024-06-30", Duration: 0.1},
			wantYears: 0.5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			terms := TermsFromBond(tc.bond, 2, asOf)
			if !near(terms.YearsToMaturity, tc.wantYears, 1e-9) {
				t.Errorf("YearsToMaturity = %v, want %v", terms.YearsToMaturity, tc.wantYears)
			}
			if terms.CouponRate != 0.05 || terms.Frequency != 2 || terms.FaceValue != 1000 {
				t.Errorf("terms = %+v", terms)
			}
		})
	}
}
