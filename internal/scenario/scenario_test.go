package scenario

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

type fataler interface {
	Fatalf(format string, args ...any)
}

// holdingAt builds a holding quoted at the model price for yield y.
func holdingAt(t fataler, id string, terms domain.BondTerms, qty int64, y float64) Holding {
	p, err := valuation.Price(terms, y)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	return Holding{
		Position: domain.Position{
			BondID:   id,
			Bond:     domain.Bond{ID: id, Issuer: "Issuer " + id, FaceValue: terms.FaceValue, Duration: terms.YearsToMaturity},
			Terms:    terms,
			Quantity: qty,
		},
		CurrentPrice:    p,
		CurrentYield:    y,
		YearsToMaturity: terms.YearsToMaturity,
	}
}

func TestProject_ZeroShockIdentity(t *testing.T) {
	holdings := []Holding{
		holdingAt(t, "A", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 10, Frequency: 2}, 100, 0.06),
		holdingAt(t, "B", domain.BondTerms{FaceValue: 1000, CouponRate: 0, YearsToMaturity: 3, Frequency: 1}, 40, 0.03),
		holdingAt(t, "C", domain.BondTerms{FaceValue: 100, CouponRate: 0.08, YearsToMaturity: 2.5, Frequency: 4}, 7, 0.045),
	}

	proj, err := Project(holdings, 0)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if math.Abs(proj.ProjectedTotalValue-proj.CurrentTotalValue) > 1e-6 {
		t.Errorf("projected %v != current %v", proj.ProjectedTotalValue, proj.CurrentTotalValue)
	}
	for _, im := range proj.Impacts {
		if math.Abs(im.ValueChange) > 1e-6 || im.EstimatedChange != 0 {
			t.Errorf("%s: value change %v, estimate %v at zero shock", im.BondID, im.ValueChange, im.EstimatedChange)
		}
	}
}

func TestProject_RankingAndAggregates(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, Frequency: 2}
	short, long, mid := terms, terms, terms
	short.YearsToMaturity = 1
	long.YearsToMaturity = 30
	mid.YearsToMaturity = 7

	holdings := []Holding{
		holdingAt(t, "SHORT", short, 10, 0.05),
		holdingAt(t, "LONG", long, 10, 0.05),
		holdingAt(t, "MID", mid, 10, 0.05),
	}

	proj, err := Project(holdings, 100)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	order := []string{proj.Impacts[0].BondID, proj.Impacts[1].BondID, proj.Impacts[2].BondID}
	if order[0] != "LONG" || order[1] != "MID" || order[2] != "SHORT" {
		t.Errorf("impact order = %v, want [LONG MID SHORT]", order)
	}

	var sum float64
	for _, im := range proj.Impacts {
		if !near(im.NewYield, 0.06) {
			t.Errorf("%s new yield = %v, want 0.06", im.BondID, im.NewYield)
		}
		sum += im.ValueChange
	}
	if !near(sum, proj.TotalChange) {
		t.Errorf("sum of changes %v != total %v", sum, proj.TotalChange)
	}
	if !near(proj.PercentChange, proj.TotalChange/proj.CurrentTotalValue*100) {
		t.Errorf("PercentChange = %v", proj.PercentChange)
	}
	if top := proj.Top(2); len(top) != 2 || top[0].BondID != "LONG" {
		t.Errorf("Top(2) = %+v", top)
	}
	if got := len(proj.Top(8)); got != 3 {
		t.Errorf("len(Top(8)) = %d, want 3", got)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestProject_EmptyPortfolio(t *testing.T) {
	proj, err := Project(nil, 150)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if proj.PercentChange != 0 || proj.TotalChange != 0 || len(proj.Impacts) != 0 {
		t.Errorf("Project(nil) = %+v", proj)
	}
}

func TestProject_DurationProxy(t *testing.T) {
	testCases := []struct {
		name     string
		duration float64
		want     float64
	}{
		{"duration used as tenor", 6.5, 6.5},
		{"floored at half a year", 0.2, 0.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := Holding{
				Position: domain.Position{
					BondID:   "X",
					Bond:     domain.Bond{ID: "X", FaceValue: 1000, Duration: tc.duration},
					Terms:    domain.BondTerms{FaceValue: 1000, CouponRate: 0.04},
					Quantity: 1,
				},
				CurrentPrice: 1000,
				CurrentYield: 0.04,
			}
			proj, err := Project([]Holding{h}, 25)
			if err != nil {
				t.Fatalf("Project() error = %v", err)
			}
			im := proj.Impacts[0]
			if !im.YearsFromDuration || im.YearsUsed != tc.want {
				t.Errorf("years used = %v (proxied %v), want %v", im.YearsUsed, im.YearsFromDuration, tc.want)
			}
		})
	}
}

func TestProject_EstimateTracksRepricing(t *testing.T) {
	h := holdingAt(t, "A", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 10, Frequency: 2}, 100, 0.05)

	for _, bps := range []float64{-50, -10, 10, 50} {
		proj, err := Project([]Holding{h}, bps)
		if err != nil {
			t.Fatalf("Project() error = %v", err)
		}
		im := proj.Impacts[0]
		// Second-order error is O(Δy³).
		if rel := math.Abs(im.EstimatedChange-im.ValueChange) / math.Abs(im.ValueChange); rel > 5e-3 {
			t.Errorf("%vbps: estimate %v vs repriced %v", bps, im.EstimatedChange, im.ValueChange)
		}
	}
}

func TestProject_InvalidInputs(t *testing.T) {
	h := holdingAt(t, "A", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 5, Frequency: 2}, 1, 0.05)

	if _, err := Project([]Holding{h}, math.NaN()); !errors.Is(err, domain.ErrInvalidYield) {
		t.Errorf("NaN shock error = %v, want ErrInvalidYield", err)
	}
	// A shock that drives 1 + y/f to zero is a domain error.
	if _, err := Project([]Holding{h}, -20500); !errors.Is(err, domain.ErrInvalidYield) {
		t.Errorf("collapsing shock error = %v, want ErrInvalidYield", err)
	}
}

func TestLadder(t *testing.T) {
	h := holdingAt(t, "A", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 8, Frequency: 2}, 10, 0.05)

	ladder, err := Ladder([]Holding{h}, DefaultLadder)
	if err != nil {
		t.Fatalf("Ladder() error = %v", err)
	}
	if len(ladder) != len(DefaultLadder) {
		t.Fatalf("len(Ladder()) = %d, want %d", len(ladder), len(DefaultLadder))
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i].RateShockBps != DefaultLadder[i] {
			t.Errorf("ladder[%d] shock = %v", i, ladder[i].RateShockBps)
		}
		if !(ladder[i].ProjectedTotalValue < ladder[i-1].ProjectedTotalValue) {
			t.Errorf("projected value not decreasing at %vbps", ladder[i].RateShockBps)
		}
	}
}

// A rate rise strictly lowers the projected value of any position with a
// positive coupon.
func TestProperty_PositiveShockLowersValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms := domain.BondTerms{
			FaceValue:       rapid.Float64Range(100, 10000).Draw(t, "face"),
			CouponRate:      rapid.Float64Range(0.001, 0.2).Draw(t, "coupon"),
			YearsToMaturity: rapid.Float64Range(0.5, 30).Draw(t, "years"),
			Frequency:       rapid.SampledFrom([]int{1, 2, 4}).Draw(t, "frequency"),
		}
		y := rapid.Float64Range(0.001, 0.3).Draw(t, "ytm")
		bps := rapid.Float64Range(1, 300).Draw(t, "bps")
		qty := rapid.Int64Range(1, 1000).Draw(t, "qty")

		h := holdingAt(t, "X", terms, qty, y)
		proj, err := Project([]Holding{h}, bps)
		if err != nil {
			t.Fatalf("Project() error = %v", err)
		}
		base, err := Project([]Holding{h}, 0)
		if err != nil {
			t.Fatalf("Project() error = %v", err)
		}
		if !(proj.Impacts[0].ProjectedValue < base.Impacts[0].ProjectedValue) {
			t.Fatalf("projected %v not below %v after +%vbps", proj.Impacts[0].ProjectedValue, base.Impacts[0].ProjectedValue, bps)
		}
	})
}
