package valuation

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPrice(t *testing.T) {
	testCases := []struct {
		name  string
		terms domain.BondTerms
		ytm   float64
		want  float64
	}{
		{
			name:  "par bond prices at face",
			terms: domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 10, Frequency: 2},
			ytm:   0.05,
			want:  1000,
		},
		{
			name:  "zero coupon annual",
			terms: domain.BondTerms{FaceValue: 1000, CouponRate: 0, YearsToMaturity: 5, Frequency: 1},
			ytm:   0.10,
			want:  1000 / math.Pow(1.1, 5),
		},
		{
			name:  "premium bond",
			terms: domain.BondTerms{FaceValue: 100, CouponRate: 0.08, YearsToMaturity: 2, Frequency: 1},
			ytm:   0.06,
			want:  8/1.06 + 108/(1.06*1.06),
		},
		{
			name:  "zero yield sums the flows",
			terms: domain.BondTerms{FaceValue: 1000, CouponRate: 0.04, YearsToMaturity: 3, Frequency: 4},
			ytm:   0,
			want:  1000 + 12*10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Price(tc.terms, tc.ytm)
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if !near(got, tc.want, 1e-9) {
				t.Errorf("Price() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPrice_DomainErrors(t *testing.T) {
	valid := domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 5, Frequency: 2}

	testCases := []struct {
		name    string
		terms   domain.BondTerms
		ytm     float64
		wantErr error
	}{
		{"zero frequency", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 5}, 0.05, domain.ErrInvalidTerms},
		{"negative frequency", domain.BondTerms{FaceValue: 1000, YearsToMaturity: 5, Frequency: -2}, 0.05, domain.ErrInvalidTerms},
		{"zero face", domain.BondTerms{CouponRate: 0.05, YearsToMaturity: 5, Frequency: 2}, 0.05, domain.ErrInvalidTerms},
		{"zero years", domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, Frequency: 2}, 0.05, domain.ErrInvalidTerms},
		{"discount base of zero", valid, -2, domain.ErrInvalidYield},
		{"negative discount base", valid, -3, domain.ErrInvalidYield},
		{"NaN yield", valid, math.NaN(), domain.ErrInvalidYield},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Price(tc.terms, tc.ytm)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Price() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCashFlows_FractionalPeriods(t *testing.T) {
	testCases := []struct {
		name        string
		years       float64
		frequency   int
		wantCoupons int
		wantLast    float64
	}{
		{"whole periods", 1.5, 2, 3, 3},
		{"half period left over", 2.25, 2, 4, 4.5},
		{"binary rounding is absorbed", 2.3, 2, 4, 4.6},
		{"less than one period", 0.5, 1, 0, 0.5},
		{"quarterly", 0.1 * 30, 4, 12, 12},
	}

	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.06}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			terms.YearsToMaturity = tc.years
			terms.Frequency = tc.frequency
			flows, err := CashFlows(terms, 0.05)
			if err != nil {
				t.Fatalf("CashFlows() error = %v", err)
			}
			if got := len(flows) - 1; got != tc.wantCoupons {
				t.Errorf("coupon count = %d, want %d", got, tc.wantCoupons)
			}
			last := flows[len(flows)-1]
			if !near(last.Period, tc.wantLast, 1e-9) || last.Amount != 1000 {
				t.Errorf("face flow = %+v, want period %v amount 1000", last, tc.wantLast)
			}
		})
	}
}

func TestDurationAndConvexity_ZeroCoupon(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0, YearsToMaturity: 5, Frequency: 1}
	ytm := 0.10

	mac, err := MacaulayDuration(terms, ytm)
	if err != nil {
		t.Fatalf("MacaulayDuration() error = %v", err)
	}
	if !near(mac, 5, 1e-12) {
		t.Errorf("MacaulayDuration() = %v, want 5", mac)
	}

	mod, err := ModifiedDuration(mac, ytm, terms.Frequency)
	if err != nil {
		t.Fatalf("ModifiedDuration() error = %v", err)
	}
	if !near(mod, 5/1.1, 1e-12) {
		t.Errorf("ModifiedDuration() = %v, want %v", mod, 5/1.1)
	}

	conv, err := Convexity(terms, ytm)
	if err != nil {
		t.Fatalf("Convexity() error = %v", err)
	}
	if want := 30 / (1.1 * 1.1); !near(conv, want, 1e-9) {
		t.Errorf("Convexity() = %v, want %v", conv, want)
	}
}

func TestModifiedDuration_InvalidFrequency(t *testing.T) {
	if _, err := ModifiedDuration(4, 0.05, 0); !errors.Is(err, domain.ErrInvalidTerms) {
		t.Errorf("ModifiedDuration() error = %v, want %v", err, domain.ErrInvalidTerms)
	}
}

func TestYieldFromPrice_Par(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 10, Frequency: 2}
	y, err := YieldFromPrice(terms, 1000)
	if err != nil {
		t.Fatalf("YieldFromPrice() error = %v", err)
	}
	if !near(y, 0.05, 1e-5) {
		t.Errorf("YieldFromPrice() = %v, want 0.05", y)
	}
}

func TestSolveYield_CappedSearch(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.01, YearsToMaturity: 30, Frequency: 2}

	// Priced far below what a 100% yield produces: the search pins at the cap.
	res, err := SolveYield(terms, 1)
	if err != nil {
		t.Fatalf("SolveYield() error = %v", err)
	}
	if res.Converged {
		t.Errorf("SolveYield() converged = true, want false")
	}
	if res.Iterations != yieldMaxIter {
		t.Errorf("SolveYield() iterations = %d, want %d", res.Iterations, yieldMaxIter)
	}
	if !near(res.Yield, 1, 1e-9) {
		t.Errorf("SolveYield() yield = %v, want ~1", res.Yield)
	}
}

func TestYieldFromPrice_InvalidInputs(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 10, Frequency: 2}
	if _, err := YieldFromPrice(terms, 0); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("zero price: error = %v, want %v", err, domain.ErrInvalidPrice)
	}
	terms.Frequency = 0
	if _, err := YieldFromPrice(terms, 1000); !errors.Is(err, domain.ErrInvalidTerms) {
		t.Errorf("zero frequency: error = %v, want %v", err, domain.ErrInvalidTerms)
	}
}

func TestAnalyze(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.05, YearsToMaturity: 5, Frequency: 2}
	m, err := Analyze(terms, 950)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !m.Converged {
		t.Errorf("Analyze() did not converge")
	}
	if m.YTM <= 0.05 {
		t.Errorf("discount bond YTM = %v, want > coupon rate", m.YTM)
	}
	if !(m.ModifiedDuration < m.MacaulayDuration && m.MacaulayDuration < terms.YearsToMaturity) {
		t.Errorf("durations out of order: mod=%v mac=%v", m.ModifiedDuration, m.MacaulayDuration)
	}
	if m.Convexity <= 0 {
		t.Errorf("Convexity = %v, want > 0", m.Convexity)
	}
}

func TestPriceYieldCurve_SkipsNegativeYields(t *testing.T) {
	terms := domain.BondTerms{FaceValue: 1000, CouponRate: 0.03, YearsToMaturity: 5, Frequency: 2}
	points, err := PriceYieldCurve(terms, 0.0055, 0.001, 20)
	if err != nil {
		t.Fatalf("PriceYieldCurve() error = %v", err)
	}
	// i = -20..-6 give negative yields.
	if len(points) != 26 {
		t.Fatalf("len(points) = %d, want 26", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Price >= points[i-1].Price {
			t.Fatalf("curve not decreasing at %d: %+v then %+v", i, points[i-1], points[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func drawTerms(t *rapid.T) domain.BondTerms {
	return domain.BondTerms{
		FaceValue:       rapid.Float64Range(100, 10000).Draw(t, "face"),
		CouponRate:      rapid.Float64Range(0, 0.2).Draw(t, "coupon"),
		YearsToMaturity: rapid.Float64Range(0.5, 30).Draw(t, "years"),
		Frequency:       rapid.SampledFrom([]int{1, 2, 4}).Draw(t, "frequency"),
	}
}

func TestProperty_YieldRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms := drawTerms(t)
		y := rapid.Float64Range(0.001, 0.5).Draw(t, "ytm")

		p, err := Price(terms, y)
		if err != nil {
			t.Fatalf("Price() error = %v", err)
		}
		mac, err := MacaulayDuration(terms, y)
		if err != nil {
			t.Fatalf("MacaulayDuration() error = %v", err)
		}
		mod, _ := ModifiedDuration(mac, y, terms.Frequency)
		// The search stops on an absolute price tolerance; when dP/dy is
		// tiny (deep-discount zeros) that tolerance is wider than 1e-3 in
		// yield and the round trip is not expected to hold.
		if mod*p < 2 {
			return
		}
		got, err := YieldFromPrice(terms, p)
		if err != nil {
			t.Fatalf("YieldFromPrice() error = %v", err)
		}
		if !near(got, y, 1e-3) {
			t.Fatalf("YieldFromPrice(Price(%v)) = %v, terms %+v", y, got, terms)
		}
	})
}

func TestProperty_PriceDecreasesWithYield(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		terms := drawTerms(t)
		y1 := rapid.Float64Range(0, 0.5).Draw(t, "y1")
		y2 := y1 + rapid.Float64Range(1e-4, 0.5).Draw(t, "gap")

		p1, err := Price(terms, y1)
		if err != nil {
			t.Fatalf("Price() error = %v", err)
		}
		p2, err := Price(terms, y2)
		if err != nil {
			t.Fatalf("Price() error = %v", err)
		}
		if !(p2 < p1) {
			t.Fatalf("Price(%v) = %v not below Price(%v) = %v", y2, p2, y1, p1)
		}
	})
}

func TestProperty_DurationGrowsWithMaturity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.SampledFrom([]int{1, 2, 4}).Draw(t, "frequency")
		n := rapid.IntRange(1, 60).Draw(t, "periods")
		extra := rapid.IntRange(1, 20).Draw(t, "extra")
		coupon := rapid.Float64Range(0.02, 0.2).Draw(t, "coupon")
		y := rapid.Float64Range(0.001, coupon).Draw(t, "ytm")

		short := domain.BondTerms{FaceValue: 1000, CouponRate: coupon, YearsToMaturity: float64(n) / float64(f), Frequency: f}
		long := short
		long.YearsToMaturity = float64(n+extra) / float64(f)

		d1, err := MacaulayDuration(short, y)
		if err != nil {
			t.Fatalf("MacaulayDuration() error = %v", err)
		}
		d2, err := MacaulayDuration(long, y)
		if err != nil {
			t.Fatalf("MacaulayDuration() error = %v", err)
		}
		if !(d2 > d1) {
			t.Fatalf("duration %v at %v periods not above %v at %v periods", d2, n+extra, d1, n)
		}
	})
}
