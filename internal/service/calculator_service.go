package service

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

const (
	curveStep   = 0.001 // 10 bps
	curvePoints = 20    // each side of the solved yield
)

// CalculatorInput is a free-form bond for the yield calculator. Coupon is
// in percent.
type CalculatorInput struct {
	FaceValue       float64 `json:"face_value"`
	Coupon          float64 `json:"coupon"`
	YearsToMaturity float64 `json:"years_to_maturity"`
	Frequency       int     `json:"frequency"`
	Price           float64 `json:"price"`
}

// Terms converts the input into pricing terms.
func (in CalculatorInput) Terms() domain.BondTerms {
	return domain.BondTerms{
		FaceValue:       in.FaceValue,
		CouponRate:      in.Coupon / 100,
		YearsToMaturity: in.YearsToMaturity,
		Frequency:       in.Frequency,
	}
}

// CalculatorResult holds the implied yield, risk measures and the
// price/yield curve around the solved yield.
type CalculatorResult struct {
	Terms   domain.BondTerms       `json:"terms"`
	Metrics valuation.Metrics      `json:"metrics"`
	Curve   []valuation.CurvePoint `json:"curve"`
}

// CalculatorService evaluates ad-hoc bonds. It holds no state.
type CalculatorService struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCalculatorService creates a CalculatorService.
func NewCalculatorService(m *metrics.Metrics, logger *slog.Logger) *CalculatorService {
	return &CalculatorService{
		metrics: m,
		logger:  logger.With(slog.String("component", "calculator_service")),
	}
}

// Evaluate solves the yield implied by in.Price and builds the curve.
func (s *CalculatorService) Evaluate(in CalculatorInput) (CalculatorResult, error) {
	terms := in.Terms()
	m, err := valuation.Analyze(terms, in.Price)
	if err != nil {
		return CalculatorResult{}, fmt.Errorf("calculator_service: evaluate: %w", err)
	}
	s.metrics.ObserveYieldSearch(m.Iterations)
	if !m.Converged {
		s.logger.Warn("calculator_service: yield search did not converge",
			slog.Float64("price", in.Price),
			slog.Float64("ytm", m.YTM),
		)
	}

	curve, err := valuation.PriceYieldCurve(terms, m.YTM, curveStep, curvePoints)
	if err != nil {
		return CalculatorResult{}, fmt.Errorf("calculator_service: curve: %w", err)
	}
	return CalculatorResult{Terms: terms, Metrics: m, Curve: curve}, nil
}
