package service

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/ledger"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/scenario"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

// YieldSource selects where a holding's current yield comes from.
type YieldSource string

const (
	// YieldImplied solves the yield from the current price, so a zero shock
	// reprices every holding at its market price.
	YieldImplied YieldSource = "implied"
	// YieldQuoted uses the catalog's quoted yield.
	YieldQuoted YieldSource = "quoted"
)

// Valid reports whether y is a known source.
func (y YieldSource) Valid() bool {
	return y == YieldImplied || y == YieldQuoted
}

// ScenarioService projects the live portfolio under yield shocks.
type ScenarioService struct {
	ledger      *ledger.Ledger
	market      MarketView
	yieldSource YieldSource
	top         int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewScenarioService creates a ScenarioService. top caps the impacts
// returned by Project when the caller passes no limit.
func NewScenarioService(l *ledger.Ledger, market MarketView, source YieldSource, top int, m *metrics.Metrics, logger *slog.Logger) *ScenarioService {
	if !source.Valid() {
		source = YieldImplied
	}
	return &ScenarioService{
		ledger:      l,
		market:      market,
		yieldSource: source,
		top:         top,
		metrics:     m,
		logger:      logger.With(slog.String("component", "scenario_service")),
	}
}

// Holdings marks every ledger position to the market for a scenario run.
func (s *ScenarioService) Holdings() []scenario.Holding {
	quotes := s.market.Quotes()
	positions := s.ledger.Positions()

	out := make([]scenario.Holding, 0, len(positions))
	for _, p := range positions {
		bond := p.Bond
		if b, err := s.market.Get(p.BondID); err == nil {
			bond = b
		}
		h := scenario.Holding{
			Position:        p,
			CurrentPrice:    p.LastPrice,
			YearsToMaturity: s.market.YearsToMaturity(bond),
		}
		if q, ok := quotes[p.BondID]; ok && q > 0 {
			h.CurrentPrice = q
		}
		h.CurrentYield, h.YieldApproximate = s.currentYield(h, bond)
		out = append(out, h)
	}
	return out
}

// currentYield returns the holding's yield and whether it is only an
// approximation. An implied yield the search could not bracket is kept as
// the best midpoint and flagged, so a zero shock will not reproduce the
// market value for that holding.
func (s *ScenarioService) currentYield(h scenario.Holding, bond domain.Bond) (float64, bool) {
	if s.yieldSource == YieldQuoted {
		return bond.Yield / 100, false
	}
	terms, _ := h.Terms()
	res, err := valuation.SolveYield(terms, h.CurrentPrice)
	if err != nil {
		s.logger.Warn("scenario_service: implied yield failed, using quoted",
			slog.String("bond_id", h.Position.BondID),
			slog.String("error", err.Error()),
		)
		return bond.Yield / 100, false
	}
	s.metrics.ObserveYieldSearch(res.Iterations)
	if !res.Converged {
		s.logger.Warn("scenario_service: implied yield did not converge",
			slog.String("bond_id", h.Position.BondID),
			slog.Float64("price", h.CurrentPrice),
			slog.Float64("yield", res.Yield),
			slog.Int("iterations", res.Iterations),
		)
	}
	return res.Yield, !res.Converged
}

// Project runs one shock. top ≤ 0 uses the service default; the aggregates
// always cover every holding.
func (s *ScenarioService) Project(shockBps float64, top int) (domain.Projection, error) {
	p, err := scenario.Project(s.Holdings(), shockBps)
	if err != nil {
		return domain.Projection{}, fmt.Errorf("scenario_service: project: %w", err)
	}
	if top <= 0 {
		top = s.top
	}
	if top > 0 {
		p.Impacts = p.Top(top)
	}
	return p, nil
}

// Ladder runs every shock in shocks, or scenario.DefaultLadder when empty.
func (s *ScenarioService) Ladder(shocks []float64) ([]domain.Projection, error) {
	if len(shocks) == 0 {
		shocks = scenario.DefaultLadder
	}
	out, err := scenario.Ladder(s.Holdings(), shocks)
	if err != nil {
		return nil, fmt.Errorf("scenario_service: ladder: %w", err)
	}
	return out, nil
}
