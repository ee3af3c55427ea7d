package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

// BondFilter narrows a catalog listing. Empty fields match everything;
// Query is a case-insensitive substring of ID or issuer.
type BondFilter struct {
	Sector domain.Sector
	Rating domain.Rating
	Query  string
}

func (f BondFilter) match(b domain.Bond) bool {
	if f.Sector != "" && !strings.EqualFold(string(f.Sector), string(b.Sector)) {
		return false
	}
	if f.Rating != "" && !strings.EqualFold(string(f.Rating), string(b.Rating)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(b.ID), q) || strings.Contains(strings.ToLower(b.Issuer), q)
	}
	return true
}

// BondAnalytics is a catalog bond with its risk measures at the quoted price.
type BondAnalytics struct {
	Bond    domain.Bond       `json:"bond"`
	Terms   domain.BondTerms  `json:"terms"`
	Metrics valuation.Metrics `json:"metrics"`
}

// MarketService keeps the bond catalog in memory and answers quote and
// analytics queries against it.
type MarketService struct {
	source    domain.BondSource
	mirror    domain.BondStore // optional; receives every loaded catalog
	frequency int
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu    sync.RWMutex
	bonds []domain.Bond
	index map[string]int
}

// MarketOption configures a MarketService.
type MarketOption func(*MarketService)

// WithMirror upserts each loaded catalog into store.
func WithMirror(store domain.BondStore) MarketOption {
	return func(s *MarketService) { s.mirror = store }
}

// WithMarketClock overrides the as-of date used for tenors.
func WithMarketClock(now func() time.Time) MarketOption {
	return func(s *MarketService) { s.now = now }
}

// NewMarketService creates a MarketService. frequency is the coupon
// frequency assumed for catalog bonds.
func NewMarketService(source domain.BondSource, frequency int, m *metrics.Metrics, logger *slog.Logger, opts ...MarketOption) *MarketService {
	s := &MarketService{
		source:    source,
		frequency: frequency,
		now:       time.Now,
		metrics:   m,
		logger:    logger.With(slog.String("component", "market_service")),
		index:     map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the catalog with the source's current contents. Later rows
// win when an ID repeats.
func (s *MarketService) Load(ctx context.Context) error {
	loaded, err := s.source.LoadBonds(ctx)
	if err != nil {
		return fmt.Errorf("market_service: load: %w", err)
	}

	bonds := make([]domain.Bond, 0, len(loaded))
	index := make(map[string]int, len(loaded))
	for _, b := range loaded {
		if i, dup := index[b.ID]; dup {
			s.logger.WarnContext(ctx, "market_service: duplicate bond id, keeping last",
				slog.String("bond_id", b.ID),
			)
			bonds[i] = b
			continue
		}
		index[b.ID] = len(bonds)
		bonds = append(bonds, b)
	}

	if s.mirror != nil {
		if err := s.mirror.UpsertBatch(ctx, bonds); err != nil {
			s.logger.WarnContext(ctx, "market_service: mirror upsert failed",
				slog.Int("count", len(bonds)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	s.bonds = bonds
	s.index = index
	s.mu.Unlock()

	s.metrics.SetCatalogSize(len(bonds))
	s.logger.InfoContext(ctx, "market_service: catalog loaded", slog.Int("count", len(bonds)))
	return nil
}

// RunRefresh reloads the catalog every interval until ctx is done. A failed
// reload keeps the previous catalog.
func (s *MarketService) RunRefresh(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				s.logger.ErrorContext(ctx, "market_service: refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// List returns the bonds matching f in catalog order.
func (s *MarketService) List(f BondFilter) []domain.Bond {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Bond{}
	for _, b := range s.bonds {
		if f.match(b) {
			out = append(out, b)
		}
	}
	return out
}

// Get returns the bond with id, or domain.ErrNotFound.
func (s *MarketService) Get(id string) (domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Bond{}, fmt.Errorf("market_service: bond %q: %w", id, domain.ErrNotFound)
	}
	return s.bonds[i], nil
}

// Lookup is Get with a fallback to the mirror store, which still holds bonds
// that have dropped out of the current catalog.
func (s *MarketService) Lookup(ctx context.Context, id string) (domain.Bond, error) {
	b, err := s.Get(id)
	if err == nil || s.mirror == nil || !errors.Is(err, domain.ErrNotFound) {
		return b, err
	}
	b, err = s.mirror.GetByID(ctx, id)
	if err != nil {
		return domain.Bond{}, fmt.Errorf("market_service: lookup %q: %w", id, err)
	}
	s.logger.DebugContext(ctx, "market_service: bond served from mirror", slog.String("bond_id", id))
	return b, nil
}

// Quotes returns the current catalog price of every bond.
func (s *MarketService) Quotes() domain.Quotes {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := make(domain.Quotes, len(s.bonds))
	for _, b := range s.bonds {
		q[b.ID] = b.Price
	}
	return q
}

// Terms derives pricing terms for b as of now, with the catalog's coupon
// frequency.
func (s *MarketService) Terms(b domain.Bond) domain.BondTerms {
	return valuation.TermsFromBond(b, s.frequency, s.now())
}

// YearsToMaturity returns b's remaining tenor, or 0 when it is unknown.
func (s *MarketService) YearsToMaturity(b domain.Bond) float64 {
	years, ok := valuation.YearsToMaturity(b, s.now())
	if !ok {
		return 0
	}
	return years
}

// Analytics solves the yield implied by the bond's quoted price and the
// risk measures at that yield. frequency overrides the catalog default when
// positive.
func (s *MarketService) Analytics(id string, frequency int) (BondAnalytics, error) {
	b, err := s.Get(id)
	if err != nil {
		return BondAnalytics{}, err
	}
	if frequency <= 0 {
		frequency = s.frequency
	}
	terms := valuation.TermsFromBond(b, frequency, s.now())

	m, err := valuation.Analyze(terms, b.Price)
	if err != nil {
		return BondAnalytics{}, fmt.Errorf("market_service: analytics %q: %w", id, err)
	}
	s.metrics.ObserveYieldSearch(m.Iterations)
	return BondAnalytics{Bond: b, Terms: terms, Metrics: m}, nil
}

// Sectors returns the distinct sectors in the catalog, sorted.
func (s *MarketService) Sectors() []domain.Sector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[domain.Sector]bool{}
	out := []domain.Sector{}
	for _, b := range s.bonds {
		if !seen[b.Sector] {
			seen[b.Sector] = true
			out = append(out, b.Sector)
		}
	}
	slices.Sort(out)
	return out
}
