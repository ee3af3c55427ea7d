package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/ledger"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/notify"
)

// MarketView is the slice of the market the portfolio and scenario services
// price against. *MarketService satisfies it.
type MarketView interface {
	Get(id string) (domain.Bond, error)
	Terms(b domain.Bond) domain.BondTerms
	YearsToMaturity(b domain.Bond) float64
	Quotes() domain.Quotes
}

// TradeInput is a client trade ticket. Price comes from the market.
type TradeInput struct {
	BondID   string           `json:"bond_id"`
	Side     domain.TradeSide `json:"side"`
	Quantity int64            `json:"quantity"`
}

// TradeEvent is published on domain.ChannelTrades after every trade attempt
// that reached the ledger.
type TradeEvent struct {
	Type   string             `json:"type"`
	BondID string             `json:"bond_id"`
	Side   domain.TradeSide   `json:"side"`
	Result domain.TradeResult `json:"result"`
	At     time.Time          `json:"at"`
}

// PositionView is a held position marked to the current market.
type PositionView struct {
	domain.Position
	MarketPrice   float64 `json:"market_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PortfolioSummary is everything the portfolio page shows at once.
type PortfolioSummary struct {
	Cash      float64          `json:"cash"`
	Positions []PositionView   `json:"positions"`
	Valuation domain.Valuation `json:"valuation"`
	Exposure  domain.Exposure  `json:"exposure"`
}

// PortfolioService runs trades against the ledger and keeps the snapshot
// store in step with it.
type PortfolioService struct {
	ledger    *ledger.Ledger
	market    MarketView
	snapshots domain.SnapshotStore
	bus       domain.EventBus // optional
	audit     domain.AuditLog // optional
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// persistMu orders execute+snapshot+save so an older snapshot never
	// lands after a newer one.
	persistMu sync.Mutex
}

// NewPortfolioService creates a PortfolioService. bus, audit and notifier
// may be nil.
func NewPortfolioService(
	l *ledger.Ledger,
	market MarketView,
	snapshots domain.SnapshotStore,
	bus domain.EventBus,
	audit domain.AuditLog,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		ledger:    l,
		market:    market,
		snapshots: snapshots,
		bus:       bus,
		audit:     audit,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With(slog.String("component", "portfolio_service")),
	}
}

// Restore loads the persisted snapshot into the ledger.
func (s *PortfolioService) Restore(ctx context.Context) error {
	state, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("portfolio_service: load snapshot: %w", err)
	}
	if err := s.ledger.Restore(state); err != nil {
		return fmt.Errorf("portfolio_service: restore: %w", err)
	}
	s.metrics.SetCash(s.ledger.Cash())
	s.logger.InfoContext(ctx, "portfolio_service: ledger restored",
		slog.Float64("cash", state.Cash),
		slog.Int("positions", len(state.Positions)),
		slog.Int("trades", len(state.Trades)),
	)
	return nil
}

// Trade executes in at the bond's current market price. Errors are returned
// for unknown bonds and invalid tickets; insufficient cash or holdings come
// back as a non-filled result.
func (s *PortfolioService) Trade(ctx context.Context, in TradeInput) (domain.TradeResult, error) {
	side := domain.TradeSide(strings.ToUpper(strings.TrimSpace(string(in.Side))))
	req, err := s.tradeRequest(in.BondID, side, in.Quantity)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("portfolio_service: trade: %w", err)
	}
	bond := req.Bond

	s.persistMu.Lock()
	result, err := s.ledger.ExecuteTrade(req)
	if err != nil {
		s.persistMu.Unlock()
		return domain.TradeResult{}, fmt.Errorf("portfolio_service: trade: %w", err)
	}
	if result.OK() {
		s.persist(ctx)
	}
	s.persistMu.Unlock()

	s.metrics.ObserveTrade(string(side), string(result.Status), result.Cash)
	s.afterTrade(ctx, bond, side, in.Quantity, result)
	return result, nil
}

// tradeRequest prices a ticket at the catalog quote. A held bond missing
// from the catalog, e.g. after a refresh dropped it, can still be sold at
// the position's last fill price with its acquisition terms.
func (s *PortfolioService) tradeRequest(bondID string, side domain.TradeSide, qty int64) (ledger.TradeRequest, error) {
	pos, held := s.ledger.Position(bondID)

	bond, err := s.market.Get(bondID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) || side != domain.TradeSideSell || !held {
			return ledger.TradeRequest{}, err
		}
		s.logger.Warn("portfolio_service: bond left the catalog, selling at last price",
			slog.String("bond_id", bondID),
			slog.Float64("last_price", pos.LastPrice),
		)
		held := pos.Bond
		held.ID = bondID
		return ledger.TradeRequest{
			Bond:     held,
			Terms:    pos.Terms,
			Price:    pos.LastPrice,
			Quantity: qty,
			Side:     side,
		}, nil
	}

	req := ledger.TradeRequest{
		Bond:     bond,
		Terms:    s.market.Terms(bond),
		Price:    bond.Price,
		Quantity: qty,
		Side:     side,
	}
	if !(req.Price > 0) && held {
		req.Price = pos.LastPrice
	}
	return req, nil
}

func (s *PortfolioService) persist(ctx context.Context) {
	if err := s.snapshots.Save(ctx, s.ledger.Snapshot()); err != nil {
		s.metrics.SnapshotFailed()
		s.logger.ErrorContext(ctx, "portfolio_service: snapshot save failed",
			slog.String("error", err.Error()),
		)
		if nerr := s.notifier.Notify(ctx, notify.EventSnapshotFailed,
			"Snapshot save failed", err.Error()); nerr != nil {
			s.logger.WarnContext(ctx, "portfolio_service: notify failed", slog.String("error", nerr.Error()))
		}
	}
}

// afterTrade publishes, audits and notifies. None of it can undo the trade.
func (s *PortfolioService) afterTrade(ctx context.Context, bond domain.Bond, side domain.TradeSide, qty int64, result domain.TradeResult) {
	if result.OK() {
		s.logger.InfoContext(ctx, "portfolio_service: trade filled",
			slog.String("bond_id", bond.ID),
			slog.String("side", string(side)),
			slog.Int64("quantity", qty),
			slog.Float64("price", result.Trade.Price),
			slog.Float64("cash", result.Cash),
		)
	} else {
		s.logger.InfoContext(ctx, "portfolio_service: trade rejected",
			slog.String("bond_id", bond.ID),
			slog.String("side", string(side)),
			slog.Int64("quantity", qty),
			slog.String("status", string(result.Status)),
		)
	}

	s.publish(ctx, domain.ChannelTrades, TradeEvent{
		Type:   "trade",
		BondID: bond.ID,
		Side:   side,
		Result: result,
		At:     time.Now().UTC(),
	})
	if result.OK() {
		s.publish(ctx, domain.ChannelPortfolio, s.ledger.Exposure(s.market.Quotes()))
	}

	if s.audit != nil {
		detail := map[string]any{
			"bond_id":  bond.ID,
			"side":     side,
			"quantity": qty,
			"status":   result.Status,
			"cash":     result.Cash,
		}
		if result.Trade != nil {
			detail["trade_id"] = result.Trade.ID
			detail["price"] = result.Trade.Price
		}
		if err := s.audit.Log(ctx, "trade", detail); err != nil {
			s.logger.WarnContext(ctx, "portfolio_service: audit log failed", slog.String("error", err.Error()))
		}
	}

	event, title := notify.EventTradeFilled, "Trade filled"
	msg := fmt.Sprintf("%s %d %s", side, qty, bond.ID)
	if result.OK() {
		msg = fmt.Sprintf("%s @ %.2f, cash %.2f", msg, result.Trade.Price, result.Cash)
	} else {
		event, title = notify.EventTradeRejected, "Trade rejected"
		msg = fmt.Sprintf("%s: %s", msg, result.Status)
	}
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: notify failed", slog.String("error", err.Error()))
	}
}

func (s *PortfolioService) publish(ctx context.Context, channel string, v any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: marshal event failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// Summary marks the portfolio to the current market.
func (s *PortfolioService) Summary(ctx context.Context) PortfolioSummary {
	quotes := s.market.Quotes()
	positions := s.ledger.Positions()

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		price := p.LastPrice
		if q, ok := quotes[p.BondID]; ok && q > 0 {
			price = q
		}
		value := price * float64(p.Quantity)
		views = append(views, PositionView{
			Position:      p,
			MarketPrice:   price,
			MarketValue:   value,
			UnrealizedPnL: value - p.Cost(),
		})
	}

	val := s.ledger.Valuation(quotes)
	s.metrics.SetHoldingsValue(val.TotalValue)
	return PortfolioSummary{
		Cash:      s.ledger.Cash(),
		Positions: views,
		Valuation: val,
		Exposure:  s.ledger.Exposure(quotes),
	}
}

// Trades returns the trade log, oldest first.
func (s *PortfolioService) Trades() []domain.Trade {
	return s.ledger.Trades()
}

// TradesBefore returns logged trades strictly older than cutoff.
func (s *PortfolioService) TradesBefore(cutoff time.Time) []domain.Trade {
	all := s.ledger.Trades()
	out := make([]domain.Trade, 0, len(all))
	for _, t := range all {
		if t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
