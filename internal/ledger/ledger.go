// Package ledger implements the paper-trading portfolio ledger: cash,
// weighted-average-cost positions and the append-only trade log.
//
// A Ledger is the only thing allowed to mutate its state. Every method takes
// the ledger's lock, so ExecuteTrade's cash, position and trade-log updates
// are observed together or not at all.
package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/valuation"
)

// holding is a position plus its exact average cost.
type holding struct {
	pos     domain.Position
	avgCost decimal.Decimal
}

// Ledger owns one LedgerState.
type Ledger struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings []holding
	index    map[string]int // bond ID -> holdings index
	trades   []domain.Trade

	now   func() time.Time
	newID func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the trade timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the trade ID source.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// New creates a ledger holding domain.DefaultCash and nothing else.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		cash:  decimal.NewFromFloat(domain.DefaultCash),
		index: make(map[string]int),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromState creates a ledger and restores state into it.
func NewFromState(state domain.LedgerState, opts ...Option) (*Ledger, error) {
	l := New(opts...)
	if err := l.Restore(state); err != nil {
		return nil, err
	}
	return l, nil
}

// TradeRequest describes one trade against the ledger.
type TradeRequest struct {
	Bond     domain.Bond
	Terms    domain.BondTerms
	Price    float64
	Quantity int64
	Side     domain.TradeSide
}

func (r TradeRequest) validate() error {
	if r.Bond.ID == "" {
		return fmt.Errorf("ledger: bond id is required: %w", domain.ErrInvalidTerms)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("ledger: quantity %d must be positive: %w", r.Quantity, domain.ErrInvalidQuantity)
	}
	if !(r.Price > 0) || math.IsInf(r.Price, 1) {
		return fmt.Errorf("ledger: price %v must be positive: %w", r.Price, domain.ErrInvalidPrice)
	}
	if !r.Side.Valid() {
		return fmt.Errorf("ledger: side %q: %w", r.Side, domain.ErrInvalidSide)
	}
	if r.Side == domain.TradeSideBuy {
		if err := valuation.ValidateTerms(r.Terms); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	return nil
}

// ExecuteTrade applies a BUY or SELL at req.Price.
//
// An error is returned only for invalid requests, before anything changes.
// Insufficient cash or holdings is an expected outcome reported through the
// result status with the state left untouched.
func (l *Ledger) ExecuteTrade(req TradeRequest) (domain.TradeResult, error) {
	if err := req.validate(); err != nil {
		return domain.TradeResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price := decimal.NewFromFloat(req.Price)
	qty := decimal.NewFromInt(req.Quantity)
	settlement := price.Mul(qty)

	if req.Side == domain.TradeSideBuy {
		return l.buy(req, price, qty, settlement), nil
	}
	return l.sell(req, price, qty, settlement), nil
}

func (l *Ledger) buy(req TradeRequest, price, qty, settlement decimal.Decimal) domain.TradeResult {
	if l.cash.LessThan(settlement) {
		return l.rejected(domain.TradeStatusInsufficientCash)
	}

	l.cash = l.cash.Sub(settlement)
	if i, ok := l.index[req.Bond.ID]; ok {
		h := &l.holdings[i]
		held := decimal.NewFromInt(h.pos.Quantity)
		total := held.Add(qty)
		h.avgCost = held.Mul(h.avgCost).Add(settlement).Div(total)
		h.pos.Quantity += req.Quantity
		h.pos.AverageCost = h.avgCost.InexactFloat64()
		h.pos.LastPrice = req.Price
	} else {
		l.index[req.Bond.ID] = len(l.holdings)
		l.holdings = append(l.holdings, holding{
			pos: domain.Position{
				BondID:      req.Bond.ID,
				Bond:        req.Bond,
				Terms:       req.Terms,
				Quantity:    req.Quantity,
				AverageCost: req.Price,
				LastPrice:   req.Price,
			},
			avgCost: price,
		})
	}

	return l.record(req, nil)
}

func (l *Ledger) sell(req TradeRequest, price, qty, settlement decimal.Decimal) domain.TradeResult {
	i, ok := l.index[req.Bond.ID]
	if !ok || l.holdings[i].pos.Quantity < req.Quantity {
		return l.rejected(domain.TradeStatusInsufficientHoldings)
	}

	h := &l.holdings[i]
	pnl := price.Sub(h.avgCost).Mul(qty).InexactFloat64()

	l.cash = l.cash.Add(settlement)
	h.pos.Quantity -= req.Quantity
	h.pos.LastPrice = req.Price
	if h.pos.Quantity == 0 {
		l.remove(i)
	}

	return l.record(req, &pnl)
}

// remove deletes holdings[i], keeping the order of the rest.
func (l *Ledger) remove(i int) {
	delete(l.index, l.holdings[i].pos.BondID)
	l.holdings = append(l.holdings[:i], l.holdings[i+1:]...)
	for j := i; j < len(l.holdings); j++ {
		l.index[l.holdings[j].pos.BondID] = j
	}
}

func (l *Ledger) record(req TradeRequest, pnl *float64) domain.TradeResult {
	trade := domain.Trade{
		ID:          l.newID(),
		BondID:      req.Bond.ID,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Timestamp:   l.now().UTC(),
		RealizedPnL: pnl,
	}
	l.trades = append(l.trades, trade)
	out := copyTrade(trade)
	return domain.TradeResult{
		Status: domain.TradeStatusFilled,
		Trade:  &out,
		Cash:   l.cash.InexactFloat64(),
	}
}

func (l *Ledger) rejected(status domain.TradeStatus) domain.TradeResult {
	return domain.TradeResult{Status: status, Cash: l.cash.InexactFloat64()}
}

// ---------------------------------------------------------------------------
// Read-only views
// ---------------------------------------------------------------------------

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash.InexactFloat64()
}

// Positions returns a copy of the held positions in acquisition order.
func (l *Ledger) Positions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

// Position returns a copy of the position in bondID.
func (l *Ledger) Position(bondID string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[bondID]
	if !ok {
		return domain.Position{}, false
	}
	return l.holdings[i].pos, true
}

// Trades returns a copy of the trade log in execution order.
func (l *Ledger) Trades() []domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tradesLocked()
}

// Snapshot returns a complete, self-consistent copy of the state.
func (l *Ledger) Snapshot() domain.LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.LedgerState{
		Cash:      l.cash.InexactFloat64(),
		Positions: l.positionsLocked(),
		Trades:    l.tradesLocked(),
	}
}

func (l *Ledger) positionsLocked() []domain.Position {
	out := make([]domain.Position, len(l.holdings))
	for i, h := range l.holdings {
		out[i] = h.pos
	}
	return out
}

func (l *Ledger) tradesLocked() []domain.Trade {
	out := make([]domain.Trade, len(l.trades))
	for i, t := range l.trades {
		out[i] = copyTrade(t)
	}
	return out
}

func copyTrade(t domain.Trade) domain.Trade {
	if t.RealizedPnL != nil {
		pnl := *t.RealizedPnL
		t.RealizedPnL = &pnl
	}
	return t
}
