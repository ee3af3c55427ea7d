package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Restore replaces the ledger's state with state after checking the ledger
// invariants. On error the ledger is left unchanged.
func (l *Ledger) Restore(state domain.LedgerState) error {
	if err := validateState(state); err != nil {
		return err
	}

	holdings := make([]holding, len(state.Positions))
	index := make(map[string]int, len(state.Positions))
	for i, p := range state.Positions {
		if !finite(p.LastPrice) || p.LastPrice <= 0 {
			p.LastPrice = p.AverageCost
		}
		holdings[i] = holding{pos: p, avgCost: decimal.NewFromFloat(p.AverageCost)}
		index[p.BondID] = i
	}
	trades := make([]domain.Trade, len(state.Trades))
	for i, t := range state.Trades {
		trades[i] = copyTrade(t)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = decimal.NewFromFloat(state.Cash)
	l.holdings = holdings
	l.index = index
	l.trades = trades
	return nil
}

func validateState(state domain.LedgerState) error {
	if !finite(state.Cash) || state.Cash < 0 {
		return fmt.Errorf("ledger: restore: cash %v is negative: %w", state.Cash, domain.ErrInvalidSnapshot)
	}
	seen := make(map[string]bool, len(state.Positions))
	for _, p := range state.Positions {
		switch {
		case p.BondID == "":
			return fmt.Errorf("ledger: restore: position without bond id: %w", domain.ErrInvalidSnapshot)
		case seen[p.BondID]:
			return fmt.Errorf("ledger: restore: duplicate position %s: %w", p.BondID, domain.ErrInvalidSnapshot)
		case p.Quantity <= 0:
			return fmt.Errorf("ledger: restore: position %s has quantity %d: %w", p.BondID, p.Quantity, domain.ErrInvalidSnapshot)
		case !finite(p.AverageCost) || p.AverageCost < 0:
			return fmt.Errorf("ledger: restore: position %s has average cost %v: %w", p.BondID, p.AverageCost, domain.ErrInvalidSnapshot)
		}
		seen[p.BondID] = true
	}
	for i, t := range state.Trades {
		if !t.Side.Valid() || t.Quantity <= 0 {
			return fmt.Errorf("ledger: restore: trade %d (%s) is malformed: %w", i, t.ID, domain.ErrInvalidSnapshot)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
