package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// DefaultSnapshotPrefix names the snapshot keys when none is configured.
const DefaultSnapshotPrefix = "bond_trading"

// SnapshotStore implements domain.SnapshotStore as three plain keys:
//
//	<prefix>_cash      decimal string
//	<prefix>_holdings  JSON array of positions
//	<prefix>_trades    JSON array of trades
type SnapshotStore struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewSnapshotStore creates a SnapshotStore backed by c.
func NewSnapshotStore(c *Client, prefix string, logger *slog.Logger) *SnapshotStore {
	if prefix == "" {
		prefix = DefaultSnapshotPrefix
	}
	return &SnapshotStore{rdb: c.Underlying(), prefix: prefix, logger: logger}
}

func (s *SnapshotStore) keys() (cash, holdings, trades string) {
	return s.prefix + "_cash", s.prefix + "_holdings", s.prefix + "_trades"
}

// Load reads the three keys in one MGET. Each key that is absent or does not
// decode falls back to its default on its own; only a Redis failure is an
// error.
func (s *SnapshotStore) Load(ctx context.Context) (domain.LedgerState, error) {
	cashKey, holdingsKey, tradesKey := s.keys()
	vals, err := s.rdb.MGet(ctx, cashKey, holdingsKey, tradesKey).Result()
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("redis: load snapshot: %w", err)
	}

	raw := make([]*string, 3)
	for i, v := range vals {
		if str, ok := v.(string); ok {
			raw[i] = &str
		}
	}

	state, problems := decodeSnapshot(raw[0], raw[1], raw[2])
	for key, problem := range problems {
		s.logger.WarnContext(ctx, "snapshot: key unreadable, using default",
			slog.String("key", s.prefix+"_"+key),
			slog.String("error", problem.Error()),
		)
	}
	return state, nil
}

// Save writes all three keys in one MULTI/EXEC so readers never see a cash
// balance from one trade next to holdings from another.
func (s *SnapshotStore) Save(ctx context.Context, state domain.LedgerState) error {
	cash, holdings, trades, err := encodeSnapshot(state)
	if err != nil {
		return fmt.Errorf("redis: save snapshot: %w", err)
	}

	cashKey, holdingsKey, tradesKey := s.keys()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cashKey, cash, 0)
		pipe.Set(ctx, holdingsKey, holdings, 0)
		pipe.Set(ctx, tradesKey, trades, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: save snapshot: %w", err)
	}
	return nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodeSnapshot(state domain.LedgerState) (cash string, holdings, trades []byte, err error) {
	positions := state.Positions
	if positions == nil {
		positions = []domain.Position{}
	}
	log := state.Trades
	if log == nil {
		log = []domain.Trade{}
	}

	if holdings, err = json.Marshal(positions); err != nil {
		return "", nil, nil, fmt.Errorf("encode holdings: %w", err)
	}
	if trades, err = json.Marshal(log); err != nil {
		return "", nil, nil, fmt.Errorf("encode trades: %w", err)
	}
	return strconv.FormatFloat(state.Cash, 'f', -1, 64), holdings, trades, nil
}

// decodeSnapshot decodes whichever keys are present. Problems are keyed by
// "cash", "holdings" or "trades"; every problem key holds its default.
func decodeSnapshot(cash, holdings, trades *string) (domain.LedgerState, map[string]error) {
	state := domain.DefaultLedgerState()
	problems := map[string]error{}

	if cash != nil {
		if v, err := decodeCash(*cash); err != nil {
			problems["cash"] = err
		} else {
			state.Cash = v
		}
	}
	if holdings != nil {
		if v, err := decodeHoldings(*holdings); err != nil {
			problems["holdings"] = err
		} else {
			state.Positions = v
		}
	}
	if trades != nil {
		if v, err := decodeTrades(*trades); err != nil {
			problems["trades"] = err
		} else {
			state.Trades = v
		}
	}
	return state, problems
}

func decodeCash(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cash %q: %w", s, domain.ErrInvalidSnapshot)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("cash %v out of range: %w", v, domain.ErrInvalidSnapshot)
	}
	return v, nil
}

func decodeHoldings(s string) ([]domain.Position, error) {
	var positions []domain.Position
	if err := json.Unmarshal([]byte(s), &positions); err != nil {
		return nil, fmt.Errorf("holdings: %v: %w", err, domain.ErrInvalidSnapshot)
	}
	seen := make(map[string]bool, len(positions))
	for i, p := range positions {
		if p.BondID == "" || p.Quantity <= 0 || p.AverageCost < 0 || seen[p.BondID] {
			return nil, fmt.Errorf("holdings[%d] %q is malformed: %w", i, p.BondID, domain.ErrInvalidSnapshot)
		}
		seen[p.BondID] = true
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	return positions, nil
}

func decodeTrades(s string) ([]domain.Trade, error) {
	var trades []domain.Trade
	if err := json.Unmarshal([]byte(s), &trades); err != nil {
		return nil, fmt.Errorf("trades: %v: %w", err, domain.ErrInvalidSnapshot)
	}
	for i, t := range trades {
		if !t.Side.Valid() || t.Quantity <= 0 {
			return nil, fmt.Errorf("trades[%d] %q is malformed: %w", i, t.ID, domain.ErrInvalidSnapshot)
		}
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	return trades, nil
}
