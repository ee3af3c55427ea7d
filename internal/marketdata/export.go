package marketdata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// TradesCSV renders the trade log as CSV with a header row. Realized P&L is
// empty for BUY trades.
func TradesCSV(trades []domain.Trade) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "timestamp", "bond_id", "side", "quantity", "price", "notional", "realized_pnl"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("marketdata: write trades header: %w", err)
	}

	for _, t := range trades {
		pnl := ""
		if t.RealizedPnL != nil {
			pnl = formatFloat(*t.RealizedPnL)
		}
		row := []string{
			t.ID,
			t.Timestamp.UTC().Format(time.RFC3339),
			t.BondID,
			string(t.Side),
			strconv.FormatInt(t.Quantity, 10),
			formatFloat(t.Price),
			formatFloat(t.Notional()),
			pnl,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("marketdata: write trade %s: %w", t.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("marketdata: flush trades: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
