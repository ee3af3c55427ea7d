package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/marketdata"
)

// TradeLog is the read side of the ledger's trade log the archiver needs.
type TradeLog interface {
	// TradesBefore returns logged trades strictly older than cutoff.
	TradesBefore(cutoff time.Time) []domain.Trade
}

// Archiver implements domain.TradeArchiver. It copies the trade log to the
// bucket as monthly JSONL and, when enabled, a CSV blotter. The ledger keeps its
// trades; archiving never removes anything.
type Archiver struct {
	writer  domain.BlobWriter
	trades  TradeLog
	audit   domain.AuditLog // optional
	blotter bool
}

// NewArchiver creates an Archiver. audit may be nil. blotter enables the
// reports/trades/<date>.csv export.
func NewArchiver(writer domain.BlobWriter, trades TradeLog, audit domain.AuditLog, blotter bool) *Archiver {
	return &Archiver{writer: writer, trades: trades, audit: audit, blotter: blotter}
}

// multipartWriter is implemented by writers that can stream large objects
// in parts.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string) error
}

// multipartThreshold is the payload size at which uploads switch to
// PutMultipart when the writer supports it.
const multipartThreshold = 5 << 20

// ArchiveTrades uploads all trades before the cutoff, one
// archive/trades/YYYY-MM.jsonl object per trade month, and returns how many
// were written. Month objects are rewritten in full on every run.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades := a.trades.TradesBefore(before)
	if len(trades) == 0 {
		return 0, nil
	}

	months := byMonth(trades)
	paths := make([]string, 0, len(months))
	for _, month := range slices.Sorted(maps.Keys(months)) {
		buf, err := marshalJSONL(months[month])
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive trades marshal %s: %w", month, err)
		}
		path := fmt.Sprintf("archive/trades/%s.jsonl", month)
		if err := a.upload(ctx, path, buf, "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
		}
		paths = append(paths, path)
	}

	detail := map[string]any{
		"paths":  paths,
		"count":  len(trades),
		"before": before.Format(time.RFC3339),
	}
	if a.blotter {
		report, err := marketdata.TradesCSV(trades)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive blotter: %w", err)
		}
		rpath := reportPath(before)
		if err := a.upload(ctx, rpath, report, "text/csv"); err != nil {
			return 0, fmt.Errorf("s3blob: archive blotter upload: %w", err)
		}
		detail["report"] = rpath
	}

	count := int64(len(trades))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", detail); err != nil {
			return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
		}
	}
	return count, nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte, contentType string) error {
	if mw, ok := a.writer.(multipartWriter); ok && len(buf) >= multipartThreshold {
		return mw.PutMultipart(ctx, path, bytes.NewReader(buf), contentType)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), contentType)
}

// byMonth buckets trades by the UTC year-month of their timestamp, keeping
// log order within each bucket.
func byMonth(trades []domain.Trade) map[string][]domain.Trade {
	out := make(map[string][]domain.Trade)
	for _, t := range trades {
		k := t.Timestamp.UTC().Format("2006-01")
		out[k] = append(out[k], t)
	}
	return out
}

func reportPath(before time.Time) string {
	return fmt.Sprintf("reports/trades/%s.csv", before.UTC().Format(time.DateOnly))
}

// marshalJSONL writes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
