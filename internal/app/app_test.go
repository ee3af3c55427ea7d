package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/config"
	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/marketdata"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memBonds struct {
	upserted []domain.Bond
}

func (m *memBonds) LoadBonds(context.Context) ([]domain.Bond, error) { return m.upserted, nil }

func (m *memBonds) UpsertBatch(_ context.Context, bonds []domain.Bond) error {
	m.upserted = append(m.upserted, bonds...)
	return nil
}

func (m *memBonds) GetByID(_ context.Context, id string) (domain.Bond, error) {
	for _, b := range m.upserted {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bond{}, domain.ErrNotFound
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type memSnapshots struct {
	state domain.LedgerState
}

func (m *memSnapshots) Load(context.Context) (domain.LedgerState, error) { return m.state, nil }

func (m *memSnapshots) Save(_ context.Context, state domain.LedgerState) error {
	m.state = state
	return nil
}

type memWriter struct {
	mu    sync.Mutex
	paths []string
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if _, err := io.ReadAll(data); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	return nil
}

func testDeps() *Dependencies {
	return &Dependencies{
		Metrics:  metrics.New(),
		Notifier: notify.NewNotifier(nil, nil, discardLogger()),
	}
}

func TestBondSource(t *testing.T) {
	bonds := &memBonds{}
	withAll := &Dependencies{Bonds: bonds, BlobReader: nilReader{}}

	testCases := []struct {
		name    string
		cfg     config.MarketConfig
		deps    *Dependencies
		want    any
		wantErr bool
	}{
		{name: "csv", cfg: config.MarketConfig{Source: config.SourceCSV, Path: "bonds.csv"}, deps: &Dependencies{},
			want: marketdata.FileSource{Path: "bonds.csv"}},
		{name: "s3", cfg: config.MarketConfig{Source: config.SourceS3, Key: "market/bonds.csv"}, deps: withAll,
			want: marketdata.BlobSource{Reader: nilReader{}, Path: "market/bonds.csv"}},
		{name: "postgres", cfg: config.MarketConfig{Source: config.SourcePostgres}, deps: withAll, want: bonds},
		{name: "s3 disabled", cfg: config.MarketConfig{Source: config.SourceS3}, deps: &Dependencies{}, wantErr: true},
		{name: "postgres disabled", cfg: config.MarketConfig{Source: config.SourcePostgres}, deps: &Dependencies{}, wantErr: true},
		{name: "unknown", cfg: config.MarketConfig{Source: "ftp"}, deps: withAll, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bondSource(tc.cfg, tc.deps)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("bondSource() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("bondSource() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("bondSource() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

type nilReader struct{}

func (nilReader) Get(context.Context, string) (io.ReadCloser, error) { return nil, domain.ErrNotFound }

func TestArchiveCutoff(t *testing.T) {
	now := time.Date(2025, 3, 14, 17, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := archiveCutoff(config.ArchiveConfig{RetentionDays: 30}, now)
	want := time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("archiveCutoff() = %v, want %v", got, want)
	}
}

func TestImportMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonds.csv")
	csv := strings.Join([]string{
		"ISIN,Issuer,Rating,Coupon,Maturity Date,Price,Face Value,Sector,Yield,Duration",
		"US912828,US Treasury,AAA,4.25,2034-11-15,987.50,1000,Government,4.41,7.9",
		"XS123,Acme,BBB,5.5,2030-01-01,1012.25,1000,Corporate,5.1,3.2",
	}, "\n")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.Market.Source = config.SourceCSV
	cfg.Market.Path = path

	bonds := &memBonds{}
	audit := &memAudit{}
	deps := testDeps()
	deps.Bonds = bonds
	deps.Audit = audit

	if err := New(&cfg, discardLogger()).ImportMode(context.Background(), deps); err != nil {
		t.Fatalf("ImportMode() error = %v", err)
	}
	if len(bonds.upserted) != 2 {
		t.Fatalf("upserted %d bonds, want 2", len(bonds.upserted))
	}
	if len(audit.events) != 1 || audit.events[0] != "catalog.import" {
		t.Errorf("audit events = %v, want [catalog.import]", audit.events)
	}
}

func TestImportModeNeedsPostgres(t *testing.T) {
	cfg := config.Defaults()
	err := New(&cfg, discardLogger()).ImportMode(context.Background(), testDeps())
	if err == nil {
		t.Fatal("ImportMode() error = nil, want error")
	}
}

func TestArchiveMode(t *testing.T) {
	old := time.Now().AddDate(0, 0, -90)
	recent := time.Now()
	snapshots := &memSnapshots{state: domain.LedgerState{
		Cash: 990_000,
		Positions: []domain.Position{
			{BondID: "B1", Quantity: 10, AverageCost: 1000, LastPrice: 1000},
		},
		Trades: []domain.Trade{
			{ID: "t1", BondID: "B1", Side: domain.TradeSideBuy, Quantity: 10, Price: 1000, Timestamp: old},
			{ID: "t2", BondID: "B1", Side: domain.TradeSideBuy, Quantity: 5, Price: 1000, Timestamp: recent},
			{ID: "t3", BondID: "B1", Side: domain.TradeSideSell, Quantity: 5, Price: 1000, Timestamp: recent},
		},
	}}

	cfg := config.Defaults()
	writer := &memWriter{}
	audit := &memAudit{}
	deps := testDeps()
	deps.Snapshots = snapshots
	deps.BlobWriter = writer
	deps.Audit = audit

	if err := New(&cfg, discardLogger()).ArchiveMode(context.Background(), deps); err != nil {
		t.Fatalf("ArchiveMode() error = %v", err)
	}

	wantPaths := 1
	if cfg.Archive.Blotter {
		wantPaths = 2
	}
	if len(writer.paths) != wantPaths {
		t.Fatalf("wrote %v, want %d objects", writer.paths, wantPaths)
	}
	if want := "archive/trades/" + old.UTC().Format("2006-01") + ".jsonl"; writer.paths[0] != want {
		t.Errorf("archive path = %q, want %q", writer.paths[0], want)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.trades" {
		t.Errorf("audit events = %v, want [archive.trades]", audit.events)
	}
}

func TestArchiveModeNeedsS3(t *testing.T) {
	cfg := config.Defaults()
	err := New(&cfg, discardLogger()).ArchiveMode(context.Background(), testDeps())
	if err == nil {
		t.Fatal("ArchiveMode() error = nil, want error")
	}
}
