package marketdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"ISIN,Issuer,Rating,Coupon,Maturity Date,Price,Face Value,Sector,Yield,Duration",
		"US912828,US Treasury,AAA,4.25,2034-11-15,987.50,1000,Government,4.41,7.9",
		",,,abc,,n/a,0,Agency,,",
		"XS123,\"Acme, Inc.\",bbb,\"5.5%\",46023,\"$1,012.25\",1000,corporate,5.1,3.2",
		",,,,,,,,,",
		"XS999,Muni,CCC,3,2031-06-01,-5,-1,Municipal,NaN,4",
	}, "\n")

	bonds, err := Parser{Now: fixedNow}.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []domain.Bond{
		{ID: "US912828", Issuer: "US Treasury", Rating: domain.RatingAAA, Coupon: 4.25, MaturityDate: "2034-11-15",
			Price: 987.5, FaceValue: 1000, Sector: domain.SectorGovernment, Yield: 4.41, Duration: 7.9},
		{ID: "IMP-1", Issuer: DefaultIssuer, Rating: DefaultRating, Coupon: 0, MaturityDate: "2025-03-14",
			Price: DefaultPrice, FaceValue: DefaultFaceValue, Sector: DefaultSector},
		{ID: "XS123", Issuer: "Acme, Inc.", Rating: domain.RatingBBB, Coupon: 5.5, MaturityDate: "2026-01-01",
			Price: 1012.25, FaceValue: 1000, Sector: domain.SectorCorporate, Yield: 5.1, Duration: 3.2},
		{ID: "XS999", Issuer: "Muni", Rating: DefaultRating, Coupon: 3, MaturityDate: "2031-06-01",
			Price: DefaultPrice, FaceValue: DefaultFaceValue, Sector: domain.SectorMunicipal, Yield: 0, Duration: 4},
	}

	if len(bonds) != len(want) {
		t.Fatalf("Parse() returned %d bonds, want %d: %+v", len(bonds), len(want), bonds)
	}
	for i := range want {
		if bonds[i] != want[i] {
			t.Errorf("bond %d = %+v\nwant       %+v", i, bonds[i], want[i])
		}
	}
}

func TestParse_HeaderVariants(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		id    string
		mat   string
	}{
		{"id preferred over isin", "ID,ISIN,Maturity\nA1,US1,2030-01-01\n", "A1", "2030-01-01"},
		{"isin when id empty", "ID,ISIN,Maturity\n,US1,2030-01-01\n", "US1", "2030-01-01"},
		{"case insensitive and bom", "\ufeffid , MATURITY DATE\nB2,2029-05-05\n", "B2", "2029-05-05"},
		{"short row", "ID,Issuer,Maturity\nC3\n", "C3", "2025-03-14"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bonds, err := Parser{Now: fixedNow}.Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(bonds) != 1 || bonds[0].ID != tc.id || bonds[0].MaturityDate != tc.mat {
				t.Errorf("Parse() = %+v, want id %s maturity %s", bonds, tc.id, tc.mat)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := (Parser{}).Parse(strings.NewReader("foo,bar\n1,2\n")); !errors.Is(err, ErrNoColumns) {
		t.Errorf("unknown header error = %v, want ErrNoColumns", err)
	}
	bonds, err := Parser{}.Parse(strings.NewReader(""))
	if err != nil || len(bonds) != 0 {
		t.Errorf("empty input = %v, %v", bonds, err)
	}
	if _, err := (Parser{}).Parse(strings.NewReader("ID,Issuer\n\"unterminated\n")); err == nil {
		t.Error("malformed quoting should fail")
	}
}

func TestTradesCSV(t *testing.T) {
	pnl := 100.0
	trades := []domain.Trade{
		{ID: "t1", BondID: "X", Side: domain.TradeSideBuy, Quantity: 10, Price: 100, Timestamp: fixedNow()},
		{ID: "t2", BondID: "X", Side: domain.TradeSideSell, Quantity: 5, Price: 120, Timestamp: fixedNow(), RealizedPnL: &pnl},
	}

	out, err := TradesCSV(trades)
	if err != nil {
		t.Fatalf("TradesCSV() error = %v", err)
	}
	want := "id,timestamp,bond_id,side,quantity,price,notional,realized_pnl\n" +
		"t1,2025-03-14T09:00:00Z,X,BUY,10,100,1000,\n" +
		"t2,2025-03-14T09:00:00Z,X,SELL,5,120,600,100\n"
	if string(out) != want {
		t.Errorf("TradesCSV() =\n%s\nwant\n%s", out, want)
	}
}

type fakeBlobReader struct {
	data map[string][]byte
}

func (f fakeBlobReader) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := f.data[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestBlobSource(t *testing.T) {
	reader := fakeBlobReader{data: map[string][]byte{
		"market/bonds.csv": []byte("ID,Issuer,Price\nA,Alpha,101.5\n"),
	}}

	bonds, err := BlobSource{Reader: reader, Path: "market/bonds.csv", Parser: Parser{Now: fixedNow}}.LoadBonds(context.Background())
	if err != nil {
		t.Fatalf("LoadBonds() error = %v", err)
	}
	if len(bonds) != 1 || bonds[0].Issuer != "Alpha" || bonds[0].Price != 101.5 {
		t.Errorf("LoadBonds() = %+v", bonds)
	}

	_, err = BlobSource{Reader: reader, Path: "missing.csv"}.LoadBonds(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing object error = %v, want ErrNotFound", err)
	}
}
