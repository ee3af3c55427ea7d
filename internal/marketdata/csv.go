// Package marketdata turns bond spreadsheets exported as CSV into domain
// bond records, and writes the trade blotter back out in the same format.
package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// Fallbacks applied to missing or unparsable cells.
const (
	DefaultPrice     = 100.00
	DefaultFaceValue = 1000
	DefaultIssuer    = "Unknown Issuer"
	DefaultRating    = domain.RatingBBB
	DefaultSector    = domain.SectorCorporate
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

type column int

const (
	colID column = iota
	colISIN
	colIssuer
	colRating
	colCoupon
	colMaturity
	colMaturityDate
	colPrice
	colFaceValue
	colSector
	colYield
	colDuration
	numColumns
)

var headerNames = map[string]column{
	"id":            colID,
	"isin":          colISIN,
	"issuer":        colIssuer,
	"rating":        colRating,
	"coupon":        colCoupon,
	"maturity":      colMaturity,
	"maturity date": colMaturityDate,
	"price":         colPrice,
	"face value":    colFaceValue,
	"sector":        colSector,
	"yield":         colYield,
	"duration":      colDuration,
}

// ErrNoColumns is returned when the header row names none of the known
// bond columns.
var ErrNoColumns = errors.New("marketdata: header has no recognised bond columns")

// Parser reads bond CSV files. The zero value is usable and stamps missing
// maturities with the current date.
type Parser struct {
	// Now supplies the date used for rows without a maturity.
	Now func() time.Time
}

// Parse reads every data row of r. Individual rows never fail: missing or
// unparsable cells take their documented fallback. Only an unreadable file
// or an unrecognisable header is an error.
func (p Parser) Parse(r io.Reader) ([]domain.Bond, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []domain.Bond{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("marketdata: read header: %w", err)
	}

	index := mapHeader(header)
	if index == nil {
		return nil, ErrNoColumns
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	today := now().UTC().Format(time.DateOnly)

	bonds := []domain.Bond{}
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: read row %d: %w", row, err)
		}
		if blank(rec) {
			row--
			continue
		}
		bonds = append(bonds, parseRow(rec, index, row, today))
	}
	return bonds, nil
}

// mapHeader returns the record position of each known column, -1 where
// absent, or nil when no column is recognised.
func mapHeader(header []string) []int {
	index := make([]int, numColumns)
	for i := range index {
		index[i] = -1
	}
	found := false
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if c, ok := headerNames[key]; ok && index[c] < 0 {
			index[c] = i
			found = true
		}
	}
	if !found {
		return nil
	}
	return index
}

func parseRow(rec []string, index []int, row int, today string) domain.Bond {
	cell := func(c column) string {
		i := index[c]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	first := func(cs ...column) string {
		for _, c := range cs {
			if v := cell(c); v != "" {
				return v
			}
		}
		return ""
	}

	b := domain.Bond{
		ID:           first(colID, colISIN),
		Issuer:       cell(colIssuer),
		Rating:       domain.Rating(strings.ToUpper(cell(colRating))),
		Coupon:       number(cell(colCoupon), 0),
		MaturityDate: maturity(first(colMaturity, colMaturityDate), today),
		Price:        positive(cell(colPrice), DefaultPrice),
		FaceValue:    positive(cell(colFaceValue), DefaultFaceValue),
		Sector:       sector(cell(colSector)),
		Yield:        number(cell(colYield), 0),
		Duration:     number(cell(colDuration), 0),
	}
	if b.ID == "" {
		b.ID = fmt.Sprintf("IMP-%d", row)
	}
	if b.Issuer == "" {
		b.Issuer = DefaultIssuer
	}
	if !b.Rating.Valid() {
		b.Rating = DefaultRating
	}
	return b
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// number parses a numeric cell, tolerating thousands separators and
// currency or percent signs.
func number(s string, fallback float64) float64 {
	s = strings.NewReplacer(",", "", "$", "", "%", "").Replace(s)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// positive is number with zero and negatives also falling back.
func positive(s string, fallback float64) float64 {
	if v := number(s, fallback); v > 0 {
		return v
	}
	return fallback
}

// maturity normalises a maturity cell to an ISO date. Spreadsheet serial
// numbers are converted; other text is kept as written.
func maturity(s, today string) string {
	if s == "" {
		return today
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(time.DateOnly)
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2_958_466 {
		return excelEpoch.AddDate(0, 0, int(serial)).Format(time.DateOnly)
	}
	return s
}

func sector(s string) domain.Sector {
	for _, known := range []domain.Sector{domain.SectorGovernment, domain.SectorCorporate, domain.SectorMunicipal} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return DefaultSector
}
