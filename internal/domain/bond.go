package domain

// Rating is an issuer credit rating bucket.
type Rating string

const (
	RatingAAA Rating = "AAA"
	RatingAA  Rating = "AA"
	RatingA   Rating = "A"
	RatingBBB Rating = "BBB"
	RatingBB  Rating = "BB"
	RatingB   Rating = "B"
)

// Valid reports whether r is one of the known rating buckets.
func (r Rating) Valid() bool {
	switch r {
	case RatingAAA, RatingAA, RatingA, RatingBBB, RatingBB, RatingB:
		return true
	default:
		return false
	}
}

// Sector classifies the issuer.
type Sector string

const (
	SectorGovernment Sector = "Government"
	SectorCorporate  Sector = "Corporate"
	SectorMunicipal  Sector = "Municipal"
)

// Valid reports whether s is one of the known sectors.
func (s Sector) Valid() bool {
	switch s {
	case SectorGovernment, SectorCorporate, SectorMunicipal:
		return true
	default:
		return false
	}
}

// Bond is a market-data record as supplied by a market-data source.
// Coupon, Yield are in percent; Price and FaceValue are currency per unit.
type Bond struct {
	ID           string  `json:"id"`
	Issuer       string  `json:"issuer"`
	Rating       Rating  `json:"rating"`
	Coupon       float64 `json:"coupon"`
	MaturityDate string  `json:"maturity_date"`
	Price        float64 `json:"price"`
	FaceValue    float64 `json:"face_value"`
	Sector       Sector  `json:"sector"`
	Yield        float64 `json:"yield"`
	Duration     float64 `json:"duration"`
}

// BondTerms identifies an instrument for pricing purposes.
type BondTerms struct {
	FaceValue       float64 `json:"face_value"`
	CouponRate      float64 `json:"coupon_rate"` // annual, fraction (0.05 = 5%)
	YearsToMaturity float64 `json:"years_to_maturity"`
	Frequency       int     `json:"frequency"` // coupon periods per year
}

// Periods returns the (possibly fractional) number of coupon periods.
func (t BondTerms) Periods() float64 {
	return t.YearsToMaturity * float64(t.Frequency)
}

// Quotes maps a bond ID to a caller-supplied price-at-query.
type Quotes map[string]float64
