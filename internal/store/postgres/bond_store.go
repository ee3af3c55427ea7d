package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// BondStore implements domain.BondStore on the bonds table.
type BondStore struct {
	pool *pgxpool.Pool
}

// NewBondStore creates a BondStore backed by pool.
func NewBondStore(pool *pgxpool.Pool) *BondStore {
	return &BondStore{pool: pool}
}

const bondCols = `id, issuer, rating, coupon, maturity_date, price,
	face_value, sector, yield, duration`

const upsertBond = `
	INSERT INTO bonds (` + bondCols + `, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	ON CONFLICT (id) DO UPDATE SET
		issuer        = EXCLUDED.issuer,
		rating        = EXCLUDED.rating,
		coupon        = EXCLUDED.coupon,
		maturity_date = EXCLUDED.maturity_date,
		price         = EXCLUDED.price,
		face_value    = EXCLUDED.face_value,
		sector        = EXCLUDED.sector,
		yield         = EXCLUDED.yield,
		duration      = EXCLUDED.duration,
		updated_at    = NOW()`

// UpsertBatch inserts or updates bonds in a single round trip.
func (s *BondStore) UpsertBatch(ctx context.Context, bonds []domain.Bond) error {
	if len(bonds) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range bonds {
		batch.Queue(upsertBond,
			b.ID, b.Issuer, string(b.Rating), b.Coupon, b.MaturityDate,
			b.Price, b.FaceValue, string(b.Sector), b.Yield, b.Duration,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range bonds {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert bond batch item %d (%s): %w", i, bonds[i].ID, err)
		}
	}
	return nil
}

// GetByID returns one bond, or domain.ErrNotFound.
func (s *BondStore) GetByID(ctx context.Context, id string) (domain.Bond, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bondCols+` FROM bonds WHERE id = $1`, id)
	b, err := scanBond(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bond{}, fmt.Errorf("postgres: get bond %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Bond{}, fmt.Errorf("postgres: get bond %s: %w", id, err)
	}
	return b, nil
}

// LoadBonds implements domain.BondSource, returning the catalog ordered by
// maturity.
func (s *BondStore) LoadBonds(ctx context.Context) ([]domain.Bond, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+bondCols+` FROM bonds ORDER BY maturity_date, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bonds: %w", err)
	}
	defer rows.Close()

	bonds := []domain.Bond{}
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bond: %w", err)
		}
		bonds = append(bonds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load bonds: %w", err)
	}
	return bonds, nil
}

func scanBond(row pgx.Row) (domain.Bond, error) {
	var b domain.Bond
	var rating, sector string
	err := row.Scan(
		&b.ID, &b.Issuer, &rating, &b.Coupon, &b.MaturityDate, &b.Price,
		&b.FaceValue, &sector, &b.Yield, &b.Duration,
	)
	if err != nil {
		return domain.Bond{}, err
	}
	b.Rating = domain.Rating(rating)
	b.Sector = domain.Sector(sector)
	return b, nil
}
