package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBond(id string, price float64) domain.Bond {
	return domain.Bond{
		ID:           id,
		Issuer:       "Issuer " + id,
		Rating:       domain.RatingA,
		Coupon:       5,
		MaturityDate: "2030-01-01",
		Price:        price,
		FaceValue:    1000,
		Sector:       domain.SectorCorporate,
		Yield:        5,
		Duration:     4.4,
	}
}

type fakeSource struct {
	bonds []domain.Bond
	err   error
}

func (f *fakeSource) LoadBonds(context.Context) ([]domain.Bond, error) {
	return f.bonds, f.err
}

type fakeBondStore struct {
	fakeSource
	upserted []domain.Bond
	err      error
}

func (f *fakeBondStore) UpsertBatch(_ context.Context, bonds []domain.Bond) error {
	f.upserted = append(f.upserted, bonds...)
	return f.err
}

func (f *fakeBondStore) GetByID(_ context.Context, id string) (domain.Bond, error) {
	for _, b := range f.upserted {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bond{}, domain.ErrNotFound
}

type fakeSnapshots struct {
	mu    sync.Mutex
	state domain.LedgerState
	saves int
	err   error
}

func (f *fakeSnapshots) Load(context.Context) (domain.LedgerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeSnapshots) Save(_ context.Context, state domain.LedgerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.state = state
	f.saves++
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.messages == nil {
		f.messages = map[string][][]byte{}
	}
	f.messages[channel] = append(f.messages[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeAudit struct {
	events []string
	detail []map[string]any
}

func (f *fakeAudit) Log(_ context.Context, event string, detail map[string]any) error {
	f.events = append(f.events, event)
	f.detail = append(f.detail, detail)
	return nil
}
