package domain

import "context"

// SnapshotStore persists the ledger state between sessions.
//
// Load never fails on absent or corrupt keys; each part falls back to its
// default independently. Save writes all parts or none.
type SnapshotStore interface {
	Load(ctx context.Context) (LedgerState, error)
	Save(ctx context.Context, state LedgerState) error
}

// BondSource supplies market-data records.
type BondSource interface {
	LoadBonds(ctx context.Context) ([]Bond, error)
}

// BondStore is a writable bond catalog.
type BondStore interface {
	BondSource
	UpsertBatch(ctx context.Context, bonds []Bond) error
	GetByID(ctx context.Context, id string) (Bond, error)
}

// AuditLog records notable ledger and catalog events.
type AuditLog interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
