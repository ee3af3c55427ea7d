package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore implements domain.AuditLog on the audit_log table.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const insertAudit = `INSERT INTO audit_log (event, detail) VALUES (@event, @detail)`

// Log appends event with detail stored as JSONB. A nil detail is stored as
// an empty object.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: audit %s: marshal detail: %w", event, err)
	}
	if _, err := s.pool.Exec(ctx, insertAudit, pgx.NamedArgs{"event": event, "detail": raw}); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}
