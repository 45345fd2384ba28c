package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// AuditStore is the append-only audit_log table. App startup and every
// archive run write here.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends one event. pgx encodes detail as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detail,
	); err != nil {
		return fmt.Errorf("postgres: audit %s: %w", event, err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	q := newListQuery(`SELECT id, event, detail, created_at FROM audit_log WHERE TRUE`)
	q.page("created_at", opts)

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.AuditEntry])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit: %w", err)
	}
	return entries, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
