package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// JournalStore implements domain.JournalStore.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

const journalSelectCols = `id, strategy, severity, operation, price, amount, message, logged_at`

func scanJournalRows(rows pgx.Rows) ([]domain.LogRecord, error) {
	var out []domain.LogRecord
	for rows.Next() {
		var r domain.LogRecord
		var sev, op string
		if err := rows.Scan(&r.ID, &r.Strategy, &sev, &op, &r.Price, &r.Amount, &r.Message, &r.Time); err != nil {
			return nil, err
		}
		r.Severity, r.Operation = domain.Severity(sev), domain.StrategyOperation(op)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Append stores one record.
func (s *JournalStore) Append(ctx context.Context, r domain.LogRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO strategy_journal (id, strategy, severity, operation, price, amount, message, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Strategy, string(r.Severity), string(r.Operation), r.Price, r.Amount, r.Message, r.Time,
	)
	if err != nil {
		return fmt.Errorf("postgres: append journal %s: %w", r.Strategy, err)
	}
	return nil
}

// ListByStrategy returns a strategy's records, newest first.
func (s *JournalStore) ListByStrategy(ctx context.Context, strategy string, opts domain.ListOpts) ([]domain.LogRecord, error) {
	q := newListQuery(`SELECT `+journalSelectCols+` FROM strategy_journal WHERE strategy = $1`, strategy)
	q.page("logged_at", opts)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal %s: %w", strategy, err)
	}
	defer rows.Close()
	return scanJournalRows(rows)
}

// ListBefore returns up to limit records older than before, oldest first.
func (s *JournalStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.LogRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+journalSelectCols+` FROM strategy_journal WHERE logged_at < $1 ORDER BY logged_at ASC LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal before: %w", err)
	}
	defer rows.Close()
	return scanJournalRows(rows)
}

// DeleteBefore deletes records older than before.
func (s *JournalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM strategy_journal WHERE logged_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete journal before: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.JournalStore = (*JournalStore)(nil)
