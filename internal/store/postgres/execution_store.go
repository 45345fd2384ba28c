package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, strategy, exchange, ticker, order_id, side, order_type,
	price, amount, total, fee, demo, executed_at`

const insertExecution = `
	INSERT INTO executions (
		id, strategy, exchange, ticker, order_id, side, order_type,
		price, amount, total, fee, demo, executed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO NOTHING`

func executionArgs(e domain.Execution) []any {
	return []any{
		e.ID, e.Strategy, e.Exchange, e.Ticker, e.OrderID, string(e.Side), string(e.Type),
		e.Price, e.Amount, e.Total, e.Fee, e.Demo, e.Time,
	}
}

func scanExecutionRows(rows pgx.Rows) ([]domain.Execution, error) {
	var out []domain.Execution
	for rows.Next() {
		var e domain.Execution
		var side, typ string
		if err := rows.Scan(
			&e.ID, &e.Strategy, &e.Exchange, &e.Ticker, &e.OrderID, &side, &typ,
			&e.Price, &e.Amount, &e.Total, &e.Fee, &e.Demo, &e.Time,
		); err != nil {
			return nil, err
		}
		e.Side, e.Type = domain.OrderSide(side), domain.OrderType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insert stores one execution. Re-inserting the same id is a no-op.
func (s *ExecutionStore) Insert(ctx context.Context, e domain.Execution) error {
	if _, err := s.pool.Exec(ctx, insertExecution, executionArgs(e)...); err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", e.ID, err)
	}
	return nil
}

// InsertBatch stores several executions in one round trip.
func (s *ExecutionStore) InsertBatch(ctx context.Context, execs []domain.Execution) error {
	if len(execs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range execs {
		batch.Queue(insertExecution, executionArgs(e)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range execs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert execution batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByStrategy returns a strategy's executions, newest first.
func (s *ExecutionStore) ListByStrategy(ctx context.Context, strategy string, opts domain.ListOpts) ([]domain.Execution, error) {
	q := newListQuery(`SELECT `+executionSelectCols+` FROM executions WHERE strategy = $1`, strategy)
	q.page("executed_at", opts)
	return s.query(ctx, "list executions by strategy", q)
}

// List returns all executions, newest first.
func (s *ExecutionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Execution, error) {
	q := newListQuery(`SELECT ` + executionSelectCols + ` FROM executions WHERE TRUE`)
	q.page("executed_at", opts)
	return s.query(ctx, "list executions", q)
}

// ListBefore returns up to limit executions older than before, oldest first.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions WHERE executed_at < $1 ORDER BY executed_at ASC LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before: %w", err)
	}
	defer rows.Close()
	return scanExecutionRows(rows)
}

// DeleteBefore deletes executions older than before.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *ExecutionStore) query(ctx context.Context, op string, q *listQuery) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()
	out, err := scanExecutionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan %s: %w", op, err)
	}
	return out, nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
