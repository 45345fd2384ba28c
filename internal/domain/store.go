package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ExecutionStore persists trading results.
type ExecutionStore interface {
	Insert(ctx context.Context, exec Execution) error
	InsertBatch(ctx context.Context, execs []Execution) error
	ListByStrategy(ctx context.Context, strategy string, opts ListOpts) ([]Execution, error)
	List(ctx context.Context, opts ListOpts) ([]Execution, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Execution, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// JournalStore persists strategy log records.
type JournalStore interface {
	Append(ctx context.Context, rec LogRecord) error
	ListByStrategy(ctx context.Context, strategy string, opts ListOpts) ([]LogRecord, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]LogRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id" db:"id"`
	Event     string         `json:"event" db:"event"`
	Detail    map[string]any `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
