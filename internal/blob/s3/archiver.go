package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

const (
	defaultBatchSize = 5000
	jsonlContentType = "application/x-ndjson"

	// Batches above this size go through the multipart uploader.
	multipartThreshold = 2 * minPartSize
)

// Archiver implements domain.Archiver. Rows older than the cutoff are read
// in batches, written as one JSONL object per batch, verified, audited and
// only then deleted from the database.
type Archiver struct {
	objects   domain.ObjectStore
	execs     domain.ExecutionStore
	journal   domain.JournalStore
	audit     domain.AuditStore
	batchSize int
}

// NewArchiver creates an Archiver. journal and audit may be nil.
func NewArchiver(objects domain.ObjectStore, execs domain.ExecutionStore, journal domain.JournalStore, audit domain.AuditStore, batchSize int) *Archiver {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Archiver{objects: objects, execs: execs, journal: journal, audit: audit, batchSize: batchSize}
}

// ArchiveExecutions moves executions older than before to
// archive/executions/YYYY-MM/<unix-nanos>.jsonl.
func (a *Archiver) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	if a.execs == nil {
		return 0, nil
	}
	return archive(ctx, a, "executions", before,
		func(ctx context.Context) ([]domain.Execution, error) { return a.execs.ListBefore(ctx, before, a.batchSize) },
		func(e domain.Execution) time.Time { return e.Time },
		a.execs.DeleteBefore,
	)
}

// ArchiveJournal moves journal records older than before to
// archive/journal/YYYY-MM/<unix-nanos>.jsonl.
func (a *Archiver) ArchiveJournal(ctx context.Context, before time.Time) (int64, error) {
	if a.journal == nil {
		return 0, nil
	}
	return archive(ctx, a, "journal", before,
		func(ctx context.Context) ([]domain.LogRecord, error) { return a.journal.ListBefore(ctx, before, a.batchSize) },
		func(r domain.LogRecord) time.Time { return r.Time },
		a.journal.DeleteBefore,
	)
}

// archive drains rows older than before batch by batch. A full batch is
// deleted only up to (excluding) its newest timestamp; rows sharing that
// timestamp are read again with the next batch, so nothing is deleted
// unwritten.
func archive[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	list func(context.Context) ([]T, error),
	stamp func(T) time.Time,
	deleteBefore func(context.Context, time.Time) (int64, error),
) (int64, error) {
	var total int64
	for {
		rows, err := list(ctx)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s query: %w", kind, err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		first, last := stamp(rows[0]), stamp(rows[len(rows)-1])
		path := archivePath(kind, first)
		buf, err := marshalJSONL(rows)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
		}
		if err := a.upload(ctx, path, buf); err != nil {
			return total, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
		}
		if ok, err := a.objects.Exists(ctx, path); err != nil || !ok {
			return total, fmt.Errorf("s3blob: archive %s verify %s: exists=%v: %w", kind, path, ok, err)
		}

		var cutoff time.Time
		switch {
		case len(rows) < a.batchSize:
			cutoff = before
		case last.After(first):
			cutoff = last
		default:
			return total, fmt.Errorf("s3blob: archive %s: %d rows share timestamp %s, raise the batch size", kind, len(rows), first.Format(time.RFC3339Nano))
		}
		deleted, err := deleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s delete: %w", kind, err)
		}
		total += deleted

		if a.audit != nil {
			if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
				"path":    path,
				"count":   len(rows),
				"deleted": deleted,
				"from":    first.Format(time.RFC3339Nano),
				"to":      last.Format(time.RFC3339Nano),
			}); err != nil {
				return total, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
			}
		}
		if len(rows) < a.batchSize {
			return total, nil
		}
	}
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) > multipartThreshold {
		return a.objects.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.objects.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
}

// archivePath partitions by the month of the batch's first row.
//
//	archive/executions/2025-01/1735689600000000000.jsonl
func archivePath(kind string, first time.Time) string {
	first = first.UTC()
	return fmt.Sprintf("archive/%s/%s/%d.jsonl", kind, first.Format("2006-01"), first.UnixNano())
}

// marshalJSONL encodes one compact JSON value per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
