package domain

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the cold storage archived rows are written to.
type ObjectStore interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	// PutMultipart streams large objects in parts of at least partSize bytes.
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves old rows from the database to cold storage and returns how
// many were removed.
type Archiver interface {
	ArchiveExecutions(ctx context.Context, before time.Time) (int64, error)
	ArchiveJournal(ctx context.Context, before time.Time) (int64, error)
}
