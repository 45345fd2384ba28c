package domain

import (
	"context"
	"time"
)

// BookCache mirrors live order books for out-of-process readers.
type BookCache interface {
	SetSnapshot(ctx context.Context, key string, snap BookSnapshot) error
	GetSnapshot(ctx context.Context, key string) (BookSnapshot, error)
}

// LockManager hands out exclusive, expiring locks. unlock is safe to call
// after the lock has expired.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus carries book events (fire and forget) and the durable
// executions stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
