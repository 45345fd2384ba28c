package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// streamMaxLen is the approximate cap applied on every XADD.
const streamMaxLen int64 = 10_000

// SignalBus publishes book events over Pub/Sub and appends executions to a
// capped stream that late readers can replay with XRANGE.
type SignalBus struct {
	c *Client
}

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.Key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend stores payload under the "payload" field of a new entry.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	if err := sb.c.rdb.XAdd(ctx, streamArgs(sb.c.Key(stream), payload)).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

func streamArgs(stream string, payload []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: []any{"payload", payload},
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
