package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

type memBookCache struct {
	mu    sync.Mutex
	snaps map[string]domain.BookSnapshot
	down  error
}

func (c *memBookCache) SetSnapshot(_ context.Context, key string, snap domain.BookSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down != nil {
		return c.down
	}
	if c.snaps == nil {
		c.snaps = make(map[string]domain.BookSnapshot)
	}
	c.snaps[key] = snap
	return nil
}

func (c *memBookCache) GetSnapshot(_ context.Context, key string) (domain.BookSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[key]
	if !ok {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func TestBookPublisherPublishesChangedBooksOnly(t *testing.T) {
	reg := market.NewRegistry()
	tk := newTicker()
	require.NoError(t, reg.Add(tk))
	cache := &memBookCache{}
	bus := &memBus{}
	p := NewBookPublisher(reg, cache, bus, time.Second, 10, testLogger())

	assert.Equal(t, 0, p.PublishOnce(context.Background()))

	require.NoError(t, tk.Book().ApplyIncrementalUpdate(domain.BookSideBid, d("9"), d("1")))
	assert.Equal(t, 1, p.PublishOnce(context.Background()))
	assert.Equal(t, 0, p.PublishOnce(context.Background()))

	// a snapshot leaves the book clean but bumps its version
	require.NoError(t, tk.Book().ApplySnapshot(domain.Snapshot{Asks: []domain.Level{lv("11", "1")}}))
	assert.Equal(t, 1, p.PublishOnce(context.Background()))

	snap, err := cache.GetSnapshot(context.Background(), "bittrex:BTC-ETH")
	require.NoError(t, err)
	assert.True(t, snap.BestAsk.Equal(d("11")))
	assert.Empty(t, snap.Bids)

	require.Len(t, bus.published[BooksChannel], 2)
	var ev bookEvent
	require.NoError(t, json.Unmarshal(bus.published[BooksChannel][1], &ev))
	assert.Equal(t, "book_update", ev.Event)
	assert.Equal(t, "11", ev.BestAsk)
}

func TestBookPublisherRetriesAfterCacheFailure(t *testing.T) {
	reg := market.NewRegistry()
	tk := newTicker()
	require.NoError(t, reg.Add(tk))
	cache := &memBookCache{down: errors.New("connection refused")}
	bus := &memBus{}
	p := NewBookPublisher(reg, cache, bus, time.Second, 10, testLogger())
	ctx := context.Background()

	require.NoError(t, tk.Book().ApplyIncrementalUpdate(domain.BookSideBid, d("9"), d("1")))
	assert.Equal(t, 0, p.PublishOnce(ctx))
	assert.True(t, tk.Book().IsDirty())
	assert.Empty(t, bus.published[BooksChannel])

	cache.mu.Lock()
	cache.down = nil
	cache.mu.Unlock()
	assert.Equal(t, 1, p.PublishOnce(ctx))

	snap, err := cache.GetSnapshot(ctx, "bittrex:BTC-ETH")
	require.NoError(t, err)
	assert.True(t, snap.BestBid.Equal(d("9")))
	assert.Len(t, bus.published[BooksChannel], 1)
	assert.Equal(t, 0, p.PublishOnce(ctx))
}
