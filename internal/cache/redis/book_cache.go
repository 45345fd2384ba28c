package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// BookCache implements domain.BookCache with a sorted set of prices and a
// hash of amounts per side. Prices and amounts are stored as decimal
// strings; the sorted-set score is only used for ordering.
//
// Key schema, per "exchange:ticker" key:
//
//	book:{key}:bid / book:{key}:ask           sorted set of prices
//	book:{key}:bid:amt / book:{key}:ask:amt   hash price -> amount
//	book:{key}:bbo                            hash "bid", "ask"
//	book:{key}:meta                           hash "ts", "seq"
type BookCache struct {
	c *Client
}

// NewBookCache creates a BookCache.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{c: c}
}

type bookKeys struct {
	bids, asks, bidAmt, askAmt, bbo, meta string
}

func (bc *BookCache) keys(key string) bookKeys {
	p := bc.c.Key("book:" + key)
	return bookKeys{
		bids:   p + ":bid",
		asks:   p + ":ask",
		bidAmt: p + ":bid:amt",
		askAmt: p + ":ask:amt",
		bbo:    p + ":bbo",
		meta:   p + ":meta",
	}
}

// SetSnapshot atomically replaces the book stored under key.
func (bc *BookCache) SetSnapshot(ctx context.Context, key string, snap domain.BookSnapshot) error {
	k := bc.keys(key)
	pipe := bc.c.rdb.TxPipeline()
	pipe.Del(ctx, k.bids, k.asks, k.bidAmt, k.askAmt, k.bbo, k.meta)
	for _, lvl := range snap.Bids {
		p := lvl.Price.String()
		pipe.ZAdd(ctx, k.bids, redis.Z{Score: lvl.Price.InexactFloat64(), Member: p})
		pipe.HSet(ctx, k.bidAmt, p, lvl.Amount.String())
	}
	for _, lvl := range snap.Asks {
		p := lvl.Price.String()
		pipe.ZAdd(ctx, k.asks, redis.Z{Score: lvl.Price.InexactFloat64(), Member: p})
		pipe.HSet(ctx, k.askAmt, p, lvl.Amount.String())
	}
	if snap.BestBid.IsPositive() {
		pipe.HSet(ctx, k.bbo, "bid", snap.BestBid.String())
	}
	if snap.BestAsk.IsPositive() {
		pipe.HSet(ctx, k.bbo, "ask", snap.BestAsk.String())
	}
	pipe.HSet(ctx, k.meta,
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
		"seq", strconv.FormatInt(snap.Seq, 10),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book snapshot %s: %w", key, err)
	}
	return nil
}

// GetSnapshot reads the book stored under key, or domain.ErrNotFound.
func (bc *BookCache) GetSnapshot(ctx context.Context, key string) (domain.BookSnapshot, error) {
	k := bc.keys(key)
	pipe := bc.c.rdb.Pipeline()
	bidsCmd := pipe.ZRevRange(ctx, k.bids, 0, -1)
	asksCmd := pipe.ZRange(ctx, k.asks, 0, -1)
	bidAmtCmd := pipe.HGetAll(ctx, k.bidAmt)
	askAmtCmd := pipe.HGetAll(ctx, k.askAmt)
	bboCmd := pipe.HGetAll(ctx, k.bbo)
	metaCmd := pipe.HGetAll(ctx, k.meta)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.BookSnapshot{}, fmt.Errorf("redis: get book snapshot %s: %w", key, err)
	}

	meta := metaCmd.Val()
	if len(meta) == 0 {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}
	snap := domain.BookSnapshot{
		Bids: levels(bidsCmd.Val(), bidAmtCmd.Val()),
		Asks: levels(asksCmd.Val(), askAmtCmd.Val()),
	}
	snap.Exchange, snap.Ticker = splitKey(key)
	if ns, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		snap.Timestamp = time.Unix(0, ns).UTC()
	}
	snap.Seq, _ = strconv.ParseInt(meta["seq"], 10, 64)
	bbo := bboCmd.Val()
	snap.BestBid = parseDecimal(bbo["bid"])
	snap.BestAsk = parseDecimal(bbo["ask"])
	return snap, nil
}

// levels pairs ordered prices with their amounts. Prices missing from the
// amount hash are dropped.
func levels(prices []string, amounts map[string]string) []domain.Level {
	out := make([]domain.Level, 0, len(prices))
	for _, p := range prices {
		a, ok := amounts[p]
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(p)
		if err != nil {
			continue
		}
		out = append(out, domain.Level{Price: price, Amount: parseDecimal(a)})
	}
	return out
}

func parseDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// splitKey splits "exchange:ticker".
func splitKey(key string) (exchange, ticker string) {
	exchange, ticker, ok := strings.Cut(key, ":")
	if !ok {
		return "", key
	}
	return exchange, ticker
}

var _ domain.BookCache = (*BookCache)(nil)
