package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

// BooksChannel is the signal bus channel carrying book update events.
const BooksChannel = "books"

type bookEvent struct {
	Event     string `json:"event"`
	Ticker    string `json:"ticker"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"`
}

// BookPublisher mirrors changed books to the book cache and announces them
// on the signal bus. Either sink may be nil.
type BookPublisher struct {
	registry *market.Registry
	cache    domain.BookCache
	bus      domain.SignalBus
	interval time.Duration
	depth    int
	logger   *slog.Logger

	versions map[string]uint64
}

// NewBookPublisher creates a publisher that checks every interval and
// mirrors at most depth levels per side.
func NewBookPublisher(registry *market.Registry, cache domain.BookCache, bus domain.SignalBus, interval time.Duration, depth int, logger *slog.Logger) *BookPublisher {
	if interval <= 0 {
		interval = time.Second
	}
	return &BookPublisher{
		registry: registry,
		cache:    cache,
		bus:      bus,
		interval: interval,
		depth:    depth,
		logger:   logger.With(slog.String("component", "book_publisher")),
		versions: make(map[string]uint64),
	}
}

// Run publishes until ctx is cancelled.
func (p *BookPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.logger.Info("book publisher started", slog.Duration("interval", p.interval))
	defer p.logger.Info("book publisher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PublishOnce(ctx)
		}
	}
}

// PublishOnce mirrors every book that changed since the previous call and
// returns how many were published. A book whose cache write fails is kept
// dirty and retried on the next call.
func (p *BookPublisher) PublishOnce(ctx context.Context) int {
	n := 0
	for _, t := range p.registry.All() {
		key := t.Info().String()
		book := t.Book()
		v := book.Version()
		dirty := book.TakeDirty()
		if !dirty && v == p.versions[key] {
			continue
		}

		snap := t.BookSnapshot(p.depth)
		if p.cache != nil {
			if err := p.cache.SetSnapshot(ctx, key, snap); err != nil {
				p.logger.WarnContext(ctx, "book cache update failed",
					slog.String("ticker", key),
					slog.String("error", err.Error()),
				)
				book.MarkDirty()
				continue
			}
		}
		p.versions[key] = v
		p.announce(ctx, key, snap)
		n++
	}
	return n
}

func (p *BookPublisher) announce(ctx context.Context, key string, snap domain.BookSnapshot) {
	if p.bus == nil {
		return
	}
	evt, err := json.Marshal(bookEvent{
		Event:     "book_update",
		Ticker:    key,
		BestBid:   snap.BestBid.String(),
		BestAsk:   snap.BestAsk.String(),
		Seq:       snap.Seq,
		Timestamp: snap.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal book update",
			slog.String("ticker", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, BooksChannel, evt); err != nil {
		p.logger.WarnContext(ctx, "publish book update failed",
			slog.String("ticker", key),
			slog.String("error", err.Error()),
		)
	}
}
