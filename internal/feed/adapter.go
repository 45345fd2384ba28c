// Package feed turns exchange market data into order book state.
package feed

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
	"github.com/alanyoungcy/tickerbot/internal/orderbook"
)

// Adapter applies normalized updates and snapshots to tickers.
type Adapter struct {
	codec  Codec
	logger *slog.Logger
}

// NewAdapter creates an Adapter decoding raw snapshots with codec.
func NewAdapter(codec Codec, logger *slog.Logger) *Adapter {
	return &Adapter{
		codec:  codec,
		logger: logger.With(slog.String("component", "feed_adapter")),
	}
}

// Update applies one incremental update to t: bids, then asks, then trades,
// each in received order, followed by a single "updated" notification.
//
// Sequenced updates (Seq != 0) are checked against the last applied
// sequence: an update at or below it is dropped with ErrStaleUpdate, one
// that skips ahead is refused with ErrSequenceGap and the caller is
// expected to resynchronize from a snapshot. Nothing is applied on error.
func (a *Adapter) Update(t *market.Ticker, u domain.IncrementalUpdate) error {
	if err := validateUpdate(u); err != nil {
		return fmt.Errorf("feed: update %s: %w", t.Info(), err)
	}

	err := t.Book().Update(func(batch *orderbook.Batch) error {
		if err := checkSeq(batch.Seq(), u.Seq); err != nil {
			return err
		}
		for _, l := range u.Bids {
			if err := batch.Set(domain.BookSideBid, l.Price, l.Amount); err != nil {
				return err
			}
		}
		for _, l := range u.Asks {
			if err := batch.Set(domain.BookSideAsk, l.Price, l.Amount); err != nil {
				return err
			}
		}
		batch.SetSeq(u.Seq)
		return nil
	})
	if err != nil {
		return fmt.Errorf("feed: update %s seq %d: %w", t.Info(), u.Seq, err)
	}

	if len(u.Trades) > 0 {
		t.History().Prepend(u.Trades...)
		candles := t.Candles()
		for _, tr := range u.Trades {
			candles.AddTrade(tr)
		}
	}
	t.RaiseUpdated()
	return nil
}

// ApplySnapshot decodes raw with the adapter's codec and replaces the book
// and trade history of t.
func (a *Adapter) ApplySnapshot(raw []byte, t *market.Ticker) error {
	snap, err := a.codec.DecodeSnapshot(raw)
	if err != nil {
		return fmt.Errorf("feed: snapshot %s: %w", t.Info(), err)
	}
	return a.ApplySnapshotInfo(t, snap)
}

// ApplySnapshotInfo replaces the book and trade history of t with snap.
func (a *Adapter) ApplySnapshotInfo(t *market.Ticker, snap domain.Snapshot) error {
	if err := t.Book().ApplySnapshot(snap); err != nil {
		return fmt.Errorf("feed: snapshot %s: %w", t.Info(), err)
	}
	a.logger.Debug("snapshot applied",
		slog.String("ticker", t.Info().String()),
		slog.Int64("seq", snap.Seq),
		slog.Int("bids", len(snap.Bids)),
		slog.Int("asks", len(snap.Asks)),
		slog.Int("trades", len(snap.Trades)),
	)
	t.RaiseUpdated()
	return nil
}

// NeedsResync reports whether err from Update means the book can no longer
// be trusted and must be rebuilt from a snapshot.
func NeedsResync(err error) bool {
	return errors.Is(err, domain.ErrSequenceGap) || errors.Is(err, domain.ErrMalformedUpdate)
}

func checkSeq(last, seq int64) error {
	if seq == 0 || last == 0 {
		return nil
	}
	if seq <= last {
		return fmt.Errorf("%w: have %d, got %d", domain.ErrStaleUpdate, last, seq)
	}
	if seq > last+1 {
		return fmt.Errorf("%w: have %d, got %d", domain.ErrSequenceGap, last, seq)
	}
	return nil
}

func validateUpdate(u domain.IncrementalUpdate) error {
	for _, side := range [][]domain.LevelUpdate{u.Bids, u.Asks} {
		for _, l := range side {
			if !l.Price.IsPositive() || l.Amount.IsNegative() {
				return fmt.Errorf("level %s@%s: %w", l.Amount, l.Price, domain.ErrMalformedUpdate)
			}
		}
	}
	for _, tr := range u.Trades {
		if !tr.Price.IsPositive() || !tr.Amount.IsPositive() {
			return fmt.Errorf("trade %s@%s: %w", tr.Amount, tr.Price, domain.ErrMalformedUpdate)
		}
		if tr.Side != domain.TradeSideBuy && tr.Side != domain.TradeSideSell {
			return fmt.Errorf("trade side %q: %w", tr.Side, domain.ErrMalformedUpdate)
		}
	}
	return nil
}
