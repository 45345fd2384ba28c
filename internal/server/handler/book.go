package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

// TickerLookup finds an in-process instrument.
type TickerLookup interface {
	Get(exchange, name string) (*market.Ticker, bool)
}

// SnapshotReader reads a mirrored book, as written by the book publisher.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, key string) (domain.BookSnapshot, error)
}

// BookHandler serves order book snapshots.
type BookHandler struct {
	tickers TickerLookup
	cache   SnapshotReader
	depth   int
	logger  *slog.Logger
}

// NewBookHandler creates a BookHandler. Books held in-process are served
// directly; others fall back to cache when it is non-nil.
func NewBookHandler(tickers TickerLookup, cache SnapshotReader, depth int, logger *slog.Logger) *BookHandler {
	if depth <= 0 {
		depth = 25
	}
	return &BookHandler{
		tickers: tickers,
		cache:   cache,
		depth:   depth,
		logger:  logHandler(logger, "book"),
	}
}

// GetBook returns the top of both ladders of one instrument.
// GET /api/books/{exchange}/{ticker}?depth=25
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	exchange := r.PathValue("exchange")
	name := r.PathValue("ticker")
	depth := parseDepth(r, h.depth)

	if h.tickers != nil {
		if t, ok := h.tickers.Get(exchange, name); ok {
			writeJSON(w, http.StatusOK, t.BookSnapshot(depth))
			return
		}
	}

	if h.cache == nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	key := domain.TickerInfo{Exchange: exchange, Name: name}.String()
	snap, err := h.cache.GetSnapshot(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read cached book",
			slog.String("ticker", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read book")
		return
	}
	if len(snap.Bids) > depth {
		snap.Bids = snap.Bids[:depth]
	}
	if len(snap.Asks) > depth {
		snap.Asks = snap.Asks[:depth]
	}
	writeJSON(w, http.StatusOK, snap)
}
