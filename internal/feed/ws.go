package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// WSFeed streams deltas for the tickers of one exchange over a WebSocket,
// applies them through an Adapter and resynchronizes a ticker from a
// snapshot whenever its sequence breaks or its data is corrupt.
type WSFeed struct {
	wsURL     string
	codec     Codec
	adapter   *Adapter
	registry  *market.Registry
	snapshots SnapshotSource
	tickers   []string
	logger    *slog.Logger

	resyncMu sync.Mutex
	resyncs  map[string]int
}

// NewWSFeed creates a feed for tickers (exchange-native names) registered
// under codec.Exchange() in registry.
func NewWSFeed(wsURL string, codec Codec, adapter *Adapter, registry *market.Registry, snapshots SnapshotSource, tickers []string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		wsURL:     wsURL,
		codec:     codec,
		adapter:   adapter,
		registry:  registry,
		snapshots: snapshots,
		tickers:   tickers,
		logger:    logger.With(slog.String("component", "ws_feed"), slog.String("exchange", codec.Exchange())),
		resyncs:   make(map[string]int),
	}
}

// Run connects and processes messages until ctx is cancelled, reconnecting
// with exponential backoff.
func (f *WSFeed) Run(ctx context.Context) error {
	if len(f.tickers) == 0 {
		f.logger.Info("no tickers to subscribe, exiting")
		return nil
	}
	delay := reconnectDelay
	for {
		start := time.Now()
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > maxReconnectDelay {
			delay = reconnectDelay
		}
		f.logger.Warn("ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// Resyncs returns how many snapshot resynchronizations each ticker needed.
func (f *WSFeed) Resyncs() map[string]int {
	f.resyncMu.Lock()
	defer f.resyncMu.Unlock()
	out := make(map[string]int, len(f.resyncs))
	for k, v := range f.resyncs {
		out[k] = v
	}
	return out
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var writeMu sync.Mutex
	sub, err := f.codec.SubscribeMessage(f.tickers)
	if err != nil {
		return fmt.Errorf("feed: subscribe message: %w", err)
	}
	writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, sub)
	writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("ws subscribed", slog.Int("tickers", len(f.tickers)))

	// Deltas buffered by the exchange before the snapshot are discarded by
	// the sequence check, so the snapshot can be taken after subscribing.
	for _, name := range f.tickers {
		f.resync(connCtx, name)
	}

	go f.pingLoop(connCtx, conn, &writeMu)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if connCtx.Err() != nil {
				return connCtx.Err()
			}
			return fmt.Errorf("feed: read: %w: %v", domain.ErrWSDisconnect, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		f.handleMessage(connCtx, raw)
	}
}

func (f *WSFeed) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (f *WSFeed) handleMessage(ctx context.Context, raw []byte) {
	msg, ok, err := f.codec.DecodeUpdate(raw)
	if err != nil {
		f.logger.Warn("malformed market data",
			slog.String("ticker", msg.Ticker),
			slog.String("error", err.Error()),
		)
		if msg.Ticker != "" {
			f.resync(ctx, msg.Ticker)
		}
		return
	}
	if !ok || msg.Update.Empty() {
		return
	}
	t, found := f.registry.Get(f.codec.Exchange(), msg.Ticker)
	if !found {
		return
	}
	err = f.adapter.Update(t, msg.Update)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrStaleUpdate):
		f.logger.Debug("stale update dropped", slog.String("ticker", msg.Ticker), slog.Int64("seq", msg.Update.Seq))
	case NeedsResync(err):
		f.logger.Warn("book out of sync", slog.String("ticker", msg.Ticker), slog.String("error", err.Error()))
		f.resync(ctx, msg.Ticker)
	default:
		f.logger.Error("apply update failed", slog.String("ticker", msg.Ticker), slog.String("error", err.Error()))
	}
}

func (f *WSFeed) resync(ctx context.Context, name string) {
	t, found := f.registry.Get(f.codec.Exchange(), name)
	if !found || f.snapshots == nil {
		return
	}
	f.resyncMu.Lock()
	f.resyncs[name]++
	f.resyncMu.Unlock()

	raw, err := f.snapshots.FetchSnapshot(ctx, name)
	if err != nil {
		f.logger.Error("snapshot fetch failed", slog.String("ticker", name), slog.String("error", err.Error()))
		return
	}
	if err := f.adapter.ApplySnapshot(raw, t); err != nil {
		f.logger.Error("snapshot apply failed", slog.String("ticker", name), slog.String("error", err.Error()))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
