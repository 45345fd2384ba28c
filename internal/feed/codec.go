package feed

import "github.com/alanyoungcy/tickerbot/internal/domain"

// Message is one decoded incremental update addressed to a ticker.
type Message struct {
	Ticker string
	Update domain.IncrementalUpdate
}

// Codec translates an exchange wire format to normalized market data.
type Codec interface {
	// Exchange returns the exchange identifier the codec speaks for.
	Exchange() string
	// SubscribeMessage builds the frame that subscribes to deltas of tickers.
	SubscribeMessage(tickers []string) ([]byte, error)
	// DecodeUpdate decodes a delta frame. ok is false for frames that carry
	// no market data (acks, heartbeats). On ErrMalformedUpdate the returned
	// Message still names the ticker when it could be read.
	DecodeUpdate(raw []byte) (msg Message, ok bool, err error)
	// DecodeSnapshot decodes a full book state.
	DecodeSnapshot(raw []byte) (domain.Snapshot, error)
}
