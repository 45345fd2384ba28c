package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// BittrexExchange is the exchange identifier of the Bittrex codec.
const BittrexExchange = "bittrex"

// Bittrex order-delta types.
const (
	bittrexAdd    = 0
	bittrexRemove = 1
	bittrexUpdate = 2
)

// .NET ticks at the Unix epoch.
const dotNetEpochTicks = 621355968000000000

// BittrexCodec decodes Bittrex exchange-delta and exchange-state frames.
//
// Delta:    {"M":"BTC-ETH","N":7,"Z":[{"TY":0,"R":"0.1","Q":"2"}],"S":[...],"f":[{"OT":"BUY","R":"0.1","Q":"1","T":1700000000000}]}
// Snapshot: {"M":"BTC-ETH","N":6,"Z":[{"R":"0.1","Q":"2"}],"S":[...],"f":[{"OT":"SELL","P":"0.1","Q":"1","T":1700000000000}]}
type BittrexCodec struct{}

var _ Codec = BittrexCodec{}

// Exchange returns "bittrex".
func (BittrexCodec) Exchange() string { return BittrexExchange }

type bittrexSubscribe struct {
	Hub    string   `json:"H"`
	Method string   `json:"M"`
	Args   []string `json:"A"`
	Invoke int      `json:"I"`
}

// SubscribeMessage returns a SubscribeToExchangeDeltas invocation.
func (BittrexCodec) SubscribeMessage(tickers []string) ([]byte, error) {
	return json.Marshal(bittrexSubscribe{
		Hub:    "c2",
		Method: "SubscribeToExchangeDeltas",
		Args:   tickers,
		Invoke: 1,
	})
}

type bittrexLevel struct {
	Type *int `json:"TY"`
	Rate num  `json:"R"`
	Qty  num  `json:"Q"`
}

type bittrexFill struct {
	OrderType string `json:"OT"`
	Rate      num    `json:"R"`
	Price     num    `json:"P"`
	Qty       num    `json:"Q"`
	Time      num    `json:"T"`
}

type bittrexFrame struct {
	Market string         `json:"M"`
	Nonce  int64          `json:"N"`
	Bids   []bittrexLevel `json:"Z"`
	Asks   []bittrexLevel `json:"S"`
	Fills  []bittrexFill  `json:"f"`
}

// DecodeUpdate decodes an exchange-delta frame.
func (BittrexCodec) DecodeUpdate(raw []byte) (Message, bool, error) {
	var fr bittrexFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		return Message{}, false, fmt.Errorf("bittrex: decode delta: %v: %w", err, domain.ErrMalformedUpdate)
	}
	if fr.Market == "" {
		return Message{}, false, nil
	}
	msg := Message{Ticker: fr.Market}
	msg.Update.Seq = fr.Nonce
	msg.Update.Received = time.Now().UTC()

	var err error
	if msg.Update.Bids, err = decodeDeltas(fr.Bids); err != nil {
		return msg, true, fmt.Errorf("bittrex: %s bids: %w", fr.Market, err)
	}
	if msg.Update.Asks, err = decodeDeltas(fr.Asks); err != nil {
		return msg, true, fmt.Errorf("bittrex: %s asks: %w", fr.Market, err)
	}
	if msg.Update.Trades, err = decodeFills(fr.Fills); err != nil {
		return msg, true, fmt.Errorf("bittrex: %s fills: %w", fr.Market, err)
	}
	return msg, true, nil
}

// DecodeSnapshot decodes an exchange-state frame. Fills are expected most
// recent first, as Bittrex sends them.
func (BittrexCodec) DecodeSnapshot(raw []byte) (domain.Snapshot, error) {
	var fr bittrexFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		return domain.Snapshot{}, fmt.Errorf("bittrex: decode state: %v: %w", err, domain.ErrMalformedUpdate)
	}
	snap := domain.Snapshot{Seq: fr.Nonce}
	var err error
	if snap.Bids, err = decodeLevels(fr.Bids); err != nil {
		return domain.Snapshot{}, fmt.Errorf("bittrex: state bids: %w", err)
	}
	if snap.Asks, err = decodeLevels(fr.Asks); err != nil {
		return domain.Snapshot{}, fmt.Errorf("bittrex: state asks: %w", err)
	}
	if snap.Trades, err = decodeFills(fr.Fills); err != nil {
		return domain.Snapshot{}, fmt.Errorf("bittrex: state fills: %w", err)
	}
	return snap, nil
}

func decodeLevels(in []bittrexLevel) ([]domain.Level, error) {
	out := make([]domain.Level, 0, len(in))
	for _, l := range in {
		price, err := l.Rate.positive("R")
		if err != nil {
			return nil, err
		}
		amount, err := l.Qty.decimal("Q")
		if err != nil {
			return nil, err
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("negative Q %s: %w", amount, domain.ErrMalformedUpdate)
		}
		out = append(out, domain.Level{Price: price, Amount: amount})
	}
	return out, nil
}

func decodeDeltas(in []bittrexLevel) ([]domain.LevelUpdate, error) {
	out, err := decodeLevels(in)
	if err != nil {
		return nil, err
	}
	for i, l := range in {
		if l.Type == nil {
			continue
		}
		switch *l.Type {
		case bittrexRemove:
			out[i].Amount = decimal.Zero
		case bittrexAdd, bittrexUpdate:
		default:
			return nil, fmt.Errorf("delta type %d: %w", *l.Type, domain.ErrMalformedUpdate)
		}
	}
	return out, nil
}

func decodeFills(in []bittrexFill) ([]domain.TradeInfo, error) {
	out := make([]domain.TradeInfo, 0, len(in))
	for _, f := range in {
		side := domain.TradeSideBuy
		if len(f.OrderType) > 0 && (f.OrderType[0] == 'S' || f.OrderType[0] == 's') {
			side = domain.TradeSideSell
		}
		p := f.Price
		if p == "" {
			p = f.Rate
		}
		price, err := p.positive("P")
		if err != nil {
			return nil, err
		}
		amount, err := f.Qty.positive("Q")
		if err != nil {
			return nil, err
		}
		ts, err := f.Time.time()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.NewTradeInfo(side, price, amount, ts))
	}
	return out, nil
}

// num is a JSON number that may arrive quoted.
type num string

func (n *num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = num(s)
	default:
		*n = num(b)
	}
	return nil
}

func (n num) decimal(field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fmt.Errorf("missing %s: %w", field, domain.ErrMalformedUpdate)
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", field, string(n), domain.ErrMalformedUpdate)
	}
	return d, nil
}

func (n num) positive(field string) (decimal.Decimal, error) {
	d, err := n.decimal(field)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive %s %s: %w", field, d, domain.ErrMalformedUpdate)
	}
	return d, nil
}

// time accepts Unix milliseconds or .NET ticks.
func (n num) time() (time.Time, error) {
	if n == "" {
		return time.Time{}, fmt.Errorf("missing T: %w", domain.ErrMalformedUpdate)
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		t, perr := time.Parse(time.RFC3339Nano, string(n))
		if perr != nil {
			return time.Time{}, fmt.Errorf("T %q: %w", string(n), domain.ErrMalformedUpdate)
		}
		return t.UTC(), nil
	}
	if v > dotNetEpochTicks/10 {
		return time.Unix(0, (v-dotNetEpochTicks)*100).UTC(), nil
	}
	return time.UnixMilli(v).UTC(), nil
}
