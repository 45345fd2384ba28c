package domain

import "time"

// LevelUpdate is one incremental change to a ladder.
type LevelUpdate = Level

// IncrementalUpdate is one normalized exchange delta message. It is applied
// exactly once: bids, then asks, then trades, each in received order.
type IncrementalUpdate struct {
	Seq      int64 // 0 when the exchange provides no sequence
	Bids     []LevelUpdate
	Asks     []LevelUpdate
	Trades   []TradeInfo
	Received time.Time
}

// Empty reports whether the update carries nothing to apply.
func (u IncrementalUpdate) Empty() bool {
	return len(u.Bids) == 0 && len(u.Asks) == 0 && len(u.Trades) == 0
}

// Snapshot is a full normalized book state plus recent trades.
// Bids and Asks need not be sorted.
type Snapshot struct {
	Seq    int64
	Bids   []Level
	Asks   []Level
	Trades []TradeInfo // most recent first
}
