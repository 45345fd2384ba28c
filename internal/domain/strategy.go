package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StrategyState is the position of a ticker strategy in its buy/sell cycle.
type StrategyState string

const (
	StateWaitingForBuy  StrategyState = "waiting_for_buy"
	StateWaitingForSell StrategyState = "waiting_for_sell"
)

// Valid reports whether s is a known state.
func (s StrategyState) Valid() bool {
	return s == StateWaitingForBuy || s == StateWaitingForSell
}

// Severity of a strategy log record.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// StrategyOperation classifies what a strategy log record is about.
type StrategyOperation string

const (
	OperationBuy         StrategyOperation = "buy"
	OperationSell        StrategyOperation = "sell"
	OperationPlaceBid    StrategyOperation = "place_bid"
	OperationPlaceAsk    StrategyOperation = "place_ask"
	OperationStateChange StrategyOperation = "state_change"
	OperationLifecycle   StrategyOperation = "lifecycle"
)

// LogRecord is one entry of a strategy's journal.
type LogRecord struct {
	ID        string            `json:"id"`
	Strategy  string            `json:"strategy"`
	Severity  Severity          `json:"severity"`
	Operation StrategyOperation `json:"operation"`
	Price     decimal.Decimal   `json:"price"`
	Amount    decimal.Decimal   `json:"amount"`
	Message   string            `json:"message"`
	Time      time.Time         `json:"time"`
}

// ValidationError is a configuration problem reported by a strategy.
type ValidationError struct {
	Strategy string
	Field    string
	Message  string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("strategy %s: %s", e.Strategy, e.Message)
	}
	return fmt.Sprintf("strategy %s: %s: %s", e.Strategy, e.Field, e.Message)
}

// StrategyStatus is a point-in-time view of a running ticker strategy.
type StrategyStatus struct {
	Name                 string          `json:"name"`
	Kind                 string          `json:"kind"`
	Ticker               string          `json:"ticker"`
	Account              string          `json:"account"`
	Enabled              bool            `json:"enabled"`
	Running              bool            `json:"running"`
	Demo                 bool            `json:"demo"`
	State                StrategyState   `json:"state"`
	MaxAllowedDeposit    decimal.Decimal `json:"max_allowed_deposit"`
	MaxActualDeposit     decimal.Decimal `json:"max_actual_deposit"`
	MaxActualBuyDeposit  decimal.Decimal `json:"max_actual_buy_deposit"`
	MaxActualSellDeposit decimal.Decimal `json:"max_actual_sell_deposit"`
	BoughtTotal          decimal.Decimal `json:"bought_total"`
	SoldTotal            decimal.Decimal `json:"sold_total"`
}
