// Package executor routes strategy orders either to a local demo fill or to
// the instrument's exchange gateway, then records the outcome.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

// ExecutionsStream is the stream every recorded execution is appended to.
const ExecutionsStream = "executions"

// RiskChecker validates an order before it reaches the exchange.
type RiskChecker interface {
	PreTradeCheck(ctx context.Context, t *market.Ticker, req domain.OrderRequest) error
}

// Executor implements the strategy package's OrderExecutor.
type Executor struct {
	risk   RiskChecker
	store  domain.ExecutionStore
	bus    domain.SignalBus
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithRisk enables pre-trade checks on live orders.
func WithRisk(r RiskChecker) Option {
	return func(e *Executor) { e.risk = r }
}

// WithStore persists every accepted order.
func WithStore(s domain.ExecutionStore) Option {
	return func(e *Executor) { e.store = s }
}

// WithBus appends every accepted order to the executions stream.
func WithBus(b domain.SignalBus) Option {
	return func(e *Executor) { e.bus = b }
}

// NewExecutor creates an Executor. Without options it only routes orders.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger: logger.With(slog.String("component", "executor")),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute places req on t. Demo requests are filled locally at the requested
// price with DemoOrderID and never touch the gateway or the risk checks.
// A failed live order is returned as an error and is not retried.
func (e *Executor) Execute(ctx context.Context, t *market.Ticker, req domain.OrderRequest) (*domain.TradingResult, error) {
	log := e.logger.With(
		slog.String("strategy", req.Strategy),
		slog.String("ticker", t.Info().String()),
		slog.String("side", string(req.Side)),
		slog.String("type", string(req.Type)),
	)

	var res *domain.TradingResult
	if req.Demo {
		res = &domain.TradingResult{
			OrderID: domain.DemoOrderID,
			Side:    req.Side,
			Price:   req.Price,
			Amount:  req.Amount,
			Total:   req.Total(),
			Time:    e.now(),
		}
	} else {
		if e.risk != nil {
			if err := e.risk.PreTradeCheck(ctx, t, req); err != nil {
				log.Warn("risk check failed, skipping", slog.String("error", err.Error()))
				return nil, err
			}
		}
		var err error
		switch req.Side {
		case domain.OrderSideBuy:
			res, err = t.Buy(ctx, req.Type, req.Price, req.Amount, req.Strategy)
		case domain.OrderSideSell:
			res, err = t.Sell(ctx, req.Type, req.Price, req.Amount, req.Strategy)
		default:
			err = fmt.Errorf("executor: side %q: %w", req.Side, domain.ErrInvalidOrder)
		}
		if err != nil {
			log.Error("order placement failed", slog.String("error", err.Error()))
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("executor: empty result: %w", domain.ErrOrderRejected)
		}
		if res.Total.IsZero() {
			res.Total = res.Price.Mul(res.Amount)
		}
		if res.Time.IsZero() {
			res.Time = e.now()
		}
	}

	log.Info("order placed",
		slog.String("order_id", res.OrderID),
		slog.String("price", res.Price.String()),
		slog.String("amount", res.Amount.String()),
	)
	e.record(ctx, t, req, *res)
	return res, nil
}

// record persists and publishes the execution. Failures are logged only;
// the order itself already happened.
func (e *Executor) record(ctx context.Context, t *market.Ticker, req domain.OrderRequest, res domain.TradingResult) {
	if e.store == nil && e.bus == nil {
		return
	}
	exec := domain.Execution{
		ID:       uuid.New().String(),
		Strategy: req.Strategy,
		Exchange: t.Exchange(),
		Ticker:   t.Name(),
		OrderID:  res.OrderID,
		Side:     res.Side,
		Type:     req.Type,
		Price:    res.Price,
		Amount:   res.Amount,
		Total:    res.Total,
		Fee:      res.Total.Mul(t.Fee()).Div(decimal.NewFromInt(100)),
		Demo:     res.IsDemo(),
		Time:     res.Time,
	}
	if e.store != nil {
		if err := e.store.Insert(ctx, exec); err != nil {
			e.logger.Warn("execution record failed", slog.String("id", exec.ID), slog.String("error", err.Error()))
		}
	}
	if e.bus != nil {
		payload, err := json.Marshal(exec)
		if err != nil {
			return
		}
		if err := e.bus.StreamAppend(ctx, ExecutionsStream, payload); err != nil {
			e.logger.Warn("execution stream append failed", slog.String("id", exec.ID), slog.String("error", err.Error()))
		}
	}
}
