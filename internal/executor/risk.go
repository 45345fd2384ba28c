package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

var bps = decimal.NewFromInt(10_000)

// RiskConfig holds the limits applied to live orders. Zero disables a check.
type RiskConfig struct {
	MaxOrderTotal  decimal.Decimal
	MaxSlippageBps decimal.Decimal
}

// RiskService checks live orders against RiskConfig.
type RiskService struct {
	cfg    RiskConfig
	logger *slog.Logger
}

// NewRiskService creates a RiskService.
func NewRiskService(cfg RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{cfg: cfg, logger: logger.With(slog.String("component", "risk"))}
}

// PreTradeCheck returns the first failed check, or nil.
//
// Checks performed:
//  1. Order total within MaxOrderTotal
//  2. Price within MaxSlippageBps of the best opposite price
func (s *RiskService) PreTradeCheck(ctx context.Context, t *market.Ticker, req domain.OrderRequest) error {
	total := req.Total()
	if s.cfg.MaxOrderTotal.IsPositive() && total.GreaterThan(s.cfg.MaxOrderTotal) {
		s.logger.WarnContext(ctx, "order total exceeds limit",
			slog.String("ticker", t.Info().String()),
			slog.String("total", total.String()),
			slog.String("max", s.cfg.MaxOrderTotal.String()),
		)
		return fmt.Errorf("risk: order total %s exceeds max %s: %w", total, s.cfg.MaxOrderTotal, domain.ErrOrderRejected)
	}

	if !s.cfg.MaxSlippageBps.IsPositive() || req.Type != domain.OrderTypeMarket {
		return nil
	}
	var ref domain.Level
	var ok bool
	if req.Side == domain.OrderSideBuy {
		ref, ok = t.Book().BestAsk()
	} else {
		ref, ok = t.Book().BestBid()
	}
	if !ok || !ref.Price.IsPositive() {
		// No book to compare against; let the exchange decide.
		return nil
	}

	var slippage decimal.Decimal
	if req.Side == domain.OrderSideBuy {
		slippage = req.Price.Sub(ref.Price).Div(ref.Price).Mul(bps)
	} else {
		slippage = ref.Price.Sub(req.Price).Div(ref.Price).Mul(bps)
	}
	if slippage.GreaterThan(s.cfg.MaxSlippageBps) {
		s.logger.WarnContext(ctx, "slippage exceeds limit",
			slog.String("ticker", t.Info().String()),
			slog.String("slippage_bps", slippage.StringFixed(1)),
			slog.String("max_slippage_bps", s.cfg.MaxSlippageBps.String()),
		)
		return fmt.Errorf("risk: slippage %s bps exceeds max %s bps: %w", slippage.StringFixed(1), s.cfg.MaxSlippageBps, domain.ErrOrderRejected)
	}
	return nil
}
