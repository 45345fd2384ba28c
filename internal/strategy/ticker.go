package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/account"
	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

var (
	hundred = decimal.NewFromInt(100)
	// Deposits at or below this are treated as spent.
	dust = decimal.RequireFromString("0.001")
)

// TickerConfig is the configuration of a strategy trading one instrument.
type TickerConfig struct {
	Name              string
	Kind              Kind
	Enabled           bool
	Demo              bool
	Exchange          string
	Ticker            string
	Account           string
	MaxAllowedDeposit decimal.Decimal
	BuyLevel          decimal.Decimal // 0 = no ceiling
	SellLevel         decimal.Decimal // 0 = no floor
	InitialState      domain.StrategyState
	Interval          time.Duration
	// MaxActualBuyDeposit presets the buy budget; nil derives it from the
	// allocator on Start.
	MaxActualBuyDeposit *decimal.Decimal
	ResultLimit         int
}

// Deps are the collaborators handed to strategy factories.
type Deps struct {
	Markets  *market.Registry
	Accounts *account.Book
	Executor OrderExecutor
	Journal  Journal
	Logger   *slog.Logger
}

// TickerTrader is the shared substrate of ticker strategies: instrument and
// account binding, fee math, liquidity-walking buy/sell sizing, deposit
// accounting, demo/live execution and the buy/sell state machine. Concrete
// strategies embed it and supply Step.
type TickerTrader struct {
	cfg      TickerConfig
	markets  *market.Registry
	exec     OrderExecutor
	journal  Journal
	logger   *slog.Logger
	account  *account.Account
	accounts *account.Book

	allowedMu  sync.RWMutex
	maxAllowed decimal.Decimal
	allocator  Allocator

	mu          sync.Mutex
	ticker      *market.Ticker
	state       domain.StrategyState
	running     bool
	buyDeposit  decimal.Decimal
	buySet      bool
	sellDeposit decimal.Decimal
	bought      decimal.Decimal
	sold        decimal.Decimal
	results     []domain.TradingResult

	cacheValid bool
	cacheGen   uint64
	cached     decimal.Decimal
}

// NewTickerTrader binds cfg to its collaborators. The instrument and the
// account are resolved eagerly when possible; Validate reports what could
// not be resolved.
func NewTickerTrader(cfg TickerConfig, deps Deps) *TickerTrader {
	if cfg.InitialState == "" {
		cfg.InitialState = domain.StateWaitingForBuy
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 1000
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &TickerTrader{
		cfg:        cfg,
		markets:    deps.Markets,
		exec:       deps.Executor,
		journal:    deps.Journal,
		accounts:   deps.Accounts,
		logger:     logger.With(slog.String("component", "strategy"), slog.String("strategy", cfg.Name)),
		maxAllowed: cfg.MaxAllowedDeposit,
		state:      cfg.InitialState,
	}
	if cfg.MaxActualBuyDeposit != nil {
		t.buyDeposit = *cfg.MaxActualBuyDeposit
		t.buySet = true
	}
	if deps.Accounts != nil && cfg.Account != "" {
		t.account, _ = deps.Accounts.Get(cfg.Account)
	}
	if deps.Markets != nil && cfg.Ticker != "" {
		t.ticker, _ = deps.Markets.Get(cfg.Exchange, cfg.Ticker)
	}
	return t
}

// Name returns the unique strategy name.
func (t *TickerTrader) Name() string { return t.cfg.Name }

// Kind returns the strategy kind tag.
func (t *TickerTrader) Kind() Kind { return t.cfg.Kind }

// Enabled reports whether the manager should run the strategy.
func (t *TickerTrader) Enabled() bool { return t.cfg.Enabled }

// Interval is the pause between two steps.
func (t *TickerTrader) Interval() time.Duration { return t.cfg.Interval }

// Demo reports whether orders are synthesized instead of placed.
func (t *TickerTrader) Demo() bool { return t.cfg.Demo }

// BuyLevel is the price at or below which the strategy buys.
func (t *TickerTrader) BuyLevel() decimal.Decimal { return t.cfg.BuyLevel }

// SellLevel is the price at or above which the strategy sells.
func (t *TickerTrader) SellLevel() decimal.Decimal { return t.cfg.SellLevel }

// TickerInfo returns the configured instrument identity.
func (t *TickerTrader) TickerInfo() domain.TickerInfo {
	if tk := t.Ticker(); tk != nil {
		return tk.Info()
	}
	return domain.TickerInfo{Exchange: t.cfg.Exchange, Name: t.cfg.Ticker}
}

// Ticker returns the bound instrument, nil when unresolved.
func (t *TickerTrader) Ticker() *market.Ticker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker
}

// Account returns the bound account, nil when unresolved.
func (t *TickerTrader) Account() *account.Account {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.account
}

// SetAllocator attaches the manager's allocator.
func (t *TickerTrader) SetAllocator(a Allocator) {
	t.allowedMu.Lock()
	t.allocator = a
	t.allowedMu.Unlock()
	t.InvalidateDeposit()
}

func (t *TickerTrader) getAllocator() Allocator {
	t.allowedMu.RLock()
	defer t.allowedMu.RUnlock()
	return t.allocator
}

// MaxAllowedDeposit returns the configured budget reservation.
func (t *TickerTrader) MaxAllowedDeposit() decimal.Decimal {
	t.allowedMu.RLock()
	defer t.allowedMu.RUnlock()
	return t.maxAllowed
}

// SetMaxAllowedDeposit changes the reservation and invalidates the cached
// MaxActualDeposit of every strategy sharing the allocator.
func (t *TickerTrader) SetMaxAllowedDeposit(v decimal.Decimal) {
	t.allowedMu.Lock()
	t.maxAllowed = v
	a := t.allocator
	t.allowedMu.Unlock()
	if a != nil {
		a.Invalidate()
	} else {
		t.InvalidateDeposit()
	}
}

// InvalidateDeposit drops the cached MaxActualDeposit.
func (t *TickerTrader) InvalidateDeposit() {
	t.mu.Lock()
	t.cacheValid = false
	t.mu.Unlock()
}

// MaxActualDeposit is the balance of the instrument's base currency minus
// the reservations of every higher-priority strategy. Without an
// allocator, account or instrument it falls back to MaxAllowedDeposit.
// The value is cached until the allocator's generation changes.
func (t *TickerTrader) MaxActualDeposit() decimal.Decimal {
	a := t.getAllocator()
	tk := t.Ticker()
	acc := t.Account()
	if a == nil || acc == nil || tk == nil {
		return t.MaxAllowedDeposit()
	}

	gen := a.Generation()
	t.mu.Lock()
	if t.cacheValid && t.cacheGen == gen {
		v := t.cached
		t.mu.Unlock()
		return v
	}
	t.mu.Unlock()

	reserved, gen, ok := a.ReservedBefore(t.cfg.Name)
	if !ok {
		return t.MaxAllowedDeposit()
	}
	v := acc.GetBalance(tk.BaseCurrency()).Sub(reserved)

	t.mu.Lock()
	t.cached, t.cacheGen, t.cacheValid = v, gen, true
	t.mu.Unlock()
	return v
}

// MaxActualBuyDeposit is the remaining budget for buys, in base currency.
func (t *TickerTrader) MaxActualBuyDeposit() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buyDeposit
}

// SetMaxActualBuyDeposit overrides the buy budget.
func (t *TickerTrader) SetMaxActualBuyDeposit(v decimal.Decimal) {
	t.mu.Lock()
	t.buyDeposit, t.buySet = v, true
	t.mu.Unlock()
}

// MaxActualSellDeposit is the amount of market currency available to sell.
func (t *TickerTrader) MaxActualSellDeposit() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sellDeposit
}

// SetMaxActualSellDeposit overrides the sell budget.
func (t *TickerTrader) SetMaxActualSellDeposit(v decimal.Decimal) {
	t.mu.Lock()
	t.sellDeposit = v
	t.mu.Unlock()
}

// BoughtTotal is the base currency spent on buys.
func (t *TickerTrader) BoughtTotal() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bought
}

// SoldTotal is the market currency amount sold.
func (t *TickerTrader) SoldTotal() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sold
}

// CanBuyMore reports whether the buy budget is above dust.
func (t *TickerTrader) CanBuyMore() bool {
	return t.MaxActualBuyDeposit().GreaterThan(dust)
}

// CanSellMore reports whether the sell budget is above dust.
func (t *TickerTrader) CanSellMore() bool {
	return t.MaxActualSellDeposit().GreaterThan(dust)
}

// Results returns the trading results of this strategy, oldest first.
func (t *TickerTrader) Results() []domain.TradingResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.results)
}

// Fee returns the instrument fee in percent, zero when unbound.
func (t *TickerTrader) Fee() decimal.Decimal {
	if tk := t.Ticker(); tk != nil {
		return tk.Fee()
	}
	return decimal.Zero
}

// ApplyFee returns deposit*(100-fee)/100.
func (t *TickerTrader) ApplyFee(deposit decimal.Decimal) decimal.Decimal {
	return deposit.Mul(hundred.Sub(t.Fee())).Div(hundred)
}

// CalcFee returns total*fee/100.
func (t *TickerTrader) CalcFee(total decimal.Decimal) decimal.Decimal {
	return total.Mul(t.Fee()).Div(hundred)
}

// State returns the current state.
func (t *TickerTrader) State() domain.StrategyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState moves to s and journals "prev -> s". Setting the current state
// is a no-op.
func (t *TickerTrader) SetState(ctx context.Context, s domain.StrategyState) {
	t.mu.Lock()
	prev := t.state
	if prev == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()
	t.log(ctx, domain.SeverityInfo, domain.OperationStateChange, decimal.Zero, decimal.Zero,
		fmt.Sprintf("%s -> %s", prev, s))
}

// Running reports whether Start succeeded and Stop was not called since.
func (t *TickerTrader) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Validate reports configuration errors. It never mutates the strategy.
func (t *TickerTrader) Validate() []domain.ValidationError {
	var errs []domain.ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Strategy: t.cfg.Name, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	info := t.TickerInfo()
	name := info.String()
	switch {
	case t.cfg.Ticker == "":
		add("ticker", "ticker not specified")
	case t.Ticker() == nil:
		add("ticker", "ticker %s not found", name)
	}

	acc := t.Account()
	switch {
	case t.cfg.Account == "":
	case acc == nil:
		add("account", "account %s not found", t.cfg.Account)
	case t.cfg.Ticker != "" && acc.Exchange() != info.Exchange:
		add("ticker", "ticker's exchange %s does not match account's %s", info.Exchange, acc.Exchange())
	}

	if t.MaxAllowedDeposit().IsNegative() {
		add("max_allowed_deposit", "must not be negative")
	}
	if t.cfg.BuyLevel.IsNegative() || t.cfg.SellLevel.IsNegative() {
		add("levels", "buy and sell levels must not be negative")
	}
	if !t.cfg.InitialState.Valid() {
		add("initial_state", "unknown state %q", t.cfg.InitialState)
	}
	return errs
}

// Init resolves the instrument and account.
func (t *TickerTrader) Init(ctx context.Context) error {
	if t.markets != nil && t.Ticker() == nil {
		tk, err := t.markets.Lookup(domain.TickerInfo{Exchange: t.cfg.Exchange, Name: t.cfg.Ticker})
		if err != nil {
			return fmt.Errorf("strategy %s: init: %w", t.cfg.Name, err)
		}
		t.mu.Lock()
		t.ticker = tk
		t.mu.Unlock()
	}
	if t.Account() == nil && t.accounts != nil && t.cfg.Account != "" {
		a, ok := t.accounts.Get(t.cfg.Account)
		if !ok {
			return fmt.Errorf("strategy %s: init: account %s: %w", t.cfg.Name, t.cfg.Account, domain.ErrNotFound)
		}
		t.mu.Lock()
		t.account = a
		t.mu.Unlock()
	}
	if t.Ticker() == nil {
		return fmt.Errorf("strategy %s: init: ticker %s:%s: %w", t.cfg.Name, t.cfg.Exchange, t.cfg.Ticker, domain.ErrNotFound)
	}
	return nil
}

// Start marks the strategy running. An unset buy budget is initialized to
// MaxActualDeposit.
func (t *TickerTrader) Start(ctx context.Context) error {
	if t.Ticker() == nil {
		return fmt.Errorf("strategy %s: start: not initialized", t.cfg.Name)
	}
	deposit := t.MaxActualDeposit()
	t.mu.Lock()
	if !t.buySet {
		t.buyDeposit, t.buySet = deposit, true
	}
	t.running = true
	buy := t.buyDeposit
	t.mu.Unlock()

	t.log(ctx, domain.SeverityInfo, domain.OperationLifecycle, decimal.Zero, buy, "started")
	return nil
}

// Stop marks the strategy stopped. Orders already placed are not touched.
func (t *TickerTrader) Stop(ctx context.Context) error {
	t.mu.Lock()
	was := t.running
	t.running = false
	t.mu.Unlock()
	if was {
		t.log(ctx, domain.SeverityInfo, domain.OperationLifecycle, decimal.Zero, decimal.Zero, "stopped")
	}
	return nil
}

// AvailableToBuy sizes a buy against the asks with the fee-adjusted buy
// budget, bounded by maxPrice when non-zero.
func (t *TickerTrader) AvailableToBuy(maxPrice decimal.Decimal) domain.Level {
	tk := t.Ticker()
	if tk == nil {
		return domain.Level{}
	}
	return tk.Book().AvailableToBuy(t.ApplyFee(t.MaxActualBuyDeposit()), maxPrice)
}

// AvailableToSell sizes a sell against the bids with the fee-adjusted sell
// budget, bounded by minPrice when non-zero.
func (t *TickerTrader) AvailableToSell(minPrice decimal.Decimal) domain.Level {
	tk := t.Ticker()
	if tk == nil {
		return domain.Level{}
	}
	return tk.Book().AvailableToSell(t.ApplyFee(t.MaxActualSellDeposit()), minPrice)
}

// Buy takes as much of the asks up to BuyLevel as the buy budget allows
// and updates the deposits. It returns nil when nothing was bought.
func (t *TickerTrader) Buy(ctx context.Context) *domain.TradingResult {
	e := t.AvailableToBuy(t.cfg.BuyLevel)
	if !e.Amount.IsPositive() {
		return nil
	}
	res := t.MarketBuy(ctx, e.Price, e.Amount)
	if res == nil {
		return nil
	}
	fee := t.CalcFee(res.Total)
	t.mu.Lock()
	t.bought = t.bought.Add(res.Total)
	t.buyDeposit = t.buyDeposit.Sub(res.Total.Add(fee))
	t.sellDeposit = t.sellDeposit.Add(res.Amount)
	t.mu.Unlock()
	return res
}

// Sell hits the bids down to SellLevel with the sell budget and updates the
// deposits. It returns nil when nothing was sold.
func (t *TickerTrader) Sell(ctx context.Context) *domain.TradingResult {
	e := t.AvailableToSell(t.cfg.SellLevel)
	if !e.Amount.IsPositive() {
		return nil
	}
	res := t.MarketSell(ctx, e.Price, e.Amount)
	if res == nil {
		return nil
	}
	fee := t.CalcFee(res.Total)
	t.mu.Lock()
	t.sold = t.sold.Add(res.Amount)
	t.buyDeposit = t.buyDeposit.Add(res.Total)
	t.sellDeposit = t.sellDeposit.Sub(res.Amount.Add(fee))
	t.mu.Unlock()
	return res
}

// MarketBuy takes liquidity at up to price.
func (t *TickerTrader) MarketBuy(ctx context.Context, price, amount decimal.Decimal) *domain.TradingResult {
	return t.execute(ctx, domain.OrderSideBuy, domain.OrderTypeMarket, domain.OperationBuy, price, amount)
}

// MarketSell takes liquidity at down to price.
func (t *TickerTrader) MarketSell(ctx context.Context, price, amount decimal.Decimal) *domain.TradingResult {
	return t.execute(ctx, domain.OrderSideSell, domain.OrderTypeMarket, domain.OperationSell, price, amount)
}

// PlaceBid rests a limit buy.
func (t *TickerTrader) PlaceBid(ctx context.Context, price, amount decimal.Decimal) *domain.TradingResult {
	return t.execute(ctx, domain.OrderSideBuy, domain.OrderTypeLimit, domain.OperationPlaceBid, price, amount)
}

// PlaceAsk rests a limit sell.
func (t *TickerTrader) PlaceAsk(ctx context.Context, price, amount decimal.Decimal) *domain.TradingResult {
	return t.execute(ctx, domain.OrderSideSell, domain.OrderTypeLimit, domain.OperationPlaceAsk, price, amount)
}

func (t *TickerTrader) execute(ctx context.Context, side domain.OrderSide, typ domain.OrderType, op domain.StrategyOperation, price, amount decimal.Decimal) *domain.TradingResult {
	tk := t.Ticker()
	if tk == nil || t.exec == nil {
		t.log(ctx, domain.SeverityError, op, price, amount, "not bound to a ticker or executor")
		return nil
	}
	res, err := t.exec.Execute(ctx, tk, domain.OrderRequest{
		Exchange: tk.Exchange(),
		Ticker:   tk.Name(),
		Side:     side,
		Type:     typ,
		Price:    price,
		Amount:   amount,
		Strategy: t.cfg.Name,
		Demo:     t.cfg.Demo,
	})
	if err != nil || res == nil {
		msg := "no result"
		if err != nil {
			msg = err.Error()
		}
		t.log(ctx, domain.SeverityError, op, price, amount, msg)
		return nil
	}

	t.mu.Lock()
	t.results = append(t.results, *res)
	if over := len(t.results) - t.cfg.ResultLimit; over > 0 {
		t.results = slices.Delete(t.results, 0, over)
	}
	t.mu.Unlock()

	t.log(ctx, domain.SeverityInfo, op, res.Price, res.Amount, "order "+res.OrderID)
	return res
}

// Status returns a point-in-time view for status reporting.
func (t *TickerTrader) Status() domain.StrategyStatus {
	actual := t.MaxActualDeposit()
	allowed := t.MaxAllowedDeposit()
	info := t.TickerInfo()
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.StrategyStatus{
		Name:                 t.cfg.Name,
		Kind:                 string(t.cfg.Kind),
		Ticker:               info.String(),
		Account:              t.cfg.Account,
		Enabled:              t.cfg.Enabled,
		Running:              t.running,
		Demo:                 t.cfg.Demo,
		State:                t.state,
		MaxAllowedDeposit:    allowed,
		MaxActualDeposit:     actual,
		MaxActualBuyDeposit:  t.buyDeposit,
		MaxActualSellDeposit: t.sellDeposit,
		BoughtTotal:          t.bought,
		SoldTotal:            t.sold,
	}
}

func (t *TickerTrader) log(ctx context.Context, sev domain.Severity, op domain.StrategyOperation, price, amount decimal.Decimal, msg string) {
	rec := domain.LogRecord{
		Strategy:  t.cfg.Name,
		Severity:  sev,
		Operation: op,
		Price:     price,
		Amount:    amount,
		Message:   msg,
		Time:      time.Now().UTC(),
	}
	if t.journal != nil {
		t.journal.Record(ctx, rec)
		return
	}
	level := slog.LevelInfo
	if sev == domain.SeverityError {
		level = slog.LevelError
	}
	t.logger.Log(ctx, level, msg,
		slog.String("operation", string(op)),
		slog.String("price", price.String()),
		slog.String("amount", amount.String()),
	)
}
