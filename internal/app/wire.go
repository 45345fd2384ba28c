package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tickerbot/internal/account"
	s3blob "github.com/alanyoungcy/tickerbot/internal/blob/s3"
	"github.com/alanyoungcy/tickerbot/internal/cache/redis"
	"github.com/alanyoungcy/tickerbot/internal/config"
	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/journal"
	"github.com/alanyoungcy/tickerbot/internal/market"
	"github.com/alanyoungcy/tickerbot/internal/notify"
	"github.com/alanyoungcy/tickerbot/internal/store/postgres"
	"github.com/alanyoungcy/tickerbot/internal/strategy"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function. Every infrastructure
// field is nil when its backend is disabled.
type Dependencies struct {
	// In-process state
	Markets  *market.Registry
	Accounts *account.Book

	// Postgres
	Postgres   *postgres.Client
	Executions domain.ExecutionStore
	JournalDB  domain.JournalStore
	Audit      domain.AuditStore

	// Redis
	Redis     *redis.Client
	BookCache domain.BookCache
	SignalBus domain.SignalBus
	Locks     domain.LockManager

	// S3
	S3       *s3blob.Client
	Archiver domain.Archiver

	Notifier *notify.Notifier
	Journal  *journal.Journal
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	markets, err := buildMarkets(cfg.Instruments)
	if err != nil {
		return fail("instruments", err)
	}
	deps := &Dependencies{
		Markets:  markets,
		Accounts: buildAccounts(cfg.Accounts),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.Postgres = pgClient
		deps.Executions = postgres.NewExecutionStore(pool)
		deps.JournalDB = postgres.NewJournalStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.BookCache = redis.NewBookCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 archive (needs the Postgres stores it drains) ---
	if cfg.S3.Enabled && deps.Postgres != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.S3 = s3Client
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewObjects(s3Client),
			deps.Executions,
			deps.JournalDB,
			deps.Audit,
			cfg.Archive.BatchSize,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			notify.DefaultTelegramAPI,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Cooldown.Duration, logger)
	deps.Journal = journal.New(deps.JournalDB, deps.Notifier, journal.DefaultTail, logger)

	return deps, cleanup, nil
}

// buildMarkets registers one ticker per configured instrument.
func buildMarkets(instruments []config.InstrumentConfig) (*market.Registry, error) {
	reg := market.NewRegistry()
	for _, in := range instruments {
		t := market.NewTicker(domain.TickerInfo{
			Exchange:       in.Exchange,
			Name:           in.Name,
			BaseCurrency:   in.BaseCurrency,
			MarketCurrency: in.MarketCurrency,
		}, in.Fee.Decimal, market.TickerOptions{
			CandlePeriod: in.CandlePeriod.Duration,
			CandleLimit:  in.CandleLimit,
			HistoryLimit: in.HistoryLimit,
			InvertedAsks: in.InvertedAsks,
		})
		if err := reg.Add(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// buildAccounts seeds the account book from configuration.
func buildAccounts(accounts []config.AccountConfig) *account.Book {
	book := account.NewBook()
	for _, a := range accounts {
		balances := make(map[string]decimal.Decimal, len(a.Balances))
		for cur, bal := range a.Balances {
			balances[cur] = bal.Decimal
		}
		book.Add(account.New(a.Name, a.Exchange, balances))
	}
	return book
}

// tickerConfigs converts strategy configuration, keeping priority order.
// forceDemo marks every strategy as demo.
func tickerConfigs(strategies []config.StrategyConfig, forceDemo bool) []strategy.TickerConfig {
	out := make([]strategy.TickerConfig, 0, len(strategies))
	for _, s := range strategies {
		tc := strategy.TickerConfig{
			Name:              s.Name,
			Kind:              strategy.Kind(strings.ToLower(s.Kind)),
			Enabled:           s.IsEnabled(),
			Demo:              s.Demo || forceDemo,
			Exchange:          s.Exchange,
			Ticker:            s.Ticker,
			Account:           s.Account,
			MaxAllowedDeposit: s.MaxAllowedDeposit.Decimal,
			BuyLevel:          s.BuyLevel.Decimal,
			SellLevel:         s.SellLevel.Decimal,
			InitialState:      domain.StrategyState(s.InitialState),
			Interval:          s.Interval.Duration,
			ResultLimit:       s.ResultLimit,
		}
		if s.MaxActualBuyDeposit != nil {
			v := s.MaxActualBuyDeposit.Decimal
			tc.MaxActualBuyDeposit = &v
		}
		out = append(out, tc)
	}
	return out
}

// buildManager builds every configured strategy into a new manager, in
// priority order.
func buildManager(cfgs []strategy.TickerConfig, deps strategy.Deps, opts ...strategy.ManagerOption) (*strategy.Manager, error) {
	m := strategy.NewManager(deps.Logger, opts...)
	for _, tc := range cfgs {
		s, err := strategy.Build(tc, deps)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", tc.Name, err)
		}
		if err := m.Add(s); err != nil {
			return nil, err
		}
	}
	return m, nil
}
