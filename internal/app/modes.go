package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tickerbot/internal/cache/redis"
	"github.com/alanyoungcy/tickerbot/internal/crypto"
	"github.com/alanyoungcy/tickerbot/internal/executor"
	"github.com/alanyoungcy/tickerbot/internal/feed"
	"github.com/alanyoungcy/tickerbot/internal/market"
	"github.com/alanyoungcy/tickerbot/internal/notify"
	"github.com/alanyoungcy/tickerbot/internal/pipeline"
	"github.com/alanyoungcy/tickerbot/internal/platform/bittrex"
	"github.com/alanyoungcy/tickerbot/internal/server"
	"github.com/alanyoungcy/tickerbot/internal/server/handler"
	"github.com/alanyoungcy/tickerbot/internal/server/middleware"
	"github.com/alanyoungcy/tickerbot/internal/strategy"
)

// DemoMode runs every strategy with synthesized fills against live books.
func (a *App) DemoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting demo mode")

	exec := executor.NewExecutor(a.logger,
		executor.WithStore(deps.Executions),
		executor.WithBus(deps.SignalBus),
	)
	manager, err := buildManager(tickerConfigs(a.cfg.Strategies, true), a.strategyDeps(deps, exec))
	if err != nil {
		return fmt.Errorf("app: demo mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(ctx) })
	a.startShared(ctx, g, deps, manager)
	return g.Wait()
}

// LiveMode places real orders through the exchange gateway. Strategies flagged
// demo in configuration still synthesize their fills.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting live mode")

	gateway, err := a.buildGateway(deps)
	if err != nil {
		return fmt.Errorf("app: live mode: %w", err)
	}
	for _, t := range deps.Markets.All() {
		if t.Exchange() != feed.BittrexExchange {
			a.logger.WarnContext(ctx, "no order gateway for exchange, live orders will be rejected",
				slog.String("ticker", t.Info().String()),
			)
			continue
		}
		t.SetGateway(gateway)
	}

	risk := executor.NewRiskService(executor.RiskConfig{
		MaxOrderTotal:  a.cfg.Risk.MaxOrderTotal.Decimal,
		MaxSlippageBps: a.cfg.Risk.MaxSlippageBps.Decimal,
	}, a.logger)
	exec := executor.NewExecutor(a.logger,
		executor.WithRisk(risk),
		executor.WithStore(deps.Executions),
		executor.WithBus(deps.SignalBus),
	)

	var opts []strategy.ManagerOption
	if deps.Locks != nil {
		opts = append(opts, strategy.WithLocks(deps.Locks, a.cfg.Redis.LockTTL.Duration))
	} else {
		a.logger.WarnContext(ctx, "redis disabled, strategies are not protected against a second live process")
	}
	manager, err := buildManager(tickerConfigs(a.cfg.Strategies, false), a.strategyDeps(deps, exec), opts...)
	if err != nil {
		return fmt.Errorf("app: live mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(ctx) })
	a.startShared(ctx, g, deps, manager)
	return g.Wait()
}

// MonitorMode only maintains and publishes order books.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startShared(ctx, g, deps, nil)
	return g.Wait()
}

func (a *App) strategyDeps(deps *Dependencies, exec strategy.OrderExecutor) strategy.Deps {
	return strategy.Deps{
		Markets:  deps.Markets,
		Accounts: deps.Accounts,
		Executor: exec,
		Journal:  deps.Journal,
		Logger:   a.logger,
	}
}

// buildGateway creates the authenticated REST client, rate limited through
// Redis when configured.
func (a *App) buildGateway(deps *Dependencies) (*bittrex.Client, error) {
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		Secret:     a.cfg.Gateway.Secret,
		SecretFile: a.cfg.Gateway.SecretFile,
		Password:   a.cfg.Gateway.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway secret: %w", err)
	}
	auth := &crypto.HMACAuth{Key: a.cfg.Gateway.Key, Secret: secret}
	client := bittrex.NewClient(a.cfg.Gateway.BaseURL, auth, a.cfg.Gateway.Timeout.Duration)
	if deps.Redis != nil && a.cfg.Gateway.RateLimit > 0 {
		client.SetLimiter(redis.NewRateLimiter(deps.Redis, a.cfg.Gateway.RateLimit, a.cfg.Gateway.RateWindow.Duration))
	}
	a.logger.Info("order gateway ready",
		slog.String("base_url", a.cfg.Gateway.BaseURL),
		slog.String("auth", auth.String()),
	)
	return client, nil
}

// startShared launches the components every mode runs: market data feeds,
// the book publisher, the archive job and the status API. manager is nil in
// monitor mode.
func (a *App) startShared(ctx context.Context, g *errgroup.Group, deps *Dependencies, manager *strategy.Manager) {
	if a.cfg.Feed.Enabled {
		for _, f := range a.buildFeeds(deps.Markets) {
			g.Go(func() error { return f.Run(ctx) })
		}
	}

	if deps.BookCache != nil || deps.SignalBus != nil {
		pub := feed.NewBookPublisher(deps.Markets, deps.BookCache, deps.SignalBus,
			a.cfg.Feed.PublishInterval.Duration, a.cfg.Feed.PublishDepth, a.logger)
		g.Go(func() error { return pub.Run(ctx) })
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.Retention.Duration, a.logger)
		g.Go(func() error { return archiver.RunCron(ctx, a.cfg.Archive.Cron) })
	}

	if a.cfg.Server.Enabled {
		srv := a.buildServer(deps, manager)
		g.Go(func() error { return srv.Run(ctx) })
	}

	if deps.Audit != nil {
		if err := deps.Audit.Log(ctx, "app_started", map[string]any{"mode": a.cfg.Mode}); err != nil {
			a.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	if err := deps.Notifier.Notify(ctx, notify.Message{
		Event: notify.EventLifecycle,
		Title: "tickerbot started",
		Body:  fmt.Sprintf("mode %s, %d strategies", a.cfg.Mode, len(a.cfg.Strategies)),
	}); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
	}
}

// buildFeeds creates one WebSocket feed per exchange that has a codec.
func (a *App) buildFeeds(markets *market.Registry) []*feed.WSFeed {
	var snapshots feed.SnapshotSource
	if a.cfg.Feed.SnapshotURL != "" {
		snapshots = feed.NewSnapshotClient(a.cfg.Feed.SnapshotURL, a.cfg.Feed.SnapshotTimeout.Duration)
	}

	var feeds []*feed.WSFeed
	for exchange, names := range tickersByExchange(markets) {
		if exchange != feed.BittrexExchange {
			a.logger.Warn("no market data codec for exchange, books stay empty",
				slog.String("exchange", exchange),
			)
			continue
		}
		codec := feed.BittrexCodec{}
		feeds = append(feeds, feed.NewWSFeed(a.cfg.Feed.WSURL, codec, feed.NewAdapter(codec, a.logger),
			markets, snapshots, names, a.logger))
	}
	return feeds
}

func tickersByExchange(markets *market.Registry) map[string][]string {
	out := make(map[string][]string)
	for _, t := range markets.All() {
		out[t.Exchange()] = append(out[t.Exchange()], t.Name())
	}
	return out
}

func (a *App) buildServer(deps *Dependencies, manager *strategy.Manager) *server.Server {
	pingers := make(map[string]handler.Pinger)
	if deps.Postgres != nil {
		pingers["postgres"] = deps.Postgres
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	if deps.S3 != nil {
		pingers["s3"] = handler.PingFunc(deps.S3.Health)
	}

	var statuses handler.StrategyStatusSource
	if manager != nil {
		statuses = manager
	}
	var limiter middleware.Allower
	if deps.Redis != nil && a.cfg.Server.RateLimit > 0 {
		limiter = redis.NewRateLimiter(deps.Redis, a.cfg.Server.RateLimit, a.cfg.Server.RateWindow.Duration)
	}

	return server.NewServer(server.Config{
		Addr:        fmt.Sprintf(":%d", a.cfg.Server.Port),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(a.cfg.Mode, pingers, a.logger),
		Strategies: handler.NewStrategyHandler(statuses, deps.Journal, a.logger),
		Books:      handler.NewBookHandler(deps.Markets, deps.BookCache, a.cfg.Feed.PublishDepth, a.logger),
		Executions: handler.NewExecutionHandler(deps.Executions, a.logger),
		Audit:      handler.NewAuditHandler(deps.Audit, a.logger),
	}, limiter, a.logger)
}
