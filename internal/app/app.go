// Package app provides the top-level application lifecycle management for
// tickerbot. It wires together all dependencies (stores, caches, blob storage,
// market data, strategies and notifications) and starts the goroutines of the
// configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/config"
	"github.com/alanyoungcy/tickerbot/internal/notify"
)

// shutdownTimeout bounds the teardown in Close.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier *notify.Notifier
	closers  []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, starts the corresponding goroutines, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("instruments", len(a.cfg.Instruments)),
		slog.Int("strategies", len(a.cfg.Strategies)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	a.notifier = deps.Notifier

	switch strings.ToLower(a.cfg.Mode) {
	case "demo":
		return a.DemoMode(ctx, deps)
	case "live":
		return a.LiveMode(ctx, deps)
	case "monitor":
		return a.MonitorMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.notifier.Notify(ctx, notify.Message{
		Event: notify.EventLifecycle,
		Title: "tickerbot stopped",
		Body:  "mode " + a.cfg.Mode,
	}); err != nil {
		a.logger.Warn("shutdown notification failed", slog.String("error", err.Error()))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
