// Command tickerbot runs the ticker trading bot in demo, live or monitor
// mode until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/tickerbot/internal/app"
	"github.com/alanyoungcy/tickerbot/internal/config"
	"github.com/alanyoungcy/tickerbot/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	sealPath := flag.String("seal-secret", "", "seal TICKERBOT_GATEWAY_SECRET with TICKERBOT_GATEWAY_PASSWORD into this file and exit")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *sealPath != "" {
		if err := sealSecret(*sealPath); err != nil {
			logger.Error("seal secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("secret sealed", slog.String("path", *sealPath))
		return
	}

	if err := run(*configPath, level, logger); err != nil {
		logger.Error("tickerbot exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	logger.Info("tickerbot stopped")
}

func run(configPath string, level *slog.LevelVar, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	logger.Info("tickerbot starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
	)
	logger.Debug("effective configuration", slog.Any("config", config.RedactedConfig(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// sealSecret writes the gateway secret from the environment, encrypted with
// the gateway password, to path.
func sealSecret(path string) error {
	blob, err := crypto.EncryptSecret(os.Getenv("TICKERBOT_GATEWAY_SECRET"), os.Getenv("TICKERBOT_GATEWAY_PASSWORD"))
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o600)
}
