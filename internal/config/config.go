// Package config defines the top-level configuration for tickerbot and
// provides validation helpers.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TICKERBOT_* environment variables.
type Config struct {
	Mode        string             `toml:"mode"`
	LogLevel    string             `toml:"log_level"`
	Feed        FeedConfig         `toml:"feed"`
	Instruments []InstrumentConfig `toml:"instruments"`
	Accounts    []AccountConfig    `toml:"accounts"`
	// Strategies are listed in priority order, highest first.
	Strategies []StrategyConfig `toml:"strategies"`
	Gateway    GatewayConfig    `toml:"gateway"`
	Risk       RiskConfig       `toml:"risk"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
}

// FeedConfig holds the market data connection.
type FeedConfig struct {
	Enabled bool   `toml:"enabled"`
	WSURL   string `toml:"ws_url"`
	// SnapshotURL returns the full exchange-state JSON of one ticker;
	// "{ticker}" is replaced by the exchange-native name. Empty disables
	// resynchronization.
	SnapshotURL     string   `toml:"snapshot_url"`
	SnapshotTimeout duration `toml:"snapshot_timeout"`
	PublishInterval duration `toml:"publish_interval"`
	PublishDepth    int      `toml:"publish_depth"`
}

// InstrumentConfig declares one traded instrument.
type InstrumentConfig struct {
	Exchange       string   `toml:"exchange"`
	Name           string   `toml:"name"`
	BaseCurrency   string   `toml:"base_currency"`
	MarketCurrency string   `toml:"market_currency"`
	Fee            Decimal  `toml:"fee"` // percent, e.g. 0.25
	CandlePeriod   duration `toml:"candle_period"`
	CandleLimit    int      `toml:"candle_limit"`
	HistoryLimit   int      `toml:"history_limit"`
	InvertedAsks   bool     `toml:"inverted_asks"`
}

// Key returns "exchange:name".
func (i InstrumentConfig) Key() string { return i.Exchange + ":" + i.Name }

// AccountConfig seeds an exchange account.
type AccountConfig struct {
	Name     string             `toml:"name"`
	Exchange string             `toml:"exchange"`
	Balances map[string]Decimal `toml:"balances"`
}

// StrategyConfig declares one ticker strategy.
type StrategyConfig struct {
	Name              string  `toml:"name"`
	Kind              string  `toml:"kind"`
	Enabled           *bool   `toml:"enabled"` // defaults to true
	Demo              bool    `toml:"demo"`
	Exchange          string  `toml:"exchange"`
	Ticker            string  `toml:"ticker"`
	Account           string  `toml:"account"`
	MaxAllowedDeposit Decimal `toml:"max_allowed_deposit"`
	BuyLevel          Decimal `toml:"buy_level"`
	SellLevel         Decimal `toml:"sell_level"`
	InitialState      string  `toml:"initial_state"`
	// MaxActualBuyDeposit presets the buy budget; unset derives it.
	MaxActualBuyDeposit *Decimal `toml:"max_actual_buy_deposit"`
	Interval            duration `toml:"interval"`
	ResultLimit         int      `toml:"result_limit"`
}

// IsEnabled reports whether the strategy should run.
func (s StrategyConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// GatewayConfig holds the exchange REST API used for live orders.
type GatewayConfig struct {
	BaseURL string `toml:"base_url"`
	Key     string `toml:"key"`
	// Secret is the plaintext API secret. Alternatively SecretFile points to
	// a sealed secret opened with Password.
	Secret     string   `toml:"secret"`
	SecretFile string   `toml:"secret_file"`
	Password   string   `toml:"password"`
	Timeout    duration `toml:"timeout"`
	RateLimit  int      `toml:"rate_limit"` // requests per rate_window, 0 = unlimited
	RateWindow duration `toml:"rate_window"`
}

// RiskConfig holds pre-trade limits for live orders. Zero disables a check.
type RiskConfig struct {
	MaxOrderTotal  Decimal `toml:"max_order_total"`
	MaxSlippageBps Decimal `toml:"max_slippage_bps"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled        bool     `toml:"enabled"`
	DSN            string   `toml:"dsn"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Database       string   `toml:"database"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SSLMode        string   `toml:"ssl_mode"`
	PoolMaxConns   int      `toml:"pool_max_conns"`
	PoolMinConns   int      `toml:"pool_min_conns"`
	ConnectTimeout duration `toml:"connect_timeout"`
	RunMigrations  bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls moving old rows from Postgres to S3.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Retention duration `toml:"retention"`
	Cron      string   `toml:"cron"`
	BatchSize int      `toml:"batch_size"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per client per rate_window; needs Redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// Duration wraps d for use in a Config literal.
func Duration(d time.Duration) duration { return duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Decimal is a decimal.Decimal that decodes from a TOML string, integer or
// float. Strings are preferred since floats lose precision.
type Decimal struct {
	decimal.Decimal
}

// Dec parses s, panicking on bad input. For defaults and tests.
func Dec(s string) Decimal { return Decimal{decimal.RequireFromString(s)} }

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Decimal) UnmarshalTOML(v any) error {
	var err error
	switch x := v.(type) {
	case string:
		d.Decimal, err = decimal.NewFromString(strings.TrimSpace(x))
	case int64:
		d.Decimal = decimal.NewFromInt(x)
	case float64:
		d.Decimal, err = decimal.NewFromString(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		err = fmt.Errorf("cannot decode %T as decimal", v)
	}
	return err
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     "demo",
		LogLevel: "info",
		Feed: FeedConfig{
			Enabled:         true,
			WSURL:           "wss://socket.bittrex.com/signalr",
			SnapshotTimeout: duration{10 * time.Second},
			PublishInterval: duration{time.Second},
			PublishDepth:    50,
		},
		Gateway: GatewayConfig{
			BaseURL:    "https://api.bittrex.com/v3",
			Timeout:    duration{10 * time.Second},
			RateLimit:  60,
			RateWindow: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "tickerbot",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			ConnectTimeout: duration{10 * time.Second},
			RunMigrations:  true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "tickerbot:",
			LockTTL:    duration{24 * time.Hour},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tickerbot-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Retention: duration{30 * 24 * time.Hour},
			Cron:      "0 3 * * *",
			BatchSize: 5000,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events:   []string{"strategy_error", "state_change", "trade"},
			Cooldown: duration{time.Minute},
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"demo":    true,
	"live":    true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: demo, live, monitor)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Feed
	if c.Feed.Enabled {
		if c.Feed.WSURL == "" {
			add("feed: ws_url must not be empty when enabled")
		}
		if c.Feed.SnapshotURL != "" && !strings.Contains(c.Feed.SnapshotURL, "{ticker}") {
			add("feed: snapshot_url must contain {ticker}")
		}
	}
	if c.Feed.PublishInterval.Duration <= 0 {
		add("feed: publish_interval must be > 0")
	}

	// Instruments
	instruments := make(map[string]InstrumentConfig, len(c.Instruments))
	for i, in := range c.Instruments {
		if in.Exchange == "" || in.Name == "" {
			add("instruments[%d]: exchange and name are required", i)
			continue
		}
		if _, dup := instruments[in.Key()]; dup {
			add("instruments[%d]: duplicate instrument %s", i, in.Key())
		}
		instruments[in.Key()] = in
		if in.BaseCurrency == "" || in.MarketCurrency == "" {
			add("instruments[%d]: base_currency and market_currency are required", i)
		}
		if in.Fee.IsNegative() || in.Fee.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			add("instruments[%d]: fee must be in [0, 100) percent, got %s", i, in.Fee)
		}
	}

	// Accounts
	accounts := make(map[string]AccountConfig, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.Name == "" {
			add("accounts[%d]: name is required", i)
			continue
		}
		if _, dup := accounts[a.Name]; dup {
			add("accounts[%d]: duplicate account %q", i, a.Name)
		}
		accounts[a.Name] = a
		for cur, bal := range a.Balances {
			if bal.IsNegative() {
				add("accounts[%d]: balance of %s must not be negative", i, cur)
			}
		}
	}

	// Strategies
	names := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Name == "" {
			add("strategies[%d]: name is required", i)
		} else if names[s.Name] {
			add("strategies[%d]: duplicate strategy %q", i, s.Name)
		}
		names[s.Name] = true
		if s.Kind == "" {
			add("strategies[%d]: kind is required", i)
		}
		if _, ok := instruments[s.Exchange+":"+s.Ticker]; !ok {
			add("strategies[%d]: unknown instrument %s:%s", i, s.Exchange, s.Ticker)
		}
		acc, ok := accounts[s.Account]
		if !ok {
			add("strategies[%d]: unknown account %q", i, s.Account)
		} else if acc.Exchange != "" && acc.Exchange != s.Exchange {
			add("strategies[%d]: account %q is on %s, not %s", i, s.Account, acc.Exchange, s.Exchange)
		}
		if s.MaxAllowedDeposit.IsNegative() {
			add("strategies[%d]: max_allowed_deposit must not be negative", i)
		}
		if s.BuyLevel.IsNegative() || s.SellLevel.IsNegative() {
			add("strategies[%d]: buy_level and sell_level must not be negative", i)
		}
		switch s.InitialState {
		case "", "waiting_for_buy", "waiting_for_sell":
		default:
			add("strategies[%d]: unknown initial_state %q", i, s.InitialState)
		}
	}
	// Gateway: live orders need credentials.
	if mode == "live" {
		if c.Gateway.BaseURL == "" {
			add("gateway: base_url must not be empty for mode live")
		}
		if c.Gateway.Key == "" {
			add("gateway: key is required for mode live")
		}
		if c.Gateway.Secret == "" && c.Gateway.SecretFile == "" {
			add("gateway: either secret or secret_file must be set for mode live")
		}
		if c.Gateway.SecretFile != "" && c.Gateway.Password == "" {
			add("gateway: password is required when secret_file is set")
		}
	}
	if c.Gateway.RateLimit < 0 {
		add("gateway: rate_limit must be >= 0")
	}

	// Risk
	if c.Risk.MaxOrderTotal.IsNegative() {
		add("risk: max_order_total must not be negative")
	}
	if c.Risk.MaxSlippageBps.IsNegative() {
		add("risk: max_slippage_bps must not be negative")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			add("redis: lock_ttl must be > 0")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if !c.Postgres.Enabled || !c.S3.Enabled {
			add("archive: requires postgres and s3 to be enabled")
		}
		if c.Archive.Retention.Duration <= 0 {
			add("archive: retention must be > 0")
		}
		if len(strings.Fields(c.Archive.Cron)) != 5 {
			add("archive: cron must have 5 fields, got %q", c.Archive.Cron)
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			add("server: rate_limit must be >= 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
