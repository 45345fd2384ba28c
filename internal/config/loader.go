package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "TICKERBOT_FEED_ENABLED")
	setStr(&cfg.Feed.WSURL, "TICKERBOT_FEED_WS_URL")
	setStr(&cfg.Feed.SnapshotURL, "TICKERBOT_FEED_SNAPSHOT_URL")
	setDuration(&cfg.Feed.PublishInterval, "TICKERBOT_FEED_PUBLISH_INTERVAL")

	// ── Gateway ──
	setStr(&cfg.Gateway.BaseURL, "TICKERBOT_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.Key, "TICKERBOT_GATEWAY_KEY")
	setStr(&cfg.Gateway.Secret, "TICKERBOT_GATEWAY_SECRET")
	setStr(&cfg.Gateway.SecretFile, "TICKERBOT_GATEWAY_SECRET_FILE")
	setStr(&cfg.Gateway.Password, "TICKERBOT_GATEWAY_PASSWORD")
	setInt(&cfg.Gateway.RateLimit, "TICKERBOT_GATEWAY_RATE_LIMIT")

	// ── Risk ──
	setDecimal(&cfg.Risk.MaxOrderTotal, "TICKERBOT_RISK_MAX_ORDER_TOTAL")
	setDecimal(&cfg.Risk.MaxSlippageBps, "TICKERBOT_RISK_MAX_SLIPPAGE_BPS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TICKERBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "TICKERBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TICKERBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TICKERBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TICKERBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TICKERBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TICKERBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TICKERBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TICKERBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TICKERBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TICKERBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TICKERBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TICKERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TICKERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TICKERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TICKERBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "TICKERBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TICKERBOT_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TICKERBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TICKERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TICKERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "TICKERBOT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "TICKERBOT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "TICKERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TICKERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "TICKERBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TICKERBOT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "TICKERBOT_ARCHIVE_RETENTION")
	setStr(&cfg.Archive.Cron, "TICKERBOT_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TICKERBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TICKERBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TICKERBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TICKERBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TICKERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TICKERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TICKERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TICKERBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TICKERBOT_MODE")
	setStr(&cfg.LogLevel, "TICKERBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDecimal(dst *Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			dst.Decimal = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
