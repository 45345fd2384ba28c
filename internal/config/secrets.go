package config

import (
	"maps"
	"slices"
)

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Gateway.Key)
	redact(&out.Gateway.Secret)
	redact(&out.Gateway.Password)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Server.APIKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Instruments = slices.Clone(cfg.Instruments)
	out.Strategies = slices.Clone(cfg.Strategies)
	out.Accounts = make([]AccountConfig, len(cfg.Accounts))
	for i, a := range cfg.Accounts {
		a.Balances = maps.Clone(a.Balances)
		out.Accounts[i] = a
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
