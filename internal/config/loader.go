package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BONDDESK_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BONDDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Redis ──
	setStr(&cfg.Redis.URL, "BONDDESK_REDIS_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL") // compatibility alias
	setStr(&cfg.Redis.Addr, "BONDDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BONDDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BONDDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BONDDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BONDDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BONDDESK_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BONDDESK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BONDDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "BONDDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BONDDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BONDDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BONDDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BONDDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BONDDESK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BONDDESK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BONDDESK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BONDDESK_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BONDDESK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BONDDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BONDDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "BONDDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BONDDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BONDDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BONDDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BONDDESK_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setStr(&cfg.Market.Source, "BONDDESK_MARKET_SOURCE")
	setStr(&cfg.Market.Path, "BONDDESK_MARKET_PATH")
	setStr(&cfg.Market.Key, "BONDDESK_MARKET_KEY")
	setInt(&cfg.Market.Frequency, "BONDDESK_MARKET_FREQUENCY")
	setDuration(&cfg.Market.RefreshInterval, "BONDDESK_MARKET_REFRESH_INTERVAL")
	setBool(&cfg.Market.SyncToPostgres, "BONDDESK_MARKET_SYNC_TO_POSTGRES")

	// ── Ledger / scenario / archive ──
	setStr(&cfg.Ledger.SnapshotPrefix, "BONDDESK_LEDGER_SNAPSHOT_PREFIX")
	setStr(&cfg.Ledger.EventPrefix, "BONDDESK_LEDGER_EVENT_PREFIX")
	setStr(&cfg.Scenario.YieldSource, "BONDDESK_SCENARIO_YIELD_SOURCE")
	setInt(&cfg.Scenario.Top, "BONDDESK_SCENARIO_TOP")
	setInt(&cfg.Archive.RetentionDays, "BONDDESK_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Blotter, "BONDDESK_ARCHIVE_BLOTTER")
	setDuration(&cfg.Archive.Interval, "BONDDESK_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "BONDDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BONDDESK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BONDDESK_SERVER_API_KEY")
	setInt(&cfg.Server.TradeRateLimit, "BONDDESK_SERVER_TRADE_RATE_LIMIT")
	setDuration(&cfg.Server.TradeRateWindow, "BONDDESK_SERVER_TRADE_RATE_WINDOW")
	setStringSlice(&cfg.Server.TrustedProxies, "BONDDESK_SERVER_TRUSTED_PROXIES")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BONDDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BONDDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BONDDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BONDDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BONDDESK_MODE")
	setStr(&cfg.LogLevel, "BONDDESK_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and parses.

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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
