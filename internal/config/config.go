// Package config defines the top-level configuration for the bond desk and
// provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/notify"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BONDDESK_* environment variables.
type Config struct {
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Market   MarketConfig   `toml:"market"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Scenario ScenarioConfig `toml:"scenario"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RedisConfig holds Redis connection parameters. Redis carries the ledger
// snapshot, the event bus and the rate limiter, so it is always required.
type RedisConfig struct {
	// URL (redis:// or rediss://) wins over the individual fields.
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters. Postgres is
// optional; it backs the bond catalog mirror and the audit log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// Prefix is prepended to every object key, e.g. "bonddesk/".
	Prefix string `toml:"prefix"`
}

// Market data sources.
const (
	SourceCSV      = "csv"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
)

// MarketConfig selects and tunes the market-data source.
type MarketConfig struct {
	Source string `toml:"source"`
	// Path is the CSV file for the csv source.
	Path string `toml:"path"`
	// Key is the object key for the s3 source.
	Key string `toml:"key"`
	// Frequency is the coupon frequency assumed for catalog bonds.
	Frequency int `toml:"frequency"`
	// RefreshInterval reloads the catalog periodically. Zero disables it.
	RefreshInterval duration `toml:"refresh_interval"`
	// SyncToPostgres mirrors every loaded catalog into the bonds table.
	SyncToPostgres bool `toml:"sync_to_postgres"`
}

// LedgerConfig names the Redis keys of the ledger.
type LedgerConfig struct {
	SnapshotPrefix string `toml:"snapshot_prefix"`
	EventPrefix    string `toml:"event_prefix"`
}

// ScenarioConfig tunes the yield-shock projections.
type ScenarioConfig struct {
	// YieldSource is "implied" (solved from the market price) or "quoted".
	YieldSource string `toml:"yield_source"`
	Top         int    `toml:"top"`
}

// ArchiveConfig controls the trade-log archive run.
type ArchiveConfig struct {
	// RetentionDays archives trades older than this many days.
	RetentionDays int `toml:"retention_days"`
	// Blotter also writes a CSV blotter next to the JSONL archive.
	Blotter bool `toml:"blotter"`
	// Interval repeats the archive inside server mode. Zero disables it.
	Interval duration `toml:"interval"`
}

// duration is a time.Duration that decodes from TOML strings like "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so that BurntSushi/toml
// can decode duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// TradeRateLimit caps trade submissions per client per TradeRateWindow.
	TradeRateLimit  int      `toml:"trade_rate_limit"`
	TradeRateWindow duration `toml:"trade_rate_window"`
	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For
	// and X-Real-IP. Empty means the peer address always names the client.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with sensible default values. A TOML
// file is decoded on top of these, so only the fields it sets change.
func Defaults() Config {
	return Config{
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bonddesk-data",
			ForcePathStyle: true,
		},
		Market: MarketConfig{
			Source:    SourceCSV,
			Path:      "data/bonds.csv",
			Key:       "market/bonds.csv",
			Frequency: 2,
		},
		Ledger: LedgerConfig{
			SnapshotPrefix: "bond_trading",
			EventPrefix:    "bonddesk",
		},
		Scenario: ScenarioConfig{
			YieldSource: "implied",
			Top:         8,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Blotter:       true,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			TradeRateLimit:  30,
			TradeRateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_rejected", "snapshot_failed", "archive_complete"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"import":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFrequencies = map[int]bool{1: true, 2: true, 4: true, 12: true}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// Validate checks the configuration for internal consistency and returns a
// combined error describing every problem found, or nil when valid.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, import, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Redis.Addr == "" && c.Redis.URL == "" {
		errs = append(errs, "redis.addr or redis.url is required")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres.dsn or postgres.host is required when postgres is enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3.bucket is required when s3 is enabled")
	}

	switch c.Market.Source {
	case SourceCSV:
		if c.Market.Path == "" {
			errs = append(errs, "market.path is required for the csv source")
		}
	case SourceS3:
		if !c.S3.Enabled {
			errs = append(errs, "market.source \"s3\" requires s3.enabled")
		}
		if c.Market.Key == "" {
			errs = append(errs, "market.key is required for the s3 source")
		}
	case SourcePostgres:
		if !c.Postgres.Enabled {
			errs = append(errs, "market.source \"postgres\" requires postgres.enabled")
		}
		if c.Market.SyncToPostgres {
			errs = append(errs, "market.sync_to_postgres cannot mirror the postgres source into itself")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown market.source %q (valid: csv, s3, postgres)", c.Market.Source))
	}
	if c.Market.SyncToPostgres && !c.Postgres.Enabled {
		errs = append(errs, "market.sync_to_postgres requires postgres.enabled")
	}
	if !validFrequencies[c.Market.Frequency] {
		errs = append(errs, fmt.Sprintf("market.frequency %d must be 1, 2, 4 or 12", c.Market.Frequency))
	}
	if c.Market.RefreshInterval.Duration < 0 {
		errs = append(errs, "market.refresh_interval must not be negative")
	}

	if c.Ledger.SnapshotPrefix == "" {
		errs = append(errs, "ledger.snapshot_prefix is required")
	}

	if c.Scenario.YieldSource != "implied" && c.Scenario.YieldSource != "quoted" {
		errs = append(errs, fmt.Sprintf("unknown scenario.yield_source %q (valid: implied, quoted)", c.Scenario.YieldSource))
	}
	if c.Scenario.Top < 0 {
		errs = append(errs, "scenario.top must not be negative")
	}

	if c.Archive.RetentionDays < 0 {
		errs = append(errs, "archive.retention_days must not be negative")
	}
	if (mode == "archive" || c.Archive.Interval.Duration > 0) && !c.S3.Enabled {
		errs = append(errs, "archiving requires s3.enabled")
	}

	if mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if c.Server.TradeRateLimit < 0 {
			errs = append(errs, "server.trade_rate_limit must not be negative")
		}
		if c.Server.TradeRateLimit > 0 && c.Server.TradeRateWindow.Duration <= 0 {
			errs = append(errs, "server.trade_rate_window must be positive when a trade rate limit is set")
		}
		for _, p := range c.Server.TrustedProxies {
			if !validProxy(p) {
				errs = append(errs, fmt.Sprintf("server.trusted_proxies entry %q is not a CIDR or IP address", p))
			}
		}
	}
	if mode == "import" && c.Market.Source == SourcePostgres {
		errs = append(errs, "import mode loads into postgres and needs a csv or s3 market.source")
	}
	if mode == "import" && !c.Postgres.Enabled {
		errs = append(errs, "import mode requires postgres.enabled")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify.telegram_token and notify.telegram_chat_id must be set together")
	}
	for _, e := range c.Notify.Events {
		if e = strings.TrimSpace(e); e != "" && !notify.KnownEvent(e) {
			errs = append(errs, fmt.Sprintf("unknown notify event %q (valid: %s)", e, strings.Join(notify.Events, ", ")))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
