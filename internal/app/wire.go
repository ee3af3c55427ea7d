package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/bonddesk/internal/blob/s3"
	"github.com/alanyoungcy/bonddesk/internal/cache/redis"
	"github.com/alanyoungcy/bonddesk/internal/config"
	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/marketdata"
	"github.com/alanyoungcy/bonddesk/internal/metrics"
	"github.com/alanyoungcy/bonddesk/internal/notify"
	"github.com/alanyoungcy/bonddesk/internal/server/handler"
	"github.com/alanyoungcy/bonddesk/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional backends are nil when disabled.
type Dependencies struct {
	// Redis
	Snapshots domain.SnapshotStore
	Bus       domain.EventBus
	Limiter   domain.RateLimiter

	// Postgres (optional)
	Bonds domain.BondStore
	Audit domain.AuditLog

	// S3 (optional)
	BlobReader domain.BlobReader
	BlobWriter domain.BlobWriter

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
	Checks   map[string]handler.HealthCheck
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

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  map[string]handler.HealthCheck{},
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		URL:        cfg.Redis.URL,
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Snapshots = redis.NewSnapshotStore(redisClient, cfg.Ledger.SnapshotPrefix, logger)
	deps.Bus = redis.NewEventBus(redisClient, cfg.Ledger.EventPrefix)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.Checks["redis"] = redisClient.Ping

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Bonds = postgres.NewBondStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pool.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// bondSource picks the market-data source named by cfg.Market.Source.
func bondSource(cfg config.MarketConfig, deps *Dependencies) (domain.BondSource, error) {
	switch cfg.Source {
	case config.SourceCSV:
		return marketdata.FileSource{Path: cfg.Path}, nil
	case config.SourceS3:
		if deps.BlobReader == nil {
			return nil, fmt.Errorf("wire: s3 market source needs s3 enabled")
		}
		return marketdata.BlobSource{Reader: deps.BlobReader, Path: cfg.Key}, nil
	case config.SourcePostgres:
		if deps.Bonds == nil {
			return nil, fmt.Errorf("wire: postgres market source needs postgres enabled")
		}
		return deps.Bonds, nil
	default:
		return nil, fmt.Errorf("wire: unknown market source %q", cfg.Source)
	}
}
