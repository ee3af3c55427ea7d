package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/bonddesk/internal/blob/s3"
	"github.com/alanyoungcy/bonddesk/internal/config"
	"github.com/alanyoungcy/bonddesk/internal/ledger"
	"github.com/alanyoungcy/bonddesk/internal/notify"
	"github.com/alanyoungcy/bonddesk/internal/server"
	"github.com/alanyoungcy/bonddesk/internal/server/handler"
	"github.com/alanyoungcy/bonddesk/internal/server/ws"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// services is the service layer shared by the modes.
type services struct {
	market    *service.MarketService
	portfolio *service.PortfolioService
	scenario  *service.ScenarioService
	calc      *service.CalculatorService
}

// buildServices loads the catalog and restores the ledger.
func (a *App) buildServices(ctx context.Context, deps *Dependencies) (*services, error) {
	source, err := bondSource(a.cfg.Market, deps)
	if err != nil {
		return nil, err
	}
	var opts []service.MarketOption
	if a.cfg.Market.SyncToPostgres && deps.Bonds != nil {
		opts = append(opts, service.WithMirror(deps.Bonds))
	}
	market := service.NewMarketService(source, a.cfg.Market.Frequency, deps.Metrics, a.logger, opts...)
	if err := market.Load(ctx); err != nil {
		return nil, err
	}

	l := ledger.New()
	portfolio := service.NewPortfolioService(l, market, deps.Snapshots, deps.Bus, deps.Audit,
		deps.Notifier, deps.Metrics, a.logger)
	if err := portfolio.Restore(ctx); err != nil {
		return nil, err
	}

	return &services{
		market:    market,
		portfolio: portfolio,
		scenario: service.NewScenarioService(l, market,
			service.YieldSource(a.cfg.Scenario.YieldSource), a.cfg.Scenario.Top, deps.Metrics, a.logger),
		calc: service.NewCalculatorService(deps.Metrics, a.logger),
	}, nil
}

// ServerMode serves the JSON API and WebSocket hub until ctx is cancelled,
// with the optional catalog refresh and archive loops alongside.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting server mode")

	svc, err := a.buildServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Status:         func() any { return svc.portfolio.Summary(ctx).Exposure },
		Gauge:          deps.Metrics,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		TradeRateLimit:  a.cfg.Server.TradeRateLimit,
		TradeRateWindow: a.cfg.Server.TradeRateWindow.Duration,
		TrustedProxies:  a.cfg.Server.TrustedProxies,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(deps.Checks, a.logger),
		Bonds:      handler.NewBondHandler(svc.market, a.logger),
		Calculator: handler.NewCalculatorHandler(svc.calc, a.logger),
		Portfolio:  handler.NewPortfolioHandler(svc.portfolio, a.logger),
		Scenario:   handler.NewScenarioHandler(svc.scenario, a.logger),
		Metrics:    deps.Metrics.Handler(),
	}, server.Deps{
		Hub:      hub,
		Limiter:  deps.Limiter,
		Observer: deps.Metrics,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if every := a.cfg.Market.RefreshInterval.Duration; every > 0 {
		g.Go(func() error {
			return svc.market.RunRefresh(ctx, every)
		})
	}

	if every := a.cfg.Archive.Interval.Duration; every > 0 && deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(deps.BlobWriter, svc.portfolio, deps.Audit, a.cfg.Archive.Blotter)
		g.Go(func() error {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := a.archive(ctx, archiver, deps.Notifier); err != nil {
						a.logger.ErrorContext(ctx, "app: scheduled archive failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	return g.Wait()
}

// ImportMode loads the configured csv or s3 catalog into Postgres and exits.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting import mode")

	if deps.Bonds == nil {
		return errors.New("app: import mode: postgres is not enabled")
	}
	source, err := bondSource(a.cfg.Market, deps)
	if err != nil {
		return fmt.Errorf("app: import mode: %w", err)
	}
	bonds, err := source.LoadBonds(ctx)
	if err != nil {
		return fmt.Errorf("app: import mode: %w", err)
	}
	if err := deps.Bonds.UpsertBatch(ctx, bonds); err != nil {
		return fmt.Errorf("app: import mode: %w", err)
	}

	if deps.Audit != nil {
		if err := deps.Audit.Log(ctx, "catalog.import", map[string]any{
			"source": a.cfg.Market.Source,
			"count":  len(bonds),
		}); err != nil {
			a.logger.WarnContext(ctx, "app: audit log failed", slog.String("error", err.Error()))
		}
	}
	a.logger.InfoContext(ctx, "app: import complete", slog.Int("count", len(bonds)))
	return nil
}

// ArchiveMode copies trades past the retention window to S3 and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "app: starting archive mode")

	if deps.BlobWriter == nil {
		return errors.New("app: archive mode: s3 is not enabled")
	}
	l := ledger.New()
	portfolio := service.NewPortfolioService(l, nil, deps.Snapshots, nil, deps.Audit,
		deps.Notifier, deps.Metrics, a.logger)
	if err := portfolio.Restore(ctx); err != nil {
		return fmt.Errorf("app: archive mode: %w", err)
	}

	archiver := s3blob.NewArchiver(deps.BlobWriter, portfolio, deps.Audit, a.cfg.Archive.Blotter)
	return a.archive(ctx, archiver, deps.Notifier)
}

// archive runs one archive pass with the configured retention.
func (a *App) archive(ctx context.Context, archiver *s3blob.Archiver, notifier *notify.Notifier) error {
	cutoff := archiveCutoff(a.cfg.Archive, time.Now())
	n, err := archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "app: trades archived",
		slog.Int64("count", n),
		slog.Time("before", cutoff),
	)
	if n > 0 {
		msg := fmt.Sprintf("%d trades before %s archived", n, cutoff.Format(time.DateOnly))
		if err := notifier.Notify(ctx, notify.EventArchiveComplete, "Archive complete", msg); err != nil {
			a.logger.WarnContext(ctx, "app: notify failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// archiveCutoff returns the start of the UTC day RetentionDays before now.
func archiveCutoff(cfg config.ArchiveConfig, now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -cfg.RetentionDays)
}
