package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/server/handler"
	"github.com/alanyoungcy/bonddesk/internal/server/middleware"
	"github.com/alanyoungcy/bonddesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// TradeRateLimit caps trade submissions per client per TradeRateWindow.
	// Zero disables the limit.
	TradeRateLimit  int
	TradeRateWindow time.Duration
	// TrustedProxies lists CIDRs or addresses whose forwarding headers name
	// the client for rate limiting.
	TrustedProxies []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Bonds      *handler.BondHandler
	Calculator *handler.CalculatorHandler
	Portfolio  *handler.PortfolioHandler
	Scenario   *handler.ScenarioHandler
	Metrics    http.Handler // optional
}

// Deps are the cross-cutting collaborators of the middleware chain. Every
// field is optional.
type Deps struct {
	Hub      *ws.Hub
	Limiter  domain.RateLimiter
	Observer middleware.RequestObserver
}

// Server is the JSON + WebSocket API of the desk.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered on one ServeMux and
// the logging, CORS and auth middleware applied.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/bonds", handlers.Bonds.ListBonds)
	mux.HandleFunc("GET /api/bonds/{id}", handlers.Bonds.GetBond)
	mux.HandleFunc("GET /api/bonds/{id}/analytics", handlers.Bonds.GetAnalytics)

	mux.HandleFunc("POST /api/calculator", handlers.Calculator.Calculate)

	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)
	mux.HandleFunc("GET /api/portfolio/trades", handlers.Portfolio.ListTrades)
	mux.HandleFunc("GET /api/portfolio/trades.csv", handlers.Portfolio.ExportTrades)

	var placeTrade http.Handler = http.HandlerFunc(handlers.Portfolio.PlaceTrade)
	if deps.Limiter != nil && cfg.TradeRateLimit > 0 {
		trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			logger.Warn("server: skipping invalid trusted proxies", slog.String("error", err.Error()))
		}
		placeTrade = middleware.RateLimit(deps.Limiter, "trades", cfg.TradeRateLimit, cfg.TradeRateWindow, trusted, logger)(placeTrade)
	}
	mux.Handle("POST /api/portfolio/trades", placeTrade)

	mux.HandleFunc("GET /api/scenario", handlers.Scenario.Project)
	mux.HandleFunc("GET /api/scenario/ladder", handlers.Scenario.Ladder)

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.Logging(logger, deps.Observer)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
