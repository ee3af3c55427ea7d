package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/marketdata"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// PortfolioService defines the methods that the portfolio handler requires.
type PortfolioService interface {
	Summary(ctx context.Context) service.PortfolioSummary
	Trades() []domain.Trade
	Trade(ctx context.Context, in service.TradeInput) (domain.TradeResult, error)
}

// PortfolioHandler serves the ledger.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

// GetPortfolio returns cash, marked positions, valuation and exposure.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.portfolio.Summary(r.Context()))
}

type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
	Count  int            `json:"count"`
}

// ListTrades returns the trade log, oldest first.
// GET /api/portfolio/trades
func (h *PortfolioHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades := h.portfolio.Trades()
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades, Count: len(trades)})
}

// ExportTrades returns the trade log as a CSV blotter.
// GET /api/portfolio/trades.csv
func (h *PortfolioHandler) ExportTrades(w http.ResponseWriter, r *http.Request) {
	data, err := marketdata.TradesCSV(h.portfolio.Trades())
	if err != nil {
		writeServiceError(w, r, h.logger, "export trades", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		`attachment; filename="trades-`+time.Now().UTC().Format(time.DateOnly)+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// PlaceTrade executes a trade at the market price. A filled trade is 200;
// insufficient cash or holdings is 409 with the result as body.
// POST /api/portfolio/trades
func (h *PortfolioHandler) PlaceTrade(w http.ResponseWriter, r *http.Request) {
	var in service.TradeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.BondID == "" {
		writeError(w, http.StatusBadRequest, "bond_id is required")
		return
	}

	res, err := h.portfolio.Trade(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, "place trade", err)
		return
	}
	if !res.OK() {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
