package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/service"
)

// MarketService defines the methods that the bond handler requires.
type MarketService interface {
	List(f service.BondFilter) []domain.Bond
	Lookup(ctx context.Context, id string) (domain.Bond, error)
	Sectors() []domain.Sector
	Analytics(id string, frequency int) (service.BondAnalytics, error)
}

// BondHandler serves the bond catalog.
type BondHandler struct {
	market MarketService
	logger *slog.Logger
}

// NewBondHandler creates a BondHandler.
func NewBondHandler(market MarketService, logger *slog.Logger) *BondHandler {
	return &BondHandler{market: market, logger: logger}
}

type listBondsResponse struct {
	Bonds   []domain.Bond   `json:"bonds"`
	Count   int             `json:"count"`
	Sectors []domain.Sector `json:"sectors"`
}

// ListBonds returns the catalog, optionally filtered, with the sectors of the
// whole catalog as a facet.
// GET /api/bonds?sector=&rating=&q=
func (h *BondHandler) ListBonds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bonds := h.market.List(service.BondFilter{
		Sector: domain.Sector(q.Get("sector")),
		Rating: domain.Rating(q.Get("rating")),
		Query:  q.Get("q"),
	})
	writeJSON(w, http.StatusOK, listBondsResponse{
		Bonds:   bonds,
		Count:   len(bonds),
		Sectors: h.market.Sectors(),
	})
}

// GetBond returns one bond, including bonds only the catalog mirror still
// holds.
// GET /api/bonds/{id}
func (h *BondHandler) GetBond(w http.ResponseWriter, r *http.Request) {
	b, err := h.market.Lookup(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get bond", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetAnalytics returns the implied yield and risk measures at the quoted
// price.
// GET /api/bonds/{id}/analytics?frequency=
func (h *BondHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	freq, err := queryInt(r, "frequency", 0)
	if err != nil || freq < 0 {
		writeError(w, http.StatusBadRequest, "frequency must be a non-negative integer")
		return
	}
	a, err := h.market.Analytics(pathParam(r, "id"), freq)
	if err != nil {
		writeServiceError(w, r, h.logger, "bond analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
