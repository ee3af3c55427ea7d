package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/bonddesk/internal/domain"
)

// maxShockBps bounds client-supplied shocks.
const maxShockBps = 2000

// ScenarioService defines the methods that the scenario handler requires.
type ScenarioService interface {
	Project(shockBps float64, top int) (domain.Projection, error)
	Ladder(shocks []float64) ([]domain.Projection, error)
}

// ScenarioHandler serves yield-shock projections.
type ScenarioHandler struct {
	scenarios ScenarioService
	logger    *slog.Logger
}

// NewScenarioHandler creates a ScenarioHandler.
func NewScenarioHandler(scenarios ScenarioService, logger *slog.Logger) *ScenarioHandler {
	return &ScenarioHandler{scenarios: scenarios, logger: logger}
}

// Project runs one parallel shock.
// GET /api/scenario?shock_bps=&top=
func (h *ScenarioHandler) Project(w http.ResponseWriter, r *http.Request) {
	shock, err := queryFloat(r, "shock_bps", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if shock < -maxShockBps || shock > maxShockBps {
		writeError(w, http.StatusBadRequest, "shock_bps out of range")
		return
	}
	top, err := queryInt(r, "top", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.scenarios.Project(shock, top)
	if err != nil {
		writeServiceError(w, r, h.logger, "project scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type ladderResponse struct {
	Projections []domain.Projection `json:"projections"`
}

// Ladder runs a list of shocks, the default slider range when none given.
// GET /api/scenario/ladder?shocks=-100,0,100
func (h *ScenarioHandler) Ladder(w http.ResponseWriter, r *http.Request) {
	var shocks []float64
	if raw := r.URL.Query().Get("shocks"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil || !(v >= -maxShockBps && v <= maxShockBps) {
				writeError(w, http.StatusBadRequest, "shocks must be numbers within ±2000")
				return
			}
			shocks = append(shocks, v)
		}
	}

	out, err := h.scenarios.Ladder(shocks)
	if err != nil {
		writeServiceError(w, r, h.logger, "scenario ladder", err)
		return
	}
	writeJSON(w, http.StatusOK, ladderResponse{Projections: out})
}
