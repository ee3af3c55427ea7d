package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bonddesk/internal/service"
)

// CalculatorService defines the methods that the calculator handler requires.
type CalculatorService interface {
	Evaluate(in service.CalculatorInput) (service.CalculatorResult, error)
}

// CalculatorHandler serves the yield calculator.
type CalculatorHandler struct {
	calc   CalculatorService
	logger *slog.Logger
}

// NewCalculatorHandler creates a CalculatorHandler.
func NewCalculatorHandler(calc CalculatorService, logger *slog.Logger) *CalculatorHandler {
	return &CalculatorHandler{calc: calc, logger: logger}
}

// Calculate prices an ad-hoc bond.
// POST /api/calculator
func (h *CalculatorHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var in service.CalculatorInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.calc.Evaluate(in)
	if err != nil {
		writeServiceError(w, r, h.logger, "calculate", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
