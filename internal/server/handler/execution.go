package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/ledger"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/router"
)

// ExecutionHandler serves the smart order execution endpoints.
type ExecutionHandler struct {
	router *router.Router
	ledger *ledger.Ledger
	logger *slog.Logger
}

// NewExecutionHandler creates an ExecutionHandler.
func NewExecutionHandler(r *router.Router, l *ledger.Ledger, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		router: r,
		ledger: l,
		logger: logHandler(logger, "executions"),
	}
}

// startExecutionRequest is the JSON body for starting an execution.
type startExecutionRequest struct {
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"quantity"`
	Algorithm      string  `json:"algorithm"`
	TimeWindow     string  `json:"time_window"` // Go duration string, e.g. "30m"
	MaxSlippage    float64 `json:"max_slippage"`
	MinFillSize    float64 `json:"min_fill_size"`
	Aggressiveness string  `json:"aggressiveness"`
}

// executionResponse is the wire shape of an execution snapshot.
type executionResponse struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Algorithm      string          `json:"algorithm"`
	Quantity       float64         `json:"quantity"`
	FilledQuantity float64         `json:"filled_quantity"`
	AvgFillPrice   float64         `json:"avg_fill_price"`
	SlippagePct    float64         `json:"slippage_pct"`
	FillRatio      float64         `json:"fill_ratio"`
	Status         string          `json:"status"`
	Slices         []sliceResponse `json:"slices"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
}

type sliceResponse struct {
	ID          string     `json:"id"`
	Quantity    float64    `json:"quantity"`
	TargetPrice float64    `json:"target_price,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Filled      bool       `json:"filled"`
	FillPrice   float64    `json:"fill_price,omitempty"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`
}

func toExecutionResponse(e domain.ParentOrderExecution) executionResponse {
	slices := make([]sliceResponse, len(e.Slices))
	for i, s := range e.Slices {
		slices[i] = sliceResponse{
			ID:          s.ID,
			Quantity:    s.Quantity,
			TargetPrice: s.TargetPrice,
			ScheduledAt: s.ScheduledAt,
			Filled:      s.Filled,
			FillPrice:   s.FillPrice,
			FilledAt:    s.FilledAt,
		}
	}
	return executionResponse{
		ID:             e.ID,
		Symbol:         e.Config.Symbol,
		Side:           string(e.Config.Side),
		Algorithm:      string(e.Config.Algorithm),
		Quantity:       e.Config.Quantity,
		FilledQuantity: e.FilledQuantity,
		AvgFillPrice:   e.AvgFillPrice,
		SlippagePct:    e.SlippagePct,
		FillRatio:      e.FillRatio(),
		Status:         string(e.Status),
		Slices:         slices,
		StartedAt:      e.StartedAt,
		EndedAt:        e.EndedAt,
	}
}

// StartExecution starts a new smart order execution.
// POST /api/executions
func (h *ExecutionHandler) StartExecution(w http.ResponseWriter, r *http.Request) {
	var req startExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	window, err := time.ParseDuration(req.TimeWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time_window: "+req.TimeWindow)
		return
	}

	cfg := domain.ParentOrderConfig{
		Symbol:         req.Symbol,
		Quantity:       req.Quantity,
		Side:           domain.OrderSide(req.Side),
		Algorithm:      domain.SchedulingAlgorithm(req.Algorithm),
		TimeWindow:     window,
		MaxSlippage:    req.MaxSlippage,
		MinFillSize:    req.MinFillSize,
		Aggressiveness: domain.Aggressiveness(req.Aggressiveness),
	}

	id, err := h.router.Start(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "start execution failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start execution")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"execution_id": id})
}

// ListExecutions returns active and completed executions.
// GET /api/executions
func (h *ExecutionHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	active := h.router.Active()
	completed := h.router.Completed()

	activeResp := make([]executionResponse, len(active))
	for i, e := range active {
		activeResp[i] = toExecutionResponse(e)
	}
	completedResp := make([]executionResponse, len(completed))
	for i, e := range completed {
		completedResp[i] = toExecutionResponse(e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":    activeResp,
		"completed": completedResp,
	})
}

// GetExecution returns one execution snapshot.
// GET /api/executions/{id}
func (h *ExecutionHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	exec := h.router.Status(id)
	if exec == nil {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(*exec))
}

// CancelExecution cancels an active execution. Filled slices stay filled.
// DELETE /api/executions/{id}
func (h *ExecutionHandler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if !h.router.Cancel(id) {
		writeError(w, http.StatusConflict, "execution not found or already terminal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// CleanupExecution evicts a terminal execution and its ledger records.
// DELETE /api/executions/{id}/records
func (h *ExecutionHandler) CleanupExecution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.router.Cleanup(id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		writeError(w, http.StatusConflict, "execution is still active")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleaned"})
}

// ListOrders returns the child orders recorded for an execution.
// GET /api/executions/{id}/orders
func (h *ExecutionHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	writeJSON(w, http.StatusOK, h.ledger.Orders(id))
}

// ListTrades returns the fills recorded for an execution.
// GET /api/executions/{id}/trades
func (h *ExecutionHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	writeJSON(w, http.StatusOK, h.ledger.Trades(id))
}

// GetStats returns the running ledger statistics for an execution.
// GET /api/executions/{id}/stats
func (h *ExecutionHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	stats, ok := h.ledger.Stats(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no records for execution")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_orders":    stats.TotalOrders,
		"filled_orders":   stats.FilledOrders,
		"rejected_orders": stats.RejectedOrders,
		"trade_count":     stats.TradeCount,
		"avg_slippage":    stats.AvgSlippage,
		"avg_fees":        stats.AvgFees,
		"fill_rate":       stats.FillRate,
	})
}

// GetPerformance returns aggregate execution quality stats.
// GET /api/performance
func (h *ExecutionHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	stats := h.router.Performance()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_executions":     stats.TotalExecutions,
		"completed_executions": stats.CompletedExecutions,
		"avg_slippage_pct":     stats.AvgSlippagePct,
		"avg_execution_time":   stats.AvgExecutionTime.String(),
		"success_rate":         stats.SuccessRate,
	})
}
