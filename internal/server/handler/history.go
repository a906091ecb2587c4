package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// HistoryHandler serves the persisted execution archive. The in-memory ledger
// only covers executions that have not been cleaned up; these endpoints read
// the Postgres-backed stores instead, so dashboards can page through history
// that survived process restarts. All stores may be nil when persistence is
// disabled, in which case every endpoint answers 503.
type HistoryHandler struct {
	executions domain.ExecutionStore
	orders     domain.OrderStore
	trades     domain.TradeStore
	logger     *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. Nil stores are allowed and mean
// persistence is disabled.
func NewHistoryHandler(ex domain.ExecutionStore, os domain.OrderStore, ts domain.TradeStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		executions: ex,
		orders:     os,
		trades:     ts,
		logger:     logHandler(logger, "history"),
	}
}

func (h *HistoryHandler) persistenceEnabled(w http.ResponseWriter) bool {
	if h.executions == nil || h.orders == nil || h.trades == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return false
	}
	return true
}

// executionSummaryResponse is the wire shape of an archived execution.
type executionSummaryResponse struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Algorithm      string     `json:"algorithm"`
	Quantity       float64    `json:"quantity"`
	FilledQuantity float64    `json:"filled_quantity"`
	AvgFillPrice   float64    `json:"avg_fill_price"`
	SlippagePct    float64    `json:"slippage_pct"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

func toSummaryResponse(s domain.ExecutionSummary) executionSummaryResponse {
	return executionSummaryResponse{
		ID:             s.ID,
		Symbol:         s.Symbol,
		Side:           string(s.Side),
		Algorithm:      string(s.Algorithm),
		Quantity:       s.Quantity,
		FilledQuantity: s.FilledQuantity,
		AvgFillPrice:   s.AvgFillPrice,
		SlippagePct:    s.SlippagePct,
		Status:         string(s.Status),
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
	}
}

type orderRecordResponse struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Type        string    `json:"type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	ExecutedQty float64   `json:"executed_qty"`
	ExecutedPx  float64   `json:"executed_px"`
	Fees        float64   `json:"fees"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOrderRecordResponse(o domain.Order) orderRecordResponse {
	return orderRecordResponse{
		ID:          o.ID,
		ExecutionID: o.ExecutionID,
		Symbol:      o.Symbol,
		Side:        string(o.Side),
		Type:        string(o.Type),
		Quantity:    o.Quantity,
		Price:       o.Price,
		Status:      string(o.Status),
		ExecutedQty: o.ExecutedQty,
		ExecutedPx:  o.ExecutedPx,
		Fees:        o.Fees,
		CreatedAt:   o.CreatedAt,
	}
}

type tradeRecordResponse struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	Fees        float64   `json:"fees"`
	Slippage    float64   `json:"slippage"`
	Timestamp   time.Time `json:"timestamp"`
	Profit      *float64  `json:"profit,omitempty"`
}

func toTradeRecordResponse(t domain.Trade) tradeRecordResponse {
	return tradeRecordResponse{
		ID:          t.ID,
		ExecutionID: t.ExecutionID,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Price:       t.Price,
		Quantity:    t.Quantity,
		Fees:        t.Fees,
		Slippage:    t.Slippage,
		Timestamp:   t.Timestamp,
		Profit:      t.Profit,
	}
}

// ListExecutions returns the most recently archived executions.
// GET /api/history/executions?limit=N
func (h *HistoryHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if !h.persistenceEnabled(w) {
		return
	}
	opts := parseListOpts(r)
	summaries, err := h.executions.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archived executions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}
	out := make([]executionSummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = toSummaryResponse(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetExecution returns one archived execution summary.
// GET /api/history/executions/{id}
func (h *HistoryHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if !h.persistenceEnabled(w) {
		return
	}
	id := pathParam(r, "id")
	summary, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get archived execution failed",
			slog.String("execution_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load execution")
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// ListOrders returns the archived child orders of an execution.
// GET /api/history/executions/{id}/orders
func (h *HistoryHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if !h.persistenceEnabled(w) {
		return
	}
	id := pathParam(r, "id")
	orders, err := h.orders.ListByExecution(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archived orders failed",
			slog.String("execution_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	out := make([]orderRecordResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderRecordResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTrades returns the archived fills of an execution.
// GET /api/history/executions/{id}/trades
func (h *HistoryHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if !h.persistenceEnabled(w) {
		return
	}
	id := pathParam(r, "id")
	trades, err := h.trades.ListByExecution(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archived trades failed",
			slog.String("execution_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	out := make([]tradeRecordResponse, len(trades))
	for i, t := range trades {
		out[i] = toTradeRecordResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTradesBySymbol returns archived fills for a symbol across executions,
// paginated and optionally bounded by ?since= and ?until= (RFC 3339).
// GET /api/history/trades/{symbol}
func (h *HistoryHandler) ListTradesBySymbol(w http.ResponseWriter, r *http.Request) {
	if !h.persistenceEnabled(w) {
		return
	}
	symbol := pathParam(r, "symbol")
	opts := parseListOpts(r)
	trades, err := h.trades.ListBySymbol(r.Context(), symbol, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades by symbol failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	out := make([]tradeRecordResponse, len(trades))
	for i, t := range trades {
		out[i] = toTradeRecordResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}
