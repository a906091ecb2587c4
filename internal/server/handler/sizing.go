package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/risk"
)

// SizingHandler serves the position sizing endpoint.
type SizingHandler struct {
	sizer            *risk.Sizer
	feed             domain.PriceFeed
	defaultPortfolio float64 // used when the request omits portfolio_value
	logger           *slog.Logger
}

// NewSizingHandler creates a SizingHandler. defaultPortfolio is the paper
// account value applied when a request does not carry its own.
func NewSizingHandler(sizer *risk.Sizer, feed domain.PriceFeed, defaultPortfolio float64, logger *slog.Logger) *SizingHandler {
	return &SizingHandler{
		sizer:            sizer,
		feed:             feed,
		defaultPortfolio: defaultPortfolio,
		logger:           logHandler(logger, "sizing"),
	}
}

type sizingSignal struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Strength       float64 `json:"strength"`
	Price          float64 `json:"price"`
	ExpectedReturn float64 `json:"expected_return"`
}

type sizingRequest struct {
	Signals        []sizingSignal `json:"signals"`
	PortfolioValue float64        `json:"portfolio_value"`
}

type sizingResult struct {
	SignalID           string  `json:"signal_id"`
	Symbol             string  `json:"symbol"`
	Size               float64 `json:"size"`
	RiskContribution   float64 `json:"risk_contribution"`
	KellyFraction      float64 `json:"kelly_fraction"`
	VARConstrainedSize float64 `json:"var_constrained_size"`
	RiskParityWeight   float64 `json:"risk_parity_weight"`
}

// ComputeSizing runs the position sizer over a batch of candidate signals.
// Volatility estimates are refreshed from feed history before sizing.
// POST /api/sizing
func (h *SizingHandler) ComputeSizing(w http.ResponseWriter, r *http.Request) {
	var req sizingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PortfolioValue == 0 {
		req.PortfolioValue = h.defaultPortfolio
	}
	if req.PortfolioValue <= 0 {
		writeError(w, http.StatusBadRequest, "portfolio_value must be > 0")
		return
	}

	signals := make([]domain.Signal, 0, len(req.Signals))
	for _, s := range req.Signals {
		if s.Symbol == "" {
			writeError(w, http.StatusBadRequest, "signal symbol must not be empty")
			return
		}
		if s.Strength < 0 || s.Strength > 1 {
			writeError(w, http.StatusBadRequest, "signal strength must be in [0, 1]")
			return
		}
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		h.sizer.UpdateFromSamples(s.Symbol, h.feed.History(s.Symbol, 100))
		signals = append(signals, domain.Signal{
			ID:             id,
			Symbol:         s.Symbol,
			Side:           domain.OrderSide(s.Side),
			Strength:       s.Strength,
			Price:          s.Price,
			ExpectedReturn: s.ExpectedReturn,
			Timestamp:      time.Now().UTC(),
		})
	}

	sized := h.sizer.Size(signals, req.PortfolioValue)

	results := make([]sizingResult, len(sized))
	for i, p := range sized {
		results[i] = sizingResult{
			SignalID:           p.Signal.ID,
			Symbol:             p.Signal.Symbol,
			Size:               p.Size,
			RiskContribution:   p.RiskContribution,
			KellyFraction:      p.KellyFraction,
			VARConstrainedSize: p.VARConstrainedSize,
			RiskParityWeight:   p.RiskParityWeight,
		}
	}

	h.logger.DebugContext(r.Context(), "sizing computed",
		slog.Int("candidates", len(signals)),
		slog.Int("accepted", len(results)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"positions": results})
}
