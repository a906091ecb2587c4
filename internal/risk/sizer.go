// Package risk implements position sizing under Kelly, Value-at-Risk, and
// risk-parity constraints.
package risk

import (
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
)

// volFloor keeps inverse-volatility weights finite for degenerate inputs.
const volFloor = 1e-6

// SizerConfig holds the tunable parameters for position sizing. All risk
// quantities are fractions of portfolio value.
type SizerConfig struct {
	MaxKellyFraction      float64 // never bet more than this Kelly fraction
	ExpectedLoss          float64 // payoff-odds denominator when a signal loses
	BaselineVolatility    float64 // fallback per-symbol volatility estimate
	MaxSinglePositionRisk float64 // VAR cap per position
	MaxPortfolioVAR       float64 // VAR budget across one sizing pass
	ConfidenceLevel       float64 // 0.90, 0.95, or 0.99
}

// DefaultSizerConfig returns the standard sizing parameters.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		MaxKellyFraction:      0.25,
		ExpectedLoss:          0.015,
		BaselineVolatility:    0.02,
		MaxSinglePositionRisk: 0.02,
		MaxPortfolioVAR:       0.05,
		ConfidenceLevel:       0.95,
	}
}

// zScore maps a confidence level to its one-sided normal quantile.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	case confidence >= 0.95:
		return 1.645
	case confidence >= 0.90:
		return 1.28
	default:
		return 1.645
	}
}

// Sizer computes per-signal position sizes. Size is a pure function of its
// inputs and the internal volatility cache; it never returns an error.
type Sizer struct {
	cfg    SizerConfig
	logger *slog.Logger

	mu   sync.RWMutex
	vols map[string]float64 // per-symbol volatility estimates
}

// NewSizer creates a Sizer with the given configuration.
func NewSizer(cfg SizerConfig, logger *slog.Logger) *Sizer {
	if cfg.ExpectedLoss <= 0 {
		cfg.ExpectedLoss = 0.015
	}
	if cfg.BaselineVolatility <= 0 {
		cfg.BaselineVolatility = 0.02
	}
	return &Sizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sizer")),
		vols:   make(map[string]float64),
	}
}

// SetVolatility stores a volatility estimate for a symbol, overriding the
// strength-adjusted baseline.
func (s *Sizer) SetVolatility(symbol string, vol float64) {
	s.mu.Lock()
	s.vols[symbol] = vol
	s.mu.Unlock()
}

// UpdateFromSamples refreshes the cached volatility for a symbol from feed
// history, using the sample standard deviation of log returns. Fewer than
// three samples leave the cache untouched.
func (s *Sizer) UpdateFromSamples(symbol string, samples []domain.PriceSample) {
	if len(samples) < 3 {
		return
	}
	returns := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Price, samples[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	s.SetVolatility(symbol, math.Sqrt(variance))
}

// kellyFraction computes the clamped Kelly bet fraction for one signal,
// using strength as the win-probability proxy.
func (s *Sizer) kellyFraction(sig domain.Signal) float64 {
	if sig.ExpectedReturn <= 0 {
		return 0
	}
	b := sig.ExpectedReturn / s.cfg.ExpectedLoss
	p := sig.Strength
	q := 1 - p
	kelly := (b*p - q) / b
	if kelly < 0 {
		return 0
	}
	if kelly > s.cfg.MaxKellyFraction {
		return s.cfg.MaxKellyFraction
	}
	return kelly
}

// volatility returns the cached estimate for the symbol if present, else the
// baseline shrunk as strength rises (high-conviction signals are assumed to
// carry less idiosyncratic noise).
func (s *Sizer) volatility(sig domain.Signal) float64 {
	s.mu.RLock()
	vol, ok := s.vols[sig.Symbol]
	s.mu.RUnlock()
	if ok {
		return vol
	}
	return s.cfg.BaselineVolatility * (1 - sig.Strength/2)
}

// candidate carries the intermediate per-signal computations through the
// greedy allocation pass.
type candidate struct {
	signal   domain.Signal
	kelly    float64
	vol      float64
	kellySz  float64
	varSz    float64
	parityWt float64
	sortKey  float64
}

// Size computes position sizes for the candidate signals against the given
// portfolio value. Results are returned in greedy acceptance order; signals
// whose risk contribution would blow the portfolio VAR budget are skipped
// whole, never partially filled.
func (s *Sizer) Size(signals []domain.Signal, portfolioValue float64) []domain.PositionSizing {
	if len(signals) == 0 || portfolioValue <= 0 {
		return nil
	}

	z := zScore(s.cfg.ConfidenceLevel)
	cands := make([]candidate, 0, len(signals))
	var invVolSum float64

	for _, sig := range signals {
		c := candidate{
			signal: sig,
			kelly:  s.kellyFraction(sig),
			vol:    s.volatility(sig),
		}
		c.kellySz = portfolioValue * c.kelly

		// VAR cap: positionValue * vol * z must not exceed the single-position
		// risk budget. Zero volatility means no VAR constraint.
		c.varSz = c.kellySz
		if c.vol > 0 {
			capSz := s.cfg.MaxSinglePositionRisk * portfolioValue / (c.vol * z)
			if capSz < c.varSz {
				c.varSz = capSz
			}
		}

		invVolSum += 1 / math.Max(c.vol, volFloor)
		c.sortKey = sig.ExpectedReturn / math.Max(c.vol, volFloor)
		cands = append(cands, c)
	}

	// Inverse-volatility weights, normalized to sum to 1.
	for i := range cands {
		cands[i].parityWt = (1 / math.Max(cands[i].vol, volFloor)) / invVolSum
	}

	// Best risk-adjusted opportunities first. Ties break by the sort key only.
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].sortKey > cands[j].sortKey
	})

	var (
		out      []domain.PositionSizing
		usedRisk float64
	)
	for _, c := range cands {
		size := math.Min(c.kellySz, math.Min(c.varSz, c.parityWt*portfolioValue*0.5))
		if size <= 0 {
			continue
		}
		contribution := size * c.vol * z / portfolioValue
		if usedRisk+contribution > s.cfg.MaxPortfolioVAR {
			s.logger.Debug("signal skipped, VAR budget exhausted",
				slog.String("signal_id", c.signal.ID),
				slog.String("symbol", c.signal.Symbol),
				slog.Float64("contribution", contribution),
				slog.Float64("used", usedRisk),
			)
			continue
		}
		usedRisk += contribution

		out = append(out, domain.PositionSizing{
			Signal:             c.signal,
			Size:               size,
			RiskContribution:   contribution,
			KellyFraction:      c.kelly,
			VARConstrainedSize: c.varSz,
			RiskParityWeight:   c.parityWt,
		})
	}
	return out
}
