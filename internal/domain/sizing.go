package domain

// PositionSizing is the sizer's verdict for one accepted signal. Size and
// its inputs are in portfolio currency units.
type PositionSizing struct {
	Signal             Signal
	Size               float64
	RiskContribution   float64 // fraction of the portfolio VAR budget consumed
	KellyFraction      float64
	VARConstrainedSize float64
	RiskParityWeight   float64
}
