package models

// Derived regime/feature column identifiers produced by the feature engineer.
const (
	ColSMA200          = "sma_200"
	ColRegime          = "regime"
	ColMomentum50      = "momentum_50"
	ColRegimeMomentum  = "regime_momentum"
	ColLiqRegime       = "liq_regime"
	ColTargetUp        = "target_up"
	ColNetLiqMomentum  = "net_liq_momentum"
	ColNetLiqAccel     = "net_liq_acceleration"
	ColTGARRPRatio     = "tga_rrp_ratio"
	ColLiquidityStress = "liquidity_stress"
)

// Trend regime codes stored in the ColRegime column.
const (
	TrendBear float64 = 0
	TrendBull float64 = 1
)

// TrendLabel maps a trend regime code to its label.
func TrendLabel(code float64) string {
	if code == TrendBull {
		return "BULL"
	}
	return "BEAR"
}

// Momentum regime codes stored in the ColRegimeMomentum column.
const (
	MomentumBear    float64 = -1
	MomentumNeutral float64 = 0
	MomentumBull    float64 = 1
)

// MomentumLabel maps a momentum regime code to its label.
func MomentumLabel(code float64) string {
	switch code {
	case MomentumBear:
		return "BEAR"
	case MomentumBull:
		return "BULL"
	default:
		return "NEUTRAL"
	}
}

// Liquidity quartile codes stored in the ColLiqRegime column, tightest first.
const (
	QuartileVeryTight float64 = 0
	QuartileTight     float64 = 1
	QuartileLoose     float64 = 2
	QuartileVeryLoose float64 = 3
)

// QuartileLabels lists quartile labels indexed by code.
var QuartileLabels = []string{"Very_Tight", "Tight", "Loose", "Very_Loose"}

// QuartileLabel maps a liquidity quartile code to its label.
func QuartileLabel(code float64) string {
	i := int(code)
	if i < 0 || i >= len(QuartileLabels) {
		return "Unknown"
	}
	return QuartileLabels[i]
}
