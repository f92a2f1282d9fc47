package config

// PortfolioSettings collects the portfolio engine's concentration, turnover
// and signal-coverage gates.
type PortfolioSettings struct {
	MaxWeight       float64
	MaxCryptoWeight float64

	TurnoverDaily   float64
	TurnoverWeekly  float64
	TurnoverMonthly float64

	// MinCoverageRatio/MaxLowSignalRatio gate the optimizer into HOLD mode
	// when matched news is too sparse or too low-signal to act on.
	MinCoverageRatio  float64
	MaxLowSignalRatio float64

	FXRiskThreshold float64 // usd_exposure >= this sets FX_RISK_UP
}

// DefaultPortfolioSettings returns the built-in defaults, each overridable
// by environment.
func DefaultPortfolioSettings() PortfolioSettings {
	return PortfolioSettings{
		MaxWeight:       envFloat("PORTFOLIO_MAX_WEIGHT", 0.30),
		MaxCryptoWeight: envFloat("PORTFOLIO_MAX_CRYPTO_WEIGHT", 0.20),

		TurnoverDaily:   envFloat("PORTFOLIO_TURNOVER_DAILY", 0.05),
		TurnoverWeekly:  envFloat("PORTFOLIO_TURNOVER_WEEKLY", 0.15),
		TurnoverMonthly: envFloat("PORTFOLIO_TURNOVER_MONTHLY", 0.30),

		MinCoverageRatio:  envFloat("PORTFOLIO_MIN_COVERAGE_RATIO", 0.20),
		MaxLowSignalRatio: envFloat("PORTFOLIO_MAX_LOW_SIGNAL_RATIO", 0.50),

		FXRiskThreshold: envFloat("PORTFOLIO_FX_RISK_THRESHOLD", 0.50),
	}
}
