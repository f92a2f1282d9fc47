package forecast

import "github.com/marketintel/analytics/internal/domain"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp11(v float64) float64 { return clamp(v, -1, 1) }

// MarketSignal computes the per-target market-signal score in [-1,1] plus its
// per-feature driver contributions, target direction applied per feature
// (STABLES inverts the risk-on features).
func MarketSignal(snap domain.MarketSnapshot, target domain.Target) (float64, []domain.DriverContribution) {
	isStables := target == domain.TargetSTABLES
	deltas := snap.CoinGecko.Deltas

	var drivers []domain.DriverContribution
	add := func(name string, value, weight, direction float64) float64 {
		contribution := value * weight * direction
		drivers = append(drivers, domain.DriverContribution{
			Name: name, Value: value, Weight: weight, Contribution: contribution,
		})
		return contribution
	}

	score := 0.0

	if usdtD, ok1 := deltas["usdt_d"]; ok1 {
		if usdcD, ok2 := deltas["usdc_d"]; ok2 {
			if _, ok3 := deltas["total_vol"]; ok3 {
				val := clamp11((usdtD + usdcD) / 0.5)
				dir := -1.0
				if isStables {
					dir = 1.0
				}
				score += add("stable_dom", val, 0.22, dir)
			}
		}
	}

	dxy := snap.Yahoo.DXYChg24h
	val := clamp11(dxy / 2.0)
	dir := -1.0
	if isStables {
		dir = 1.0
	}
	score += add("dxy", val, 0.25, dir)

	qqq := snap.Yahoo.QQQChg24h
	val = clamp11(qqq / 2.5)
	dir = 1.0
	if isStables {
		dir = -1.0
	}
	score += add("qqq", val, 0.20, dir)

	oil := snap.Yahoo.OilChg24h
	val = clamp11(oil / 3.0)
	dir = -1.0
	if isStables {
		dir = 1.0
	}
	score += add("oil", val, 0.15, dir)

	if snap.Yahoo.VIX > 0 {
		val = clamp11((snap.Yahoo.VIX - 20.0) / 10.0)
		dir = -1.0
		if isStables {
			dir = 1.0
		}
		score += add("vix", val, 0.15, dir)
	}

	if btcD, ok := deltas["btc_d"]; ok {
		val = clamp11(btcD / 0.4)
		switch target {
		case domain.TargetBTC:
			dir = 1.0
		case domain.TargetALTS:
			dir = -0.8
		case domain.TargetETH:
			dir = -0.4
		default:
			dir = 0.0
		}
		score += add("btc_dominance", val, 0.18, dir)
	}

	if snap.FlowScore != 0 {
		val = clamp11((snap.FlowScore - 50) / 50.0)
		dir = 1.0
		if isStables {
			dir = -1.0
		}
		score += add("flow", val, 0.25, dir)
	}

	if snap.FundingZ != 0 {
		val = clamp11(snap.FundingZ / 3.0)
		dir = -1.0
		if isStables {
			dir = 1.0
		}
		score += add("funding_z", val, 0.20, dir)
	}

	if snap.OIDelta != 0 {
		val = clamp11(snap.OIDelta / 8.0)
		dir = 1.0
		if isStables {
			dir = -1.0
		}
		score += add("oi_delta", val, 0.15, dir)
	}

	if snap.MacroRiskOff {
		dir = -1.0
		if isStables {
			dir = 1.0
		}
		score += add("macro_risk_off", 1.0, 0.15, dir)
	}

	return clamp11(score), drivers
}

// ContextMultiplier amplifies a news cluster's contribution when the current
// macro-risk-off regime aligns (or opposes) its direction.
func ContextMultiplier(macroRiskOff bool, direction int) float64 {
	if !macroRiskOff {
		return 1.0
	}
	switch {
	case direction < 0:
		return 1.15
	case direction > 0:
		return 0.9
	default:
		return 1.0
	}
}
