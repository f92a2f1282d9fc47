package portfolio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
)

// periodCoeffs are the per-horizon factor weights in the optimizer score.
type periodCoeffs struct {
	mom, newsDirect, newsIndirect, regime, sectorRotation, vol, conc, fx, tcost float64
}

var coeffsByHorizon = map[domain.Horizon]periodCoeffs{
	domain.HorizonDaily:   {0.20, 0.30, 0.12, 0.15, 0.10, 0.20, 0.15, 0.10, 0.08},
	domain.HorizonWeekly:  {0.25, 0.25, 0.15, 0.15, 0.15, 0.18, 0.12, 0.10, 0.06},
	domain.HorizonMonthly: {0.30, 0.15, 0.18, 0.12, 0.20, 0.15, 0.15, 0.10, 0.05},
}

// tcostByAssetClass is the proportional transaction-cost proxy per asset
// class.
var tcostByAssetClass = map[string]float64{
	"BIST":    0.0015,
	"NASDAQ":  0.0005,
	"CRYPTO":  0.0010,
	"UNKNOWN": 0.0010,
}

type scoredHolding struct {
	holding    domain.ValuedHolding
	score      float64
	breakdown  map[string]float64
}

// BuildOptimizer scores every holding across the three turnover horizons
// and proposes up to 3 increases / 3 decreases per horizon, gated into HOLD
// mode when news coverage is too sparse or too low-signal to act on.
func BuildOptimizer(
	holdings []domain.ValuedHolding,
	newsTotal, newsDirect, newsIndirect map[string]float64,
	riskFlags []string,
	settings config.PortfolioSettings,
	coverageRatio float64,
	coverageTotal int,
	lowSignalRatio float64,
	fxRiskProxy float64,
) []domain.OptimizerResult {
	clampRatio := clampF(coverageRatio, 0.3, 1.0)

	holdGate := false
	holdReason := ""
	switch {
	case coverageTotal == 0:
		holdGate, holdReason = true, "NO_NEWS_ITEMS"
	case coverageRatio < settings.MinCoverageRatio || lowSignalRatio > settings.MaxLowSignalRatio:
		holdGate, holdReason = true, "LOW_COVERAGE_OR_LOW_SIGNAL"
	}

	riskOff := false
	for _, f := range riskFlags {
		if strings.Contains(f, "RISK_OFF") {
			riskOff = true
			break
		}
	}

	periods := []struct {
		horizon     domain.Horizon
		turnoverCap float64
	}{
		{domain.HorizonDaily, settings.TurnoverDaily * clampRatio},
		{domain.HorizonWeekly, settings.TurnoverWeekly * clampRatio},
		{domain.HorizonMonthly, settings.TurnoverMonthly * clampRatio},
	}

	var results []domain.OptimizerResult
	for _, p := range periods {
		if holdGate {
			results = append(results, domain.OptimizerResult{
				Horizon:     p.horizon,
				Mode:        domain.ModeHold,
				HoldReason:  holdReason,
				TurnoverCap: p.turnoverCap,
			})
			continue
		}
		results = append(results, scoreHorizon(p.horizon, p.turnoverCap, holdings, newsTotal, newsDirect, newsIndirect, riskOff, fxRiskProxy, settings, coverageRatio))
	}
	return results
}

func scoreHorizon(
	horizon domain.Horizon,
	turnoverCap float64,
	holdings []domain.ValuedHolding,
	newsTotal, newsDirect, newsIndirect map[string]float64,
	riskOff bool,
	fxRiskProxy float64,
	settings config.PortfolioSettings,
	coverageRatio float64,
) domain.OptimizerResult {
	c := coeffsByHorizon[horizon]
	maxWeight := settings.MaxWeight
	if maxWeight == 0 {
		maxWeight = 0.30
	}

	var cryptoWeight float64
	for _, h := range holdings {
		if h.AssetClass == "CRYPTO" || h.AssetClass == "crypto" {
			cryptoWeight += h.Weight
		}
	}

	scored := make([]scoredHolding, 0, len(holdings))
	for _, h := range holdings {
		mom := 0.0
		if h.MomZ7d != nil {
			mom = clampF(*h.MomZ7d/3.0, -1, 1)
		}
		newsDir := clampF(newsDirect[h.Symbol], -1, 1)
		newsInd := clampF(newsIndirect[h.Symbol], -1, 1)

		regime := 0.1
		if riskOff && strings.EqualFold(h.AssetClass, "CRYPTO") {
			regime = -0.3
		}
		regime = clampF(regime, -1, 1)

		volNorm := clampF(h.Vol30d/0.10, 0, 1)
		concentration := h.Weight * h.Weight
		concNorm := clampF(concentration/(maxWeight*maxWeight), 0, 1)
		fxPenalty := 0.0
		if strings.EqualFold(h.Currency, "USD") {
			fxPenalty = clampF(fxRiskProxy, 0, 1)
		}
		tcost := tcostByAssetClass[strings.ToUpper(h.AssetClass)]
		if tcost == 0 {
			tcost = 0.0010
		}
		tcostNorm := clampF(tcost/0.002, 0, 1)

		score := c.mom*mom + c.newsDirect*newsDir + c.newsIndirect*newsInd + c.regime*regime -
			c.vol*volNorm - c.conc*concNorm - c.fx*fxPenalty - c.tcost*tcostNorm

		scored = append(scored, scoredHolding{
			holding: h,
			score:   score,
			breakdown: map[string]float64{
				"mom": mom, "news_direct": newsDir, "news_indirect": newsInd,
				"regime": regime, "vol": volNorm, "concentration": concNorm,
				"fx_risk": fxPenalty, "tcost": tcostNorm, "total": score,
			},
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	delta := clampF(turnoverCap/2.0, 0, 0.03)

	var increases, decreases []domain.RebalanceAction
	for _, s := range scored {
		if s.score <= 0 || len(increases) >= 3 {
			continue
		}
		h := s.holding
		if h.Weight+delta > maxWeight {
			continue
		}
		if strings.EqualFold(h.AssetClass, "CRYPTO") && cryptoWeight+delta > settings.MaxCryptoWeight {
			continue
		}
		increases = append(increases, domain.RebalanceAction{
			Symbol:      h.Symbol,
			DeltaWeight: delta,
			Score:       s.score,
			Rationale:   fmt.Sprintf("score=%.3f newsImpact=%.3f", s.score, newsTotal[h.Symbol]),
		})
	}

	negatives := negativeScored(scored)
	tail := negatives
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for _, s := range tail {
		decreases = append(decreases, domain.RebalanceAction{
			Symbol:      s.holding.Symbol,
			DeltaWeight: delta,
			Score:       s.score,
			Rationale:   fmt.Sprintf("score=%.3f newsImpact=%.3f", s.score, newsTotal[s.holding.Symbol]),
		})
	}

	return domain.OptimizerResult{
		Horizon:       horizon,
		Mode:          domain.ModeRebalance,
		Increases:     increases,
		Decreases:     decreases,
		TurnoverCap:   turnoverCap,
		CoverageRatio: coverageRatio,
	}
}

func negativeScored(scored []scoredHolding) []scoredHolding {
	var out []scoredHolding
	for _, s := range scored {
		if s.score < 0 {
			out = append(out, s)
		}
	}
	return out
}
