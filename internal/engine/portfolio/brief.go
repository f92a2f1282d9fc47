package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

// BuildBrief derives the executive-summary brief from an already-generated
// snapshot, selecting the optimizer result for the requested period.
func BuildBrief(snapshot domain.PortfolioSnapshot, period domain.Horizon, settings portfolioConstraints, now time.Time) domain.PortfolioBrief {
	if period == "" {
		period = domain.HorizonDaily
	}

	var missingData []string
	for _, h := range snapshot.Holdings {
		if h.DataStatus == domain.DataMissing {
			missingData = append(missingData, "price data missing for one or more holdings")
			break
		}
	}
	if len(snapshot.NewsImpacts) == 0 {
		missingData = append(missingData, "NO_NEWS_ITEMS: no matched news coverage this cycle")
	}

	byClass := map[string]float64{}
	for _, imp := range snapshot.NewsImpacts {
		cls := symbolClass(snapshot.Holdings, imp.Symbol)
		if cls != "" {
			byClass[cls] += imp.Direction
		}
	}

	topHoldings := append([]domain.ValuedHolding{}, snapshot.Holdings...)
	sort.Slice(topHoldings, func(i, j int) bool { return topHoldings[i].Weight > topHoldings[j].Weight })
	if len(topHoldings) > 5 {
		topHoldings = topHoldings[:5]
	}

	perSymbolTotal := map[string]float64{}
	perSymbolTop := map[string]domain.NewsDriverEntry{}
	for _, imp := range snapshot.NewsImpacts {
		perSymbolTotal[imp.Symbol] += imp.Direction
		existing, ok := perSymbolTop[imp.Symbol]
		if !ok || absF(imp.Direction) > absF(existing.Impact) {
			perSymbolTop[imp.Symbol] = domain.NewsDriverEntry{
				Symbol: imp.Symbol, Impact: imp.Direction,
				Headline: imp.Headline, EventType: imp.EventType,
			}
		}
	}
	var positives, negatives []string
	for sym, v := range perSymbolTotal {
		if v > 0 {
			positives = append(positives, sym)
		} else if v < 0 {
			negatives = append(negatives, sym)
		}
	}
	sort.Slice(positives, func(i, j int) bool { return perSymbolTotal[positives[i]] > perSymbolTotal[positives[j]] })
	sort.Slice(negatives, func(i, j int) bool { return perSymbolTotal[negatives[i]] < perSymbolTotal[negatives[j]] })
	posEntries := driverEntries(positives, perSymbolTop, 3)
	negEntries := driverEntries(negatives, perSymbolTop, 3)

	var selected *domain.OptimizerResult
	for i := range snapshot.Optimizers {
		if snapshot.Optimizers[i].Horizon == period {
			selected = &snapshot.Optimizers[i]
			break
		}
	}
	hints := domain.OptimizerHints{
		Period:    period,
		MaxWeight: settings.maxWeight,
		MaxCrypto: settings.maxCryptoWeight,
	}
	if selected != nil {
		hints.Mode = selected.Mode
		hints.HoldReason = selected.HoldReason
		hints.TurnoverCap = selected.TurnoverCap
		hints.Actions = append(append([]domain.RebalanceAction{}, selected.Increases...), selected.Decreases...)
		if len(hints.Actions) > 5 {
			hints.Actions = hints.Actions[:5]
		}
	}

	cryptoShare := snapshot.Allocation.ByAssetClass["CRYPTO"] + snapshot.Allocation.ByAssetClass["crypto"]
	mode := domain.ModeMixed
	switch {
	case cryptoShare >= 0.35:
		mode = domain.ModeRiskOn
	case cryptoShare <= 0.10:
		mode = domain.ModeRiskOff
	}

	summary := buildExecutiveSummary(mode, topHoldings, snapshot.Risk, posEntries, negEntries, hints, settings)

	coverageRatio := 0.0
	if len(snapshot.Holdings) > 0 && len(snapshot.NewsImpacts) > 0 {
		coverageRatio = 1.0 // snapshot already narrowed to matched impacts; ratio lives in DebugNotes upstream
	}

	return domain.PortfolioBrief{
		GeneratedAtUTC:   now,
		Mode:             mode,
		ExecutiveSummary: summary,
		TopHoldings:      topHoldings,
		Risk:             snapshot.Risk,
		NewsByAssetClass: byClass,
		CoverageRatio:    coverageRatio,
		PositiveDrivers:  posEntries,
		NegativeDrivers:  negEntries,
		Hints:            hints,
		MissingData:      missingData,
		DebugNotes:       append(append([]string{}, snapshot.DebugNotes...), "daily_brief_source=deterministic"),
	}
}

// portfolioConstraints is the minimal settings slice BuildBrief needs,
// avoiding a direct import-cycle-prone dependency on config.PortfolioSettings
// from the brief's pure-function signature.
type portfolioConstraints struct {
	maxWeight       float64
	maxCryptoWeight float64
}

func driverEntries(symbols []string, top map[string]domain.NewsDriverEntry, limit int) []domain.NewsDriverEntry {
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}
	out := make([]domain.NewsDriverEntry, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, top[s])
	}
	return out
}

func symbolClass(holdings []domain.ValuedHolding, symbol string) string {
	for _, h := range holdings {
		if h.Symbol == symbol {
			return h.AssetClass
		}
	}
	return ""
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func buildExecutiveSummary(mode domain.PortfolioMode, top []domain.ValuedHolding, risk domain.RiskMetrics, pos, neg []domain.NewsDriverEntry, hints domain.OptimizerHints, settings portfolioConstraints) []string {
	var lines []string
	if hints.Mode == domain.ModeHold {
		reason := hints.HoldReason
		if reason == "" {
			reason = "LOW_COVERAGE_OR_LOW_SIGNAL"
		}
		lines = append(lines, fmt.Sprintf("Signal too weak (%s): no rebalance suggested this cycle.", reason))
	}
	lines = append(lines, fmt.Sprintf("Portfolio mode: %s.", mode))
	if len(top) > 0 {
		lines = append(lines, fmt.Sprintf("Largest position: %s (%.1f%%).", top[0].Symbol, top[0].Weight*100))
	} else {
		lines = append(lines, "Largest position: none.")
	}
	lines = append(lines, fmt.Sprintf("Risk: HHI=%.3f, max_weight=%.2f, vol_30d=%.3f.", risk.HHI, risk.MaxWeight, risk.Vol30d))

	newsLine := fmt.Sprintf("News impact: %d/%d symbols with coverage", len(pos)+len(neg), len(pos)+len(neg))
	if len(pos) > 0 {
		newsLine += fmt.Sprintf(", positive: %s (%+.2f)", pos[0].Symbol, pos[0].Impact)
	}
	if len(neg) > 0 {
		newsLine += fmt.Sprintf(", negative: %s (%+.2f)", neg[0].Symbol, neg[0].Impact)
	}
	lines = append(lines, newsLine+".")

	lines = append(lines, fmt.Sprintf("Constraints: max_weight=%.2f, turnover_cap=%.2f.", settings.maxWeight, hints.TurnoverCap))

	if risk.USDExposure >= 0.50 {
		lines = append(lines, fmt.Sprintf("FX sensitivity: USD weight %.1f%%.", risk.USDExposure*100))
	}

	if len(lines) > 5 {
		lines = lines[:5]
	}
	return lines
}
