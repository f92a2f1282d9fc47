// Package debate assembles a bounded, content-addressed debate context from
// the portfolio and news engines' output, then runs it past one or more LLM
// providers and an optional referee pass to produce a domain.DebateResult.
package debate

import (
	"sort"
	"strconv"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/hashutil"
)

// maxEvidenceEntries caps how many news clusters feed one debate round.
const maxEvidenceEntries = 60

// maxPointersPerKey bounds how many evidence ids are kept per symbol in
// EvidencePointers.
const maxPointersPerKey = 6

// BuildContext assembles the deterministic per-(base,window,horizon) debate
// context: the top holdings, allocation and risk snapshot, a bounded
// evidence index built from recent news, and the per-symbol evidence pointer
// index.
func BuildContext(
	base, window, horizon string,
	snapshot domain.PortfolioSnapshot,
	newsItems []domain.NewsItem,
	sectorRotation map[string]float64,
	watchlistChanges map[string]float64,
	engineSignals map[string]interface{},
) domain.DebateContext {
	evidence, clusterToID := buildEvidenceIndex(newsItems, maxEvidenceEntries)

	ctx := domain.DebateContext{
		Base:                 base,
		Window:               window,
		Horizon:              horizon,
		ConstraintsSnapshot:  constraintsSnapshot(snapshot),
		TopHoldings:          topHoldings(snapshot.Holdings, 10),
		Allocation:           snapshot.Allocation,
		Risk:                 snapshot.Risk,
		GlobalNewsSummary:    summarizeHeadlines(newsItems, 5),
		PortfolioNewsSummary: summarizeNewsImpacts(snapshot.NewsImpacts, 5),
		SectorRotation:       sectorRotation,
		WatchlistChanges:     watchlistChanges,
		EngineSignals:        engineSignals,
		OptimizerHold:        anyHold(snapshot.Optimizers),
		EvidenceIndex:        evidence,
		EvidencePointers:      buildPointers(snapshot.NewsImpacts, clusterToID),
	}
	ctx.ContextHash = hashutil.Hash16(ctx)
	return ctx
}

func constraintsSnapshot(snapshot domain.PortfolioSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"total_value": snapshot.TotalValue,
		"hhi":         snapshot.Risk.HHI,
		"max_weight":  snapshot.Risk.MaxWeight,
		"var_95_1d":   snapshot.Risk.VaR95_1d,
	}
}

func topHoldings(holdings []domain.ValuedHolding, limit int) []domain.ValuedHolding {
	sorted := append([]domain.ValuedHolding(nil), holdings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func anyHold(results []domain.OptimizerResult) bool {
	for _, r := range results {
		if r.Mode == domain.ModeHold {
			return true
		}
	}
	return false
}

// buildEvidenceIndex converts the most recent newsItems into content-
// addressed EvidenceEntry rows, capped at limit, and returns a lookup from
// DedupClusterID to evidence id so EvidencePointers can cite the same ids.
func buildEvidenceIndex(items []domain.NewsItem, limit int) ([]domain.EvidenceEntry, map[string]string) {
	sorted := append([]domain.NewsItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool {
		return publishedOrZero(sorted[i]).After(publishedOrZero(sorted[j]))
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]domain.EvidenceEntry, 0, len(sorted))
	clusterToID := make(map[string]string, len(sorted))
	for _, it := range sorted {
		ts := publishedOrZero(it)
		key := it.URL
		if key == "" {
			key = it.Title
		}
		key += "|" + strconv.FormatInt(ts.Unix(), 10)
		id := hashutil.KeyHash16(key)

		entry := domain.EvidenceEntry{
			ID:        id,
			Kind:      "news",
			Summary:   it.ShortSummary,
			Direction: evidenceDirection(it),
			TsUTC:     ts,
		}
		if entry.Summary == "" {
			entry.Summary = it.Title
		}
		if len(it.Entities) > 0 {
			entry.Symbol = it.Entities[0]
		}
		if it.NewsScope == domain.ScopeSector && len(it.SectorImpacts) > 0 {
			entry.Sector = it.SectorImpacts[0].Sector
		}
		out = append(out, entry)
		if it.DedupClusterID != "" {
			clusterToID[it.DedupClusterID] = id
		}
	}
	return out, clusterToID
}

func publishedOrZero(it domain.NewsItem) time.Time {
	if it.PublishedAtUTC != nil {
		return *it.PublishedAtUTC
	}
	return time.Time{}
}

func evidenceDirection(it domain.NewsItem) float64 {
	switch {
	case len(it.SectorImpacts) > 0 && it.SectorImpacts[0].Direction == domain.SectorUp:
		return it.SectorImpacts[0].Confidence / 100
	case len(it.SectorImpacts) > 0 && it.SectorImpacts[0].Direction == domain.SectorDown:
		return -it.SectorImpacts[0].Confidence / 100
	default:
		return 0
	}
}

// buildPointers collects evidence ids per symbol from the already-matched
// NewsImpact list, in impact-list order and capped at maxPointersPerKey per
// symbol. Ids are not ranked by strength, and BySector is left empty.
func buildPointers(impacts []domain.NewsImpact, clusterToID map[string]string) domain.EvidencePointers {
	bySymbol := map[string][]string{}
	for _, imp := range impacts {
		id, ok := clusterToID[imp.ClusterID]
		if !ok {
			continue
		}
		if len(bySymbol[imp.Symbol]) >= maxPointersPerKey {
			continue
		}
		bySymbol[imp.Symbol] = append(bySymbol[imp.Symbol], id)
	}
	return domain.EvidencePointers{BySymbol: bySymbol, BySector: map[string][]string{}}
}

func summarizeHeadlines(items []domain.NewsItem, limit int) string {
	sorted := append([]domain.NewsItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ImpactPotential > sorted[j].ImpactPotential })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	var out string
	for i, it := range sorted {
		if i > 0 {
			out += " | "
		}
		out += it.Title
	}
	return out
}

func summarizeNewsImpacts(impacts []domain.NewsImpact, limit int) string {
	sorted := append([]domain.NewsImpact(nil), impacts...)
	sort.Slice(sorted, func(i, j int) bool {
		return abs(sorted[i].Direction*sorted[i].Weight) > abs(sorted[j].Direction*sorted[j].Weight)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	var out string
	for i, imp := range sorted {
		if i > 0 {
			out += " | "
		}
		out += imp.Symbol + ":" + imp.Headline
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
