package portfolio

import (
	"strings"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

// channelDirectionWeight is the signed directional weight of each impact
// channel.
var channelDirectionWeight = map[string]float64{
	"REGULATORY_PRESSURE": -1.0,
	"RISK_PREMIUM":         -0.8,
	"GROWTH":               0.8,
	"SUPPLY_CHAIN":         -0.4,
}

// NewsDirection scores a news item's directional tilt in [-1, 1] from its
// impact channels, flow score (for the LIQUIDITY channel) and ambient risk
// flags.
func NewsDirection(item domain.NewsItem, flowScore *float64, riskFlags []string) float64 {
	score := 0.0
	hasLiquidity := false
	for _, ch := range item.ImpactChannel {
		if ch == "LIQUIDITY" {
			hasLiquidity = true
			continue
		}
		score += channelDirectionWeight[ch]
	}
	if hasLiquidity && flowScore != nil {
		switch {
		case *flowScore >= 60:
			score += 0.5
		case *flowScore <= 40:
			score -= 0.5
		}
	}
	for _, f := range riskFlags {
		if strings.Contains(f, "RISK_OFF") {
			score -= 0.2
		}
		if strings.Contains(f, "RISK_ON") {
			score += 0.2
		}
	}
	return clamp11(score)
}

func clamp11(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// MatchedNewsItem is one news item's attribution to the portfolio, retained
// for the daily brief's top-driver and coverage reporting.
type MatchedNewsItem struct {
	Headline  string
	EventType string
	Channels  []string
	LowSignal bool
	Impacts   []domain.NewsImpact
}

// ComputeNewsImpact matches every item against the holdings registry,
// weights the hit by relevance*quality*recency (scaled by 0.25 for
// low-signal OTHER-typed items with no impact channel), and signs it by
// NewsDirection.
func ComputeNewsImpact(items []domain.NewsItem, holdings []domain.Holding, flowScore *float64, riskFlags []string, now time.Time) ([]MatchedNewsItem, map[domain.MatchMethod]int) {
	summary := map[domain.MatchMethod]int{}
	var out []MatchedNewsItem

	for _, item := range items {
		matches, counts := MatchNewsItem(item, holdings)
		for method, n := range counts {
			summary[method] += n
		}
		sectorMatches := SectorMatch(item, holdings)
		if len(sectorMatches) > 0 {
			matches = append(matches, sectorMatches...)
			summary[domain.MatchSector] += len(sectorMatches)
		}
		if len(matches) == 0 {
			continue
		}

		w := (item.RelevanceScore / 100.0) * (item.QualityScore / 100.0) * RecencyWeight(item.PublishedAtUTC, now)
		lowSignal := item.EventType == "OTHER" && len(item.ImpactChannel) == 0
		if lowSignal {
			w *= 0.25
		}

		dirScore := NewsDirection(item, flowScore, riskFlags)

		impacts := make([]domain.NewsImpact, 0, len(matches))
		for _, m := range matches {
			impacts = append(impacts, domain.NewsImpact{
				Symbol:    m.Symbol,
				ClusterID: item.DedupClusterID,
				Headline:  item.Title,
				EventType: item.EventType,
				Method:    m.Method,
				Direction: w * dirScore * MethodWeight[m.Method],
				Weight:    MethodWeight[m.Method],
				LowSignal: lowSignal,
				Indirect:  m.Method == domain.MatchSector,
			})
		}

		out = append(out, MatchedNewsItem{
			Headline:  item.Title,
			EventType: item.EventType,
			Channels:  item.ImpactChannel,
			LowSignal: lowSignal,
			Impacts:   impacts,
		})
	}

	return out, summary
}

// AggregateBySymbol sums total/direct/indirect impact per symbol across
// every matched item, and counts items flagged low_signal.
func AggregateBySymbol(items []MatchedNewsItem) (total, direct, indirect map[string]float64, lowSignalCount int) {
	total = map[string]float64{}
	direct = map[string]float64{}
	indirect = map[string]float64{}
	for _, item := range items {
		if item.LowSignal {
			lowSignalCount++
		}
		for _, imp := range item.Impacts {
			total[imp.Symbol] += imp.Direction
			if imp.Indirect {
				indirect[imp.Symbol] += imp.Direction
			} else {
				direct[imp.Symbol] += imp.Direction
			}
		}
	}
	return
}
