package config

import "github.com/marketintel/analytics/internal/engine/eventstore"

// DefaultEventSourceTiers is the built-in primary/tier1/tier2/social domain
// bucketing eventstore.Store.BuildEventRow's credibility weighting reads,
// trimmed to a representative sample per tier; production deployments
// extend it from YAML using the same shape.
func DefaultEventSourceTiers() eventstore.SourceTiers {
	return eventstore.SourceTiers{
		Primary: []string{"reuters.com", "bloomberg.com", "apnews.com", "wsj.com"},
		Tier1:   []string{"cnbc.com", "ft.com", "coindesk.com", "theblock.co"},
		Tier2:   []string{"cointelegraph.com", "decrypt.co", "benzinga.com"},
		Social:  []string{"twitter.com", "x.com", "reddit.com"},
	}
}

// DefaultNewsTierDomains is the news-quality-score A/B domain sets
// news.Engine.TierA/TierB read.
func DefaultNewsTierDomains() (tierA, tierB map[string]bool) {
	tierA = map[string]bool{
		"reuters.com": true, "bloomberg.com": true, "apnews.com": true, "wsj.com": true,
	}
	tierB = map[string]bool{
		"cnbc.com": true, "ft.com": true, "coindesk.com": true, "theblock.co": true, "cointelegraph.com": true,
	}
	return tierA, tierB
}
