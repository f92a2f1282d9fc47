// Package eventstore scores and persists news items as durable event rows
// with an asset/sector relevance map.
package eventstore

import "strings"

// SourceTiers buckets domains into primary/tier1/tier2/social, loaded from
// config.
type SourceTiers struct {
	Primary []string
	Tier1   []string
	Tier2   []string
	Social  []string
}

// SourceTier classifies a domain, defaulting to "tier2" when unlisted.
func (t SourceTiers) SourceTier(domain string) string {
	domain = strings.ToLower(domain)
	for _, d := range t.Primary {
		if strings.ToLower(d) == domain {
			return "primary"
		}
	}
	for _, d := range t.Tier1 {
		if strings.ToLower(d) == domain {
			return "tier1"
		}
	}
	for _, d := range t.Social {
		if strings.ToLower(d) == domain {
			return "social"
		}
	}
	for _, d := range t.Tier2 {
		if strings.ToLower(d) == domain {
			return "tier2"
		}
	}
	return "tier2"
}

// tierScore maps a tier to its credibility weight.
var tierScore = map[string]float64{
	"primary": 1.0,
	"tier1":   0.85,
	"tier2":   0.65,
	"social":  0.4,
}

// TierScore returns the credibility weight for a tier, defaulting to 0.6.
func TierScore(tier string) float64 {
	if v, ok := tierScore[tier]; ok {
		return v
	}
	return 0.6
}

// severeEventTypes/regulationEventTypes classify event_type for
// SeverityScore.
var severeEventTypes = map[string]bool{"WAR": true, "SANCTIONS": true, "GEO_RISK": true, "CEASEFIRE": true}
var regulationEventTypes = map[string]bool{"REGULATION": true, "SEC": true, "CFTC": true}
var earningsEventTypes = map[string]bool{"EARNINGS_GUIDANCE": true, "EARNINGS": true}

// SeverityScore implements `_severity_score`: event-type first, then tag
// fallbacks, defaulting to 0.45.
func SeverityScore(eventType string, tags []string) float64 {
	et := strings.ToUpper(eventType)
	switch {
	case severeEventTypes[et]:
		return 0.9
	case regulationEventTypes[et]:
		return 0.75
	case earningsEventTypes[et]:
		return 0.6
	}
	switch {
	case containsTag(tags, "War"), containsTag(tags, "Energy"):
		return 0.8
	case containsTag(tags, "Reg"):
		return 0.7
	case containsTag(tags, "ETF"):
		return 0.55
	}
	return 0.45
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// DirectionFromText implements `_direction_from_text`'s keyword scan,
// generalized to English directional vocabulary.
func DirectionFromText(text string) int {
	if text == "" {
		return 0
	}
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "up"), strings.Contains(t, "positive"), strings.Contains(t, "increase"), strings.Contains(t, "bullish"):
		return 1
	case strings.Contains(t, "down"), strings.Contains(t, "negative"), strings.Contains(t, "decrease"), strings.Contains(t, "bearish"):
		return -1
	}
	return 0
}
