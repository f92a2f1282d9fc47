package news

import (
	"math"
	"time"
)

// SourceTier is a domain reputation bucket used by the quality-score formula.
type SourceTier string

const (
	TierA SourceTier = "A"
	TierB SourceTier = "B"
	TierC SourceTier = "C"
)

var tierWeight = map[SourceTier]float64{TierA: 1.0, TierB: 0.75, TierC: 0.5}
var tierLambdaFactor = map[SourceTier]float64{TierA: 0.7, TierB: 0.85, TierC: 1.0}

// baseLambda is the recency-decay base rate before tier attenuation.
const baseLambda = 0.08

// DomainTier classifies a source domain into A/B/C; unknown domains default
// to tier C, so new/unlisted sources decay fastest and score lowest.
func DomainTier(domain string, tierA, tierB map[string]bool) SourceTier {
	if tierA[domain] {
		return TierA
	}
	if tierB[domain] {
		return TierB
	}
	return TierC
}

// AgeHours returns the age of a timestamp in hours relative to now.
func AgeHours(publishedAtUTC *time.Time, now time.Time) float64 {
	if publishedAtUTC == nil {
		return 72 // unknown publish time: treat as stale for scoring purposes
	}
	return now.Sub(*publishedAtUTC).Hours()
}

// RecencyBonus is `max(floor, round(20 * exp(-0.18 * age_hours)))`.
func RecencyBonus(ageHours float64, floor float64) float64 {
	v := math.Round(20 * math.Exp(-0.18*ageHours))
	if v < floor {
		return floor
	}
	return v
}

// EntityMatchScore implements `entity_match = best_entity_score + 6*ln(1+extra_entities)`,
// capped at 40.
func EntityMatchScore(bestEntityScore float64, extraEntities int) float64 {
	v := bestEntityScore + 6*math.Log(1+float64(extraEntities))
	if v > 40 {
		return 40
	}
	return v
}

// RelevanceScore is
// `clip(50 + entity_match + topic_hits*10 + recency_bonus + regime_bonus + personal_boost, 0..100)`.
func RelevanceScore(entityMatch float64, topicHits int, recencyBonus, regimeBonus, personalBoost float64) float64 {
	v := 50 + entityMatch + float64(topicHits)*10 + recencyBonus + regimeBonus + personalBoost
	return clip100(v)
}

// QualityScore implements
// `quality_score = round(100 * tier_weight(domain) * recency_decay * (1 - health_penalty))`
// with `recency_decay = max(0.35, min(1, exp(-λ * age_hours)))`, λ attenuated
// per tier.
func QualityScore(tier SourceTier, ageHours, healthPenalty float64) float64 {
	lambda := baseLambda * tierLambdaFactor[tier]
	decay := math.Exp(-lambda * ageHours)
	if decay > 1 {
		decay = 1
	}
	if decay < 0.35 {
		decay = 0.35
	}
	v := 100 * tierWeight[tier] * decay * (1 - healthPenalty)
	return clip100(math.Round(v))
}

// RankProfile selects the final_rank_score weighting; auto-picked when VIX
// crosses a threshold.
type RankProfile string

const (
	ProfileDefault        RankProfile = "default"
	ProfileRiskOff        RankProfile = "risk_off"
	ProfileHighVolatility RankProfile = "high_volatility"
)

type rankWeights struct{ relevance, quality, impact, scope float64 }

var rankWeightsByProfile = map[RankProfile]rankWeights{
	ProfileDefault:        {0.45, 0.30, 0.15, 0.10},
	ProfileRiskOff:        {0.35, 0.25, 0.25, 0.15},
	ProfileHighVolatility: {0.30, 0.25, 0.30, 0.15},
}

// SelectRankProfile auto-picks a scoring profile from the current VIX level.
func SelectRankProfile(vix float64) RankProfile {
	switch {
	case vix >= 30:
		return ProfileHighVolatility
	case vix >= 22:
		return ProfileRiskOff
	default:
		return ProfileDefault
	}
}

// FinalRankScore implements
// `0.45*relevance + 0.30*quality + 0.15*max(impact_person, impact_sector) + 0.10*scope`.
func FinalRankScore(profile RankProfile, relevance, quality, impactPerson, impactSector, scope float64) float64 {
	w, ok := rankWeightsByProfile[profile]
	if !ok {
		w = rankWeightsByProfile[ProfileDefault]
	}
	impact := math.Max(impactPerson, impactSector)
	return w.relevance*relevance + w.quality*quality + w.impact*impact + w.scope*scope
}
