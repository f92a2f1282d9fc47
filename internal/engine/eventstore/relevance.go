package eventstore

import (
	"math"
	"strings"

	"github.com/marketintel/analytics/internal/domain"
)

// RelevanceTarget is one (asset, score) pair a news item contributes.
type RelevanceTarget struct {
	Asset string
	Score float64
}

// relevanceDefaults are the floor weights every item receives for the four
// primary targets, overridden by scope.
func relevanceDefaults(scope domain.NewsScope) map[string]float64 {
	switch scope {
	case domain.ScopeMacro, domain.ScopeGeopolitics, domain.ScopeSystemic:
		return map[string]float64{"BTC": 0.45, "ETH": 0.35, "ALTS": 0.35, "STABLES": 0.5}
	case domain.ScopeCompany:
		return map[string]float64{"BTC": 0.2, "ETH": 0.2, "ALTS": 0.2, "STABLES": 0.2}
	default:
		return map[string]float64{"BTC": 0.3, "ETH": 0.25, "ALTS": 0.3, "STABLES": 0.3}
	}
}

var altVocab = []string{
	"layer 2", "layer-2", "l2", "l1", "defi", "staking", "rollup", "bridge",
	"solana", "avalanche", "polygon", "arbitrum", "optimism",
}

var regVocab = []string{
	"exchange", "custody", "license", "regulation", "sec", "cftc", "lawsuit",
	"enforcement", "ban", "framework", "mica", "market structure",
}

// RelevanceTargets maps a news item to its weighted target set: a
// deterministic, additive (max-when-multiple-fire) rule table, closed out
// by a scope-dependent defaults layer guaranteeing every primary target is
// present, then scaled by `0.85 + 0.15*max(scope_score, max_sector)/100`.
func RelevanceTargets(it *domain.NewsItem) []RelevanceTarget {
	title := strings.ToLower(it.Title)
	tags := it.Tags
	eventType := strings.ToUpper(it.EventType)
	entities := it.Entities

	targets := map[string]float64{}
	add := func(asset string, score float64) {
		if cur, ok := targets[asset]; ok {
			if score > cur {
				targets[asset] = score
			}
			return
		}
		targets[asset] = score
	}

	if strings.Contains(title, "btc") || strings.Contains(title, "bitcoin") || hasEntity(entities, "BTC") {
		add("BTC", 0.9)
	}
	if strings.Contains(title, "eth") || strings.Contains(title, "ethereum") || hasEntity(entities, "ETH") {
		add("ETH", 0.9)
		add("ALTS", 0.7)
	}
	if strings.Contains(title, "stablecoin") || containsTag(tags, "Stablecoin") || strings.Contains(title, "usdt") || strings.Contains(title, "usdc") || strings.Contains(title, "tether") || strings.Contains(title, "circle") {
		add("STABLES", 0.85)
		add("ALTS", 0.7)
	}
	if strings.Contains(title, "etf") || containsTag(tags, "ETF") {
		if strings.Contains(title, "ethereum") || strings.Contains(title, "eth") {
			add("ETH", 0.9)
			add("ALTS", 0.65)
		} else {
			add("BTC", 0.9)
			add("ALTS", 0.55)
		}
	}
	if containsAnyStr(title, altVocab) {
		add("ALTS", 0.8)
		add("ETH", 0.65)
	}
	if eventType == "CRYPTO_MARKET_STRUCTURE" || eventType == "REGULATION_LEGAL" || containsTag(tags, "Reg") || containsAnyStr(title, regVocab) {
		add("STABLES", 0.8)
		add("ALTS", 0.7)
		add("ETH", 0.6)
		add("BTC", 0.5)
	}
	switch it.Category {
	case "crypto", "tech":
		add("ALTS", 0.6)
	}

	scope := it.NewsScope
	if scope == domain.ScopeMacro || scope == domain.ScopeGeopolitics || scope == domain.ScopeSystemic {
		add("BTC", 0.55)
		add("ALTS", 0.45)
		add("ETH", 0.4)
		if scope == domain.ScopeGeopolitics || scope == domain.ScopeSystemic {
			add("STABLES", 0.5)
		}
	}

	var topSectors []string
	for _, s := range it.SectorImpacts {
		topSectors = append(topSectors, s.Sector)
	}
	if containsStr(topSectors, "BANKS_RATES") {
		add("BTC", 0.6)
		add("ALTS", 0.45)
		add("STABLES", 0.5)
	}
	if containsAnyStr2(topSectors, []string{"OIL_GAS_UPSTREAM", "LNG_NATGAS", "DEFENSE_AEROSPACE", "SHIPPING_LOGISTICS"}) {
		add("BTC", 0.45)
		add("ALTS", 0.35)
		add("STABLES", 0.55)
	}

	for asset, score := range relevanceDefaults(scope) {
		if _, ok := targets[asset]; !ok {
			targets[asset] = score
		}
	}

	scale := 0.85 + 0.15*math.Max(it.ScopeScore/100.0, it.MaxSectorImpact/100.0)

	out := make([]RelevanceTarget, 0, len(targets))
	for asset, score := range targets {
		out = append(out, RelevanceTarget{Asset: asset, Score: round4(math.Min(1.0, score*scale))})
	}
	return out
}

func hasEntity(entities []string, want string) bool {
	for _, e := range entities {
		if e == want {
			return true
		}
	}
	return false
}

func containsStr(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func containsAnyStr(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func containsAnyStr2(list []string, wants []string) bool {
	for _, w := range wants {
		if containsStr(list, w) {
			return true
		}
	}
	return false
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
