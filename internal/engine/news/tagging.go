package news

import (
	"math"
	"regexp"
	"strings"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
)

// --- Entity matching ---

var multiWordOrPunct = regexp.MustCompile(`[\s./]`)

// EntityMatch scores a title against one watchlist entry's aliases. Short
// (<=3 char) uppercase alphabetic aliases require a category context word.
func EntityMatch(title string, entry config.WatchlistEntry) (score float64, matched bool) {
	lower := strings.ToLower(title)
	best := 0.0
	for _, alias := range entry.Aliases {
		if !aliasMatches(title, lower, alias) {
			continue
		}
		if isShortUpperAlias(alias) && !hasCategoryContext(lower, entry.Category) {
			continue
		}
		s := 20.0
		if len(alias) >= 6 {
			s = 28.0
		}
		if s > best {
			best = s
		}
	}
	return best, best > 0
}

func aliasMatches(title, lowerTitle, alias string) bool {
	aliasLower := strings.ToLower(alias)
	if multiWordOrPunct.MatchString(aliasLower) {
		return strings.Contains(lowerTitle, aliasLower)
	}
	pattern := `\b` + regexp.QuoteMeta(aliasLower) + `\b`
	re := regexp.MustCompile(pattern)
	return re.MatchString(lowerTitle)
}

func isShortUpperAlias(alias string) bool {
	if len(alias) > 3 {
		return false
	}
	for _, r := range alias {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

var categoryContextWords = map[config.WatchlistCategory][]string{
	config.WatchlistCrypto: {"crypto", "token", "coin", "blockchain", "exchange"},
	config.WatchlistEnergy: {"oil", "gas", "barrel", "opec", "energy"},
	config.WatchlistTech:   {"chip", "ai", "software", "cloud", "datacenter"},
}

func hasCategoryContext(lowerText string, cat config.WatchlistCategory) bool {
	for _, w := range categoryContextWords[cat] {
		if strings.Contains(lowerText, w) {
			return true
		}
	}
	return false
}

// topicBoostKeywords are counted by topicHits; each hit adds 10 to
// RelevanceScore and 5 to a matched PersonEvent's impact.
var topicBoostKeywords = []string{"policy rate", "sanctions", "tariffs", "oil supply", "ceasefire"}

func topicHits(lowerTitle string) int {
	n := 0
	for _, k := range topicBoostKeywords {
		if strings.Contains(lowerTitle, k) {
			n++
		}
	}
	return n
}

// --- Person / actor matching ---

// MatchPerson finds a known actor in a title and returns a scored PersonEvent,
// or nil if none is found. Diacritic/alias variants collapse to the
// canonical name via config.AliasVariants.
func MatchPerson(title string) *domain.PersonEvent {
	lower := strings.ToLower(title)
	for _, entry := range config.ActorRegistry() {
		for _, variant := range config.AliasVariants(entry.CanonicalName) {
			if strings.Contains(lower, strings.ToLower(variant)) {
				boost := config.GroupBoost[entry.Group]
				impact := 40 + boost + float64(topicHits(lower))*5
				stance, statementType := inferStance(entry.Group, lower)
				return &domain.PersonEvent{
					ActorName:     entry.CanonicalName,
					ActorGroup:    string(entry.Group),
					StatementType: statementType,
					Stance:        stance,
					ImpactPotential: clip100(impact),
					Confidence:      clip100(50 + boost),
					MatchBasis:      "title_substring",
					AssetClassBias:  stanceBias(stance),
				}
			}
		}
	}
	return nil
}

// stanceRules holds, per actor group, the keyword lists that vote for each
// stance.
var stanceRules = map[config.ActorGroup]map[domain.Stance][]string{
	config.GroupCentralBankHeads: {
		domain.StanceHawkish: {"rate hike", "higher for longer", "inflation persistent", "tightening", "restrictive", "not ready to cut", "hold rates"},
		domain.StanceDovish:  {"rate cut", "disinflation", "easing", "lower rates", "pause", "soft landing", "cuts soon"},
	},
	config.GroupRegulators: {
		domain.StanceRiskEscalate:   {"lawsuit", "enforcement", "ban", "fine", "investigation", "approval denied", "cease and desist"},
		domain.StanceRiskDeescalate: {"approval", "clarity", "framework", "license granted", "settlement"},
	},
	config.GroupEnergyMinisters: {
		domain.StanceRiskEscalate:   {"cut output", "supply disruption", "sanctions", "attack on shipping", "output cut", "production cut"},
		domain.StanceRiskDeescalate: {"increase output", "restore supply", "ceasefire", "shipping normal", "output increase", "production increase"},
	},
	config.GroupDefenseSecurity: {
		domain.StanceRiskEscalate:   {"escalation", "attack", "missile", "drone strike", "mobilization"},
		domain.StanceRiskDeescalate: {"ceasefire", "de-escalation", "peace talks", "truce"},
	},
}

func inferStance(group config.ActorGroup, lowerTitle string) (domain.Stance, string) {
	rules, ok := stanceRules[group]
	if !ok {
		return domain.StanceUnknown, "OTHER"
	}
	bestStance := domain.StanceUnknown
	bestHits := 0
	for stance, keywords := range rules {
		hits := 0
		for _, k := range keywords {
			if strings.Contains(lowerTitle, k) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestStance = stance
		}
	}
	if bestHits == 0 {
		return domain.StanceNeutral, "STATEMENT"
	}
	return bestStance, "STATEMENT"
}

func stanceBias(stance domain.Stance) []string {
	switch stance {
	case domain.StanceHawkish, domain.StanceRiskEscalate:
		return []string{"risk_off"}
	case domain.StanceDovish, domain.StanceRiskDeescalate:
		return []string{"risk_on"}
	default:
		return nil
	}
}

// --- Country matching ---

var ambiguousCountries = map[string]bool{
	"Georgia": true, "Jordan": true, "Turkey": true, "Chad": true, "Niger": true,
}

var countryContextWords = []string{"president", "minister", "government", "parliament", "election", "border", "military"}

// MatchCountry checks a country alias with an ambiguity guard: ambiguous
// names require a context word unless category = REGIONAL.
func MatchCountry(title, alias string, category domain.EventCategory) bool {
	lower := strings.ToLower(title)
	if !strings.Contains(lower, strings.ToLower(alias)) {
		return false
	}
	if ambiguousCountries[alias] && category != domain.CategoryRegional {
		hasContext := false
		for _, w := range countryContextWords {
			if strings.Contains(lower, w) {
				hasContext = true
				break
			}
		}
		return hasContext
	}
	return true
}

// --- Event type classification ---

// eventRules is the ordered event-type regex rule list; first match wins,
// default OTHER.
var eventRules = []struct {
	eventType string
	patterns  []*regexp.Regexp
}{
	{"EARNINGS_GUIDANCE", compileAll(`earnings`, `results`, `revenue`, `\beps\b`, `guidance`, `outlook`, `forecast`, `margin`)},
	{"REGULATION_LEGAL", compileAll(`\bsec\b`, `\bkap\b`, `investigation`, `lawsuit`, `settlement`, `fine`, `antitrust`, `regulator`)},
	{"MNA", compileAll(`acquire`, `merger`, `deal`, `buyout`, `takeover`, `sale`, `divest`)},
	{"CAPEX_INVESTMENT", compileAll(`capex`, `investment`, `data center`, `factory`, `\bfab\b`, `plant`, `expansion`, `buildout`)},
	{"SANCTIONS_GEOPOLITICS", compileAll(`sanction`, `export controls`, `tariff`, `embargo`, `ceasefire`, `conflict`, `pipeline attack`)},
	{"ENERGY_SUPPLY_OPEC", compileAll(`\bopec\b`, `output`, `cut`, `supply disruption`, `\blng\b`, `refinery`, `strike`, `inventory`)},
	{"MACRO_RATES_INFLATION", compileAll(`\bcpi\b`, `\bpce\b`, `inflation`, `rate cut`, `rate hike`, `\bfed\b`, `\becb\b`, `bond yields`, `\bdxy\b`)},
	{"CRYPTO_MARKET_STRUCTURE", compileAll(`\betf\b`, `custody`, `exchange`, `stablecoin`, `market structure`, `\bmica\b`, `etf inflow`, `etf outflow`)},
	{"SECURITY_INCIDENT", compileAll(`hack`, `breach`, `exploit`, `ransomware`, `outage`)},
	{"PRODUCT_PLATFORM", compileAll(`launch`, `release`, `partnership`, `platform`, `\bapi\b`, `chip`, `model`, `datacenter gpu`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// DetectEventType returns the first matching rule's event type, or "OTHER".
func DetectEventType(title string) string {
	for _, rule := range eventRules {
		for _, re := range rule.patterns {
			if re.MatchString(title) {
				return rule.eventType
			}
		}
	}
	return "OTHER"
}

var companyEventTypes = map[string]bool{
	"EARNINGS_GUIDANCE": true, "MNA": true, "CAPEX_INVESTMENT": true, "PRODUCT_PLATFORM": true,
}
var sectorEventTypes = map[string]bool{
	"REGULATION_LEGAL": true, "CRYPTO_MARKET_STRUCTURE": true, "SECURITY_INCIDENT": true,
}

// --- Scope & sector impacts ---

var macroKeywords = []string{"cpi", "pce", "gdp", "pmi", "payroll", "inflation", "rate hike", "rate cut", "yields", "jobless", "unemployment"}
var geopoliticsKeywords = []string{"sanctions", "tariff", "export controls", "conflict", "ceasefire", "shipping lane", "attack", "missile"}
var systemicKeywords = []string{"global", "risk-off", "systemic", "contagion", "crisis"}
var ambiguityWords = []string{"may", "could", "might", "reportedly", "sources", "rumor", "rumour", "likely", "possible"}
var numericShockRe = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:%|bp|bps|bpd|mbpd|million|billion|trillion)\b`)
var regionHints = []string{"united states", "u.s.", "usa", "europe", "eu", "china", "russia", "iran", "israel", "saudi", "germany", "france", "japan"}
var posTriggers = []string{"approval", "framework", "deal", "ceasefire", "rate cut", "easing", "supply increase", "increase output", "restore supply"}
var negTriggers = []string{"ban", "lawsuit", "enforcement", "sanctions", "tariff", "export controls", "attack", "disruption", "rate hike", "outage"}

func combinedText(title, description string) string {
	return strings.TrimSpace(title + " " + description)
}

func numericShock(text string) bool { return numericShockRe.MatchString(text) }

func ambiguityPenalty(text string) float64 {
	hits := 0
	for _, w := range ambiguityWords {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
		if re.MatchString(text) {
			hits++
		}
	}
	return math.Min(15, float64(hits)*5)
}

func regionCount(text string, tags []string) int {
	found := map[string]bool{}
	for _, h := range regionHints {
		if strings.Contains(text, h) {
			found[h] = true
		}
	}
	for _, t := range tags {
		if t == "AB" || t == "ABD" || t == "Asya" || t == "Ortadogu" {
			found[t] = true
		}
	}
	return len(found)
}

// InferNewsScope implements infer_news_scope: geographic/economic breadth.
func InferNewsScope(title, description, eventType string, tags []string, entities []string) (domain.NewsScope, float64, []string) {
	text := strings.ToLower(combinedText(title, description))
	var signals []string

	isMacro := eventType == "MACRO_RATES_INFLATION" || containsAny(text, macroKeywords)
	if isMacro {
		signals = append(signals, "macro_keywords")
	}
	isGeo := eventType == "SANCTIONS_GEOPOLITICS" || eventType == "ENERGY_SUPPLY_OPEC" || containsTag(tags, "War") || containsAny(text, geopoliticsKeywords)
	if isGeo {
		signals = append(signals, "geopolitics_keywords")
	}
	entityCount := len(entities)
	isCompany := companyEventTypes[eventType] || (entityCount == 1 && containsAny(text, []string{"earnings", "guidance", "merger", "acquisition", "capex", "launch"}))
	if isCompany {
		signals = append(signals, "company_focus")
	}
	isSector := sectorEventTypes[eventType] || (entityCount >= 2 && containsAny(text, []string{"industry", "sector", "market structure", "regulation"}))
	if isSector {
		signals = append(signals, "sector_focus")
	}
	systemicHint := containsAny(text, systemicKeywords)
	if systemicHint {
		signals = append(signals, "systemic_keyword")
	}

	scope := domain.ScopeUnknown
	switch {
	case isMacro:
		scope = domain.ScopeMacro
	case isGeo:
		scope = domain.ScopeGeopolitics
	case isCompany:
		scope = domain.ScopeCompany
	case isSector:
		scope = domain.ScopeSector
	}

	region := regionCount(text, tags)
	score := 10.0
	if scope == domain.ScopeMacro || scope == domain.ScopeGeopolitics {
		score += 20
	}
	score += math.Min(20, 5*float64(region))
	score += math.Min(20, 4*float64(minInt(5, entityCount)))
	if numericShock(text) {
		score += 10
		signals = append(signals, "numeric_shock")
	}
	score -= ambiguityPenalty(text)

	if systemicHint || (region >= 2 && (scope == domain.ScopeMacro || scope == domain.ScopeGeopolitics)) || score >= 75 {
		scope = domain.ScopeSystemic
		score += 25
		signals = append(signals, "systemic_signal")
	}
	if scope == domain.ScopeSystemic && score < 50 {
		score = 50
	}
	return scope, clip100(score), signals
}

// sectorRule is one sector's required/boost/exclude keyword set.
type sectorRule struct {
	required []string
	boost    []string
	exclude  []string
}

// sectorRules is the FALLBACK_SECTOR_RULES table plus the CRYPTO default.
var sectorRules = map[string]sectorRule{
	"SEMICONDUCTORS":      {required: []string{"chip", "semiconductor"}, boost: []string{"ai", "datacenter"}},
	"OIL_GAS_UPSTREAM":    {required: []string{"oil", "gas"}, boost: []string{"opec", "brent", "wti"}},
	"LNG_NATGAS":          {required: []string{"lng", "natural gas"}, boost: []string{"pipeline", "liquefaction"}},
	"POWER_UTILITIES":     {required: []string{"utility", "power grid"}, boost: []string{"renewable", "nuclear"}},
	"BANKS_RATES":         {required: []string{"bank", "lender"}, boost: []string{"rates", "interest"}},
	"SHIPPING_LOGISTICS":  {required: []string{"shipping", "logistics"}, boost: []string{"supply chain"}},
	"DEFENSE_AEROSPACE":   {required: []string{"defense", "aerospace"}, boost: []string{"military"}},
	"CRYPTO":              {required: []string{"crypto", "bitcoin", "stablecoin", "exchange", "etf", "defi"}, boost: []string{"approval", "inflow", "outflow", "custody"}},
}

// sectorGiants are named flagship companies whose mention alone can satisfy
// a sector's required-keyword gate.
var sectorGiants = map[string][]string{
	"SEMICONDUCTORS":   {"Nvidia", "TSMC", "AMD", "Intel"},
	"OIL_GAS_UPSTREAM":  {"Saudi Aramco", "ExxonMobil", "Chevron"},
	"BANKS_RATES":       {"JPMorgan", "Goldman Sachs"},
	"CRYPTO":            {"Coinbase", "Binance", "BlackRock"},
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// InferSectorImpacts implements infer_sector_impacts: up to maxSectors
// scored sector reactions, sorted by impact_score desc.
func InferSectorImpacts(title, description string, entities []string, maxSectors int) []domain.SectorImpact {
	text := strings.ToLower(combinedText(title, description))
	shock := numericShock(text)
	penalty := ambiguityPenalty(text)
	entitySet := map[string]bool{}
	for _, e := range entities {
		entitySet[e] = true
	}

	var out []domain.SectorImpact
	for sector, cfg := range sectorRules {
		requiredHits := countHits(text, cfg.required)
		boostHits := countHits(text, cfg.boost)
		excludeHits := countHits(text, cfg.exclude)
		giantHits := 0
		for _, name := range sectorGiants[sector] {
			if strings.Contains(text, strings.ToLower(name)) || entitySet[name] {
				giantHits++
			}
		}
		if sector == "BANKS_RATES" && containsAny(text, macroKeywords) {
			requiredHits = maxInt(requiredHits, 1)
		}
		if requiredHits == 0 && giantHits == 0 {
			continue
		}
		if excludeHits > 0 && requiredHits == 0 {
			continue
		}

		impact := 20.0
		if requiredHits > 0 {
			impact += 20
		}
		impact += math.Min(15, 7*float64(requiredHits))
		impact += math.Min(15, 5*float64(giantHits))
		impact += math.Min(12, 4*float64(boostHits))
		if shock {
			impact += 10
		}
		impact -= penalty

		confidence := 30.0
		confidence += math.Min(30, 6*float64(requiredHits)+4*float64(boostHits))
		confidence += math.Min(20, 6*float64(giantHits))
		confidence -= penalty

		posHits := countHits(text, posTriggers)
		negHits := countHits(text, negTriggers)
		direction := domain.SectorNeutral
		switch {
		case posHits > 0 && negHits > 0 && maxInt(posHits, negHits) >= 2:
			direction = domain.SectorMixed
		case posHits > negHits:
			direction = domain.SectorUp
		case negHits > posHits:
			direction = domain.SectorDown
		}

		switch sector {
		case "OIL_GAS_UPSTREAM", "LNG_NATGAS":
			if containsAny(text, []string{"output cut", "cut output", "disruption", "attack", "sanctions"}) {
				direction = domain.SectorUp
			}
			if containsAny(text, []string{"increase output", "restore supply"}) {
				direction = domain.SectorDown
			}
		case "SEMICONDUCTORS":
			if containsAny(text, []string{"export controls", "tariff", "ban"}) {
				direction = domain.SectorDown
			}
			if containsAny(text, []string{"datacenter demand", "capex", "ai demand", "hbm"}) {
				direction = domain.SectorUp
			}
		case "DEFENSE_AEROSPACE":
			if strings.Contains(text, "ceasefire") {
				direction = domain.SectorDown
			}
		}

		out = append(out, domain.SectorImpact{
			Sector:      sector,
			Direction:   direction,
			Confidence:  clip100(confidence),
			Rationale:   sectorRationale(requiredHits, boostHits, giantHits),
			ImpactScore: clip100(impact),
		})
	}

	sortSectorImpactsDesc(out)
	if len(out) > maxSectors {
		out = out[:maxSectors]
	}
	return out
}

func sectorRationale(required, boost, giants int) string {
	return "required:" + itoa(required) + " boost:" + itoa(boost) + " giants:" + itoa(giants)
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

func sortSectorImpactsDesc(s []domain.SectorImpact) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].ImpactScore > s[j-1].ImpactScore; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func clip100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
