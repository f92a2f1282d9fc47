// Package portfolio values the configured holdings registry, attributes
// matched news impact to each position, computes concentration/volatility/FX
// risk, and proposes turnover-bounded rebalance actions across three
// horizons.
package portfolio

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/textmatch"
)

// MethodWeight is the score assigned to each match method.
var MethodWeight = map[domain.MatchMethod]float64{
	domain.MatchDirect: 1.0,
	domain.MatchEntity: 0.9,
	domain.MatchTitle:  0.7,
	domain.MatchFuzzy:  0.6,
	domain.MatchSector: 0.4,
}

// shortTickers are symbols short/common enough that a bare substring match
// needs surrounding market-context words to count as a direct hit.
var shortTickers = map[string]bool{}

var shortTickerContext = []string{"stock", "shares", "nyse", "nasdaq", "etf", "inc", "corp", "company"}

var nonAlnumDollar = regexp.MustCompile(`[^a-z0-9\s$]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips punctuation down to alnum/space/$, and
// collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(unicode.ToLower(r))
	}
	s := nonAlnumDollar.ReplaceAllString(b.String(), " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// RecencyWeight tiers a news item's weight by age: <=1h:1.0, <=6h:0.7,
// <=24h:0.4, else 0.2.
func RecencyWeight(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0.2
	}
	hours := now.Sub(*publishedAt).Hours()
	switch {
	case hours <= 1:
		return 1.0
	case hours <= 6:
		return 0.7
	case hours <= 24:
		return 0.4
	default:
		return 0.2
	}
}

// tokenSetRatio scores fuzzy alias-vs-title similarity through the shared
// difflib-style token-set ratio.
func tokenSetRatio(a, b string) float64 {
	return textmatch.TokenSetRatio(a, b)
}

// NewsMatch is one (symbol, method) hit against a single news item, before
// impact weighting.
type NewsMatch struct {
	Symbol        string
	Method        domain.MatchMethod
	MatchedPhrase string
}

// directTickerMatch looks for ticker-context phrases in the raw text. The
// NEAR branch is intentionally case-sensitive: only a literal lowercase
// "near protocol"/"nearprotocol", or a bare uppercase "NEAR" token, counts
// as a direct hit, so ordinary lowercase "near" in prose does not.
func directTickerMatch(text, symbol string) (bool, string) {
	lower := strings.ToLower(text)
	switch {
	case symbol == "NEAR":
		if strings.Contains(text, "near protocol") {
			return true, "near protocol"
		}
		if strings.Contains(text, "nearprotocol") {
			return true, "nearprotocol"
		}
		if containsWordCase(text, "NEAR") {
			return true, "NEAR"
		}
		return false, ""
	case shortTickers[symbol]:
		if strings.Contains(text, "$"+symbol) || strings.Contains(strings.ToUpper(text), "$"+symbol) {
			return true, "$" + symbol
		}
		if containsWord(lower, strings.ToLower(symbol)) {
			for _, ctx := range shortTickerContext {
				if strings.Contains(lower, ctx) {
					return true, symbol
				}
			}
		}
		return false, ""
	default:
		if containsWord(lower, strings.ToLower(symbol)) {
			return true, symbol
		}
		return false, ""
	}
}

func containsWord(haystack, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(haystack)
}

// containsWordCase is containsWord without lowercasing either side.
func containsWordCase(haystack, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(haystack)
}

// MatchNewsItem attributes a single NewsItem to every holding it
// direct/entity/title/fuzzy matches, applying the fuzzy-match drop guard
// when more than 4 symbols already matched.
func MatchNewsItem(item domain.NewsItem, holdings []domain.Holding) ([]NewsMatch, map[domain.MatchMethod]int) {
	normTitle := Normalize(item.Title)
	normEntities := make([]string, len(item.Entities))
	for i, e := range item.Entities {
		normEntities[i] = Normalize(e)
	}
	titleAndURL := item.Title + " " + item.URL

	counts := map[domain.MatchMethod]int{}
	var matches []NewsMatch

	for _, h := range holdings {
		normAliases := make([]string, len(h.Aliases))
		for i, a := range h.Aliases {
			normAliases[i] = Normalize(a)
		}
		matched := false

		if ok, phrase := directTickerMatch(titleAndURL, h.Symbol); ok {
			matches = append(matches, NewsMatch{Symbol: h.Symbol, Method: domain.MatchDirect, MatchedPhrase: phrase})
			counts[domain.MatchDirect]++
			matched = true
		}

		if !matched {
			for _, ent := range normEntities {
				if !containsToken(normAliases, ent) {
					continue
				}
				if h.Symbol == "NEAR" && ent == "near" && !strings.Contains(normTitle, "near protocol") && !strings.Contains(normTitle, "nearprotocol") {
					continue
				}
				matches = append(matches, NewsMatch{Symbol: h.Symbol, Method: domain.MatchEntity, MatchedPhrase: ent})
				counts[domain.MatchEntity]++
				matched = true
				break
			}
		}

		if !matched {
			for _, alias := range normAliases {
				if alias == "" || !strings.Contains(normTitle, alias) {
					continue
				}
				if shortTickers[h.Symbol] && len(alias) <= 2 {
					continue
				}
				if h.Symbol == "NEAR" && alias == "near" && !strings.Contains(normTitle, "near protocol") {
					continue
				}
				matches = append(matches, NewsMatch{Symbol: h.Symbol, Method: domain.MatchTitle, MatchedPhrase: alias})
				counts[domain.MatchTitle]++
				matched = true
				break
			}
		}

		if !matched {
			for _, alias := range normAliases {
				if len(strings.Fields(alias)) < 2 {
					continue
				}
				if tokenSetRatio(alias, normTitle) >= 0.88 {
					matches = append(matches, NewsMatch{Symbol: h.Symbol, Method: domain.MatchFuzzy, MatchedPhrase: alias})
					counts[domain.MatchFuzzy]++
					matched = true
					break
				}
			}
		}
	}

	matches = dropFuzzyIfOverMatched(matches, counts)
	return matches, counts
}

// dropFuzzyIfOverMatched is the false-positive guard: when a single item
// matches more than 4 symbols, fuzzy hits (the least confident method) are
// dropped first.
func dropFuzzyIfOverMatched(matches []NewsMatch, counts map[domain.MatchMethod]int) []NewsMatch {
	if len(matches) <= 4 {
		return matches
	}
	pruned := make([]NewsMatch, 0, len(matches))
	for _, m := range matches {
		if m.Method != domain.MatchFuzzy {
			pruned = append(pruned, m)
		}
	}
	counts[domain.MatchFuzzy] = 0
	return pruned
}

func containsToken(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// SectorMatch attaches a low-weight indirect match to every holding sharing
// a sector with one of the item's scored sector impacts.
func SectorMatch(item domain.NewsItem, holdings []domain.Holding) []NewsMatch {
	if len(item.SectorImpacts) == 0 {
		return nil
	}
	var out []NewsMatch
	for _, h := range holdings {
		if h.Sector == "" {
			continue
		}
		for _, imp := range item.SectorImpacts {
			if imp.Sector == h.Sector {
				out = append(out, NewsMatch{Symbol: h.Symbol, Method: domain.MatchSector, MatchedPhrase: h.Sector})
			}
		}
	}
	return out
}
