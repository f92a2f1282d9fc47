package news

import (
	"strings"

	"github.com/marketintel/analytics/internal/config"
)

// maxQueriesPerSpan bounds how many distinct queries one fetch_news call
// issues for a single timespan: one base query plus one per watchlist
// category present, capped.
const maxQueriesPerSpan = 4

// BuildQueries returns the base query followed by up to one per represented
// watchlist category, each widened with that category's regional terms: the
// watchlist's alias set folds into a single OR-query per category plus a
// catch-all.
func BuildQueries(wl config.Watchlist, timespanH int) []SearchQuery {
	base := baseQuery(wl)
	queries := []SearchQuery{{Text: base, TimespanH: timespanH}}

	seen := map[config.WatchlistCategory]bool{}
	for _, e := range wl.Entries {
		if seen[e.Category] {
			continue
		}
		seen[e.Category] = true
		if len(queries) >= maxQueriesPerSpan {
			break
		}
		queries = append(queries, SearchQuery{
			Text:      categoryQuery(wl, e.Category),
			TimespanH: timespanH,
		})
	}
	return queries
}

func baseQuery(wl config.Watchlist) string {
	var terms []string
	for _, e := range wl.Entries {
		if len(e.Aliases) > 0 {
			terms = append(terms, e.Aliases[0])
		}
	}
	return strings.Join(terms, " OR ")
}

func categoryQuery(wl config.Watchlist, cat config.WatchlistCategory) string {
	var terms []string
	for _, e := range wl.ByCategory(cat) {
		terms = append(terms, e.Aliases...)
	}
	terms = append(terms, config.RegionalTermSet(cat)...)
	return strings.Join(terms, " OR ")
}
