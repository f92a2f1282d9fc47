package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
)

// NewsBudget is the default wall-clock budget for one fetch_news call
//.
const NewsBudget = 18 * time.Second

// EventFeedBudget bounds build_event_feed.
const EventFeedBudget = 12 * time.Second

// minNews/minNewsLong gate the timespan fallback ladder.
const (
	minNews     = 12
	minNewsLong = 6
)

// timespanLadderH is the fallback ladder in hours; a caller-requested span
// ≥24h (1 day) skips the ladder entirely.
var timespanLadderH = []int{1, 6, 24}

// fanoutWorkers bounds how many queries run concurrently within one
// fetch_news call; a simple semaphore is used in place of the generic
// async worker pool since the unit of work here is "one query, one slice of
// results" rather than a long-lived task stream.
const fanoutWorkers = 6

// NewsExtraMaxTickers/NewsExtraMaxFeeds bound the extras pulled once the
// primary provider under-delivers.
const (
	NewsExtraMaxTickers = 5
	NewsExtraMaxFeeds   = 3
)

// Engine runs the fetch_news/build_event_feed pipeline against one search
// provider plus optional extras sources.
type Engine struct {
	Search      SearchProvider
	FinanceNews *FinanceNewsProvider
	Feeds       []SyndicationFeed
	TierA       map[string]bool
	TierB       map[string]bool
}

// FetchResult is fetch_news's return value.
type FetchResult struct {
	Items        []*domain.NewsItem
	Notes        domain.FetchNotes
	UsedTimespan int // hours
}

// FetchNews runs the full pipeline: query, fetch, canonicalize, tag, score,
// dedup, cap, rank. It retries up the timespan ladder until the deduped
// count clears the minimum, or the ladder/budget is exhausted.
func (e *Engine) FetchNews(ctx context.Context, wl config.Watchlist, requestedTimespanH int, maxRecords int, vix float64) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, NewsBudget)
	defer cancel()

	var notes domain.FetchNotes
	ladder := laddersFor(requestedTimespanH)
	threshold := minNews
	if requestedTimespanH >= 24 {
		threshold = minNewsLong
	}

	var ranked []*domain.NewsItem
	used := ladder[0]
	for _, span := range ladder {
		used = span
		raw, rateLimited := e.runQueries(ctx, wl, span, maxRecords, &notes)
		if rateLimited && len(raw) == 0 {
			notes.Add("news_provider_rate_limited")
			break
		}
		ranked = e.annotateAndRank(raw, wl, vix)
		if len(ranked) >= threshold {
			break
		}
		select {
		case <-ctx.Done():
			notes.Add("news_budget_exceeded")
			goto done
		default:
		}
	}

	if len(ranked) < threshold {
		extras := e.fetchExtras(ctx, wl, maxRecords, &notes)
		if len(extras) > 0 {
			extraItems := e.annotateAndRank(extras, wl, vix)
			ranked = GlobalDedup(append(ranked, extraItems...))
			sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].FinalRankScore > ranked[j].FinalRankScore })
			ranked = ApplyDomainSoftCap(ranked)
		}
	}

done:
	if len(ranked) < threshold {
		notes.Add("news_data_weak")
	}
	if maxRecords > 0 && len(ranked) > maxRecords {
		ranked = ranked[:maxRecords]
	}
	return FetchResult{Items: ranked, Notes: notes, UsedTimespan: used}
}

// laddersFor returns the portion of the fallback ladder to walk: the full
// ladder for sub-day spans, or a single-element ladder (no fallback) for
// spans ≥1 day.
func laddersFor(requestedH int) []int {
	if requestedH >= 24 {
		return []int{requestedH}
	}
	var out []int
	for _, h := range timespanLadderH {
		if h >= requestedH {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		out = []int{requestedH}
	}
	return out
}

// runQueries fans out BuildQueries' query set over a bounded worker pool and
// merges the raw articles. Returns rateLimited=true if every query failed
// with a rate-limit error.
func (e *Engine) runQueries(ctx context.Context, wl config.Watchlist, timespanH, maxRecords int, notes *domain.FetchNotes) ([]RawArticle, bool) {
	queries := BuildQueries(wl, timespanH)
	for i := range queries {
		queries[i].MaxItems = maxRecords
	}

	type out struct {
		articles []RawArticle
		err      error
	}
	results := make([]out, len(queries))
	sem := make(chan struct{}, fanoutWorkers)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q SearchQuery) {
			defer wg.Done()
			defer func() { <-sem }()
			arts, err := e.Search.Search(ctx, q)
			results[i] = out{articles: arts, err: err}
		}(i, q)
	}
	wg.Wait()

	var merged []RawArticle
	failures, total := 0, len(results)
	for _, r := range results {
		if r.err != nil {
			failures++
			notes.Add(fmt.Sprintf("%s_error:%v", e.Search.Name, r.err))
			continue
		}
		merged = append(merged, r.articles...)
	}
	return merged, total > 0 && failures == total
}

// fetchExtras pulls finance-news per-ticker headlines, then syndication
// feeds, up to the configured caps.
func (e *Engine) fetchExtras(ctx context.Context, wl config.Watchlist, maxRecords int, notes *domain.FetchNotes) []RawArticle {
	var out []RawArticle
	if e.FinanceNews != nil {
		n := 0
		for _, entry := range wl.Entries {
			if n >= NewsExtraMaxTickers {
				break
			}
			arts, err := e.FinanceNews.ForTicker(ctx, entry.Symbol, maxRecords)
			if err != nil {
				notes.Add(fmt.Sprintf("%s_error:%v", e.FinanceNews.Name, err))
				continue
			}
			out = append(out, arts...)
			n++
		}
	}
	for i, feed := range e.Feeds {
		if i >= NewsExtraMaxFeeds {
			break
		}
		arts, err := feed.Fetch(ctx, maxRecords)
		if err != nil {
			notes.Add(fmt.Sprintf("%s_error:%v", feed.Name, err))
			continue
		}
		out = append(out, arts...)
	}
	return out
}

// annotateAndRank runs canonicalization, entity/person/country/event-type/
// scope/sector tagging, relevance/quality/rank scoring, cluster+global dedup
// and the domain soft cap over a batch of raw articles.
func (e *Engine) annotateAndRank(raw []RawArticle, wl config.Watchlist, vix float64) []*domain.NewsItem {
	now := time.Now()
	items := make([]*domain.NewsItem, 0, len(raw))
	for _, a := range raw {
		items = append(items, e.annotate(a, wl, now))
	}

	profile := SelectRankProfile(vix)
	for _, it := range items {
		it.FinalRankScore = FinalRankScore(profile, it.RelevanceScore, it.QualityScore,
			personImpact(it), it.MaxSectorImpact, it.ScopeScore)
	}

	clustered := LocalCluster(items)
	deduped := GlobalDedup(clustered)
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].FinalRankScore > deduped[j].FinalRankScore })
	return ApplyDomainSoftCap(deduped)
}

func personImpact(it *domain.NewsItem) float64 {
	if it.PersonEvent == nil {
		return 0
	}
	return it.PersonEvent.ImpactPotential
}

// annotate converts one RawArticle into a tagged, scored NewsItem.
func (e *Engine) annotate(a RawArticle, wl config.Watchlist, now time.Time) *domain.NewsItem {
	it := &domain.NewsItem{
		Title:          a.Title,
		URL:            a.URL,
		CanonicalURL:   CanonicalizeURL(a.URL),
		SourceDomain:   a.SourceDomain,
		Description:    a.Description,
		ContentText:    a.ContentText,
		PublishedAtUTC: a.PublishedAtUTC,
	}

	it.EventType = DetectEventType(it.Title)
	it.PersonEvent = MatchPerson(it.Title)
	if it.PersonEvent != nil {
		it.Category = "PERSONAL"
		it.Entities = append(it.Entities, it.PersonEvent.ActorName)
	}

	bestEntity, extraEntities := 0.0, 0
	for _, entry := range wl.Entries {
		score, matched := EntityMatch(it.Title, entry)
		if !matched {
			continue
		}
		it.Entities = append(it.Entities, entry.Symbol)
		if score > bestEntity {
			bestEntity = score
		} else {
			extraEntities++
		}
	}

	scope, scopeScore, signals := InferNewsScope(it.Title, it.Description, it.EventType, it.Tags, it.Entities)
	it.NewsScope = scope
	it.ScopeScore = scopeScore
	it.ScopeSignals = signals

	it.SectorImpacts = InferSectorImpacts(it.Title, it.Description, it.Entities, 3)
	for _, si := range it.SectorImpacts {
		if si.ImpactScore > it.MaxSectorImpact {
			it.MaxSectorImpact = si.ImpactScore
		}
	}

	tier := DomainTier(it.SourceDomain, e.TierA, e.TierB)
	age := AgeHours(it.PublishedAtUTC, now)
	it.QualityScore = QualityScore(tier, age, 0)
	recency := RecencyBonus(age, 0)
	entityMatch := EntityMatchScore(bestEntity, extraEntities)
	it.RelevanceScore = RelevanceScore(entityMatch, topicHits(strings.ToLower(it.Title)), recency, 0, 0)

	return it
}

