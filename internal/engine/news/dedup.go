package news

import (
	"sort"
	"strings"

	"github.com/marketintel/analytics/internal/domain"
)

// fuzzyDedupThreshold is the token-set ratio above which two titles are
// considered the same story.
const fuzzyDedupThreshold = 0.85

// domainSoftCap bounds how many items from one source domain survive the
// final ranked sort.
const domainSoftCap = 5

// cluster is an internal grouping of NewsItems that fold into one
// representative during local clustering.
type cluster struct {
	items []*domain.NewsItem
}

// LocalCluster groups items by canonical URL when present, else by top-2
// entities, folding titles whose token-set ratio >= fuzzyDedupThreshold
// within an entity group, keeping at most one item per source domain.
// Returns one representative NewsItem per cluster with other_sources filled.
func LocalCluster(items []*domain.NewsItem) []*domain.NewsItem {
	byKey := map[string]*cluster{}
	var order []string

	for _, it := range items {
		key := it.CanonicalURL
		if key == "" {
			key = entityGroupKey(it.Entities)
		}
		c, ok := byKey[key]
		if !ok {
			c = &cluster{}
			byKey[key] = c
			order = append(order, key)
		}
		placed := false
		if key != it.CanonicalURL || it.CanonicalURL == "" {
			// entity-keyed group: fold by title similarity
			for _, existing := range c.items {
				if TokenSetRatio(existing.Title, it.Title) >= fuzzyDedupThreshold {
					c.items = append(c.items, it)
					placed = true
					break
				}
			}
		}
		if !placed {
			c.items = append(c.items, it)
		}
	}

	var out []*domain.NewsItem
	for _, key := range order {
		out = append(out, representativesForCluster(byKey[key].items, key)...)
	}
	return out
}

func entityGroupKey(entities []string) string {
	top := entities
	if len(top) > 2 {
		top = top[:2]
	}
	return "entities:" + strings.Join(top, "|")
}

// representativesForCluster keeps the best item per source domain, then
// returns the best of those as the single cluster representative, with up
// to 3 of the other domains listed in OtherSources.
func representativesForCluster(items []*domain.NewsItem, key string) []*domain.NewsItem {
	byDomain := map[string][]*domain.NewsItem{}
	var domainOrder []string
	for _, it := range items {
		if _, ok := byDomain[it.SourceDomain]; !ok {
			domainOrder = append(domainOrder, it.SourceDomain)
		}
		byDomain[it.SourceDomain] = append(byDomain[it.SourceDomain], it)
	}

	var reps []*domain.NewsItem
	var otherDomains []string
	for _, d := range domainOrder {
		reps = append(reps, bestOf(byDomain[d]))
		if d != "" {
			otherDomains = append(otherDomains, d)
		}
	}
	if len(reps) == 0 {
		return nil
	}
	sort.Slice(reps, func(i, j int) bool { return representativeLess(reps[j], reps[i]) })
	rep := reps[0]
	rep.DedupClusterID = BuildClusterID(key)
	for _, d := range otherDomains {
		if d == rep.SourceDomain {
			continue
		}
		if len(rep.OtherSources) >= 3 {
			break
		}
		rep.OtherSources = append(rep.OtherSources, d)
	}
	return []*domain.NewsItem{rep}
}

// bestOf picks the cluster representative within one domain: max(quality,
// then relevance, then latest published).
func bestOf(items []*domain.NewsItem) *domain.NewsItem {
	best := items[0]
	for _, it := range items[1:] {
		if representativeLess(best, it) {
			best = it
		}
	}
	return best
}

// representativeLess reports whether b should replace a as representative.
func representativeLess(a, b *domain.NewsItem) bool {
	if b.QualityScore != a.QualityScore {
		return b.QualityScore > a.QualityScore
	}
	if b.RelevanceScore != a.RelevanceScore {
		return b.RelevanceScore > a.RelevanceScore
	}
	if a.PublishedAtUTC == nil {
		return b.PublishedAtUTC != nil
	}
	if b.PublishedAtUTC == nil {
		return false
	}
	return b.PublishedAtUTC.After(*a.PublishedAtUTC)
}

// GlobalDedup suppresses duplicates across all clusters whose canonical URL
// matches a kept URL, or whose canonical-title token-set ratio >=
// fuzzyDedupThreshold against a kept title; the suppressed item's domain is
// promoted into the survivor's other_sources (max 3).
func GlobalDedup(reps []*domain.NewsItem) []*domain.NewsItem {
	var kept []*domain.NewsItem
	seenURLs := map[string]*domain.NewsItem{}

	for _, it := range reps {
		if it.CanonicalURL != "" {
			if survivor, ok := seenURLs[it.CanonicalURL]; ok {
				mergeOtherSource(survivor, it.SourceDomain)
				continue
			}
		}
		dup := false
		for _, k := range kept {
			if TokenSetRatio(k.Title, it.Title) >= fuzzyDedupThreshold {
				mergeOtherSource(k, it.SourceDomain)
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, it)
		if it.CanonicalURL != "" {
			seenURLs[it.CanonicalURL] = it
		}
	}
	return kept
}

func mergeOtherSource(survivor *domain.NewsItem, sourceDomain string) {
	if sourceDomain == "" || sourceDomain == survivor.SourceDomain {
		return
	}
	for _, d := range survivor.OtherSources {
		if d == sourceDomain {
			return
		}
	}
	if len(survivor.OtherSources) >= 3 {
		return
	}
	survivor.OtherSources = append(survivor.OtherSources, sourceDomain)
}

// ApplyDomainSoftCap drops items beyond domainSoftCap occurrences of the
// same source domain, preserving the incoming (already-ranked) order.
func ApplyDomainSoftCap(items []*domain.NewsItem) []*domain.NewsItem {
	counts := map[string]int{}
	var out []*domain.NewsItem
	for _, it := range items {
		counts[it.SourceDomain]++
		if counts[it.SourceDomain] > domainSoftCap {
			continue
		}
		out = append(out, it)
	}
	return out
}
