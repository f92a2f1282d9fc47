package news

import (
	"sort"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

// eventTopKPerCategory/eventTopKGlobal bound build_event_feed's output
//.
const (
	eventTopKPerCategory = 10
	eventTopKGlobal      = 40
)

// BuildEventFeed buckets the already-fetched, ranked NewsItems into an
// EventFeed: one EventItem per item, grouped into (REGIONAL, COMPANY,
// SECTOR, PERSONAL), clustered by (hour-bucket, top-entities), deduped
// within a cluster by canonical-title similarity, domain-capped, then
// truncated to the per-category and global Top-K.
func BuildEventFeed(items []*domain.NewsItem, sourcesUsed, providerHealth []string) domain.EventFeed {
	byCat := map[domain.EventCategory][]*domain.NewsItem{}
	for _, it := range items {
		cat := categoryOf(it)
		byCat[cat] = append(byCat[cat], it)
	}

	feed := domain.EventFeed{SourcesUsed: sourcesUsed, ProviderHealth: providerHealth}
	feed.Regional = rankedEventItems(byCat[domain.CategoryRegional], domain.CategoryRegional)
	feed.Company = rankedEventItems(byCat[domain.CategoryCompany], domain.CategoryCompany)
	feed.Sector = rankedEventItems(byCat[domain.CategorySector], domain.CategorySector)
	feed.Personal = rankedEventItems(byCat[domain.CategoryPersonal], domain.CategoryPersonal)

	applyGlobalCap(&feed)
	return feed
}

func categoryOf(it *domain.NewsItem) domain.EventCategory {
	if it.PersonEvent != nil {
		return domain.CategoryPersonal
	}
	switch it.NewsScope {
	case domain.ScopeCompany:
		return domain.CategoryCompany
	case domain.ScopeSector:
		return domain.CategorySector
	default:
		return domain.CategoryRegional
	}
}

// rankedEventItems clusters, dedups, domain-caps and truncates one
// category's items to eventTopKPerCategory.
func rankedEventItems(items []*domain.NewsItem, cat domain.EventCategory) []domain.EventItem {
	if len(items) == 0 {
		return nil
	}

	byBucket := map[string][]*domain.NewsItem{}
	var order []string
	for _, it := range items {
		key := bucketKey(it)
		if _, ok := byBucket[key]; !ok {
			order = append(order, key)
		}
		byBucket[key] = append(byBucket[key], it)
	}

	var reps []*domain.NewsItem
	for _, key := range order {
		reps = append(reps, dedupBucket(byBucket[key])...)
	}

	sort.SliceStable(reps, func(i, j int) bool { return reps[i].FinalRankScore > reps[j].FinalRankScore })
	capped := ApplyDomainSoftCap(reps)
	if len(capped) > eventTopKPerCategory {
		capped = capped[:eventTopKPerCategory]
	}

	out := make([]domain.EventItem, 0, len(capped))
	for _, it := range capped {
		out = append(out, toEventItem(it, cat))
	}
	return out
}

// bucketKey groups items by (hour-of-publish, top-2-entities).
func bucketKey(it *domain.NewsItem) string {
	hour := "unknown"
	if it.PublishedAtUTC != nil {
		hour = it.PublishedAtUTC.UTC().Truncate(time.Hour).Format(time.RFC3339)
	}
	return hour + "|" + entityGroupKey(it.Entities)
}

// dedupBucket folds items within one bucket whose canonical titles exceed
// the fuzzy-dedup threshold, keeping the highest-ranked representative and
// merging the rest's domains into other_sources.
func dedupBucket(items []*domain.NewsItem) []*domain.NewsItem {
	var kept []*domain.NewsItem
	for _, it := range items {
		dup := false
		for _, k := range kept {
			if TokenSetRatio(k.Title, it.Title) >= fuzzyDedupThreshold {
				if it.FinalRankScore > k.FinalRankScore {
					replaced := k.SourceDomain
					*k = *it
					mergeOtherSource(k, replaced)
				} else {
					mergeOtherSource(k, it.SourceDomain)
				}
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, it)
		}
	}
	return kept
}

func toEventItem(it *domain.NewsItem, cat domain.EventCategory) domain.EventItem {
	ts := time.Now().UTC()
	if it.PublishedAtUTC != nil {
		ts = *it.PublishedAtUTC
	}
	var sector string
	if len(it.SectorImpacts) > 0 {
		sector = it.SectorImpacts[0].Sector
	}
	confidence := it.RelevanceScore
	if it.PersonEvent != nil {
		confidence = it.PersonEvent.Confidence
	}
	return domain.EventItem{
		Category:          cat,
		Title:             it.Title,
		TsUTC:             ts,
		SourceDomain:      it.SourceDomain,
		SourceURL:         it.URL,
		ShortSummary:      it.ShortSummary,
		SectorName:        sector,
		RelevanceScore:    it.RelevanceScore,
		QualityScore:      it.QualityScore,
		DedupClusterID:    it.DedupClusterID,
		OverallConfidence: confidence,
		OtherSources:      it.OtherSources,
	}
}

// applyGlobalCap cuts the four category lists down to eventTopKGlobal items
// in total by repeatedly dropping the last item of whichever list is
// currently longest; scores are not compared across categories.
func applyGlobalCap(feed *domain.EventFeed) {
	total := len(feed.Regional) + len(feed.Company) + len(feed.Sector) + len(feed.Personal)
	if total <= eventTopKGlobal {
		return
	}
	over := total - eventTopKGlobal
	for over > 0 {
		longest := pickLongest(feed)
		if longest == nil {
			break
		}
		*longest = (*longest)[:len(*longest)-1]
		over--
	}
}

func pickLongest(feed *domain.EventFeed) *[]domain.EventItem {
	lists := []*[]domain.EventItem{&feed.Regional, &feed.Company, &feed.Sector, &feed.Personal}
	var longest *[]domain.EventItem
	for _, l := range lists {
		if len(*l) == 0 {
			continue
		}
		if longest == nil || len(*l) > len(*longest) {
			longest = l
		}
	}
	return longest
}
