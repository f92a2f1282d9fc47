package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
	"github.com/marketintel/analytics/internal/persistence/memory"
)

func targetScores(targets []RelevanceTarget) map[string]float64 {
	out := map[string]float64{}
	for _, t := range targets {
		out[t.Asset] = t.Score
	}
	return out
}

func TestRelevanceTargetsAlwaysContainPrimaryFour(t *testing.T) {
	items := []*domain.NewsItem{
		{Title: "Quiet day in markets"},
		{Title: "Bitcoin rallies", Entities: []string{"BTC"}},
		{Title: "Ceasefire talks stall", NewsScope: domain.ScopeGeopolitics},
		{Title: "Chipmaker beats earnings guidance", NewsScope: domain.ScopeCompany},
	}
	for _, it := range items {
		scores := targetScores(RelevanceTargets(it))
		for _, asset := range []string{"BTC", "ETH", "ALTS", "STABLES"} {
			assert.Contains(t, scores, asset, "item %q", it.Title)
			assert.Greater(t, scores[asset], 0.0)
			assert.LessOrEqual(t, scores[asset], 1.0)
		}
	}
}

func TestRelevanceTargetsStablecoinRegulation(t *testing.T) {
	it := &domain.NewsItem{
		Title:     "SEC enforcement action targets stablecoin issuer",
		EventType: "REGULATION_LEGAL",
		Tags:      []string{"Reg", "Stablecoin"},
	}
	scores := targetScores(RelevanceTargets(it))

	require.Len(t, scores, 4)
	assert.GreaterOrEqual(t, scores["STABLES"], scores["ALTS"])
	assert.Greater(t, scores["STABLES"], scores["BTC"])
}

func TestRelevanceTargetsETFInflow(t *testing.T) {
	it := &domain.NewsItem{
		Title: "Spot ETF inflow accelerates after approval",
		Tags:  []string{"ETF"},
	}
	scores := targetScores(RelevanceTargets(it))

	assert.Greater(t, scores["BTC"], scores["ALTS"])
	assert.Greater(t, scores["BTC"], scores["ETH"])
}

func TestRelevanceScaleGrowsWithSectorImpact(t *testing.T) {
	base := &domain.NewsItem{Title: "Bitcoin climbs", Entities: []string{"BTC"}}
	boosted := &domain.NewsItem{Title: "Bitcoin climbs", Entities: []string{"BTC"}, MaxSectorImpact: 100}

	baseScores := targetScores(RelevanceTargets(base))
	boostedScores := targetScores(RelevanceTargets(boosted))
	assert.Greater(t, boostedScores["BTC"], baseScores["BTC"])
	assert.LessOrEqual(t, boostedScores["BTC"], 1.0)
}

func TestDedupHashPrefersCanonicalURL(t *testing.T) {
	a := &domain.NewsItem{Title: "Title A", CanonicalURL: "https://example.com/story", SourceDomain: "example.com"}
	b := &domain.NewsItem{Title: "Different title", CanonicalURL: "https://example.com/story", SourceDomain: "other.com"}
	assert.Equal(t, DedupHash(a), DedupHash(b), "same canonical URL hashes the same")

	c := &domain.NewsItem{Title: "Title A", SourceDomain: "example.com"}
	d := &domain.NewsItem{Title: "Title A", SourceDomain: "other.com"}
	assert.NotEqual(t, DedupHash(c), DedupHash(d), "without a URL the source domain disambiguates")
}

func TestSourceTierClassification(t *testing.T) {
	tiers := SourceTiers{
		Primary: []string{"reuters.com"},
		Tier1:   []string{"cnbc.com"},
		Tier2:   []string{"benzinga.com"},
		Social:  []string{"x.com"},
	}
	assert.Equal(t, "primary", tiers.SourceTier("reuters.com"))
	assert.Equal(t, "tier1", tiers.SourceTier("CNBC.com"))
	assert.Equal(t, "social", tiers.SourceTier("x.com"))
	assert.Equal(t, "tier2", tiers.SourceTier("unknown-blog.net"))

	assert.Equal(t, 1.0, TierScore("primary"))
	assert.Equal(t, 0.6, TierScore("nonsense"))
}

func newTestStore(t *testing.T, intervalMinutes int) *Store {
	t.Helper()
	repos := memory.New()
	tiers := SourceTiers{Primary: []string{"reuters.com"}}
	return NewStore(repos.Events, repos.EventImpacts, tiers, intervalMinutes, 30)
}

func newsItem(title, url string) *domain.NewsItem {
	ts := time.Now().UTC().Add(-time.Hour)
	return &domain.NewsItem{
		Title:          title,
		URL:            url,
		CanonicalURL:   url,
		SourceDomain:   "reuters.com",
		PublishedAtUTC: &ts,
	}
}

func TestIngestIsIdempotentByDedupHash(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()
	now := time.Now().UTC()
	var notes domain.FetchNotes

	items := []*domain.NewsItem{newsItem("Oil spikes on supply cut", "https://reuters.com/a")}
	require.Equal(t, 1, store.Ingest(ctx, items, now, &notes))
	require.Equal(t, 0, store.Ingest(ctx, items, now.Add(time.Minute), &notes), "same item does not duplicate")

	clusters, err := store.RecentClusters(ctx, timeRangeAround(now), 10)
	require.NoError(t, err)
	assert.Len(t, clusters, 1)
	assert.Equal(t, "primary", string(clusters[0].SourceTier))
	assert.Equal(t, 1.0, clusters[0].Credibility)
}

func TestIngestCadenceGate(t *testing.T) {
	store := newTestStore(t, 15)
	ctx := context.Background()
	now := time.Now().UTC()
	var notes domain.FetchNotes

	require.Equal(t, 1, store.Ingest(ctx, []*domain.NewsItem{newsItem("First", "https://reuters.com/1")}, now, &notes))

	early := store.Ingest(ctx, []*domain.NewsItem{newsItem("Second", "https://reuters.com/2")}, now.Add(5*time.Minute), &notes)
	assert.Equal(t, 0, early, "within the ingest interval nothing is written")

	late := store.Ingest(ctx, []*domain.NewsItem{newsItem("Second", "https://reuters.com/2")}, now.Add(16*time.Minute), &notes)
	assert.Equal(t, 1, late)
}

func timeRangeAround(now time.Time) persistence.TimeRange {
	return persistence.TimeRange{From: now.Add(-24 * time.Hour), To: now.Add(time.Hour)}
}
