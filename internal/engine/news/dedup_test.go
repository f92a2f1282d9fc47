package news

import (
	"testing"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newsItem(title, url, domainName string, quality, relevance float64, published time.Time) *domain.NewsItem {
	return &domain.NewsItem{
		Title:          title,
		URL:            url,
		CanonicalURL:   CanonicalizeURL(url),
		SourceDomain:   domainName,
		QualityScore:   quality,
		RelevanceScore: relevance,
		PublishedAtUTC: &published,
	}
}

func TestLocalCluster_FoldsSameCanonicalURL(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	items := []*domain.NewsItem{
		newsItem("Fed hikes rates", "https://a.com/story?utm_source=x", "a.com", 90, 80, ts),
		newsItem("Fed hikes rates", "https://a.com/story?utm_source=y", "a.com", 70, 60, ts),
	}
	out := LocalCluster(items)
	require.Len(t, out, 1)
	assert.Equal(t, 90.0, out[0].QualityScore)
}

func TestLocalCluster_OnePerDomainWithinEntityGroup(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newsItem("BTC rallies on ETF news", "", "a.com", 90, 80, ts)
	a.Entities = []string{"BTC", "ETH"}
	b := newsItem("BTC rallies on ETF inflows", "", "b.com", 60, 50, ts)
	b.Entities = []string{"BTC", "ETH"}

	out := LocalCluster([]*domain.NewsItem{a, b})
	require.Len(t, out, 1) // titles fold (ratio ~0.88); b.com survives only as an other source
}

func TestGlobalDedup_SuppressesFuzzyTitleMatchAcrossClusters(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	kept := newsItem("Powell signals rate cut soon", "https://a.com/1", "a.com", 90, 80, ts)
	dup := newsItem("Powell Signals Rate Cut Soon!", "https://b.com/1", "b.com", 60, 50, ts)

	out := GlobalDedup([]*domain.NewsItem{kept, dup})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].OtherSources, "b.com")
}

func TestApplyDomainSoftCap_LimitsPerDomain(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var items []*domain.NewsItem
	for i := 0; i < 8; i++ {
		items = append(items, newsItem("distinct headline", "https://a.com/x", "a.com", float64(i), float64(i), ts))
	}
	out := ApplyDomainSoftCap(items)
	assert.Len(t, out, domainSoftCap)
}
