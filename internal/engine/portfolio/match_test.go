package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketintel/analytics/internal/domain"
)

func TestNormalize_LowercasesAndStripsPunctuation(t *testing.T) {
	assert.Equal(t, "sec targets stablecoin issuer", Normalize("SEC Targets Stablecoin-Issuer!!"))
}

func TestRecencyWeight_Tiers(t *testing.T) {
	now := time.Now()
	h30m := now.Add(-30 * time.Minute)
	h3 := now.Add(-3 * time.Hour)
	h12 := now.Add(-12 * time.Hour)
	h48 := now.Add(-48 * time.Hour)
	assert.Equal(t, 1.0, RecencyWeight(&h30m, now))
	assert.Equal(t, 0.7, RecencyWeight(&h3, now))
	assert.Equal(t, 0.4, RecencyWeight(&h12, now))
	assert.Equal(t, 0.2, RecencyWeight(&h48, now))
	assert.Equal(t, 0.2, RecencyWeight(nil, now))
}

func TestMatchNewsItem_DirectTickerMatch(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "NVDA", Aliases: []string{"NVDA", "Nvidia"}}}
	item := domain.NewsItem{Title: "NVDA surges on earnings beat"}
	matches, counts := MatchNewsItem(item, holdings)
	assert.Equal(t, 1, counts[domain.MatchDirect])
	assert.Equal(t, "NVDA", matches[0].Symbol)
}

func TestMatchNewsItem_TitleAliasMatch(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "NVDA", Aliases: []string{"NVDA", "Nvidia"}}}
	item := domain.NewsItem{Title: "Nvidia unveils next-gen GPU architecture"}
	matches, counts := MatchNewsItem(item, holdings)
	assert.Equal(t, 1, counts[domain.MatchTitle])
	assert.Equal(t, "NVDA", matches[0].Symbol)
}

func TestMatchNewsItem_NearRequiresProtocolContext(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "NEAR", Aliases: []string{"NEAR", "near protocol"}}}
	bare := domain.NewsItem{Title: "Markets trade near resistance levels"}
	_, counts := MatchNewsItem(bare, holdings)
	assert.Equal(t, 0, counts[domain.MatchDirect])

	withProtocol := domain.NewsItem{Title: "NEAR Protocol launches new scaling upgrade"}
	matches, _ := MatchNewsItem(withProtocol, holdings)
	assert.NotEmpty(t, matches)
}

func TestDropFuzzyIfOverMatched_RemovesOnlyFuzzyHitsWhenOverFour(t *testing.T) {
	matches := []NewsMatch{
		{Symbol: "A", Method: domain.MatchDirect},
		{Symbol: "B", Method: domain.MatchTitle},
		{Symbol: "C", Method: domain.MatchEntity},
		{Symbol: "D", Method: domain.MatchFuzzy},
		{Symbol: "E", Method: domain.MatchFuzzy},
	}
	counts := map[domain.MatchMethod]int{domain.MatchFuzzy: 2}
	pruned := dropFuzzyIfOverMatched(matches, counts)
	assert.Len(t, pruned, 3)
	assert.Equal(t, 0, counts[domain.MatchFuzzy])
	for _, m := range pruned {
		assert.NotEqual(t, domain.MatchFuzzy, m.Method)
	}
}

func TestDropFuzzyIfOverMatched_LeavesFourOrFewerUntouched(t *testing.T) {
	matches := []NewsMatch{
		{Symbol: "A", Method: domain.MatchDirect},
		{Symbol: "D", Method: domain.MatchFuzzy},
	}
	pruned := dropFuzzyIfOverMatched(matches, map[domain.MatchMethod]int{domain.MatchFuzzy: 1})
	assert.Len(t, pruned, 2)
}

func TestSectorMatch_AttachesIndirectHitsBySector(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "XOM", Sector: "energy"}}
	item := domain.NewsItem{SectorImpacts: []domain.SectorImpact{{Sector: "energy"}}}
	matches := SectorMatch(item, holdings)
	assert.Len(t, matches, 1)
	assert.Equal(t, domain.MatchSector, matches[0].Method)
}
