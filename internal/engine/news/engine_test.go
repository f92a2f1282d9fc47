package news

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marketintel/analytics/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaddersFor_SubDaySpanWalksLadder(t *testing.T) {
	assert.Equal(t, []int{1, 6, 24}, laddersFor(1))
	assert.Equal(t, []int{6, 24}, laddersFor(6))
}

func TestLaddersFor_DaySpanSkipsFallback(t *testing.T) {
	assert.Equal(t, []int{24}, laddersFor(24))
	assert.Equal(t, []int{168}, laddersFor(168))
}

func articlesN(n int, domainPrefix string) []RawArticle {
	now := time.Now().UTC()
	out := make([]RawArticle, 0, n)
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(i) * time.Minute)
		d := domainPrefix + string(rune('a'+i)) + ".com"
		out = append(out, RawArticle{
			Title:          "Headline " + strings.Repeat(string(rune('a'+i)), 8),
			URL:            "https://" + d + "/story/" + string(rune('a'+i)),
			SourceDomain:   d,
			PublishedAtUTC: &ts,
		})
	}
	return out
}

func TestEngine_FetchNews_StopsAtFirstSpanMeetingMinimum(t *testing.T) {
	calls := 0
	eng := &Engine{
		Search: SearchProvider{
			Name: "test-search",
			Search: func(ctx context.Context, q SearchQuery) ([]RawArticle, error) {
				calls++
				return articlesN(15, "source.com"), nil
			},
		},
	}
	wl := config.Watchlist{} // no entries: query set is just the base (empty) query
	res := eng.FetchNews(context.Background(), wl, 1, 50, 15)

	require.NotEmpty(t, res.Items)
	assert.Equal(t, 1, res.UsedTimespan)
	assert.LessOrEqual(t, calls, maxQueriesPerSpan*len(timespanLadderH))
}

func TestEngine_FetchNews_WeakDataAddsNote(t *testing.T) {
	eng := &Engine{
		Search: SearchProvider{
			Name: "test-search",
			Search: func(ctx context.Context, q SearchQuery) ([]RawArticle, error) {
				return nil, nil
			},
		},
	}
	res := eng.FetchNews(context.Background(), config.Watchlist{}, 24, 50, 15)
	assert.Contains(t, res.Notes.Notes, "news_data_weak")
}

func TestEngine_FetchNews_AllQueriesRateLimitedStopsLadder(t *testing.T) {
	calls := 0
	eng := &Engine{
		Search: SearchProvider{
			Name: "test-search",
			Search: func(ctx context.Context, q SearchQuery) ([]RawArticle, error) {
				calls++
				return nil, assertRateLimited{}
			},
		},
	}
	res := eng.FetchNews(context.Background(), config.Watchlist{}, 1, 50, 15)
	assert.Contains(t, res.Notes.Notes, "news_provider_rate_limited")
	assert.Empty(t, res.Items)
}

type assertRateLimited struct{}

func (assertRateLimited) Error() string { return "rate limited" }
