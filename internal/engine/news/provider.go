package news

import (
	"context"
	"time"
)

// SearchQuery is one outbound query against a news-search provider.
type SearchQuery struct {
	Text      string
	TimespanH int // lookback window in hours
	MaxItems  int
}

// RawArticle is the provider-shape article before canonicalization/tagging.
type RawArticle struct {
	Title          string
	URL            string
	SourceDomain   string
	Description    string
	ContentText    string
	PublishedAtUTC *time.Time
}

// SearchProvider is the contract for a news-search backend. Implementations wrap internal/provider.Result and
// internal/net/client for rate limiting, circuit breaking and caching.
type SearchProvider struct {
	Name string
	Search func(ctx context.Context, q SearchQuery) ([]RawArticle, error)
}

// FinanceNewsProvider returns per-ticker headlines used as "extras" once the
// primary search provider is exhausted or rate-limited.
type FinanceNewsProvider struct {
	Name    string
	ForTicker func(ctx context.Context, symbol string, maxItems int) ([]RawArticle, error)
}

// SyndicationFeed is a single RSS/Atom-style feed pulled as a last-resort
// extras source.
type SyndicationFeed struct {
	Name string
	Fetch func(ctx context.Context, maxItems int) ([]RawArticle, error)
}
