// Package gdelt adapts the GDELT Doc 2.0 API (a free, keyless global news
// search index) into the news.SearchProvider contract, the primary
// SearchProvider backing the news engine's query ladder.
package gdelt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/marketintel/analytics/internal/engine/news"
	"github.com/marketintel/analytics/internal/provider"
)

const Name = "gdelt"

type Adapter struct {
	client   *http.Client
	baseURL  string
	registry *provider.Registry
}

func New(client *http.Client, baseURL string, registry *provider.Registry) *Adapter {
	return &Adapter{client: client, baseURL: baseURL, registry: registry}
}

type docResponse struct {
	Articles []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Domain     string `json:"domain"`
		SeenDate   string `json:"seendate"`
		SocialText string `json:"socialimage"`
	} `json:"articles"`
}

func (a *Adapter) NewSearchProvider() news.SearchProvider {
	return news.SearchProvider{
		Name: Name,
		Search: func(ctx context.Context, q news.SearchQuery) ([]news.RawArticle, error) {
			timespan := fmt.Sprintf("%dH", q.TimespanH)
			if q.TimespanH <= 0 {
				timespan = "24H"
			}
			max := q.MaxItems
			if max <= 0 || max > 250 {
				max = 75
			}
			params := url.Values{}
			params.Set("query", q.Text)
			params.Set("mode", "artlist")
			params.Set("maxrecords", fmt.Sprintf("%d", max))
			params.Set("timespan", timespan)
			params.Set("sort", "hybridrel")
			params.Set("format", "json")

			reqURL := a.baseURL + "/api/v2/doc/doc?" + params.Encode()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			start := time.Now()
			resp, err := a.client.Do(req)
			if err != nil {
				a.registry.RecordFailure(Name, provider.ErrNetwork)
				return nil, &provider.Error{Provider: Name, Kind: provider.ErrNetwork, Err: err}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				a.registry.RecordFailure(Name, provider.ErrRateLimited)
				return nil, &provider.Error{Provider: Name, Kind: provider.ErrRateLimited, Err: fmt.Errorf("rate limited")}
			}
			if resp.StatusCode >= 500 {
				a.registry.RecordFailure(Name, provider.ErrHTTP5xx)
				return nil, &provider.Error{Provider: Name, Kind: provider.ErrHTTP5xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
			}
			if resp.StatusCode >= 400 {
				a.registry.RecordFailure(Name, provider.ErrHTTP4xx)
				return nil, &provider.Error{Provider: Name, Kind: provider.ErrHTTP4xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
			}
			var parsed docResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				a.registry.RecordFailure(Name, provider.ErrSchema)
				return nil, &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
			}
			a.registry.RecordSuccess(Name, time.Since(start))

			out := make([]news.RawArticle, 0, len(parsed.Articles))
			for _, art := range parsed.Articles {
				var pub *time.Time
				if t, err := time.Parse("20060102T150405Z", art.SeenDate); err == nil {
					pub = &t
				}
				out = append(out, news.RawArticle{
					Title:          art.Title,
					URL:            art.URL,
					SourceDomain:   art.Domain,
					PublishedAtUTC: pub,
				})
			}
			return out, nil
		},
	}
}
