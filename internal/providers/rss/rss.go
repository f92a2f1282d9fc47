// Package rss adapts a generic RSS 2.0/Atom feed into the
// news.SyndicationFeed contract, the last-resort "extras" source once the
// primary search provider and finance-news provider are both exhausted
//.
package rss

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/marketintel/analytics/internal/engine/news"
	"github.com/marketintel/analytics/internal/provider"
)

type feed struct {
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Link    struct{ Href string `xml:"href,attr"` } `xml:"link"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
}

// New builds a news.SyndicationFeed that fetches and parses a single RSS or
// Atom URL. sourceDomain labels every article pulled from this feed.
func New(name, feedURL, sourceDomain string, client *http.Client, registry *provider.Registry) news.SyndicationFeed {
	return news.SyndicationFeed{
		Name: name,
		Fetch: func(ctx context.Context, maxItems int) ([]news.RawArticle, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
			if err != nil {
				return nil, err
			}
			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				registry.RecordFailure(name, provider.ErrNetwork)
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				registry.RecordFailure(name, provider.ErrSchema)
				return nil, err
			}
			var parsed feed
			if err := xml.Unmarshal(body, &parsed); err != nil {
				registry.RecordFailure(name, provider.ErrSchema)
				return nil, err
			}
			registry.RecordSuccess(name, time.Since(start))

			out := make([]news.RawArticle, 0, maxItems)
			for _, it := range parsed.Channel.Items {
				if len(out) >= maxItems {
					break
				}
				var pub *time.Time
				if t, err := time.Parse(time.RFC1123Z, it.PubDate); err == nil {
					pub = &t
				} else if t, err := time.Parse(time.RFC1123, it.PubDate); err == nil {
					pub = &t
				}
				out = append(out, news.RawArticle{
					Title: it.Title, URL: it.Link, SourceDomain: sourceDomain,
					Description: it.Description, PublishedAtUTC: pub,
				})
			}
			for _, e := range parsed.Entries {
				if len(out) >= maxItems {
					break
				}
				var pub *time.Time
				if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
					pub = &t
				}
				out = append(out, news.RawArticle{
					Title: e.Title, URL: e.Link.Href, SourceDomain: sourceDomain,
					Description: e.Summary, PublishedAtUTC: pub,
				})
			}
			return out, nil
		},
	}
}
