package http

import (
	"context"
	"time"
)

// IntelRequest is the decoded body of POST /intel/run.
type IntelRequest struct {
	Timeframe    string   `json:"timeframe"`
	NewsTimespan string   `json:"newsTimespan"`
	Watchlist    []string `json:"watchlist,omitempty"`
}

// DebateRequest is the decoded body of POST /api/v1/portfolio/debate.
type DebateRequest struct {
	Base    string `json:"base"`
	Window  string `json:"window"`
	Horizon string `json:"horizon"`
	Force   bool   `json:"force,omitempty"`
}

// Engine is the domain-facing port the HTTP layer drives. Every route handler
// is a thin adapter over one of these calls; the handlers never touch
// providers, the database, or the cache directly.
type Engine interface {
	RunIntel(ctx context.Context, req IntelRequest) (*IntelResponse, error)
	LatestForecast(ctx context.Context, target, tf string) (*ForecastView, error)
	ForecastMetrics(ctx context.Context) ([]ForecastTFMetrics, error)
	LatestEvents(ctx context.Context, since time.Duration) ([]EventWithImpactView, error)
	Portfolio(ctx context.Context, base, horizon string) (*PortfolioResponse, error)
	PortfolioDailyBrief(ctx context.Context, base string) (*PortfolioResponse, error)
	Debate(ctx context.Context, req DebateRequest) (*DebateResponse, error)
	LatestQuotes(ctx context.Context, assets []string) (map[string]QuoteView, error)
	LatestBars(ctx context.Context, assets []string, limit int) (map[string][]BarView, error)
	QuotesDebug(ctx context.Context) (map[string]interface{}, error)
}
