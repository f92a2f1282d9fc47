package quoterouter

import (
	"context"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/provider"
)

// QuoteProvider is one quote venue adapter (Yahoo, Finnhub, TwelveData, ...).
type QuoteProvider struct {
	Name    string
	Enabled bool
	GetQuote func(ctx context.Context, symbol string) provider.Result[domain.Quote]
	Search   func(ctx context.Context, symbol string) (string, bool)
}
