package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/persistence"
)

// Engine wires the pure valuation/risk/news-impact/optimizer math to the
// quote router and bar store.
type Engine struct {
	Router   *quoterouter.Router
	Bars     persistence.PriceBarRepo
	Holdings config.HoldingsRegistry
	FX       config.FXSettings
	Settings config.PortfolioSettings
}

// NewEngine wires the portfolio engine to its dependencies.
func NewEngine(router *quoterouter.Router, bars persistence.PriceBarRepo, holdings config.HoldingsRegistry, fx config.FXSettings, settings config.PortfolioSettings) *Engine {
	return &Engine{Router: router, Bars: bars, Holdings: holdings, FX: fx, Settings: settings}
}

// Generate values the configured holdings registry in baseCurrency,
// attributes newsItems' impact to each position, computes risk, and builds
// all three optimizer horizons.
func (e *Engine) Generate(ctx context.Context, now time.Time, baseCurrency, horizon string, newsItems []domain.NewsItem, flowScore *float64, riskFlags []string) (domain.PortfolioSnapshot, error) {
	if baseCurrency == "" {
		baseCurrency = e.FX.DefaultQuoteCurrency
	}
	if horizon == "" {
		horizon = string(domain.HorizonDaily)
	}

	fxRate, fxOK := ResolveFXRate(ctx, e.Router, e.FX)
	fxStatus := "missing"
	if fxOK {
		fxStatus = "ok"
	}

	holdings, total := ValueHoldings(ctx, e.Router, e.Holdings.Holdings, baseCurrency, fxRate)
	var missingPrices []string
	for _, h := range holdings {
		if h.DataStatus == domain.DataMissing {
			missingPrices = append(missingPrices, h.Symbol)
		}
	}

	missingHistory := ApplyHistory(ctx, e.Bars, holdings, now)
	alloc := BuildAllocation(holdings)
	risk := ComputeRiskMetrics(holdings, alloc, missingHistory, e.Settings.FXRiskThreshold)
	riskFlags = append(append([]string{}, riskFlags...), risk.Flags...)

	matchedItems, matchSummary := ComputeNewsImpact(newsItems, e.Holdings.Holdings, flowScore, riskFlags, now)
	newsTotal, newsDirect, newsIndirect, lowSignalCount := AggregateBySymbol(matchedItems)

	coverageRatio := 0.0
	if len(newsItems) > 0 {
		coverageRatio = float64(len(matchedItems)) / float64(len(newsItems))
	}
	lowSignalRatio := 0.0
	if len(matchedItems) > 0 {
		lowSignalRatio = float64(lowSignalCount) / float64(len(matchedItems))
	}

	optimizers := BuildOptimizer(holdings, newsTotal, newsDirect, newsIndirect, riskFlags, e.Settings, coverageRatio, len(newsItems), lowSignalRatio, risk.USDExposure)

	var impacts []domain.NewsImpact
	for _, m := range matchedItems {
		impacts = append(impacts, m.Impacts...)
	}

	debugNotes := []string{
		fmt.Sprintf("portfolio_fx_status=%s", fxStatus),
		fmt.Sprintf("portfolio_missing_prices=%d", len(missingPrices)),
		fmt.Sprintf("portfolio_missing_history=%d", len(missingHistory)),
		fmt.Sprintf("portfolio_news_fetched_total=%d", len(newsItems)),
		fmt.Sprintf("portfolio_news_matched=%d", len(matchedItems)),
		fmt.Sprintf("portfolio_news_match_direct=%d", matchSummary[domain.MatchDirect]),
		fmt.Sprintf("coverage_ratio=%.3f", coverageRatio),
		fmt.Sprintf("low_signal_ratio=%.3f", lowSignalRatio),
		fmt.Sprintf("fx_usd_exposure=%.3f", risk.USDExposure),
	}

	return domain.PortfolioSnapshot{
		Base:        baseCurrency,
		Horizon:     horizon,
		TotalValue:  total,
		Holdings:    holdings,
		Allocation:  alloc,
		Risk:        risk,
		NewsImpacts: impacts,
		Optimizers:  optimizers,
		DebugNotes:  debugNotes,
	}, nil
}

// DailyBrief runs Generate against the daily optimizer horizon and narrows
// the result into a deterministic executive-summary brief.
func (e *Engine) DailyBrief(ctx context.Context, now time.Time, baseCurrency string, newsItems []domain.NewsItem, flowScore *float64, riskFlags []string) (domain.PortfolioBrief, error) {
	snapshot, err := e.Generate(ctx, now, baseCurrency, string(domain.HorizonDaily), newsItems, flowScore, riskFlags)
	if err != nil {
		return domain.PortfolioBrief{}, err
	}
	constraints := portfolioConstraints{maxWeight: e.Settings.MaxWeight, maxCryptoWeight: e.Settings.MaxCryptoWeight}
	return BuildBrief(snapshot, domain.HorizonDaily, constraints, now), nil
}
