// Package orchestrator wires the engine, quote-router, provider and
// persistence layers into the single http.Engine implementation the HTTP
// interface drives. It owns no business logic of its own beyond assembling
// engine outputs into wire views and keeping the small amount of
// cross-request state (recent news, previous block hashes) those views need.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/bars"
	"github.com/marketintel/analytics/internal/engine/debate"
	"github.com/marketintel/analytics/internal/engine/eventstore"
	"github.com/marketintel/analytics/internal/engine/eventstudy"
	"github.com/marketintel/analytics/internal/engine/forecast"
	"github.com/marketintel/analytics/internal/engine/news"
	"github.com/marketintel/analytics/internal/engine/portfolio"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/hashutil"
	"github.com/marketintel/analytics/internal/infrastructure/async"
	httpiface "github.com/marketintel/analytics/internal/interfaces/http"
	"github.com/marketintel/analytics/internal/persistence"
	"github.com/marketintel/analytics/internal/providers/coingecko"
	"github.com/marketintel/analytics/internal/providers/yahoo"
)

// horizonWire/horizonDomain translate between the wire horizon strings
// ("24h"/"7d"/"30d") the HTTP contract uses and the domain.Horizon values
// ("daily"/"weekly"/"monthly") the portfolio engine operates on.
var horizonWireToDomain = map[string]domain.Horizon{
	"24h": domain.HorizonDaily,
	"7d":  domain.HorizonWeekly,
	"30d": domain.HorizonMonthly,
}

var horizonDomainToWire = map[domain.Horizon]string{
	domain.HorizonDaily:   "24h",
	domain.HorizonWeekly:  "7d",
	domain.HorizonMonthly: "30d",
}

func resolveHorizon(wire string) (domain.Horizon, string) {
	if h, ok := horizonWireToDomain[wire]; ok {
		return h, wire
	}
	return domain.HorizonDaily, "24h"
}

// requestState caches the material Portfolio/Debate need that RunIntel
// produces as a side effect but the http.Engine contract doesn't thread
// through explicitly: the most recently fetched news and market snapshot.
// It also holds the previous intel response's block hashes, keyed by a
// request signature, so RunIntel can report ChangedBlocks.
type requestState struct {
	mu         sync.Mutex
	news       []domain.NewsItem
	snapshot   domain.MarketSnapshot
	prevHashes map[string]map[string]string
}

func (s *requestState) setLatest(items []domain.NewsItem, snap domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news = items
	s.snapshot = snap
}

func (s *requestState) latestNews() []domain.NewsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.news
}

func (s *requestState) latestSnapshot() domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *requestState) diffBlocks(signature string, hashes map[string]string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prevHashes == nil {
		s.prevHashes = map[string]map[string]string{}
	}
	prev := s.prevHashes[signature]
	var changed []string
	for block, h := range hashes {
		if prev == nil || prev[block] != h {
			changed = append(changed, block)
		}
	}
	sort.Strings(changed)
	s.prevHashes[signature] = hashes
	return changed
}

// Orchestrator is the pipeline's single http.Engine implementation: it drives
// the market, news, event-store, event-study, forecast, portfolio and debate
// engines per request and maps their outputs onto the HTTP wire contracts.
type Orchestrator struct {
	Yahoo           *yahoo.Adapter
	CoinGecko       *coingecko.Adapter
	News            *news.Engine
	EventStore      *eventstore.Store
	EventStudy      *eventstudy.Computer
	Forecast        *forecast.Engine
	PortfolioEngine *portfolio.Engine
	DebateEngine    *debate.Engine
	Router          *quoterouter.Router
	Bars            persistence.PriceBarRepo
	BarsSync        *bars.Syncer

	Watchlist config.Watchlist
	Holdings  config.HoldingsRegistry

	state requestState
}

// New wires an Orchestrator from its constituent engines and providers.
func New(
	yh *yahoo.Adapter,
	cg *coingecko.Adapter,
	newsEngine *news.Engine,
	store *eventstore.Store,
	study *eventstudy.Computer,
	fc *forecast.Engine,
	pf *portfolio.Engine,
	db *debate.Engine,
	router *quoterouter.Router,
	barRepo persistence.PriceBarRepo,
	barsSync *bars.Syncer,
	watchlist config.Watchlist,
	holdings config.HoldingsRegistry,
) *Orchestrator {
	return &Orchestrator{
		Yahoo: yh, CoinGecko: cg, News: newsEngine, EventStore: store, EventStudy: study,
		Forecast: fc, PortfolioEngine: pf, DebateEngine: db, Router: router, Bars: barRepo, BarsSync: barsSync,
		Watchlist: watchlist, Holdings: holdings,
	}
}

func parseTimespanHours(span string) int {
	switch strings.ToLower(strings.TrimSpace(span)) {
	case "1h":
		return 1
	case "6h":
		return 6
	case "7d", "168h":
		return 168
	case "30d":
		return 720
	case "", "24h":
		return 24
	}
	return 24
}

func effectiveWatchlist(base config.Watchlist, requested []string) config.Watchlist {
	if len(requested) == 0 {
		return base
	}
	want := map[string]bool{}
	for _, s := range requested {
		want[strings.ToUpper(s)] = true
	}
	out := config.Watchlist{}
	for _, e := range base.Entries {
		if want[strings.ToUpper(e.Symbol)] {
			out.Entries = append(out.Entries, e)
		}
	}
	if len(out.Entries) == 0 {
		return base
	}
	return out
}

// buildMarketSnapshot fetches the Yahoo cross-asset and CoinGecko global
// snapshots, patches the Yahoo side's zero fields via the quote router, and
// derives the flow/derivatives/risk composite fields forecast.MarketSignal
// reads. There is no wired funding-rate or open-interest provider, so
// FundingZ/OIDelta stay at their neutral zero value.
func (o *Orchestrator) buildMarketSnapshot(ctx context.Context, notes *domain.FetchNotes) domain.MarketSnapshot {
	yahooSnap, err := o.Yahoo.CrossAssetSnapshot(ctx)
	if err != nil {
		notes.Add(fmt.Sprintf("yahoo_snapshot_error:%v", err))
	}
	if o.Router != nil {
		meta := o.Router.PatchSnapshot(ctx, &yahooSnap)
		if meta.UsedFallback {
			notes.Add("yahoo_snapshot_patched_from_fallback")
		}
	}

	cgSnap, err := o.CoinGecko.Snapshot(ctx)
	if err != nil {
		notes.Add(fmt.Sprintf("coingecko_snapshot_error:%v", err))
	}

	flowScore := 50.0
	if alt := cgSnap.AltcoinTotalValueExBTC(); alt != nil {
		flowScore = clamp(50+cgSnap.Deltas["btc_d"]*-4+cgSnap.Deltas["usdt_d"]*-6, 0, 100)
	}

	snap := domain.MarketSnapshot{
		TsUTC:        time.Now().UTC(),
		CoinGecko:    cgSnap,
		Yahoo:        yahooSnap,
		FlowScore:    flowScore,
		FundingZ:     0,
		OIDelta:      0,
		MacroRiskOff: yahooSnap.VIX >= 25 || yahooSnap.DXYChg24h > 1.0,
	}
	return snap
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunIntel runs the full per-request pipeline: market snapshot, news fetch,
// event-store ingest, event-study realized impacts, and forecast generation,
// then assembles the IntelResponse with content-addressed block hashes.
func (o *Orchestrator) RunIntel(ctx context.Context, req httpiface.IntelRequest) (*httpiface.IntelResponse, error) {
	newsTimespanH := parseTimespanHours(req.NewsTimespan)
	wl := effectiveWatchlist(o.Watchlist, req.Watchlist)

	var notes domain.FetchNotes
	snapshot := o.buildMarketSnapshot(ctx, &notes)

	fetch := o.News.FetchNews(ctx, wl, newsTimespanH, 200, snapshot.Yahoo.VIX)
	notes.Notes = append(notes.Notes, fetch.Notes.Notes...)

	items := make([]domain.NewsItem, 0, len(fetch.Items))
	for _, it := range fetch.Items {
		items = append(items, *it)
	}
	o.state.setLatest(items, snapshot)

	now := time.Now().UTC()
	if o.BarsSync != nil {
		o.BarsSync.Sync(ctx, now, &notes)
	}
	if o.EventStore.ShouldIngest(now) {
		o.EventStore.Ingest(ctx, fetch.Items, now, &notes)
	}

	clusters, err := o.EventStore.RecentClusters(ctx, persistence.TimeRange{From: now.Add(-72 * time.Hour), To: now}, 200)
	if err != nil {
		notes.Add(fmt.Sprintf("eventstore_recent_error:%v", err))
	}

	if o.EventStudy != nil {
		for _, cl := range clusters {
			o.EventStudy.ComputeAll(ctx, cl, now)
		}
	}

	forecasts, err := o.Forecast.Generate(ctx, now, snapshot, clusters)
	if err != nil {
		notes.Add(fmt.Sprintf("forecast_generate_error:%v", err))
	}

	eventFeed := news.BuildEventFeed(fetch.Items, sourcesUsed(o.News), nil)

	leaders, topNews := splitLeaders(items)
	movers := o.dailyEquityMovers(ctx, wl)

	marketView := marketSnapshotView(snapshot)
	forecastViews := make([]httpiface.ForecastView, 0, len(forecasts))
	for _, f := range forecasts {
		forecastViews = append(forecastViews, forecastToView(f))
	}
	eventFeedView := eventFeedToView(eventFeed)

	blockHashes := map[string]string{
		"market":              hashutil.Hash16(marketView),
		"leaders":             hashutil.Hash16(leaders),
		"top_news":            hashutil.Hash16(topNews),
		"eventfeed":           hashutil.Hash16(eventFeedView),
		"flow":                hashutil.Hash16(marketView.Flow),
		"risk":                hashutil.Hash16(marketView.Risk),
		"derivatives":         hashutil.Hash16(marketView.Derivatives),
		"forecast":            hashutil.Hash16(forecastViews),
		"daily_equity_movers": hashutil.Hash16(movers),
		"debug":               hashutil.Hash16(notes.Notes),
	}
	signature := hashutil.KeyHash16(req.Timeframe + "|" + req.NewsTimespan + "|" + strings.Join(req.Watchlist, ","))
	changed := o.state.diffBlocks(signature, blockHashes)

	resp := &httpiface.IntelResponse{
		TsUTC:             now,
		ETag:              hashutil.Hash16(blockHashes),
		BlockHashes:       blockHashes,
		ChangedBlocks:     changed,
		Market:            marketView,
		Leaders:           leaders,
		TopNews:           topNews,
		EventFeed:         eventFeedView,
		Forecast:          forecastViews,
		DailyEquityMovers: movers,
		DebugNotes:        notes.Notes,
	}
	return resp, nil
}

func sourcesUsed(e *news.Engine) []string {
	out := []string{e.Search.Name}
	if e.FinanceNews != nil {
		out = append(out, e.FinanceNews.Name)
	}
	for _, f := range e.Feeds {
		out = append(out, f.Name)
	}
	return out
}

// splitLeaders returns the top 5 ranked news items as Leaders and the top 40
// (the leaders included) as TopNews; items is already sorted by
// FinalRankScore descending by news.Engine.FetchNews.
func splitLeaders(items []domain.NewsItem) (leaders, topNews []httpiface.NewsItemView) {
	const leaderCount = 5
	const topNewsCap = 40
	for i, it := range items {
		v := newsItemToView(it)
		if i < leaderCount {
			leaders = append(leaders, v)
		}
		if i < topNewsCap {
			topNews = append(topNews, v)
		}
	}
	return leaders, topNews
}

func newsItemToView(it domain.NewsItem) httpiface.NewsItemView {
	sectorViews := make([]httpiface.SectorImpactView, 0, len(it.SectorImpacts))
	for _, si := range it.SectorImpacts {
		sectorViews = append(sectorViews, httpiface.SectorImpactView{
			Sector: si.Sector, Direction: string(si.Direction), Confidence: si.Confidence,
			Rationale: si.Rationale, ImpactScore: si.ImpactScore,
		})
	}
	return httpiface.NewsItemView{
		Title: it.Title, URL: it.URL, CanonicalURL: it.CanonicalURL, SourceDomain: it.SourceDomain,
		Description: it.Description, PublishedAtUTC: it.PublishedAtUTC, Tags: it.Tags, Category: it.Category,
		Entities: it.Entities, EventType: it.EventType, ImpactChannel: it.ImpactChannel, AssetClassBias: it.AssetClassBias,
		RelevanceScore: it.RelevanceScore, QualityScore: it.QualityScore, DedupClusterID: it.DedupClusterID,
		OtherSources: it.OtherSources, ShortSummary: it.ShortSummary, ImpactPotential: it.ImpactPotential,
		NewsScope: string(it.NewsScope), ScopeScore: it.ScopeScore, SectorImpacts: sectorViews,
		MaxSectorImpact: it.MaxSectorImpact,
	}
}

func eventFeedToView(feed domain.EventFeed) httpiface.EventFeedView {
	conv := func(items []domain.EventItem) []httpiface.EventItemView {
		out := make([]httpiface.EventItemView, 0, len(items))
		for _, it := range items {
			assets := make([]string, 0, len(it.ImpactedAssets))
			for _, a := range it.ImpactedAssets {
				assets = append(assets, a.SymbolOrID)
			}
			out = append(out, httpiface.EventItemView{
				ClusterID: it.DedupClusterID, Headline: it.Title, TsUTC: it.TsUTC, Category: string(it.Category),
				ImpactedAssets: assets, Confidence: it.OverallConfidence,
			})
		}
		return out
	}
	return httpiface.EventFeedView{
		Regional: conv(feed.Regional), Company: conv(feed.Company), Sector: conv(feed.Sector), Personal: conv(feed.Personal),
	}
}

func marketSnapshotView(snap domain.MarketSnapshot) httpiface.MarketSnapshotView {
	quotes := map[string]httpiface.QuoteView{}
	addQuote := func(name string, price, chg float64) {
		cp := chg
		quotes[name] = httpiface.QuoteView{Price: price, ChangePct: &cp, TsUTC: snap.TsUTC, Currency: "USD", Source: "yahoo"}
	}
	addQuote("DXY", snap.Yahoo.DXY, snap.Yahoo.DXYChg24h)
	addQuote("OIL", snap.Yahoo.Oil, snap.Yahoo.OilChg24h)
	addQuote("GOLD", snap.Yahoo.Gold, snap.Yahoo.GoldChg24h)
	addQuote("SILVER", snap.Yahoo.Silver, snap.Yahoo.SilverChg24h)
	addQuote("COPPER", snap.Yahoo.Copper, snap.Yahoo.CopperChg24h)
	addQuote("NASDAQ", snap.Yahoo.Nasdaq, snap.Yahoo.NasdaqChg24h)
	addQuote("FTSE", snap.Yahoo.FTSE, snap.Yahoo.FTSEChg24h)
	addQuote("EUROSTOXX", snap.Yahoo.Eurostoxx, snap.Yahoo.EurostoxxChg24h)
	addQuote("BIST", snap.Yahoo.BIST, snap.Yahoo.BISTChg24h)
	addQuote("BTC", snap.Yahoo.BTC, snap.Yahoo.BTCChg24h)
	addQuote("ETH", snap.Yahoo.ETH, snap.Yahoo.ETHChg24h)

	return httpiface.MarketSnapshotView{
		TsUTC:  snap.TsUTC,
		Quotes: quotes,
		Flow: httpiface.FlowPanelView{
			StableDominanceDelta: snap.CoinGecko.Deltas["usdt_d"] + snap.CoinGecko.Deltas["usdc_d"],
			BTCDominanceDelta:    snap.CoinGecko.Deltas["btc_d"],
			FlowScore:            snap.FlowScore,
		},
		Derivatives: httpiface.DerivativesPanelView{FundingRateZ: snap.FundingZ, OpenInterestDelta: snap.OIDelta},
		Risk: httpiface.RiskPanelView{
			VIXLevel: snap.Yahoo.VIX, DXYDelta: snap.Yahoo.DXYChg24h, QQQDelta: snap.Yahoo.QQQChg24h,
			OilDelta: snap.Yahoo.OilChg24h, MacroRiskOff: snap.MacroRiskOff,
		},
	}
}

// forecastRationale is the shape forecast.Engine.Generate marshals into
// persistence.Forecast.RationaleJSON.
type forecastRationale struct {
	RawScore      float64                      `json:"raw_score"`
	MarketDrivers []domain.DriverContribution  `json:"market_drivers"`
	NewsDrivers   []domain.ClusterContribution `json:"news_drivers"`
	Rationale     string                       `json:"rationale"`
}

func forecastToView(f domain.Forecast) httpiface.ForecastView {
	drivers := make([]httpiface.DriverContribution, 0, len(f.MarketDrivers))
	for _, d := range f.MarketDrivers {
		drivers = append(drivers, httpiface.DriverContribution{Name: d.Name, Value: d.Value, Weight: d.Weight, Contribution: d.Contribution})
	}
	return httpiface.ForecastView{
		ForecastID: f.ID, TsUTC: f.TsUTC, TF: string(f.TF), Target: string(f.Target), Direction: f.Direction.String(),
		Confidence: f.Confidence, ExpiresAtUTC: f.ExpiresAtUTC, Drivers: drivers, RationaleText: f.RationaleText,
	}
}

// dailyEquityMovers quotes every equity-class watchlist entry through the
// router and splits the results into gainers/losers by change percent.
func (o *Orchestrator) dailyEquityMovers(ctx context.Context, wl config.Watchlist) httpiface.DailyEquityMoversView {
	var equities []config.WatchlistEntry
	for _, e := range wl.Entries {
		if e.Category == config.WatchlistTech {
			equities = append(equities, e)
		}
	}
	quoted, _ := async.Map(ctx, async.DefaultQuoteWorkers, equities, func(ctx context.Context, e config.WatchlistEntry) (*httpiface.EquityMoverView, error) {
		res := o.Router.GetQuote(ctx, e.Symbol)
		if !res.OK || res.Data.ChangePct == nil {
			return nil, nil
		}
		return &httpiface.EquityMoverView{Symbol: e.Symbol, ChangePct: *res.Data.ChangePct, Price: res.Data.Price}, nil
	})
	var movers []httpiface.EquityMoverView
	for _, m := range quoted {
		if m != nil {
			movers = append(movers, *m)
		}
	}
	sort.Slice(movers, func(i, j int) bool { return movers[i].ChangePct > movers[j].ChangePct })

	const topN = 5
	var gainers, losers []httpiface.EquityMoverView
	for _, m := range movers {
		if m.ChangePct > 0 && len(gainers) < topN {
			gainers = append(gainers, m)
		}
	}
	for i := len(movers) - 1; i >= 0 && len(losers) < topN; i-- {
		if movers[i].ChangePct < 0 {
			losers = append(losers, movers[i])
		}
	}
	return httpiface.DailyEquityMoversView{Gainers: gainers, Losers: losers}
}

// LatestForecast reconstructs the explainability drivers from the persisted
// RationaleJSON. Only the market drivers map cleanly onto the wire
// DriverContribution shape; news-cluster contributions are folded into the
// narrative RationaleText instead of a second driver list (see DESIGN.md).
func (o *Orchestrator) LatestForecast(ctx context.Context, target, tf string) (*httpiface.ForecastView, error) {
	row, err := o.Forecast.Forecasts.Latest(ctx, target, tf)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	var rationale forecastRationale
	_ = json.Unmarshal(row.RationaleJSON, &rationale)

	drivers := make([]httpiface.DriverContribution, 0, len(rationale.MarketDrivers))
	for _, d := range rationale.MarketDrivers {
		drivers = append(drivers, httpiface.DriverContribution{Name: d.Name, Value: d.Value, Weight: d.Weight, Contribution: d.Contribution})
	}

	return &httpiface.ForecastView{
		ForecastID: row.ForecastID, TsUTC: row.CreatedAt, TF: row.TF, Target: row.Target,
		Direction: domain.Direction(row.Direction).String(), Confidence: row.Confidence, ExpiresAtUTC: row.ExpiresAtUTC,
		Drivers: drivers, RationaleText: rationale.Rationale,
	}, nil
}

// ForecastMetrics exposes the 7-day window as the single reported figure for
// HitRate/Brier (more stable than the 24h window at typical request rates),
// and FlipRate/Coverage at their native 7d/24h granularity; see DESIGN.md.
func (o *Orchestrator) ForecastMetrics(ctx context.Context) ([]httpiface.ForecastTFMetrics, error) {
	metrics, err := o.Forecast.Metrics(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]httpiface.ForecastTFMetrics, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, httpiface.ForecastTFMetrics{
			Target: string(m.Target), TF: string(m.TF), HitRate: m.HitRate7d, Brier: m.Brier7d,
			FlipRate: m.FlipRate7d, Coverage: int64(math.Round(m.Coverage24h * 100)), Calibration: m.MeanCalibrationErr,
		})
	}
	return out, nil
}

func (o *Orchestrator) LatestEvents(ctx context.Context, since time.Duration) ([]httpiface.EventWithImpactView, error) {
	now := time.Now().UTC()
	clusters, err := o.EventStore.RecentClusters(ctx, persistence.TimeRange{From: now.Add(-since), To: now}, 200)
	if err != nil {
		return nil, err
	}
	out := make([]httpiface.EventWithImpactView, 0, len(clusters))
	for _, cl := range clusters {
		impacts, err := o.Forecast.Impacts.ListByCluster(ctx, cl.ClusterID)
		if err != nil {
			continue
		}
		realized := make([]httpiface.RealizedImpactView, 0, len(impacts))
		for _, im := range impacts {
			realized = append(realized, httpiface.RealizedImpactView{Target: im.Target, TF: im.TF, RealizedRet: im.PostReturn, RealizedZ: im.ZScore})
		}
		out = append(out, httpiface.EventWithImpactView{
			ClusterID: cl.ClusterID, Headline: cl.Headline, TsUTC: cl.TsUTC, SourceTier: string(cl.SourceTier),
			Impact: cl.Impact, Direction: int(cl.Direction), RealizedImpacts: realized,
		})
	}
	return out, nil
}

func (o *Orchestrator) Portfolio(ctx context.Context, base, horizonWire string) (*httpiface.PortfolioResponse, error) {
	_, wire := resolveHorizon(horizonWire)
	snap, err := o.PortfolioEngine.Generate(ctx, time.Now().UTC(), base, string(horizonWireToDomain[wire]), o.state.latestNews(), nil, nil)
	if err != nil {
		return nil, err
	}
	return portfolioSnapshotToResponse(snap, wire), nil
}

func portfolioSnapshotToResponse(snap domain.PortfolioSnapshot, horizonWire string) *httpiface.PortfolioResponse {
	holdings := make([]httpiface.HoldingView, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdings = append(holdings, httpiface.HoldingView{Symbol: h.Symbol, Qty: h.Qty, Price: h.Price, Value: h.Value, Weight: h.Weight})
	}
	newsImpacts := make([]httpiface.NewsImpactView, 0, len(snap.NewsImpacts))
	for _, ni := range snap.NewsImpacts {
		newsImpacts = append(newsImpacts, httpiface.NewsImpactView{
			Symbol: ni.Symbol, ClusterID: ni.ClusterID, MatchMethod: string(ni.Method), Direction: ni.Direction, Weight: ni.Weight,
		})
	}

	var opt httpiface.OptimizerResultView
	for _, o := range snap.Optimizers {
		if horizonDomainToWire[o.Horizon] == horizonWire {
			opt = optimizerResultToView(o)
			break
		}
	}

	var totalValue float64
	for _, h := range holdings {
		totalValue += h.Value
	}

	return &httpiface.PortfolioResponse{
		Base: snap.Base, Horizon: horizonWire, TotalValue: totalValue, Holdings: holdings,
		Risk: httpiface.PortfolioRiskView{
			HHI: snap.Risk.HHI, Vol30d: snap.Risk.Vol30d, VaR95_1d: snap.Risk.VaR95_1d,
			MomZ7d: snap.Risk.MomZWeighted7d, MomZ30d: snap.Risk.MomZWeighted30d,
		},
		NewsImpact: newsImpacts, Optimizer: opt, DebugNotes: snap.DebugNotes,
	}
}

func optimizerResultToView(o domain.OptimizerResult) httpiface.OptimizerResultView {
	conv := func(actions []domain.RebalanceAction) []httpiface.RebalanceActionView {
		out := make([]httpiface.RebalanceActionView, 0, len(actions))
		for _, a := range actions {
			out = append(out, httpiface.RebalanceActionView{Symbol: a.Symbol, DeltaWeight: a.DeltaWeight, Rationale: a.Rationale})
		}
		return out
	}
	return httpiface.OptimizerResultView{
		Hold: o.Mode == domain.ModeHold, HoldReason: o.HoldReason,
		Increases: conv(o.Increases), Decreases: conv(o.Decreases),
	}
}

// PortfolioDailyBrief maps the portfolio engine's executive brief onto the
// same PortfolioResponse shape the other portfolio route returns, since
// domain.PortfolioBrief trims several fields (TotalValue, per-symbol news
// match method) that a full Generate call carries; see DESIGN.md for the
// reasoning behind reusing Generate's richer snapshot for those fields.
func (o *Orchestrator) PortfolioDailyBrief(ctx context.Context, base string) (*httpiface.PortfolioResponse, error) {
	now := time.Now().UTC()
	snap, err := o.PortfolioEngine.Generate(ctx, now, base, string(domain.HorizonDaily), o.state.latestNews(), nil, nil)
	if err != nil {
		return nil, err
	}
	brief, err := o.PortfolioEngine.DailyBrief(ctx, now, base, o.state.latestNews(), nil, nil)
	if err != nil {
		return nil, err
	}

	resp := portfolioSnapshotToResponse(snap, "24h")
	resp.DebugNotes = append(resp.DebugNotes, brief.ExecutiveSummary...)
	resp.DebugNotes = append(resp.DebugNotes, brief.DebugNotes...)

	newsImpacts := make([]httpiface.NewsImpactView, 0, len(brief.PositiveDrivers)+len(brief.NegativeDrivers))
	for _, d := range brief.PositiveDrivers {
		newsImpacts = append(newsImpacts, httpiface.NewsImpactView{Symbol: d.Symbol, MatchMethod: "aggregated", Direction: d.Impact})
	}
	for _, d := range brief.NegativeDrivers {
		newsImpacts = append(newsImpacts, httpiface.NewsImpactView{Symbol: d.Symbol, MatchMethod: "aggregated", Direction: d.Impact})
	}
	if len(newsImpacts) > 0 {
		resp.NewsImpact = newsImpacts
	}

	resp.Optimizer = httpiface.OptimizerResultView{
		Hold:       brief.Hints.Mode == domain.ModeHold,
		HoldReason: brief.Hints.HoldReason,
	}
	for _, a := range brief.Hints.Actions {
		view := httpiface.RebalanceActionView{Symbol: a.Symbol, DeltaWeight: a.DeltaWeight, Rationale: a.Rationale}
		if a.DeltaWeight >= 0 {
			resp.Optimizer.Increases = append(resp.Optimizer.Increases, view)
		} else {
			resp.Optimizer.Decreases = append(resp.Optimizer.Decreases, view)
		}
	}
	return resp, nil
}

// Debate builds a fresh portfolio snapshot and the debate context it feeds,
// then delegates to debate.Engine.Run.
func (o *Orchestrator) Debate(ctx context.Context, req httpiface.DebateRequest) (*httpiface.DebateResponse, error) {
	now := time.Now().UTC()
	snap, err := o.PortfolioEngine.Generate(ctx, now, req.Base, req.Horizon, o.state.latestNews(), nil, nil)
	if err != nil {
		return nil, err
	}

	sectorRotation := map[string]float64{}
	for sector, weight := range snap.Allocation.BySector {
		sectorRotation[sector] = weight
	}
	changes, _ := async.Map(ctx, async.DefaultQuoteWorkers, o.Watchlist.Entries, func(ctx context.Context, entry config.WatchlistEntry) (*float64, error) {
		res := o.Router.GetQuote(ctx, entry.Symbol)
		if res.OK && res.Data.ChangePct != nil {
			return res.Data.ChangePct, nil
		}
		return nil, nil
	})
	watchlistChanges := map[string]float64{}
	for i, chg := range changes {
		if chg != nil {
			watchlistChanges[o.Watchlist.Entries[i].Symbol] = *chg
		}
	}
	engineSignals := map[string]interface{}{
		"flow_score":     o.state.latestSnapshot().FlowScore,
		"funding_z":      o.state.latestSnapshot().FundingZ,
		"oi_delta":       o.state.latestSnapshot().OIDelta,
		"macro_risk_off": o.state.latestSnapshot().MacroRiskOff,
	}

	debateCtx := debate.BuildContext(req.Base, req.Window, req.Horizon, snap, o.state.latestNews(), sectorRotation, watchlistChanges, engineSignals)
	result, err := o.DebateEngine.Run(ctx, debateCtx, req.Force)
	if err != nil {
		return nil, err
	}
	return debateResultToView(result), nil
}

func debateResultToView(r domain.DebateResult) *httpiface.DebateResponse {
	trimSignals := make([]httpiface.TrimSignalView, 0, len(r.Plan.TrimSignals))
	for _, t := range r.Plan.TrimSignals {
		trimSignals = append(trimSignals, httpiface.TrimSignalView{Symbol: t.Symbol, EvidenceIDs: t.EvidenceIDs, Rationale: t.Rationale})
	}
	meta := make([]httpiface.DebateProviderMeta, 0, len(r.ProviderMeta))
	for _, m := range r.ProviderMeta {
		meta = append(meta, httpiface.DebateProviderMeta{Provider: m.Provider, Score: m.Score, LatencyMS: m.LatencyMS, Status: m.Status, Reason: m.Reason})
	}
	return &httpiface.DebateResponse{
		Cached: r.Cached, ContextHash: r.ContextHash, Winner: r.Winner, DisagreementScore: r.DisagreementScore,
		ExecutiveSummary: r.Plan.ExecutiveSummary, TrimSignals: trimSignals, SectorFocus: r.Plan.SectorFocus,
		ScenarioBase: r.Plan.ScenarioBase, ScenarioRisk: r.Plan.ScenarioRisk, RefereeMode: string(r.RefereeMode), ProviderMeta: meta,
	}
}

func (o *Orchestrator) LatestQuotes(ctx context.Context, assets []string) (map[string]httpiface.QuoteView, error) {
	views, _ := async.Map(ctx, async.DefaultQuoteWorkers, assets, func(ctx context.Context, a string) (*httpiface.QuoteView, error) {
		res := o.Router.GetQuote(ctx, a)
		if !res.OK {
			return nil, nil
		}
		return &httpiface.QuoteView{
			Price: res.Data.Price, ChangePct: res.Data.ChangePct, TsUTC: res.Data.TsUTC, Currency: res.Data.Currency,
			Source: res.Data.Source, IsFallback: res.Data.IsFallback, FreshnessSeconds: res.Data.FreshnessSeconds,
			DegradedMode: res.Data.DegradedMode,
		}, nil
	})
	out := map[string]httpiface.QuoteView{}
	for i, v := range views {
		if v != nil {
			out[assets[i]] = *v
		}
	}
	return out, nil
}

func (o *Orchestrator) LatestBars(ctx context.Context, assets []string, limit int) (map[string][]httpiface.BarView, error) {
	out := map[string][]httpiface.BarView{}
	now := time.Now().UTC()
	for _, a := range assets {
		bars, err := o.Bars.Window(ctx, a, persistence.TimeRange{From: now.AddDate(0, 0, -30), To: now})
		if err != nil {
			continue
		}
		if limit > 0 && len(bars) > limit {
			bars = bars[len(bars)-limit:]
		}
		views := make([]httpiface.BarView, 0, len(bars))
		for _, b := range bars {
			views = append(views, httpiface.BarView{TsUTC: b.TsUTC, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
		}
		out[a] = views
	}
	return out, nil
}

func (o *Orchestrator) QuotesDebug(ctx context.Context) (map[string]interface{}, error) {
	return o.Router.DebugState(), nil
}
