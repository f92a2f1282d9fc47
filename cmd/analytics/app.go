package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/marketintel/analytics/data/cache"
	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/engine/bars"
	"github.com/marketintel/analytics/internal/engine/debate"
	"github.com/marketintel/analytics/internal/engine/eventstore"
	"github.com/marketintel/analytics/internal/engine/eventstudy"
	"github.com/marketintel/analytics/internal/engine/forecast"
	"github.com/marketintel/analytics/internal/engine/news"
	"github.com/marketintel/analytics/internal/engine/portfolio"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/infrastructure/db"
	"github.com/marketintel/analytics/internal/infrastructure/httpclient"
	"github.com/marketintel/analytics/internal/llm"
	"github.com/marketintel/analytics/internal/net/budget"
	"github.com/marketintel/analytics/internal/net/circuit"
	"github.com/marketintel/analytics/internal/net/client"
	"github.com/marketintel/analytics/internal/net/ratelimit"
	"github.com/marketintel/analytics/internal/orchestrator"
	"github.com/marketintel/analytics/internal/provider"
	"github.com/marketintel/analytics/internal/providers/coingecko"
	"github.com/marketintel/analytics/internal/providers/finnhub"
	"github.com/marketintel/analytics/internal/providers/gdelt"
	"github.com/marketintel/analytics/internal/providers/rss"
	"github.com/marketintel/analytics/internal/providers/twelvedata"
	"github.com/marketintel/analytics/internal/providers/yahoo"
	"github.com/marketintel/analytics/internal/score/calibration"
)

// app holds every wired component a subcommand may drive.
type app struct {
	log       zerolog.Logger
	settings  config.PipelineSettings
	registry  *provider.Registry
	clientMgr *client.Manager
	dbManager *db.Manager
	router    *quoterouter.Router
	barsSync  *bars.Syncer
	store     *eventstore.Store
	forecast  *forecast.Engine
	portfolio *portfolio.Engine
	collector *calibration.CalibrationCollector
	orch      *orchestrator.Orchestrator
}

// candleCoreAssets are the bar-store assets synced regardless of holdings:
// the forecast/event-study reference series plus the cross-asset snapshot
// symbols the risk panels chart.
var candleCoreAssets = []string{
	"BTC-USD", "ETH-USD",
	"QQQ", "^IXIC", "^FTSE", "^STOXX50E",
	"CL=F", "GC=F", "SI=F", "HG=F", "XU100.IS", "DX-Y.NYB",
}

// candleFallbackSymbols maps a bar-store asset to each fallback source's
// own spelling. Assets absent here are Yahoo-only.
var candleFallbackSymbols = map[string]map[string]string{
	"BTC-USD": {"finnhub": "BINANCE:BTCUSDT", "twelvedata": "BTC/USD"},
	"ETH-USD": {"finnhub": "BINANCE:ETHUSDT", "twelvedata": "ETH/USD"},
	"QQQ":     {"finnhub": "QQQ", "twelvedata": "QQQ"},
}

// candleAssets is the full sync list: the core set plus every holding's
// chart symbol, deduplicated, so the portfolio risk metrics always have
// history for what the book actually holds.
func candleAssets(holdings config.HoldingsRegistry) []string {
	seen := map[string]bool{}
	var out []string
	add := func(asset string) {
		if asset != "" && !seen[asset] {
			seen[asset] = true
			out = append(out, asset)
		}
	}
	for _, a := range candleCoreAssets {
		add(a)
	}
	for _, h := range holdings.Holdings {
		add(h.YahooSymbol)
	}
	return out
}

// syndicationFeeds is the press-release + regional extras ladder the news
// engine falls back to when the primary search provider under-delivers.
var syndicationFeeds = []struct {
	name, url, domain string
}{
	{"globenewswire", "https://www.globenewswire.com/RssFeed/orgclass/1/feedTitle/GlobeNewswire", "globenewswire.com"},
	{"prnewswire", "https://www.prnewswire.com/rss/news-releases-list.rss", "prnewswire.com"},
	{"aa_energy", "https://www.aa.com.tr/en/rss/default?cat=energy", "aa.com.tr"},
}

// buildApp wires the full pipeline: config, cache, DB, provider transports,
// adapters, engines, orchestrator.
func buildApp(logger zerolog.Logger, providersPath, dbConfigPath string) (*app, error) {
	settings := config.LoadPipelineSettings()

	provCfg, err := config.LoadProvidersConfig(providersPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", providersPath).Msg("providers config unreadable, using defaults")
		provCfg = config.DefaultProvidersConfig()
	}

	kv := cache.NewAuto()

	clientMgr := client.NewManager(
		ratelimit.NewManager(),
		circuit.NewManager(),
		budget.NewManager(),
		client.KVCache{Backend: kv},
	)
	for name := range provCfg.Providers {
		pc, _ := provCfg.GetProvider(name)
		if pc.Enabled {
			clientMgr.AddProvider(name, pc)
		}
	}
	httpFor := func(name string) *http.Client {
		if c, ok := clientMgr.GetClient(name); ok {
			return c
		}
		return &http.Client{Timeout: settings.RequestTimeout}
	}
	baseURL := func(name, fallback string) string {
		if pc, ok := provCfg.GetProvider(name); ok && pc.BaseURL != "" {
			return pc.BaseURL
		}
		return fallback
	}

	appCfg, err := db.LoadAppConfig(dbConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load db config: %w", err)
	}
	dbManager, err := db.NewManager(appCfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	repos := dbManager.Repository()

	registry := provider.NewRegistry()

	yahooAd := yahoo.New(httpFor("yahoo"), baseURL("yahoo", "https://query1.finance.yahoo.com"), registry)
	cgAd := coingecko.New(httpFor("coingecko"), baseURL("coingecko", "https://api.coingecko.com"), registry)
	gdeltAd := gdelt.New(httpFor("gdelt"), baseURL("gdelt", "https://api.gdeltproject.org"), registry)
	finnhubAd := finnhub.New(httpFor("finnhub"), baseURL("finnhub", "https://finnhub.io"), os.Getenv("FINNHUB_API_KEY"), registry)
	twelveAd := twelvedata.New(httpFor("twelvedata"), baseURL("twelvedata", "https://api.twelvedata.com"), os.Getenv("TWELVEDATA_API_KEY"), registry)

	resolver := quoterouter.NewSymbolResolver(kv)
	router := quoterouter.NewRouter([]quoterouter.QuoteProvider{
		yahooAd.NewQuoteProvider(),
		finnhubAd.NewQuoteProvider(),
		twelveAd.NewQuoteProvider(),
	}, resolver)

	financeNews := yahooAd.NewFinanceNews(baseURL("yahoo_rss", "https://feeds.finance.yahoo.com"))
	feeds := make([]news.SyndicationFeed, 0, len(syndicationFeeds))
	for _, f := range syndicationFeeds {
		feeds = append(feeds, rss.New(f.name, f.url, f.domain, httpFor("yahoo_rss"), registry))
	}
	tierA, tierB := config.DefaultNewsTierDomains()
	newsEngine := &news.Engine{
		Search:      gdeltAd.NewSearchProvider(),
		FinanceNews: &financeNews,
		Feeds:       feeds,
		TierA:       tierA,
		TierB:       tierB,
	}

	holdings := config.DefaultHoldings()
	barsSync := bars.NewSyncer(repos.PriceBars, repos.KV,
		yahooAd.NewCandleSource(),
		[]bars.Source{finnhubAd.NewCandleSource(), twelveAd.NewCandleSource()},
		candleAssets(holdings))
	barsSync.FallbackSymbols = candleFallbackSymbols

	store := eventstore.NewStore(repos.Events, repos.EventImpacts, config.DefaultEventSourceTiers(),
		settings.NewsIngestIntervalMinutes, settings.RetentionDays)
	study := &eventstudy.Computer{Bars: repos.PriceBars, Impacts: repos.EventImpacts}

	harness := calibration.NewCalibrationHarness(calibration.DefaultConfig())
	collector := calibration.NewCalibrationCollector(harness)

	forecastEngine := forecast.NewEngine(repos.Forecasts, repos.EventImpacts, repos.PriceBars,
		config.DefaultForecastSettings(), settings.ImpactHalfLifeHours)
	forecastEngine.Calibration = collector

	portfolioEngine := portfolio.NewEngine(router, repos.PriceBars,
		holdings, config.DefaultFXSettings(), config.DefaultPortfolioSettings())

	debateEngine := buildDebateEngine(settings, kv)

	watchlist := config.DefaultWatchlist()
	orch := orchestrator.New(
		yahooAd, cgAd, newsEngine, store, study,
		forecastEngine, portfolioEngine, debateEngine,
		router, repos.PriceBars, barsSync, watchlist, holdings,
	)

	return &app{
		log:       logger,
		settings:  settings,
		registry:  registry,
		clientMgr: clientMgr,
		dbManager: dbManager,
		router:    router,
		barsSync:  barsSync,
		store:     store,
		forecast:  forecastEngine,
		portfolio: portfolioEngine,
		collector: collector,
		orch:      orch,
	}, nil
}

// buildDebateEngine assembles the LLM backends from whichever API keys are
// present. With no keys at all the debate engine still runs; every round
// reports skipped providers and the referee mode degrades accordingly.
func buildDebateEngine(settings config.PipelineSettings, kv cache.Cache) *debate.Engine {
	pool := httpclient.NewClientPool(httpclient.DefaultLLMConfig())
	llmHTTP := pool.HTTPClient()

	var clients []llm.Client
	if settings.LLMGeminiKey != "" {
		clients = append(clients, llm.NewGeminiClient(llm.GeminiConfig{
			APIKey:        settings.LLMGeminiKey,
			PrimaryModel:  "gemini-1.5-flash",
			FallbackModel: "gemini-1.5-flash-8b",
		}, llmHTTP, kv))
	}

	var referee llm.Client
	hasReferee := false
	if settings.LLMOpenRouterKey != "" {
		orCfg := llm.OpenRouterConfig{
			APIKey: settings.LLMOpenRouterKey,
			CandidateModels: []string{
				"deepseek/deepseek-chat-v3-0324:free",
				"meta-llama/llama-3.3-70b-instruct:free",
			},
			FreeModelRPM:      8,
			FreeModelDailyCap: 200,
		}
		clients = append(clients, llm.NewOpenRouterClient(orCfg, llmHTTP, kv))
		referee = llm.NewOpenRouterRefereeClient(orCfg, llmHTTP, kv)
		hasReferee = true
	}

	return debate.NewEngine(clients, referee, hasReferee, kv)
}

func (a *app) Close() {
	if a.dbManager != nil {
		a.dbManager.Close()
	}
}
