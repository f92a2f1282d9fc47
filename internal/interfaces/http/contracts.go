package http

import "time"

// NewsItemView is the wire shape of a ranked, deduplicated news item.
type NewsItemView struct {
	Title             string   `json:"title"`
	URL               string   `json:"url"`
	CanonicalURL      string   `json:"canonical_url"`
	SourceDomain      string   `json:"source_domain"`
	Description       string   `json:"description,omitempty"`
	PublishedAtUTC    *time.Time `json:"published_at_utc,omitempty"`
	Tags              []string `json:"tags"`
	Category          string   `json:"category,omitempty"`
	Entities          []string `json:"entities"`
	EventType         string   `json:"event_type,omitempty"`
	ImpactChannel     []string `json:"impact_channel"`
	AssetClassBias    []string `json:"asset_class_bias"`
	RelevanceScore    float64  `json:"relevance_score"`
	QualityScore      float64  `json:"quality_score"`
	DedupClusterID    string   `json:"dedup_cluster_id,omitempty"`
	OtherSources      []string `json:"other_sources,omitempty"`
	ShortSummary      string   `json:"short_summary,omitempty"`
	ImpactPotential   float64  `json:"impact_potential"`
	NewsScope         string   `json:"news_scope,omitempty"`
	ScopeScore        float64  `json:"scope_score"`
	SectorImpacts     []SectorImpactView `json:"sector_impacts,omitempty"`
	MaxSectorImpact   float64  `json:"max_sector_impact"`
}

// SectorImpactView is the wire shape of a scored sector reaction to a news item.
type SectorImpactView struct {
	Sector      string  `json:"sector"`
	Direction   string  `json:"direction"` // UP, DOWN, NEUTRAL, MIXED
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale"`
	ImpactScore float64 `json:"impact_score"`
}

// EventFeedView buckets ranked EventItems by category.
type EventFeedView struct {
	Regional []EventItemView `json:"regional"`
	Company  []EventItemView `json:"company"`
	Sector   []EventItemView `json:"sector"`
	Personal []EventItemView `json:"personal"`
}

// EventItemView is a clustered, enriched news item ready for display.
type EventItemView struct {
	ClusterID      string    `json:"cluster_id"`
	Headline       string    `json:"headline"`
	TsUTC          time.Time `json:"ts_utc"`
	Category       string    `json:"category"`
	ImpactedAssets []string  `json:"impacted_assets"`
	Confidence     float64   `json:"confidence"`
}

// MarketSnapshotView carries the cross-asset market signals fed into forecasting.
type MarketSnapshotView struct {
	TsUTC         time.Time          `json:"ts_utc"`
	Quotes        map[string]QuoteView `json:"quotes"`
	Flow          FlowPanelView      `json:"flow"`
	Derivatives   DerivativesPanelView `json:"derivatives"`
	Risk          RiskPanelView      `json:"risk"`
}

// QuoteView is the wire shape of one asset's last quote.
type QuoteView struct {
	Price            float64   `json:"price"`
	ChangePct        *float64  `json:"change_pct,omitempty"`
	TsUTC            time.Time `json:"ts_utc"`
	Currency         string    `json:"currency,omitempty"`
	Source           string    `json:"source"`
	IsFallback       bool      `json:"is_fallback"`
	FreshnessSeconds int64     `json:"freshness_seconds"`
	DegradedMode     bool      `json:"degraded_mode"`
}

// FlowPanelView summarizes cross-asset capital-flow indicators.
type FlowPanelView struct {
	StableDominanceDelta float64 `json:"stable_dominance_delta"`
	BTCDominanceDelta    float64 `json:"btc_dominance_delta"`
	FlowScore            float64 `json:"flow_score"`
}

// DerivativesPanelView summarizes funding and open-interest signals.
type DerivativesPanelView struct {
	FundingRateZ  float64 `json:"funding_rate_z"`
	OpenInterestDelta float64 `json:"open_interest_delta"`
}

// RiskPanelView summarizes macro risk indicators.
type RiskPanelView struct {
	VIXLevel     float64 `json:"vix_level"`
	DXYDelta     float64 `json:"dxy_delta"`
	QQQDelta     float64 `json:"qqq_delta"`
	OilDelta     float64 `json:"oil_delta"`
	MacroRiskOff bool    `json:"macro_risk_off"`
}

// ForecastView is the wire shape of one forecast row.
type ForecastView struct {
	ForecastID   string    `json:"forecast_id"`
	TsUTC        time.Time `json:"ts_utc"`
	TF           string    `json:"tf"`
	Target       string    `json:"target"`
	Direction    string    `json:"direction"` // UP, DOWN, NEUTRAL
	Confidence   float64   `json:"confidence"`
	ExpiresAtUTC time.Time `json:"expires_at_utc"`
	Drivers      []DriverContribution `json:"drivers"`
	RationaleText string  `json:"rationale_text"`
}

// DriverContribution explains one feature's contribution to a forecast score.
type DriverContribution struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// IntelResponse is the full payload returned by POST /intel/run.
type IntelResponse struct {
	TsUTC             time.Time           `json:"ts_utc"`
	ETag              string              `json:"etag"`
	BlockHashes       map[string]string   `json:"block_hashes"`
	ChangedBlocks     []string            `json:"changed_blocks"`
	Market            MarketSnapshotView  `json:"market"`
	Leaders           []NewsItemView      `json:"leaders"`
	TopNews           []NewsItemView      `json:"top_news"`
	EventFeed         EventFeedView       `json:"eventfeed"`
	Forecast          []ForecastView      `json:"forecast"`
	DailyEquityMovers DailyEquityMoversView `json:"daily_equity_movers"`
	DebugNotes        []string            `json:"debug_notes"`
}

// DailyEquityMoversView lists the day's notable gainers/losers in the watchlist.
type DailyEquityMoversView struct {
	Gainers []EquityMoverView `json:"gainers"`
	Losers  []EquityMoverView `json:"losers"`
}

// EquityMoverView is one entry in the daily movers list.
type EquityMoverView struct {
	Symbol    string  `json:"symbol"`
	ChangePct float64 `json:"change_pct"`
	Price     float64 `json:"price"`
}

// ForecastLatestResponse is returned by GET /forecasts/latest.
type ForecastLatestResponse struct {
	Forecast *ForecastView `json:"forecast"`
}

// ForecastMetricsResponse is returned by GET /forecasts/metrics.
type ForecastMetricsResponse struct {
	Metrics []ForecastTFMetrics `json:"metrics"`
}

// ForecastTFMetrics summarizes backtest performance for one (target, tf) pair.
type ForecastTFMetrics struct {
	Target     string  `json:"target"`
	TF         string  `json:"tf"`
	HitRate    float64 `json:"hit_rate"`
	Brier      float64 `json:"brier"`
	FlipRate   float64 `json:"flip_rate"`
	Coverage   int64   `json:"coverage"`
	Calibration float64 `json:"calibration"`
}

// EventsLatestResponse is returned by GET /events/latest.
type EventsLatestResponse struct {
	Events []EventWithImpactView `json:"events"`
}

// EventWithImpactView joins an event cluster with its realized event-study impacts.
type EventWithImpactView struct {
	ClusterID       string            `json:"cluster_id"`
	Headline        string            `json:"headline"`
	TsUTC           time.Time         `json:"ts_utc"`
	SourceTier      string            `json:"source_tier"`
	Impact          float64           `json:"impact"`
	Direction       int               `json:"direction"`
	RealizedImpacts []RealizedImpactView `json:"realized_impacts"`
}

// RealizedImpactView is one (target, tf) event-study outcome for a cluster.
type RealizedImpactView struct {
	Target       string  `json:"target"`
	TF           string  `json:"tf"`
	RealizedRet  float64 `json:"realized_ret"`
	RealizedZ    float64 `json:"realized_z"`
}

// PortfolioResponse is returned by GET /portfolio.
type PortfolioResponse struct {
	Base            string              `json:"base"`
	Horizon         string              `json:"horizon"`
	TotalValue      float64             `json:"total_value"`
	Holdings        []HoldingView       `json:"holdings"`
	Risk            PortfolioRiskView   `json:"risk"`
	NewsImpact      []NewsImpactView    `json:"news_impact"`
	Optimizer       OptimizerResultView `json:"optimizer"`
	DebugNotes      []string            `json:"debug_notes"`
}

// HoldingView is one position in the portfolio.
type HoldingView struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Weight   float64 `json:"weight"`
}

// PortfolioRiskView summarizes concentration and volatility risk.
type PortfolioRiskView struct {
	HHI        float64 `json:"hhi"`
	Vol30d     float64 `json:"vol_30d"`
	VaR95_1d   float64 `json:"var_95_1d"`
	MomZ7d     float64 `json:"mom_z_7d"`
	MomZ30d    float64 `json:"mom_z_30d"`
}

// NewsImpactView attributes a news match to a specific holding.
type NewsImpactView struct {
	Symbol      string  `json:"symbol"`
	ClusterID   string  `json:"cluster_id"`
	MatchMethod string  `json:"match_method"` // direct, entity, title, fuzzy
	Direction   float64 `json:"direction"`
	Weight      float64 `json:"weight"`
}

// OptimizerResultView carries the suggested rebalance for one horizon.
type OptimizerResultView struct {
	Hold      bool                 `json:"hold"`
	HoldReason string              `json:"hold_reason,omitempty"`
	Increases []RebalanceActionView `json:"increases"`
	Decreases []RebalanceActionView `json:"decreases"`
}

// RebalanceActionView is one suggested weight adjustment.
type RebalanceActionView struct {
	Symbol      string  `json:"symbol"`
	DeltaWeight float64 `json:"delta_weight"`
	Rationale   string  `json:"rationale"`
}

// DebateResponse is returned by both the GET and POST /api/v1/portfolio/debate routes.
type DebateResponse struct {
	Cached             bool               `json:"cached"`
	ContextHash        string             `json:"context_hash"`
	Winner             string             `json:"winner,omitempty"` // provider name, or "tie"
	DisagreementScore  float64            `json:"disagreement_score"`
	ExecutiveSummary   []string           `json:"executive_summary"`
	TrimSignals        []TrimSignalView   `json:"trim_signals"`
	SectorFocus        []string           `json:"sector_focus"`
	ScenarioBase       []string           `json:"scenarios_base"`
	ScenarioRisk       []string           `json:"scenarios_risk"`
	RefereeMode        string             `json:"referee_mode,omitempty"`
	ProviderMeta        []DebateProviderMeta `json:"provider_meta"`
}

// TrimSignalView is one evidence-backed trim recommendation from a debate plan.
type TrimSignalView struct {
	Symbol      string   `json:"symbol"`
	EvidenceIDs []string `json:"evidence_ids"`
	Rationale   string   `json:"rationale"`
}

// DebateProviderMeta records one LLM provider's call outcome within a debate round.
type DebateProviderMeta struct {
	Provider   string  `json:"provider"`
	Score      float64 `json:"score"`
	LatencyMS  int64   `json:"latency_ms"`
	Status     string  `json:"status"` // ok, skipped, fail
	Reason     string  `json:"reason,omitempty"`
}

// QuotesLatestResponse is returned by GET /quotes/latest.
type QuotesLatestResponse struct {
	Quotes map[string]QuoteView `json:"quotes"`
}

// BarsLatestResponse is returned by GET /bars/latest.
type BarsLatestResponse struct {
	Bars map[string][]BarView `json:"bars"`
}

// BarView is the wire shape of one OHLC bar.
type BarView struct {
	TsUTC  time.Time `json:"ts_utc"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ErrorResponse represents API error responses.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
