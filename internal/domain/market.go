package domain

import "time"

// CoinGeckoSnapshot is the crypto side of the cross-asset snapshot;
// altcoin_total_value_ex_btc is a derived field.
type CoinGeckoSnapshot struct {
	BTCPriceUSD      float64
	ETHPriceUSD      float64
	BTCChg24h        float64
	ETHChg24h        float64
	TotalVolUSD      float64
	TotalMcapUSD     float64
	Dominance        map[string]float64
	Deltas           map[string]float64
}

// AltcoinTotalValueExBTC is total_mcap * (1 - btc_dom/100) when both
// inputs are positive, else nil.
func (s CoinGeckoSnapshot) AltcoinTotalValueExBTC() *float64 {
	btcDom, ok := s.Dominance["btc"]
	if !ok || s.TotalMcapUSD <= 0 || btcDom <= 0 {
		return nil
	}
	v := s.TotalMcapUSD * (1 - btcDom/100)
	return &v
}

// YahooSnapshot mirrors the equity/FX/commodity cross-asset snapshot.
type YahooSnapshot struct {
	DXY, QQQ, Nasdaq, FTSE, Eurostoxx float64
	Oil, Gold, Silver, Copper, BIST  float64
	VIX, BTC, ETH                    float64

	DXYChg24h, QQQChg24h, NasdaqChg24h, FTSEChg24h, EurostoxxChg24h float64
	OilChg24h, GoldChg24h, SilverChg24h, CopperChg24h, BISTChg24h   float64
	BTCChg24h, ETHChg24h                                            float64
}

// MarketSnapshot is the cross-asset snapshot consumed by the forecasting
// engine's market-signal feature set and served in full over /intel/run.
type MarketSnapshot struct {
	TsUTC      time.Time
	CoinGecko  CoinGeckoSnapshot
	Yahoo      YahooSnapshot
	FlowScore  float64 // 0..100, capital-flow composite
	FundingZ   float64 // funding-rate z-score
	OIDelta    float64 // open-interest delta
	MacroRiskOff bool
}

// Quote is one resolved price observation returned by the quote router.
type Quote struct {
	Price            float64
	ChangePct        *float64
	TsUTC            time.Time
	Currency         string
	Source           string
	IsFallback       bool
	FreshnessSeconds int64
	DegradedMode     bool
}

// PriceBar is an OHLCV observation keyed by (asset, ts_utc).
type PriceBar struct {
	Asset  string
	TsUTC  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
