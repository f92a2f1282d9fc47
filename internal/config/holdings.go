package config

import "github.com/marketintel/analytics/internal/domain"

// FXSettings configures the base-currency conversion pair the portfolio
// engine uses.
type FXSettings struct {
	DefaultQuoteCurrency string // e.g. "TRY"
	FXSymbol             string // quote router symbol, e.g. "USDTRY=X"
}

// DefaultFXSettings pairs TRY/USD as the default conversion, kept as a
// named default rather than a hardcoded literal.
func DefaultFXSettings() FXSettings {
	return FXSettings{DefaultQuoteCurrency: "TRY", FXSymbol: "USDTRY=X"}
}

// HoldingsRegistry is the configurable default holdings list plus the
// symbol alias/metadata map the portfolio engine's news-match and valuation
// steps read from.
type HoldingsRegistry struct {
	Holdings []domain.Holding
}

// DefaultHoldings is a representative cross-asset portfolio (crypto and US
// equities) used when no portfolio config is supplied.
func DefaultHoldings() HoldingsRegistry {
	return HoldingsRegistry{Holdings: []domain.Holding{
		{Symbol: "BTC", Qty: 0.45, Currency: "USD", AssetClass: "crypto", Sector: "crypto", Aliases: []string{"BTC", "Bitcoin"}, YahooSymbol: "BTC-USD"},
		{Symbol: "ETH", Qty: 6.0, Currency: "USD", AssetClass: "crypto", Sector: "crypto", Aliases: []string{"ETH", "Ethereum"}, YahooSymbol: "ETH-USD"},
		{Symbol: "SOL", Qty: 40.0, Currency: "USD", AssetClass: "crypto", Sector: "crypto", Aliases: []string{"SOL", "Solana"}, YahooSymbol: "SOL-USD"},
		{Symbol: "NVDA", Qty: 30.0, Currency: "USD", AssetClass: "equity", Sector: "semiconductors", Aliases: []string{"NVDA", "Nvidia"}, YahooSymbol: "NVDA"},
		{Symbol: "AAPL", Qty: 20.0, Currency: "USD", AssetClass: "equity", Sector: "tech", Aliases: []string{"AAPL", "Apple"}, YahooSymbol: "AAPL"},
		{Symbol: "MSFT", Qty: 15.0, Currency: "USD", AssetClass: "equity", Sector: "tech", Aliases: []string{"MSFT", "Microsoft"}, YahooSymbol: "MSFT"},
		{Symbol: "XOM", Qty: 25.0, Currency: "USD", AssetClass: "equity", Sector: "energy", Aliases: []string{"XOM", "Exxon"}, YahooSymbol: "XOM"},
	}}
}
