package portfolio

import (
	"context"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
)

// priceHolding resolves one holding's last price via the quote router and
// converts its market value into the base currency using the supplied FX
// rate.
func priceHolding(ctx context.Context, router *quoterouter.Router, h domain.Holding, baseCurrency string, fxRate float64) domain.ValuedHolding {
	res := router.GetQuote(ctx, h.YahooSymbol)
	status := domain.DataOK
	price := 0.0
	if !res.OK {
		status = domain.DataMissing
	} else {
		price = res.Data.Price
	}

	value := price * h.Qty
	switch {
	case baseCurrency == "TRY" && h.Currency == "USD":
		value = price * h.Qty * fxRate
	case baseCurrency == "USD" && h.Currency == "TRY":
		if fxRate != 0 {
			value = price * h.Qty / fxRate
		} else {
			value = 0
		}
	}

	return domain.ValuedHolding{
		Holding:    h,
		Price:      price,
		Value:      value,
		DataStatus: status,
	}
}

// ValueHoldings prices every configured holding, converts to the base
// currency, and assigns portfolio weights.
func ValueHoldings(ctx context.Context, router *quoterouter.Router, holdings []domain.Holding, baseCurrency string, fxRate float64) ([]domain.ValuedHolding, float64) {
	valued := make([]domain.ValuedHolding, 0, len(holdings))
	total := 0.0
	for _, h := range holdings {
		v := priceHolding(ctx, router, h, baseCurrency, fxRate)
		total += v.Value
		valued = append(valued, v)
	}
	for i := range valued {
		if total != 0 {
			valued[i].Weight = valued[i].Value / total
		}
	}
	return valued, total
}

// ResolveFXRate fetches the base-currency conversion pair's last price via
// the quote router.
func ResolveFXRate(ctx context.Context, router *quoterouter.Router, fx config.FXSettings) (float64, bool) {
	res := router.GetQuote(ctx, fx.FXSymbol)
	if !res.OK {
		return 0, false
	}
	return res.Data.Price, true
}

// BuildAllocation buckets valued holdings by currency/asset-class/sector
// weight.
func BuildAllocation(holdings []domain.ValuedHolding) domain.Allocation {
	alloc := domain.Allocation{
		ByCurrency:   map[string]float64{},
		ByAssetClass: map[string]float64{},
		BySector:     map[string]float64{},
	}
	for _, h := range holdings {
		alloc.ByCurrency[h.Currency] += h.Weight
		alloc.ByAssetClass[h.AssetClass] += h.Weight
		if h.Sector != "" {
			alloc.BySector[h.Sector] += h.Weight
		}
	}
	return alloc
}
