package portfolio

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
)

const (
	historyLookbackDays = 190 // ~6 months of daily closes
	minHistoryBars       = 10
	minReturnSamples     = 5
	volWindow            = 30
	varConfidenceZ       = 1.65 // one-sided 95% normal quantile
)

// dailyCloses resamples intraday bars down to one close per UTC calendar
// day (the last bar of each day), standing in for a daily-interval chart
// provider.
func dailyCloses(bars []persistence.PriceBar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TsUTC.Before(bars[j].TsUTC) })
	var out []float64
	var curDay string
	var lastClose float64
	for _, b := range bars {
		day := b.TsUTC.Format("2006-01-02")
		if day != curDay && curDay != "" {
			out = append(out, lastClose)
		}
		curDay = day
		lastClose = b.Close
	}
	out = append(out, lastClose)
	return out
}

func dailyReturns(closes []float64) []float64 {
	var rets []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
	}
	return rets
}

func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func retFromCloses(closes []float64, daysBack int) *float64 {
	if len(closes) <= daysBack {
		return nil
	}
	last := closes[len(closes)-1]
	prev := closes[len(closes)-1-daysBack]
	if prev == 0 {
		return nil
	}
	v := (last - prev) / prev
	return &v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyHistory fetches each holding's daily-close history from the bar
// store and fills in Vol30d/Ret*/MomZ* in place, returning the symbols
// whose history was too short to use.
func ApplyHistory(ctx context.Context, bars persistence.PriceBarRepo, holdings []domain.ValuedHolding, now time.Time) []string {
	var missing []string
	from := now.AddDate(0, 0, -historyLookbackDays)
	eps := 1e-9

	for i := range holdings {
		h := &holdings[i]
		rows, err := bars.Window(ctx, h.YahooSymbol, persistence.TimeRange{From: from, To: now})
		if err != nil {
			missing = append(missing, h.Symbol)
			continue
		}
		closes := dailyCloses(rows)
		if len(closes) < minHistoryBars {
			missing = append(missing, h.Symbol)
			continue
		}
		rets := dailyReturns(closes)
		if len(rets) < minReturnSamples {
			missing = append(missing, h.Symbol)
			continue
		}
		window := rets
		if len(rets) > volWindow {
			window = rets[len(rets)-volWindow:]
		}
		vol := stdev(window)
		h.Vol30d = vol
		h.Ret1d = retFromCloses(closes, 1)
		h.Ret7d = retFromCloses(closes, 7)
		h.Ret30d = retFromCloses(closes, 30)
		if h.Ret7d != nil {
			z := clampF(*h.Ret7d/(math.Max(vol, eps)*math.Sqrt(7)), -3, 3)
			h.MomZ7d = &z
		}
		if h.Ret30d != nil {
			z := clampF(*h.Ret30d/(math.Max(vol, eps)*math.Sqrt(30)), -3, 3)
			h.MomZ30d = &z
		}
	}
	return missing
}

// ComputeRiskMetrics aggregates concentration (HHI/max weight), weighted
// volatility/VaR, weighted momentum and FX exposure from the valued
// holdings.
func ComputeRiskMetrics(holdings []domain.ValuedHolding, alloc domain.Allocation, missing []string, fxThreshold float64) domain.RiskMetrics {
	hhi := 0.0
	maxWeight := 0.0
	weightSum := 0.0
	weightedVol := 0.0
	var volsOnly []float64
	weightedMom7, weightedMom30 := 0.0, 0.0

	for _, h := range holdings {
		hhi += h.Weight * h.Weight
		if h.Weight > maxWeight {
			maxWeight = h.Weight
		}
		weightSum += h.Weight
		weightedVol += h.Weight * h.Vol30d
		if h.Vol30d != 0 {
			volsOnly = append(volsOnly, h.Vol30d)
		}
		if h.MomZ7d != nil {
			weightedMom7 += h.Weight * (*h.MomZ7d)
		}
		if h.MomZ30d != nil {
			weightedMom30 += h.Weight * (*h.MomZ30d)
		}
	}

	portVol := 0.0
	if weightSum > 0 {
		portVol = weightedVol / weightSum
	} else if len(volsOnly) > 0 {
		sum := 0.0
		for _, v := range volsOnly {
			sum += v
		}
		portVol = sum / float64(len(volsOnly))
	}

	dataStatus := domain.DataOK
	if len(missing) > 0 {
		dataStatus = domain.DataStatus("partial")
	}
	if weightSum == 0 {
		dataStatus = domain.DataMissing
	}

	usdExposure := alloc.ByCurrency["USD"]
	var flags []string
	if usdExposure >= fxThreshold {
		flags = append(flags, "FX_RISK_UP")
	}

	return domain.RiskMetrics{
		HHI:             hhi,
		MaxWeight:       maxWeight,
		Vol30d:          portVol,
		VaR95_1d:        varConfidenceZ * portVol,
		USDExposure:     usdExposure,
		Flags:           flags,
		MomZWeighted7d:  weightedMom7,
		MomZWeighted30d: weightedMom30,
		DataStatus:      dataStatus,
	}
}
