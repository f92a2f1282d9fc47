package eventstudy

import (
	"context"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
)

// ReferenceAsset names the price-bar asset symbol used as the reference
// series for each forecast target's event study.
var ReferenceAsset = map[domain.Target]string{
	domain.TargetBTC:     "BTC-USD",
	domain.TargetETH:     "ETH-USD",
	domain.TargetALTS:    "ALTS-INDEX",
	domain.TargetSTABLES: "STABLES-INDEX",
}

// BarIntervalMinutes is the native spacing of the persisted price_bars
// series the event-study/forecast engines read.
const BarIntervalMinutes = 15

// SigmaLookbackDays is the default rolling-sigma lookback.
const SigmaLookbackDays = 30

// Computer ties the event-study formulas to persisted price bars and
// upserts realized impacts.
type Computer struct {
	Bars    persistence.PriceBarRepo
	Impacts persistence.EventImpactRepo
}

// Compute computes and upserts the realized (ret, z) for one cluster against
// one target/timeframe, using the close at t0 and t0+tf_minutes plus the
// rolling sigma of non-overlapping tf-step returns.
func (c *Computer) Compute(ctx context.Context, cluster domain.EventCluster, target domain.Target, tf domain.Timeframe, now time.Time) (*domain.EventImpact, error) {
	asset, ok := ReferenceAsset[target]
	if !ok {
		return nil, nil
	}

	t0 := cluster.TsUTC
	t1 := t0.Add(time.Duration(tf.Minutes()) * time.Minute)

	barAtT0, err := c.Bars.Nearest(ctx, asset, t0)
	if err != nil || barAtT0 == nil {
		return nil, err
	}
	barAtT1, err := c.Bars.Nearest(ctx, asset, t1)
	if err != nil || barAtT1 == nil {
		return nil, err
	}
	if barAtT0.Close == 0 {
		return nil, nil
	}

	ret := (barAtT1.Close - barAtT0.Close) / barAtT0.Close

	window, err := c.Bars.Window(ctx, asset, persistence.TimeRange{From: now.AddDate(0, 0, -SigmaLookbackDays), To: now})
	if err != nil {
		return nil, err
	}
	stepBars := StepBarsForTF(tf.Minutes(), BarIntervalMinutes)
	domainWindow := make([]domain.PriceBar, len(window))
	for i, b := range window {
		domainWindow[i] = domain.PriceBar{
			Asset:  b.Asset,
			TsUTC:  b.TsUTC,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	sigma, _ := RollingSigma(domainWindow, stepBars, now, SigmaLookbackDays)

	var z *float64
	if sigma > epsilon {
		v := ret / sigma
		z = &v
	}

	retPtr := &ret
	impact := domain.EventImpact{
		ClusterID:   cluster.ClusterID,
		Target:      target,
		TF:          tf,
		RealizedRet: retPtr,
		RealizedZ:   z,
		ComputedAt:  now,
	}

	row := persistence.EventImpact{
		ClusterID:  cluster.ClusterID,
		Target:     string(target),
		TF:         string(tf),
		PostReturn: ret,
		RefPrice:   barAtT0.Close,
		ComputedAt: now,
	}
	if z != nil {
		row.ZScore = *z
	}
	if err := c.Impacts.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return &impact, nil
}

// ComputeAll runs Compute for every (target, tf) pair relevant to a cluster
// (its Targets map, intersected with the four forecastable targets).
func (c *Computer) ComputeAll(ctx context.Context, cluster domain.EventCluster, now time.Time) []domain.EventImpact {
	var out []domain.EventImpact
	relevant := map[domain.Target]bool{}
	for _, t := range cluster.Targets {
		switch domain.Target(t.Name) {
		case domain.TargetBTC, domain.TargetETH, domain.TargetALTS, domain.TargetSTABLES:
			relevant[domain.Target(t.Name)] = true
		}
	}
	for target := range relevant {
		for _, tf := range domain.AllTimeframes {
			impact, err := c.Compute(ctx, cluster, target, tf, now)
			if err == nil && impact != nil {
				out = append(out, *impact)
			}
		}
	}
	return out
}
