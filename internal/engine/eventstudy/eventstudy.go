// Package eventstudy computes pre/post return windows, z-scores and volume
// anomalies around a news event's timestamp using price bars.
package eventstudy

import (
	"math"
	"sort"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

const epsilon = 1e-9

// WindowSpec names one pre/post window studied around an event, by how many
// bars (at the series' native interval) fall before/after the aligned index.
type WindowSpec struct {
	Label       string // e.g. "15m", "30m", "1h"
	OffsetBars  int
}

// DefaultWindows are the pre/post study windows for an intraday bar
// series.
var DefaultWindows = []WindowSpec{
	{Label: "15m", OffsetBars: 1},
	{Label: "30m", OffsetBars: 2},
	{Label: "1h", OffsetBars: 4},
}

// WindowStat is one computed pre or post window's return/volume stats.
type WindowStat struct {
	Ret            float64
	VolumeChangePct float64
	Available      bool
}

// StudyResult bundles every window's pre/post stats plus the z-score of the
// post return against the rolling sigma, and notes which windows were
// unavailable.
type StudyResult struct {
	AlignedIndex  int
	Pre           map[string]WindowStat
	Post          map[string]WindowStat
	PostZ         map[string]float64
	MissingFields []string
}

// AlignIndex finds the index of the bar at or immediately before eventTs;
// bars must be sorted ascending by TsUTC. Returns -1 if eventTs precedes
// every bar.
func AlignIndex(bars []domain.PriceBar, eventTs time.Time) int {
	idx := sort.Search(len(bars), func(i int) bool { return bars[i].TsUTC.After(eventTs) }) - 1
	if idx < 0 || idx >= len(bars) {
		return -1
	}
	return idx
}

// windowReturn computes the simple return between two bar closes, reporting
// unavailability when an endpoint index is out of range; this is what
// makes the "event at index 0" boundary behavior explicit rather than a
// silent zero.
func windowReturn(bars []domain.PriceBar, from, to int) (WindowStat, bool) {
	if from < 0 || to < 0 || from >= len(bars) || to >= len(bars) {
		return WindowStat{}, false
	}
	base := bars[from].Close
	if base == 0 {
		return WindowStat{}, false
	}
	ret := (bars[to].Close - bars[from].Close) / base * 100
	volBase := bars[from].Volume
	volChg := 0.0
	if volBase > 0 {
		volChg = (bars[to].Volume - volBase) / volBase * 100
	}
	return WindowStat{Ret: ret, VolumeChangePct: volChg, Available: true}, true
}

// Study computes every configured window's pre/post return around eventTs.
// An event at index 0 (no bars before it) yields pre.ret = 0 and the window
// is flagged unavailable rather than silently computed.
func Study(bars []domain.PriceBar, eventTs time.Time, windows []WindowSpec, sigmas map[string]float64) StudyResult {
	res := StudyResult{
		AlignedIndex: AlignIndex(bars, eventTs),
		Pre:          map[string]WindowStat{},
		Post:         map[string]WindowStat{},
		PostZ:        map[string]float64{},
	}
	idx := res.AlignedIndex
	if idx < 0 {
		res.MissingFields = append(res.MissingFields, "aligned_index")
		return res
	}

	for _, w := range windows {
		pre, preOK := windowReturn(bars, idx-w.OffsetBars, idx)
		if !preOK {
			// Insufficient pre-history (event at index 0): pre.ret defaults
			// to 0 and the window is recorded missing.
			pre = WindowStat{Ret: 0, Available: false}
			res.MissingFields = append(res.MissingFields, "pre."+w.Label)
		}
		res.Pre[w.Label] = pre

		post, postOK := windowReturn(bars, idx, idx+w.OffsetBars)
		if !postOK {
			res.MissingFields = append(res.MissingFields, "post."+w.Label)
		}
		res.Post[w.Label] = post

		sigma := sigmas[w.Label]
		if postOK && sigma > epsilon {
			res.PostZ[w.Label] = post.Ret / sigma
		}
	}
	return res
}

// PrePostRatio is `(post_avg + eps) / (pre_avg + eps)`. When pre_avg == 0
// the ratio collapses toward 1.0 for near-zero post_avg; the division is
// deliberately not special-cased, and a regression test pins the behavior.
func PrePostRatio(preAvg, postAvg float64) float64 {
	return (postAvg + epsilon) / (preAvg + epsilon)
}

// NonOverlappingReturns buckets a bar series into non-overlapping steps of
// `stepBars` bars and returns the simple return of each step, the input to
// RollingSigma.
func NonOverlappingReturns(bars []domain.PriceBar, stepBars int) []float64 {
	if stepBars <= 0 {
		return nil
	}
	var out []float64
	for i := stepBars; i < len(bars); i += stepBars {
		base := bars[i-stepBars].Close
		if base == 0 {
			continue
		}
		out = append(out, (bars[i].Close-base)/base)
	}
	return out
}

// RollingSigma computes the standard deviation of non-overlapping tf-step
// returns over the last lookbackDays, requiring at least 20 samples and
// falling back to a 7-day window otherwise.
func RollingSigma(bars []domain.PriceBar, stepBars int, now time.Time, lookbackDays int) (float64, int) {
	cutoff := now.AddDate(0, 0, -lookbackDays)
	var windowed []domain.PriceBar
	for _, b := range bars {
		if !b.TsUTC.Before(cutoff) {
			windowed = append(windowed, b)
		}
	}
	rets := NonOverlappingReturns(windowed, stepBars)
	if len(rets) < 20 && lookbackDays != 7 {
		return RollingSigma(bars, stepBars, now, 7)
	}
	if len(rets) < 2 {
		return 0, len(rets)
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)
	return math.Sqrt(variance), len(rets)
}

// StepBarsForTF converts a forecast timeframe's minutes into the number of
// native bars it spans, assuming a barIntervalMinutes-spaced series.
func StepBarsForTF(tfMinutes, barIntervalMinutes int) int {
	if barIntervalMinutes <= 0 {
		return 1
	}
	n := tfMinutes / barIntervalMinutes
	if n < 1 {
		n = 1
	}
	return n
}
