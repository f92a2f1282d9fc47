package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

// ImpactOverride carries a realized event-study outcome (eventstudy/impact.go)
// that, when present, replaces a cluster's raw impact score for news-signal
// weighting purposes.
type ImpactOverride struct {
	RealizedRet *float64
	RealizedZ   *float64
}

func decay(ageHours, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		return 1.0
	}
	return math.Pow(0.5, ageHours/halfLifeHours)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// AggregateNewsSignal folds every still-active cluster's (age under three
// half-lives) weighted, decayed, context-scaled contribution into a single
// [-1,1] news-signal
// score, keeping the top-3 |contribution| clusters for explainability
//.
func AggregateNewsSignal(
	clusters []domain.EventCluster,
	target domain.Target,
	halfLifeHours float64,
	neutralWeight float64,
	macroRiskOff bool,
	overrides map[string]ImpactOverride,
	now time.Time,
) (float64, []domain.ClusterContribution) {
	type scored struct {
		abs         float64
		contrib     domain.ClusterContribution
	}
	var total float64
	var all []scored

	for _, c := range clusters {
		relevance := 0.0
		if len(c.Targets) == 0 {
			relevance = 0.4
		} else {
			for _, t := range c.Targets {
				if t.Name == string(target) && t.Relevance > relevance {
					relevance = t.Relevance
				}
			}
		}
		if relevance == 0 {
			continue
		}

		impactNorm := c.Impact / 100.0
		if ov, ok := overrides[c.ClusterID]; ok {
			if ov.RealizedZ != nil {
				impactNorm = math.Min(1.0, math.Abs(*ov.RealizedZ)/3.0)
			} else if ov.RealizedRet != nil {
				impactNorm = math.Min(1.0, math.Abs(*ov.RealizedRet)/5.0)
			}
		}

		credWeight := 0.5 + 0.5*clamp(c.Credibility, 0, 1)
		ageHours := now.Sub(c.TsUTC).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		if halfLifeHours > 0 && ageHours >= 3*halfLifeHours {
			continue
		}
		decayed := impactNorm * decay(ageHours, halfLifeHours) * credWeight
		context := ContextMultiplier(macroRiskOff, int(c.Direction))
		base := decayed * relevance * context

		dirSign := int(c.Direction)
		if ov, ok := overrides[c.ClusterID]; ok && ov.RealizedRet != nil {
			dirSign = sign(*ov.RealizedRet)
		}
		neutral := dirSign == 0

		var contrib float64
		if neutral {
			contrib = base * neutralWeight
		} else {
			contrib = base * float64(dirSign)
		}
		total += contrib

		all = append(all, scored{
			abs: math.Abs(contrib),
			contrib: domain.ClusterContribution{
				ClusterID:    c.ClusterID,
				Headline:     c.Headline,
				AgeHours:     ageHours,
				Impact:       c.Impact,
				Contribution: contrib,
			},
		})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].abs > all[j].abs })
	top := make([]domain.ClusterContribution, 0, 3)
	for i := 0; i < len(all) && i < 3; i++ {
		top = append(top, all[i].contrib)
	}

	return clamp11(total), top
}
