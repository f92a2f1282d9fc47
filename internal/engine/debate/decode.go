package debate

import "github.com/marketintel/analytics/internal/domain"

func stringSlice(v interface{}, limit int) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func trimSignals(v interface{}, limit int) []domain.TrimSignal {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]domain.TrimSignal, 0, len(arr))
	for _, e := range arr {
		obj, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		sig := domain.TrimSignal{}
		if s, ok := obj["symbol"].(string); ok {
			sig.Symbol = s
		}
		if r, ok := obj["rationale"].(string); ok {
			sig.Rationale = r
		}
		sig.EvidenceIDs = stringSlice(obj["evidence_ids"], 3)
		out = append(out, sig)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func floatField(data map[string]interface{}, key string) float64 {
	if v, ok := data[key].(float64); ok {
		return v
	}
	return 0
}

// decodePlan builds a domain.DebatePlan from a provider's validated/coerced
// JSON response.
func decodePlan(provider string, data map[string]interface{}, latencyMS int64) domain.DebatePlan {
	return domain.DebatePlan{
		Provider:         provider,
		ExecutiveSummary: stringSlice(data["executive_summary"], 5),
		TrimSignals:      trimSignals(data["trim_signals"], 3),
		SectorFocus:      stringSlice(data["sector_focus"], 3),
		ScenarioBase:     stringSlice(data["scenarios_base"], 3),
		ScenarioRisk:     stringSlice(data["scenarios_risk"], 3),
		Score:            floatField(data, "score"),
		LatencyMS:        latencyMS,
		Status:           "ok",
	}
}
