package debate

import (
	"fmt"
	"strings"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/llm"
)

// planSchema is the structured-output contract every provider's plan call
// must satisfy.
var planSchema = llm.Schema{Fields: map[string]string{
	"executive_summary": "array",
	"trim_signals":      "array",
	"sector_focus":       "array",
	"scenarios_base":    "array",
	"scenarios_risk":    "array",
	"score":             "number",
}}

var planDefaults = map[string]interface{}{
	"executive_summary": []interface{}{},
	"trim_signals":      []interface{}{},
	"sector_focus":       []interface{}{},
	"scenarios_base":    []interface{}{},
	"scenarios_risk":    []interface{}{},
	"score":             0.0,
}

// refereeJudgeSchema is the contract for a judge-mode referee call that
// arbitrates between two disagreeing provider plans.
var refereeJudgeSchema = llm.Schema{Fields: map[string]string{
	"winner":             "string",
	"disagreement_score": "number",
	"executive_summary":  "array",
	"trim_signals":       "array",
	"sector_focus":        "array",
	"scenarios_base":     "array",
	"scenarios_risk":     "array",
}}

// refereeAnalystSchema is the contract for an analyst-mode referee call that
// narrates a single provider's plan without arbitration.
var refereeAnalystSchema = llm.Schema{Fields: map[string]string{
	"executive_summary": "array",
	"trim_signals":      "array",
	"sector_focus":       "array",
	"scenarios_base":    "array",
	"scenarios_risk":    "array",
}}

// planSystemInstruction builds the role framing and schema description sent
// as SystemInstruction, trimmed to what a structured-output caller needs to
// know.
func planSystemInstruction(ctx domain.DebateContext) string {
	var b strings.Builder
	b.WriteString("You are a portfolio risk debate participant. ")
	b.WriteString(fmt.Sprintf("Base currency %s, window %s, horizon %s. ", ctx.Base, ctx.Window, ctx.Horizon))
	b.WriteString("Respond with JSON fields: executive_summary (<=5 strings), ")
	b.WriteString("trim_signals (<=3 objects with symbol, evidence_ids, rationale), ")
	b.WriteString("sector_focus (<=3 strings), scenarios_base (<=3 strings), ")
	b.WriteString("scenarios_risk (<=3 strings), score (-100..100 directional conviction).")
	return b.String()
}

func planUserPrompt(ctx domain.DebateContext) string {
	var b strings.Builder
	b.WriteString("Portfolio news summary: " + ctx.PortfolioNewsSummary + "\n")
	b.WriteString("Global news summary: " + ctx.GlobalNewsSummary + "\n")
	b.WriteString(fmt.Sprintf("Optimizer currently holding: %v\n", ctx.OptimizerHold))
	b.WriteString("Top holdings:\n")
	for _, h := range ctx.TopHoldings {
		b.WriteString(fmt.Sprintf("  %s weight=%.3f class=%s\n", h.Symbol, h.Weight, h.AssetClass))
	}
	b.WriteString("Evidence index:\n")
	for _, e := range ctx.EvidenceIndex {
		b.WriteString(fmt.Sprintf("  [%s] %s (dir=%.2f)\n", e.ID, e.Summary, e.Direction))
	}
	return b.String()
}

// refereeJudgePrompt builds the judge-mode prompt, asking the referee to
// arbitrate between two disagreeing plans, following call_openrouter_referee's
// judge-mode prompt template.
func refereeJudgePrompt(ctx domain.DebateContext, plans []domain.DebatePlan) (system, user string) {
	system = "You are the referee reconciling two portfolio debate plans that disagree. " +
		"Respond with JSON fields: winner (provider name or \"tie\"), disagreement_score (0..100), " +
		"executive_summary, trim_signals, sector_focus, scenarios_base, scenarios_risk."
	var b strings.Builder
	for _, p := range plans {
		b.WriteString(fmt.Sprintf("Provider %s (score=%.1f): %v\n", p.Provider, p.Score, p.ExecutiveSummary))
	}
	user = b.String()
	return system, user
}

// refereeAnalystPrompt builds the analyst-mode prompt used when only one
// provider produced a usable plan: the referee narrates/endorses it rather
// than arbitrating, following call_openrouter_referee's analyst-mode prompt.
func refereeAnalystPrompt(ctx domain.DebateContext, plan domain.DebatePlan) (system, user string) {
	system = "You are an analyst reviewing a single portfolio debate plan with no second " +
		"opinion available. Respond with JSON fields: executive_summary, trim_signals, " +
		"sector_focus, scenarios_base, scenarios_risk."
	user = fmt.Sprintf("Provider %s plan (score=%.1f): %v\n", plan.Provider, plan.Score, plan.ExecutiveSummary)
	return system, user
}
