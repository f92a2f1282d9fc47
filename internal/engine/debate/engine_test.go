package debate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/data/cache"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/llm"
)

func fakeClient(name string, reply string, err error) llm.Client {
	return llm.Client{
		Name: name,
		Complete: func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
			if err != nil {
				return llm.CompletionResult{}, err
			}
			return llm.CompletionResult{RawText: reply, Provider: name}, nil
		},
		Unavailable: func() (bool, string) { return false, "" },
	}
}

func unavailableClient(name string) llm.Client {
	return llm.Client{
		Name:        name,
		Complete:    func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) { return llm.CompletionResult{}, nil },
		Unavailable: func() (bool, string) { return true, "missing_key" },
	}
}

func testContext(hash string) domain.DebateContext {
	return domain.DebateContext{Base: "USD", Window: "1d", Horizon: "3h", ContextHash: hash}
}

const planJSONHigh = `{"executive_summary":["trim FX exposure"],"trim_signals":[{"symbol":"EURUSD","evidence_ids":["abc123"],"rationale":"rate divergence"}],"sector_focus":["fx"],"scenarios_base":["base case"],"scenarios_risk":["risk case"],"score":40}`
const planJSONLow = `{"executive_summary":["hold steady"],"sector_focus":["energy"],"scenarios_base":["base case"],"scenarios_risk":["risk case"],"score":5}`

func TestRun_NoProvidersAvailableSkipsWithNoProviderMode(t *testing.T) {
	e := NewEngine([]llm.Client{unavailableClient("gemini")}, llm.Client{}, false, cache.New())
	result, err := e.Run(context.Background(), testContext("hash-none"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RefereeSkippedNoProvider, result.RefereeMode)
	assert.Equal(t, "tie", result.Winner)
}

func TestRun_SingleProviderWithoutRefereeUsesAnalystNoProviderMode(t *testing.T) {
	providers := []llm.Client{fakeClient("gemini", planJSONHigh, nil)}
	e := NewEngine(providers, llm.Client{}, false, cache.New())
	result, err := e.Run(context.Background(), testContext("hash-single"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RefereeAnalystNoProvider, result.RefereeMode)
	assert.Equal(t, "gemini", result.Winner)
	assert.InDelta(t, 40, result.Plan.Score, 1e-9)
}

func TestRun_SingleProviderWithRefereeRunsAnalystPass(t *testing.T) {
	providers := []llm.Client{fakeClient("gemini", planJSONHigh, nil)}
	referee := fakeClient("referee", planJSONLow, nil)
	e := NewEngine(providers, referee, true, cache.New())
	result, err := e.Run(context.Background(), testContext("hash-single-ref"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RefereeAnalystSingle, result.RefereeMode)
	assert.Equal(t, "gemini", result.Winner)
}

func TestRun_TwoProvidersLowDisagreementSkipsReferee(t *testing.T) {
	providers := []llm.Client{
		fakeClient("gemini", planJSONHigh, nil),
		fakeClient("openrouter", `{"executive_summary":["trim FX exposure"],"sector_focus":["fx"],"scenarios_base":["base case"],"scenarios_risk":["risk case"],"score":38}`, nil),
	}
	referee := fakeClient("referee", planJSONLow, nil)
	e := NewEngine(providers, referee, true, cache.New())
	result, err := e.Run(context.Background(), testContext("hash-low-disagree"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RefereeSkippedLowDisagree, result.RefereeMode)
	assert.Less(t, result.DisagreementScore, disagreementThreshold)
}

func TestRun_TwoProvidersHighDisagreementRunsJudge(t *testing.T) {
	providers := []llm.Client{
		fakeClient("gemini", planJSONHigh, nil),
		fakeClient("openrouter", planJSONLow, nil),
	}
	referee := fakeClient("referee", `{"winner":"gemini","disagreement_score":35,"executive_summary":["trim FX exposure"],"sector_focus":["fx"],"scenarios_base":["base case"],"scenarios_risk":["risk case"]}`, nil)
	e := NewEngine(providers, referee, true, cache.New())
	result, err := e.Run(context.Background(), testContext("hash-high-disagree"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RefereeJudge, result.RefereeMode)
	assert.Equal(t, "gemini", result.Winner)
	assert.GreaterOrEqual(t, result.DisagreementScore, disagreementThreshold)
}

func TestRun_CachesResultAcrossCalls(t *testing.T) {
	calls := 0
	providers := []llm.Client{{
		Name: "gemini",
		Complete: func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
			calls++
			return llm.CompletionResult{RawText: planJSONHigh}, nil
		},
		Unavailable: func() (bool, string) { return false, "" },
	}}
	e := NewEngine(providers, llm.Client{}, false, cache.New())
	ctx := testContext("hash-cache")

	first, err := e.Run(context.Background(), ctx, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := e.Run(context.Background(), ctx, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, calls)
}

func TestRun_ForcedRefreshWithinCooldownReplaysCache(t *testing.T) {
	calls := 0
	providers := []llm.Client{{
		Name: "gemini",
		Complete: func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
			calls++
			return llm.CompletionResult{RawText: planJSONHigh}, nil
		},
		Unavailable: func() (bool, string) { return false, "" },
	}}
	e := NewEngine(providers, llm.Client{}, false, cache.New())
	ctx := testContext("hash-force-cooldown")

	_, err := e.Run(context.Background(), ctx, false)
	require.NoError(t, err)

	forced, err := e.Run(context.Background(), ctx, true)
	require.NoError(t, err)
	assert.True(t, forced.Cached)
	assert.Equal(t, 1, calls)
}

func TestScoreDelta_UsesMinMaxSpread(t *testing.T) {
	plans := []domain.DebatePlan{{Score: 10}, {Score: -5}, {Score: 30}}
	assert.InDelta(t, 35, scoreDelta(plans), 1e-9)
}

func TestPickHigherScore_ReturnsMaxAndItsProvider(t *testing.T) {
	plans := []domain.DebatePlan{{Provider: "a", Score: 1}, {Provider: "b", Score: 9}}
	plan, winner := pickHigherScore(plans)
	assert.Equal(t, "b", winner)
	assert.Equal(t, float64(9), plan.Score)
}
