package debate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marketintel/analytics/data/cache"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/llm"
)

// resultTTL/cooldown are the 6-hour result cache and 10-minute
// forced-refresh cooldown; disagreementThreshold is the score-gap above
// which a judge pass is worth the extra LLM round trip.
const (
	resultTTL             = 21600 * time.Second
	cooldown              = 600 * time.Second
	disagreementThreshold = 15.0
)

// Engine runs a debate round across a fixed set of provider clients plus an
// optional referee client, caching the outcome and collapsing concurrent
// identical requests via singleflight.
type Engine struct {
	providers  []llm.Client
	referee    llm.Client
	hasReferee bool
	cache      cache.Cache
	group      singleflight.Group
}

// NewEngine wires a debate Engine to its provider pool, optional referee, and
// the shared TTL/cooldown cache.
func NewEngine(providers []llm.Client, referee llm.Client, hasReferee bool, c cache.Cache) *Engine {
	return &Engine{providers: providers, referee: referee, hasReferee: hasReferee, cache: c}
}

// Run executes (or replays) a debate round for the given context. A fresh
// round runs when no cached result exists, or when force is set and the
// context hash is not within its cooldown window; otherwise the last cached
// result is returned with Cached=true.
func (e *Engine) Run(ctx context.Context, debateCtx domain.DebateContext, force bool) (domain.DebateResult, error) {
	resultKey := "debate:result:" + debateCtx.ContextHash
	cooldownKey := "debate:cooldown:" + debateCtx.ContextHash

	if !force {
		if cached, ok := e.loadCached(resultKey); ok {
			cached.Cached = true
			return cached, nil
		}
	} else if _, onCooldown := e.cache.Get(cooldownKey); onCooldown {
		if cached, ok := e.loadCached(resultKey); ok {
			cached.Cached = true
			return cached, nil
		}
	}

	v, err, _ := e.group.Do(debateCtx.ContextHash, func() (interface{}, error) {
		result := e.runRound(ctx, debateCtx)
		e.store(resultKey, result)
		e.cache.Set(cooldownKey, []byte("1"), cooldown)
		return result, nil
	})
	if err != nil {
		return domain.DebateResult{}, err
	}
	return v.(domain.DebateResult), nil
}

func (e *Engine) runRound(ctx context.Context, debateCtx domain.DebateContext) domain.DebateResult {
	plans := e.collectPlans(ctx, debateCtx)
	okPlans := filterOK(plans)

	result := domain.DebateResult{
		ContextHash:  debateCtx.ContextHash,
		ProviderMeta: plans,
		ComputedAt:   time.Now().UTC(),
	}

	switch len(okPlans) {
	case 0:
		result.RefereeMode = domain.RefereeSkippedNoProvider
		result.Winner = "tie"
	case 1:
		result.Plan = okPlans[0]
		result.Winner = okPlans[0].Provider
		if e.hasReferee {
			result.RefereeMode = domain.RefereeAnalystSingle
			if refined, err := e.runRefereeAnalyst(ctx, debateCtx, okPlans[0]); err == nil {
				result.Plan = refined
			}
		} else {
			result.RefereeMode = domain.RefereeAnalystNoProvider
		}
	default:
		result.DisagreementScore = scoreDelta(okPlans)
		if result.DisagreementScore < disagreementThreshold || !e.hasReferee {
			result.RefereeMode = domain.RefereeSkippedLowDisagree
			result.Plan, result.Winner = pickHigherScore(okPlans)
		} else {
			result.RefereeMode = domain.RefereeJudge
			if refined, winner, err := e.runRefereeJudge(ctx, debateCtx, okPlans); err == nil {
				result.Plan = refined
				result.Winner = winner
			} else {
				result.Plan, result.Winner = pickHigherScore(okPlans)
			}
		}
	}
	return result
}

func (e *Engine) collectPlans(ctx context.Context, debateCtx domain.DebateContext) []domain.DebatePlan {
	plans := make([]domain.DebatePlan, len(e.providers))
	var wg sync.WaitGroup
	for i, p := range e.providers {
		wg.Add(1)
		go func(i int, p llm.Client) {
			defer wg.Done()
			plans[i] = e.callProvider(ctx, p, debateCtx)
		}(i, p)
	}
	wg.Wait()
	return plans
}

func (e *Engine) callProvider(ctx context.Context, p llm.Client, debateCtx domain.DebateContext) domain.DebatePlan {
	if down, why := p.Unavailable(); down {
		return domain.DebatePlan{Provider: p.Name, Status: "skipped", Reason: why}
	}
	start := time.Now()
	res, err := p.Complete(ctx, llm.CompletionRequest{
		SystemInstruction: planSystemInstruction(debateCtx),
		Prompt:            planUserPrompt(debateCtx),
		MaxTokens:         800,
		Temperature:       0.2,
	})
	if err != nil {
		return domain.DebatePlan{Provider: p.Name, Status: "fail", Reason: err.Error()}
	}
	data, err := llm.ExtractJSON(res.RawText)
	if err != nil {
		return domain.DebatePlan{Provider: p.Name, Status: "fail", Reason: err.Error()}
	}
	if problems := llm.ValidateSchema(data, planSchema); len(problems) > 0 {
		data = llm.CoerceSchema(data, planDefaults)
	}
	return decodePlan(p.Name, data, time.Since(start).Milliseconds())
}

func (e *Engine) runRefereeAnalyst(ctx context.Context, debateCtx domain.DebateContext, plan domain.DebatePlan) (domain.DebatePlan, error) {
	start := time.Now()
	system, user := refereeAnalystPrompt(debateCtx, plan)
	res, err := e.referee.Complete(ctx, llm.CompletionRequest{SystemInstruction: system, Prompt: user, MaxTokens: 600, Temperature: 0.1})
	if err != nil {
		return domain.DebatePlan{}, err
	}
	data, err := llm.ExtractJSON(res.RawText)
	if err != nil {
		return domain.DebatePlan{}, err
	}
	if problems := llm.ValidateSchema(data, refereeAnalystSchema); len(problems) > 0 {
		data = llm.CoerceSchema(data, planDefaults)
	}
	refined := decodePlan(plan.Provider, data, time.Since(start).Milliseconds())
	refined.Score = plan.Score
	return refined, nil
}

func (e *Engine) runRefereeJudge(ctx context.Context, debateCtx domain.DebateContext, plans []domain.DebatePlan) (domain.DebatePlan, string, error) {
	system, user := refereeJudgePrompt(debateCtx, plans)
	res, err := e.referee.Complete(ctx, llm.CompletionRequest{SystemInstruction: system, Prompt: user, MaxTokens: 800, Temperature: 0.1})
	if err != nil {
		return domain.DebatePlan{}, "", err
	}
	data, err := llm.ExtractJSON(res.RawText)
	if err != nil {
		return domain.DebatePlan{}, "", err
	}
	if problems := llm.ValidateSchema(data, refereeJudgeSchema); len(problems) > 0 {
		data = llm.CoerceSchema(data, planDefaults)
	}
	winner := "tie"
	if w, ok := data["winner"].(string); ok && w != "" {
		winner = w
	}
	plan := decodePlan("referee", data, 0)
	return plan, winner, nil
}

func filterOK(plans []domain.DebatePlan) []domain.DebatePlan {
	out := make([]domain.DebatePlan, 0, len(plans))
	for _, p := range plans {
		if p.Status == "ok" {
			out = append(out, p)
		}
	}
	return out
}

func scoreDelta(plans []domain.DebatePlan) float64 {
	if len(plans) == 0 {
		return 0
	}
	lo, hi := plans[0].Score, plans[0].Score
	for _, p := range plans[1:] {
		if p.Score < lo {
			lo = p.Score
		}
		if p.Score > hi {
			hi = p.Score
		}
	}
	return hi - lo
}

func pickHigherScore(plans []domain.DebatePlan) (domain.DebatePlan, string) {
	best := plans[0]
	for _, p := range plans[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, best.Provider
}
