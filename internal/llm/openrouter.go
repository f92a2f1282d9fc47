package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/marketintel/analytics/data/cache"
)

const openRouterUnavailableTTL = 10 * time.Minute

// OpenRouterConfig configures the OpenRouter backend with an ordered list of
// candidate models per role, mirroring _call_openrouter_model's iteration
// over a primary/secondary free-model list until one responds.
type OpenRouterConfig struct {
	APIKey           string
	CandidateModels  []string // tried in order until one succeeds
	BaseURL          string   // default "https://openrouter.ai/api/v1"
	FreeModelRPM     int      // local rate gate for free-tier models, 0 disables
	FreeModelDailyCap int     // local daily budget for free-tier models, 0 disables
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model          string               `json:"model"`
	Messages       []openRouterMessage  `json:"messages"`
	Temperature    float64              `json:"temperature"`
	MaxTokens      int                  `json:"max_tokens"`
	ResponseFormat *openRouterRespFormat `json:"response_format,omitempty"`
}

type openRouterRespFormat struct {
	Type string `json:"type"`
}

type openRouterResponse struct {
	Choices []struct {
		Message openRouterMessage `json:"message"`
	} `json:"choices"`
}

// localBudget is the in-process RPM + daily-count gate _call_openrouter_model
// applies to free-tier models before spending a network call, keyed by model
// name since each candidate has its own limit.
type localBudget struct {
	mu        sync.Mutex
	rpm       int
	dailyCap  int
	window    time.Time
	count     int
	dayStart  time.Time
	dayCount  int
}

func (b *localBudget) allow(now time.Time) bool {
	if b.rpm <= 0 && b.dailyCap <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Sub(b.window) > time.Minute {
		b.window = now
		b.count = 0
	}
	if now.Sub(b.dayStart) > 24*time.Hour {
		b.dayStart = now
		b.dayCount = 0
	}
	if b.rpm > 0 && b.count >= b.rpm {
		return false
	}
	if b.dailyCap > 0 && b.dayCount >= b.dailyCap {
		return false
	}
	b.count++
	b.dayCount++
	return true
}

// NewOpenRouterClient builds a Client that tries each candidate model in
// order, applying a local RPM/daily budget gate per model and an
// unavailability TTL cache once every candidate has failed, matching
// call_openrouter's free-model fallback chain.
func NewOpenRouterClient(cfg OpenRouterConfig, httpClient *http.Client, unavailCache cache.Cache) Client {
	return newOpenRouterClient("openrouter", cfg, httpClient, unavailCache, systemInstructionForPlan)
}

func newOpenRouterClient(name string, cfg OpenRouterConfig, httpClient *http.Client, unavailCache cache.Cache, wrapSystem func(string) string) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	budgets := make(map[string]*localBudget, len(cfg.CandidateModels))
	for _, m := range cfg.CandidateModels {
		budgets[m] = &localBudget{rpm: cfg.FreeModelRPM, dailyCap: cfg.FreeModelDailyCap}
	}
	unavailKeyPrefix := "llm:" + name + ":unavailable:"

	callModel := func(ctx context.Context, model string, req CompletionRequest) (CompletionResult, error) {
		sys := req.SystemInstruction
		if wrapSystem != nil {
			sys = wrapSystem(sys)
		}
		msgs := []openRouterMessage{}
		if sys != "" {
			msgs = append(msgs, openRouterMessage{Role: "system", Content: sys})
		}
		msgs = append(msgs, openRouterMessage{Role: "user", Content: req.Prompt})

		body := openRouterRequest{
			Model:          model,
			Messages:       msgs,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			ResponseFormat: &openRouterRespFormat{Type: "json_object"},
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return CompletionResult{}, fmt.Errorf("%s: marshal request: %w", name, err)
		}

		start := time.Now()
		var lastErr error
		for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
			if err != nil {
				return CompletionResult{}, err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

			resp, err := httpClient.Do(httpReq)
			if err != nil {
				lastErr = err
				if attempt < len(backoffSchedule) {
					sleep(ctx, backoffSchedule[attempt])
					continue
				}
				return CompletionResult{}, fmt.Errorf("%s: request failed: %w", name, err)
			}
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if retryableStatus(resp.StatusCode) && attempt < len(backoffSchedule) {
				lastErr = fmt.Errorf("%s: http %d", name, resp.StatusCode)
				sleep(ctx, backoffSchedule[attempt])
				continue
			}
			if resp.StatusCode != http.StatusOK {
				return CompletionResult{}, fmt.Errorf("%s: http %d: %s", name, resp.StatusCode, string(respBody))
			}

			var decoded openRouterResponse
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				return CompletionResult{}, fmt.Errorf("%s: decode response: %w", name, err)
			}
			if len(decoded.Choices) == 0 {
				return CompletionResult{}, fmt.Errorf("%s: empty choice list", name)
			}
			return CompletionResult{
				RawText:   decoded.Choices[0].Message.Content,
				Provider:  name,
				Model:     model,
				LatencyMS: time.Since(start).Milliseconds(),
			}, nil
		}
		return CompletionResult{}, lastErr
	}

	return Client{
		Name: name,
		Unavailable: func() (bool, string) {
			if cfg.APIKey == "" {
				return true, "missing_key"
			}
			if len(cfg.CandidateModels) == 0 {
				return true, "no_candidate_models"
			}
			for _, m := range cfg.CandidateModels {
				if _, ok := unavailCache.Get(unavailKeyPrefix + m); !ok {
					return false, ""
				}
			}
			return true, "all_candidates_unavailable"
		},
		Complete: func(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
			if cfg.APIKey == "" {
				return CompletionResult{}, fmt.Errorf("%s: missing API key", name)
			}
			now := time.Now()
			var lastErr error
			for _, model := range cfg.CandidateModels {
				if v, ok := unavailCache.Get(unavailKeyPrefix + model); ok {
					lastErr = fmt.Errorf("%s: model %s unavailable: %s", name, model, string(v))
					continue
				}
				if !budgets[model].allow(now) {
					lastErr = fmt.Errorf("%s: model %s local budget exhausted", name, model)
					continue
				}
				res, err := callModel(ctx, model, req)
				if err == nil {
					return res, nil
				}
				lastErr = err
				unavailCache.Set(unavailKeyPrefix+model, []byte("call_failed:"+err.Error()), openRouterUnavailableTTL)
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("%s: no candidate models configured", name)
			}
			return CompletionResult{}, lastErr
		},
	}
}

func systemInstructionForPlan(extra string) string {
	base := "Respond with a single JSON object only. Do not include markdown fences or commentary outside the JSON."
	if extra == "" {
		return base
	}
	return extra + "\n\n" + base
}

// NewOpenRouterRefereeClient builds a Client used only for the referee pass.
// RefereePrompt/AnalystRefereePrompt construct the SystemInstruction text the
// referee call sends; this constructor differs from NewOpenRouterClient in
// its unavailability cache namespace and in sending SystemInstruction as
// given, without the JSON-only instruction NewOpenRouterClient appends.
func NewOpenRouterRefereeClient(cfg OpenRouterConfig, httpClient *http.Client, unavailCache cache.Cache) Client {
	return newOpenRouterClient("openrouter_referee", cfg, httpClient, unavailCache, nil)
}
