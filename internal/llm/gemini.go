package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketintel/analytics/data/cache"
)

const geminiUnavailableTTL = 10 * time.Minute

// GeminiConfig configures the Gemini backend: a primary model plus a fallback
// used whenever the primary call fails (after both retries for 429/503 and
// network errors, at once for any other non-200 status), matching
// call_gemini's two-model ladder.
type GeminiConfig struct {
	APIKey        string
	PrimaryModel  string // e.g. "gemini-1.5-flash"
	FallbackModel string // e.g. "gemini-1.5-flash-8b"
	BaseURL       string // default "https://generativelanguage.googleapis.com/v1beta"
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient builds a Client that calls Google's Gemini API, retrying
// the primary model on 429/503 per backoffSchedule before falling back to
// FallbackModel, and caching an unavailability flag when both models are
// exhausted so subsequent debate rounds skip the provider until the TTL
// expires.
func NewGeminiClient(cfg GeminiConfig, httpClient *http.Client, unavailCache cache.Cache) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	unavailKey := "llm:gemini:unavailable"

	call := func(ctx context.Context, model string, req CompletionRequest) (CompletionResult, error) {
		body := geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
			GenerationConfig: geminiGenConfig{
				Temperature:      req.Temperature,
				MaxOutputTokens:  req.MaxTokens,
				ResponseMimeType: "application/json",
			},
		}
		if req.SystemInstruction != "" {
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return CompletionResult{}, fmt.Errorf("gemini: marshal request: %w", err)
		}

		url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", cfg.BaseURL, model, cfg.APIKey)
		start := time.Now()
		var lastErr error
		for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return CompletionResult{}, err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := httpClient.Do(httpReq)
			if err != nil {
				lastErr = err
				if attempt < len(backoffSchedule) {
					sleep(ctx, backoffSchedule[attempt])
					continue
				}
				return CompletionResult{}, fmt.Errorf("gemini: request failed: %w", err)
			}

			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if retryableStatus(resp.StatusCode) && attempt < len(backoffSchedule) {
				lastErr = fmt.Errorf("gemini: http %d", resp.StatusCode)
				sleep(ctx, backoffSchedule[attempt])
				continue
			}
			if resp.StatusCode != http.StatusOK {
				return CompletionResult{}, fmt.Errorf("gemini: http %d: %s", resp.StatusCode, string(respBody))
			}

			var decoded geminiResponse
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				return CompletionResult{}, fmt.Errorf("gemini: decode response: %w", err)
			}
			if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
				return CompletionResult{}, fmt.Errorf("gemini: empty candidate list")
			}
			return CompletionResult{
				RawText:   decoded.Candidates[0].Content.Parts[0].Text,
				Provider:  "gemini",
				Model:     model,
				LatencyMS: time.Since(start).Milliseconds(),
			}, nil
		}
		return CompletionResult{}, lastErr
	}

	return Client{
		Name: "gemini",
		Unavailable: func() (bool, string) {
			if cfg.APIKey == "" {
				return true, "missing_key"
			}
			if v, ok := unavailCache.Get(unavailKey); ok {
				return true, string(v)
			}
			return false, ""
		},
		Complete: func(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
			if cfg.APIKey == "" {
				return CompletionResult{}, fmt.Errorf("gemini: missing API key")
			}
			res, err := call(ctx, cfg.PrimaryModel, req)
			if err == nil {
				return res, nil
			}
			if cfg.FallbackModel == "" {
				unavailCache.Set(unavailKey, []byte("primary_and_no_fallback_failed"), geminiUnavailableTTL)
				return CompletionResult{}, err
			}
			res, fallbackErr := call(ctx, cfg.FallbackModel, req)
			if fallbackErr != nil {
				unavailCache.Set(unavailKey, []byte("primary_and_fallback_failed"), geminiUnavailableTTL)
				return CompletionResult{}, fallbackErr
			}
			return res, nil
		},
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
