package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketintel/analytics/data/cache"
)

func TestNewGeminiClient_MissingKeyIsUnavailable(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{PrimaryModel: "gemini-1.5-flash"}, nil, cache.New())
	down, why := c.Unavailable()
	if !down || why != "missing_key" {
		t.Fatalf("expected missing_key unavailability, got down=%v why=%q", down, why)
	}
}

func TestNewGeminiClient_FallsBackOnPrimaryFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"ok\":true}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{
		APIKey:        "k",
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		BaseURL:       srv.URL,
	}, srv.Client(), cache.New())

	res, err := c.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Model != "fallback" {
		t.Fatalf("expected fallback model used, got %q", res.Model)
	}
}

func TestNewOpenRouterClient_SkipsUnavailableCandidate(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.Header.Get("X-Test-Marker"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"winner\":\"a\"}"}}]}`))
	}))
	defer srv.Close()

	c := cache.New()
	c.Set("llm:openrouter:unavailable:model-a", []byte("down"), time.Minute)

	client := NewOpenRouterClient(OpenRouterConfig{
		APIKey:          "k",
		CandidateModels: []string{"model-a", "model-b"},
		BaseURL:         srv.URL,
	}, srv.Client(), c)

	res, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Model != "model-b" {
		t.Fatalf("expected model-b used, got %q", res.Model)
	}
}

func TestLocalBudget_BlocksAfterRPMExhausted(t *testing.T) {
	b := &localBudget{rpm: 1, window: time.Now()}
	now := time.Now()
	if !b.allow(now) {
		t.Fatal("expected first call to be allowed")
	}
	if b.allow(now) {
		t.Fatal("expected second call within the same window to be blocked")
	}
}
