package llm

import "testing"

func TestExtractJSON_DirectDecode(t *testing.T) {
	data, err := ExtractJSON(`{"a": 1, "b": "two"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["a"].(float64) != 1 {
		t.Fatalf("expected a=1, got %v", data["a"])
	}
}

func TestExtractJSON_StripsCodeFence(t *testing.T) {
	raw := "```json\n{\"winner\": \"gemini\"}\n```"
	data, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["winner"] != "gemini" {
		t.Fatalf("expected winner=gemini, got %v", data["winner"])
	}
}

func TestExtractJSON_ScansBalancedSpanAfterProse(t *testing.T) {
	raw := `Sure, here is the result: {"score": 42, "nested": {"x": 1}} -- hope that helps`
	data, err := ExtractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["score"].(float64) != 42 {
		t.Fatalf("expected score=42, got %v", data["score"])
	}
}

func TestExtractJSON_NoObjectReturnsError(t *testing.T) {
	if _, err := ExtractJSON("no json here at all"); err == nil {
		t.Fatal("expected error for input with no JSON object")
	}
}

func TestValidateSchema_FlagsMissingAndMismatchedFields(t *testing.T) {
	schema := Schema{Fields: map[string]string{
		"score":   "number",
		"summary": "string",
	}}
	data := map[string]interface{}{"score": "not a number"}
	problems := ValidateSchema(data, schema)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
}

func TestValidateSchema_PassesWhenComplete(t *testing.T) {
	schema := Schema{Fields: map[string]string{"score": "number"}}
	data := map[string]interface{}{"score": 1.0}
	if problems := ValidateSchema(data, schema); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}

func TestCoerceSchema_FillsOnlyMissingFields(t *testing.T) {
	data := map[string]interface{}{"score": 5.0}
	defaults := map[string]interface{}{"score": 0.0, "summary": []interface{}{}}
	out := CoerceSchema(data, defaults)
	if out["score"].(float64) != 5.0 {
		t.Fatalf("expected original score preserved, got %v", out["score"])
	}
	if _, ok := out["summary"]; !ok {
		t.Fatal("expected summary to be filled with default")
	}
}
