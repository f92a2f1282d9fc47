package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a single JSON object from a raw model completion,
// mirroring _extract_json's three-stage fallback: strip a markdown code
// fence, try a direct decode, then scan for the first balanced {...} span.
func ExtractJSON(raw string) (map[string]interface{}, error) {
	text := stripCodeFence(raw)

	var direct map[string]interface{}
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	span, ok := firstBalancedObject(text)
	if !ok {
		return nil, fmt.Errorf("llm: no JSON object found in completion")
	}
	var scanned map[string]interface{}
	if err := json.Unmarshal([]byte(span), &scanned); err != nil {
		return nil, fmt.Errorf("llm: failed to decode scanned JSON span: %w", err)
	}
	return scanned, nil
}

func stripCodeFence(raw string) string {
	t := strings.TrimSpace(raw)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	lines := strings.Split(t, "\n")
	if len(lines) < 2 {
		return t
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// firstBalancedObject finds the first brace-matched {...} span in s, the
// same "raw_decode scanning" fallback _extract_json uses when a model
// prepends prose before the JSON payload.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Schema is a required-field contract ValidateSchema checks a decoded
// completion against. Kind is one of "string", "number", "bool", "array",
// "object"; Kind == "" skips the type check and only requires presence.
type Schema struct {
	Fields map[string]string
}

// ValidateSchema returns the subset of required fields that are missing or
// type-mismatched, mirroring _validate_schema_strict's all-or-nothing check.
func ValidateSchema(data map[string]interface{}, schema Schema) []string {
	var problems []string
	for field, kind := range schema.Fields {
		v, ok := data[field]
		if !ok {
			problems = append(problems, field+": missing")
			continue
		}
		if kind == "" {
			continue
		}
		if !matchesKind(v, kind) {
			problems = append(problems, fmt.Sprintf("%s: expected %s", field, kind))
		}
	}
	return problems
}

func matchesKind(v interface{}, kind string) bool {
	switch kind {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "bool":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}

// CoerceSchema repairs a completion that failed strict validation by filling
// missing fields with defaults, the relaxed fallback _coerce_schema applies
// before giving up on a provider entirely.
func CoerceSchema(data map[string]interface{}, defaults map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(defaults))
	for k, v := range data {
		out[k] = v
	}
	for k, def := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = def
		}
	}
	return out
}
