package hashutil

import "testing"

func TestHash16_DeterministicAcrossMapOrdering(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": map[string]interface{}{"y": 2, "x": 1}}
	b := map[string]interface{}{"c": map[string]interface{}{"x": 1, "y": 2}, "a": 1, "b": 2}
	if Hash16(a) != Hash16(b) {
		t.Fatal("expected identical canonical hash regardless of map key order")
	}
}

func TestHash16_DiffersOnValueChange(t *testing.T) {
	a := map[string]interface{}{"a": 1}
	b := map[string]interface{}{"a": 2}
	if Hash16(a) == Hash16(b) {
		t.Fatal("expected different hashes for different values")
	}
}

func TestHash16_Length(t *testing.T) {
	if len(Hash16(map[string]interface{}{"a": 1})) != 16 {
		t.Fatal("expected 16-char hash")
	}
}

func TestKeyHash16_Deterministic(t *testing.T) {
	if KeyHash16("url|ts") != KeyHash16("url|ts") {
		t.Fatal("expected deterministic key hash")
	}
	if KeyHash16("url|ts") == KeyHash16("url|ts2") {
		t.Fatal("expected different keys to hash differently")
	}
}
