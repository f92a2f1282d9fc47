// Package hashutil implements the content-addressed identifiers used across
// the debate engine's context hash and the pipeline orchestrator's
// block-level ETag/changed-blocks diffing: a SHA-256 digest over canonical
// JSON (sorted keys, compact separators, ASCII-escaped), truncated to a
// fixed hex length. It shares the canonicalization idea behind
// internal/engine/news's md5-based BuildClusterID but uses the wider
// sha256 digest.
package hashutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"
)

// CanonicalJSON marshals v with sorted map keys, compact separators,
// HTML-unsafe characters left unescaped and every non-ASCII character
// escaped as \uXXXX (UTF-16 code units), so the same logical value always
// produces the same ASCII byte sequence regardless of map iteration order.
func CanonicalJSON(v interface{}) ([]byte, error) {
	normalized := normalize(v)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	var ascii bytes.Buffer
	for _, u := range utf16.Encode([]rune(string(bytes.TrimRight(buf.Bytes(), "\n")))) {
		if u < 0x80 {
			ascii.WriteByte(byte(u))
		} else {
			fmt.Fprintf(&ascii, `\u%04x`, u)
		}
	}
	return ascii.Bytes(), nil
}

// normalize round-trips through encoding/json so map[string]interface{} and
// struct values decode into a deterministic representation before
// re-encoding; encoding/json already sorts map[string]X keys on output, so
// this mainly guards against custom MarshalJSON implementations that don't.
func normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return sortedCopy(out)
}

func sortedCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(val))
		for _, k := range keys {
			out[k] = sortedCopy(val[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = sortedCopy(e)
		}
		return out
	default:
		return val
	}
}

// Hash16 returns the first 16 hex characters of the SHA-256 digest of v's
// canonical JSON encoding, the truncation context_hash and block_hashes
// carry.
func Hash16(v interface{}) string {
	return hashN(v, 16)
}

// Hash12 returns the first 12 hex characters of the SHA-256 digest of v's
// canonical JSON encoding. Evidence entry ids use KeyHash16, not Hash12.
func Hash12(v interface{}) string {
	return hashN(v, 12)
}

func hashN(v interface{}, n int) string {
	canon, err := CanonicalJSON(v)
	if err != nil {
		canon = []byte(err.Error())
	}
	sum := sha256.Sum256(canon)
	hexStr := hex.EncodeToString(sum[:])
	if n >= len(hexStr) {
		return hexStr
	}
	return hexStr[:n]
}

// KeyHash16 hashes a plain string key, used for evidence ids built from
// "url_or_title|published" rather than a struct.
func KeyHash16(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
