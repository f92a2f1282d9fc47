package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeURL_StripsTrackingParams(t *testing.T) {
	got := CanonicalizeURL("https://example.com/a/b?utm_source=x&ref=y&id=1#frag")
	assert.Equal(t, "https://example.com/a/b?id=1", got)
}

func TestCanonicalizeURL_Idempotent(t *testing.T) {
	raw := "https://example.com/story?utm_campaign=z&gclid=abc&foo=bar"
	once := CanonicalizeURL(raw)
	twice := CanonicalizeURL(once)
	assert.Equal(t, once, twice)
}

func TestCanonicalizeURL_InvalidPassesThrough(t *testing.T) {
	assert.Equal(t, "not a url", CanonicalizeURL("not a url"))
	assert.Equal(t, "", CanonicalizeURL(""))
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		wantHigh bool
	}{
		{"identical", "Fed raises rates again", "Fed raises rates again", true},
		{"near_duplicate", "Fed Raises Rates Again!", "fed raises rates, again", true},
		{"unrelated", "Fed raises rates again", "Local team wins championship", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := TokenSetRatio(tt.a, tt.b)
			if tt.wantHigh {
				assert.GreaterOrEqual(t, ratio, fuzzyDedupThreshold)
			} else {
				assert.Less(t, ratio, fuzzyDedupThreshold)
			}
		})
	}
}

func TestBuildClusterID_Deterministic(t *testing.T) {
	a := BuildClusterID("entities:BTC|ETH")
	b := BuildClusterID("entities:BTC|ETH")
	c := BuildClusterID("entities:BTC|SOL")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 12)
}
