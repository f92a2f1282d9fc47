// Package news implements the multi-provider fetch, canonicalization,
// cluster/global dedup, tagging, scoring and ranking pipeline behind the
// news feed and event feed.
package news

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/marketintel/analytics/internal/textmatch"
)

// trackingPrefixes are query-parameter prefixes stripped during
// canonicalization.
var trackingPrefixes = []string{"utm_"}

// trackingKeys are exact query-parameter names stripped during
// canonicalization.
var trackingKeys = map[string]bool{
	"ref": true, "ref_src": true, "source": true, "src": true,
	"fbclid": true, "gclid": true, "mc_cid": true, "mc_eid": true,
	"cmpid": true, "spm": true, "igshid": true, "mkt_tok": true, "yclid": true,
}

// CanonicalizeURL strips tracking query parameters and fragments while
// preserving scheme+host+path. It is idempotent:
// CanonicalizeURL(CanonicalizeURL(u)) == CanonicalizeURL(u).
func CanonicalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	q := u.Query()
	filtered := url.Values{}
	for k, vs := range q {
		lk := strings.ToLower(k)
		if trackingKeys[lk] {
			continue
		}
		skip := false
		for _, p := range trackingPrefixes {
			if strings.HasPrefix(lk, p) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		for _, v := range vs {
			filtered.Add(k, v)
		}
	}
	u.RawQuery = filtered.Encode()
	u.Fragment = ""
	return u.String()
}

var nonAlnumSpace = regexp.MustCompile(`[^a-z0-9\s]`)
var multiSpace = regexp.MustCompile(`\s+`)

// CanonicalTitle lower-cases a title, strips punctuation, and collapses
// whitespace, producing the normalized form used by the token-set ratio.
func CanonicalTitle(title string) string {
	lowered := strings.ToLower(title)
	lowered = nonAlnumSpace.ReplaceAllString(lowered, " ")
	lowered = multiSpace.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(lowered)
}

// TokenSetRatio scores two titles' similarity over their word-token sets,
// the measure both fuzzy dedup (threshold 0.85) and entity clustering
// compare against: the sorted token intersection is sequence-matched
// against each side's full sorted token string and the higher ratio wins.
func TokenSetRatio(a, b string) float64 {
	return textmatch.TokenSetRatio(a, b)
}

// BuildClusterID returns a deterministic 12-hex-char hash of the dedup key,
// matching build_cluster_id's md5-truncated-to-12 scheme.
func BuildClusterID(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
