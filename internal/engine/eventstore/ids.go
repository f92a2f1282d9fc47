package eventstore

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/marketintel/analytics/internal/domain"
)

// DedupHash is a SHA-1 over the canonical URL when present, else the
// lowercased title plus source domain. It intentionally diverges from the
// SHA-256/16-hex block-hashing scheme used for pipeline etags (hashutil):
// this hash has to stay stable against rows already written to storage.
func DedupHash(it *domain.NewsItem) string {
	h := sha1.New()
	if it.CanonicalURL != "" {
		h.Write([]byte(strings.ToLower(it.CanonicalURL)))
	} else {
		h.Write([]byte(strings.ToLower(it.Title) + "|" + strings.ToLower(it.SourceDomain)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EventID derives a stable row identifier from the first 16 hex of the
// dedup hash plus the item's published hour: evt_<hash16>_<YYYYMMDDHH>.
func EventID(it *domain.NewsItem) string {
	dh := DedupHash(it)
	ts := time.Now().UTC()
	if it.PublishedAtUTC != nil {
		ts = *it.PublishedAtUTC
	}
	return fmt.Sprintf("evt_%s_%s", dh[:16], ts.Format("2006010215"))
}
