package debate

import (
	"encoding/json"

	"github.com/marketintel/analytics/internal/domain"
)

func (e *Engine) loadCached(key string) (domain.DebateResult, bool) {
	raw, ok := e.cache.Get(key)
	if !ok {
		return domain.DebateResult{}, false
	}
	var result domain.DebateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.DebateResult{}, false
	}
	return result, true
}

func (e *Engine) store(key string, result domain.DebateResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	e.cache.Set(key, raw, resultTTL)
}
