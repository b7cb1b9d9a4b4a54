package core

import (
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
)

// FallbackChain is a pure, stateless function over a configured ordered
// sequence of model ids (spec.md §4.E). This gateway adopts
// [LargeContext, Balanced, Default] as that ordering (see SPEC_FULL.md
// "DESIGN NOTES RESOLVED" #3), configured via config.RoutingConfig.
type FallbackChain struct {
	chain []models.ModelId
}

func NewFallbackChain(chain []string) *FallbackChain {
	ids := make([]models.ModelId, len(chain))
	for i, c := range chain {
		ids[i] = models.ModelId(c)
	}
	return &FallbackChain{chain: ids}
}

// Next finds failedModel's index in the chain and scans circularly from
// index+1, returning the first id not already in attempted. It never
// returns a model already in attempted, and never mutates any state —
// repeated calls with the same arguments always return the same result.
func (f *FallbackChain) Next(failedModel models.ModelId, attempted []models.ModelId) (models.ModelId, error) {
	idx := -1
	for i, m := range f.chain {
		if m == failedModel {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "", gatewayerr.ModelUnknown(failedModel.String())
	}

	attemptedSet := make(map[models.ModelId]bool, len(attempted))
	for _, a := range attempted {
		attemptedSet[a] = true
	}

	n := len(f.chain)
	for step := 1; step <= n; step++ {
		candidate := f.chain[(idx+step)%n]
		if !attemptedSet[candidate] {
			return candidate, nil
		}
	}

	attemptedStrs := make([]string, len(attempted))
	for i, a := range attempted {
		attemptedStrs[i] = a.String()
	}
	return "", gatewayerr.AllProvidersFailed(attemptedStrs, nil)
}
