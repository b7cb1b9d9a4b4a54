package core

import (
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
)

// Router picks the initial model id for a request (spec.md §4.A). It
// holds no mutable state; the routing constants come from config, the
// way the teacher threads its constants through a loaded *config.Config
// rather than package-level vars.
type Router struct {
	defaultModel         models.ModelId
	largeContextModel    models.ModelId
	standardContextLimit int
	largeContextLimit    int
}

func NewRouter(cfg config.RoutingConfig) *Router {
	return &Router{
		defaultModel:         models.ModelId(cfg.DefaultModel),
		largeContextModel:    models.ModelId(cfg.LargeContextModel),
		standardContextLimit: cfg.StandardContextLimit,
		largeContextLimit:    cfg.LargeContextLimit,
	}
}

// Select applies the three routing rules from spec.md §4.A in order:
// reject oversized requests, honor an explicit user model, otherwise
// pick by estimated size.
func (r *Router) Select(estimatedTokens models.TokenCount, userModel *models.ModelId) (models.ModelId, error) {
	if estimatedTokens.Exceeds(r.largeContextLimit) {
		return "", gatewayerr.TokenLimitExceeded(estimatedTokens.Int(), r.largeContextLimit)
	}
	if userModel != nil && !userModel.IsEmpty() {
		return *userModel, nil
	}
	if estimatedTokens.Exceeds(r.standardContextLimit) {
		return r.largeContextModel, nil
	}
	return r.defaultModel, nil
}
