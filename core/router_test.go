package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
)

func newTestRouter() *Router {
	return NewRouter(config.RoutingConfig{
		DefaultModel:         "a/default",
		LargeContextModel:    "a/large",
		BalancedModel:        "a/balanced",
		StandardContextLimit: 10000,
		LargeContextLimit:    200000,
	})
}

func TestRouterSelect(t *testing.T) {
	r := newTestRouter()

	userModel := models.ModelId("a/user-requested")

	cases := []struct {
		name      string
		tokens    int
		userModel *models.ModelId
		want      models.ModelId
		wantErr   bool
	}{
		{"over large limit fails", 200001, nil, "", true},
		{"user model overrides", 500, &userModel, "a/user-requested", false},
		{"over standard limit uses large context", 10001, nil, "a/large", false},
		{"under standard limit uses default", 100, nil, "a/default", false},
		{"exactly standard limit uses default", 10000, nil, "a/default", false},
		{"exactly large limit is allowed", 200000, nil, "a/large", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Select(models.NewTokenCount(tc.tokens), tc.userModel)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, gatewayerr.KindTokenLimitExceeded, gatewayerr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
