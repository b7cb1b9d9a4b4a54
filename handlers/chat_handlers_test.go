package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/core"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/internal/logging"
	"github.com/tributary-ai-services/llm-gateway/models"
	"github.com/tributary-ai-services/llm-gateway/providers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAdapter struct {
	result providers.CompletionResult
	err    error
}

func (a fakeAdapter) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	return a.result, a.err
}

func (a fakeAdapter) CompleteStream(ctx context.Context, req providers.CompletionRequest) (<-chan providers.StreamFragment, error) {
	if a.err != nil {
		return nil, a.err
	}
	ch := make(chan providers.StreamFragment, 1)
	ch <- providers.StreamFragment{Content: a.result.Content}
	close(ch)
	return ch, nil
}

type fakePricingLookup struct{}

func (fakePricingLookup) Lookup(ctx context.Context, model models.ModelId) (models.Pricing, bool, error) {
	return models.Pricing{}, false, nil
}

func newTestHandler(adapter providers.Adapter) *ChatHandler {
	cfg := config.RoutingConfig{
		DefaultModel:         "a/default",
		LargeContextModel:    "a/default",
		BalancedModel:        "a/default",
		StandardContextLimit: 10000,
		LargeContextLimit:    200000,
	}
	router := core.NewRouter(cfg)
	fallback := core.NewFallbackChain([]string{"a/default"})
	settings := core.ResilienceSettings{MaxRetries: 0, FailureThreshold: 100, Cooldown: 0}
	loop := core.NewAttemptLoop(adapter, fallback, 3, settings)
	logger := logging.New("stdout")
	accountant := core.NewAccountant(fakePricingLookup{}, nopSink{}, logger)
	streaming := core.NewStreamingAssembler(router, fallback, adapter, accountant, 3, loop.ResiliencePolicyFor)
	return NewChatHandler(router, loop, accountant, streaming, nil, logger)
}

type nopSink struct{}

func (nopSink) Save(ctx context.Context, log models.RequestLog) error { return nil }

// closeNotifyingRecorder adds http.CloseNotifier to httptest's recorder;
// gin's c.Stream asserts that interface on the underlying writer.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool { return r.closed }

func postJSON(h gin.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := &closeNotifyingRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	h(c)
	return rec.ResponseRecorder
}

func TestPostChatCompletionsSuccess(t *testing.T) {
	h := newTestHandler(fakeAdapter{result: providers.CompletionResult{Content: "hello there"}})

	rec := postJSON(h.PostChatCompletions, "/v1/chat/completions", models.ChatRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var wire chatResponseWire
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
	assert.Equal(t, "hello there", wire.Content)
	assert.Equal(t, "a/default", wire.Model)
}

func TestPostChatCompletionsValidationError(t *testing.T) {
	h := newTestHandler(fakeAdapter{})

	rec := postJSON(h.PostChatCompletions, "/v1/chat/completions", models.ChatRequest{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
}

func TestPostChatCompletionsAllProvidersFailed(t *testing.T) {
	h := newTestHandler(fakeAdapter{err: gatewayerr.Transient("a/default", errors.New("503"))})

	rec := postJSON(h.PostChatCompletions, "/v1/chat/completions", models.ChatRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Detail, "All providers failed")
}

func TestPostChatCompletionsStreamSetsEventStreamHeaders(t *testing.T) {
	h := newTestHandler(fakeAdapter{result: providers.CompletionResult{Content: "hi"}})

	rec := postJSON(h.PostChatCompletionsStream, "/v1/chat/completions/stream", models.ChatRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"chunk"`)
	assert.Contains(t, rec.Body.String(), `"type":"complete"`)
}

func TestCorrelationMiddlewareGeneratesAndEchoesID(t *testing.T) {
	engine := gin.New()
	engine.Use(CorrelationMiddleware())
	var seen string
	engine.GET("/x", func(c *gin.Context) {
		seen = CorrelationID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddlewareEchoesProvidedID(t *testing.T) {
	engine := gin.New()
	engine.Use(CorrelationMiddleware())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "fixed-id")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Correlation-ID"))
}
