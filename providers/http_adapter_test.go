package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
)

func testAdapter(t *testing.T, baseURL string) Adapter {
	t.Helper()
	return NewHTTPAdapter(config.ProviderConfig{
		BaseUrl:                 baseURL,
		TimeoutSeconds:          5,
		MaxConnectionsPerServer: 10,
	})
}

func TestClassifyStatus(t *testing.T) {
	require.NoError(t, classifyStatus(http.StatusOK, nil))

	err := classifyStatus(http.StatusTooManyRequests, []byte("slow down"))
	assert.Equal(t, gatewayerr.KindTransient, gatewayerr.KindOf(err))

	err = classifyStatus(http.StatusServiceUnavailable, []byte("down"))
	assert.Equal(t, gatewayerr.KindTransient, gatewayerr.KindOf(err))

	err = classifyStatus(http.StatusUnauthorized, []byte("nope"))
	assert.Equal(t, gatewayerr.KindUpstreamTerminal, gatewayerr.KindOf(err))

	err = classifyStatus(http.StatusBadRequest, []byte("bad"))
	assert.Equal(t, gatewayerr.KindUpstreamTerminal, gatewayerr.KindOf(err))
}

func TestHTTPAdapterCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"a/x","choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":5,"completion_tokens":3}}`)
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	result, err := adapter.Complete(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})

	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Content)
	assert.Equal(t, models.NewTokenCount(5), result.InputTokens)
	assert.Equal(t, models.NewTokenCount(3), result.OutputTokens)
}

func TestHTTPAdapterCompleteTransientOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "upstream overloaded")
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	_, err := adapter.Complete(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})

	require.Error(t, err)
	assert.Equal(t, gatewayerr.KindTransient, gatewayerr.KindOf(err))
}

func TestHTTPAdapterCompleteTerminalOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "bad key")
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	_, err := adapter.Complete(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})

	require.Error(t, err)
	assert.Equal(t, gatewayerr.KindUpstreamTerminal, gatewayerr.KindOf(err))
}

func TestHTTPAdapterCompleteEmptyChoicesIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"a/x","choices":[],"usage":{}}`)
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	_, err := adapter.Complete(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})

	require.Error(t, err)
	assert.Equal(t, gatewayerr.KindTransient, gatewayerr.KindOf(err))
}

func TestHTTPAdapterCompleteStreamForwardsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		fmt.Fprint(w, `data: {"model":"a/x","choices":[{"delta":{"content":"he"}}]}`+"\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, `data: {"model":"a/x","choices":[{"delta":{"content":"llo"}}]}`+"\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	fragments, err := adapter.CompleteStream(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})
	require.NoError(t, err)

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frag, open := <-fragments:
			if !open {
				require.Equal(t, []string{"he", "llo"}, got)
				return
			}
			require.NoError(t, frag.Err)
			got = append(got, frag.Content)
		case <-timeout:
			t.Fatal("timed out waiting for stream fragments")
		}
	}
}

func TestHTTPAdapterCompleteStreamOpenErrorOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "overloaded")
	}))
	defer srv.Close()

	adapter := testAdapter(t, srv.URL)
	_, err := adapter.CompleteStream(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
		Model:    "a/x",
	})

	require.Error(t, err)
	assert.Equal(t, gatewayerr.KindTransient, gatewayerr.KindOf(err))
}
