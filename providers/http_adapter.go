package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
)

// httpAdapter is a generic, wire-protocol-agnostic HTTP Adapter: it
// POSTs an OpenAI-router-style JSON body to cfg.BaseUrl and parses a
// matching JSON (unary) or SSE (streaming) response. Real
// provider-specific wire protocols are explicitly out of scope
// (spec.md §1); this exists to exercise the Configuration surface's
// transport knobs and give AttemptLoop a concrete collaborator to run
// against in tests.
//
// It performs exactly one attempt per call — no retry, no model
// switching — those are the ResiliencePolicy's and AttemptLoop's jobs
// respectively; an adapter that retried internally would silently
// defeat the "retry wraps breaker" composition spec.md §4.D requires.
type httpAdapter struct {
	cfg          config.ProviderConfig
	client       *http.Client
	streamClient *http.Client
}

// NewHTTPAdapter builds the reference Adapter. The unary client carries
// cfg.TimeoutSeconds as a total request timeout; the streaming client
// deliberately carries none — an SSE response is expected to flow
// incrementally over a duration the caller's own cancellation governs,
// not a fixed deadline (grounded on the teacher's streamClient, which
// makes the same choice for the same reason).
func NewHTTPAdapter(cfg config.ProviderConfig) Adapter {
	transport := &http.Transport{
		MaxConnsPerHost:     cfg.MaxConnectionsPerServer,
		MaxIdleConnsPerHost: cfg.MaxConnectionsPerServer,
		IdleConnTimeout:     time.Duration(cfg.ConnectionLifetimeMinutes) * time.Minute,
	}
	if cfg.UseHttp2 {
		_ = http2.ConfigureTransport(transport)
	}
	return &httpAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireResponse struct {
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireStreamDelta struct {
	Content string `json:"content,omitempty"`
}

type wireStreamChoice struct {
	Delta        *wireStreamDelta `json:"delta,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

type wireStreamChunk struct {
	Model   string             `json:"model"`
	Choices []wireStreamChoice `json:"choices"`
	Usage   *wireUsage         `json:"usage,omitempty"`
}

func toWireMessages(messages []models.ChatMessage) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (a *httpAdapter) buildRequest(ctx context.Context, req CompletionRequest, stream bool) (*http.Request, []byte, error) {
	body := wireRequest{
		Model:       req.Model.String(),
		Messages:    toWireMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal completion request: %w", err)
	}
	url := strings.TrimSuffix(a.cfg.BaseUrl, "/") + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if a.cfg.ApiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.ApiKey)
	}
	return httpReq, payload, nil
}

// classifyTransportError maps a transport-level failure to the
// gateway's taxonomy: network/DNS/TLS failures and context deadline
// expiry are transient (spec.md §4.B); caller-initiated cancellation is
// not an error the AttemptLoop should retry.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return gatewayerr.ClientCancel()
	}
	// Deadline expiry and ordinary net.Error (DNS, dial, TLS, socket
	// failures) are both transient per spec.md §4.B; there is no other
	// failure mode a transport round-trip can surface here.
	return gatewayerr.Transient("", err)
}

// classifyStatus maps an HTTP status code to the gateway's taxonomy
// per spec.md §4.B: 429/5xx are transient, any other 4xx (including
// 401) is terminal.
func classifyStatus(statusCode int, body []byte) error {
	if statusCode == http.StatusOK {
		return nil
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return gatewayerr.Transient("", fmt.Errorf("status %d: %s", statusCode, body))
	case statusCode >= 500:
		return gatewayerr.Transient("", fmt.Errorf("status %d: %s", statusCode, body))
	default:
		return gatewayerr.UpstreamTerminal(statusCode, fmt.Errorf("status %d: %s", statusCode, body))
	}
}

func (a *httpAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	httpReq, _, err := a.buildRequest(ctx, req, false)
	if err != nil {
		return CompletionResult{}, gatewayerr.UpstreamTerminal(0, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return CompletionResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if cerr := classifyStatus(resp.StatusCode, bodyBytes); cerr != nil {
		return CompletionResult{}, cerr
	}

	var parsed wireResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return CompletionResult{}, gatewayerr.UpstreamTerminal(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return CompletionResult{}, gatewayerr.Transient(req.Model.String(), fmt.Errorf("empty choices in response"))
	}

	return CompletionResult{
		Content:      parsed.Choices[0].Message.Content,
		InputTokens:  models.NewTokenCount(parsed.Usage.PromptTokens),
		OutputTokens: models.NewTokenCount(parsed.Usage.CompletionTokens),
	}, nil
}

func (a *httpAdapter) CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamFragment, error) {
	httpReq, _, err := a.buildRequest(ctx, req, true)
	if err != nil {
		return nil, gatewayerr.UpstreamTerminal(0, err)
	}

	resp, err := a.streamClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, bodyBytes)
	}

	out := make(chan StreamFragment, 16)
	go a.pumpStream(ctx, resp.Body, out)
	return out, nil
}

// pumpStream forwards each SSE content delta to out as it arrives —
// unlike the teacher's readStreamResponse, which accumulates an entire
// SSE response into one final struct before returning, this adapter
// must forward chunks live so StreamingAssembler can relay them to its
// caller immediately (spec.md §4.G).
func (a *httpAdapter) pumpStream(ctx context.Context, body io.ReadCloser, out chan<- StreamFragment) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- StreamFragment{Err: gatewayerr.ClientCancel()}
			return
		default:
		}

		line := scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk wireStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		var usage *Usage
		if chunk.Usage != nil {
			usage = &Usage{
				InputTokens:  models.NewTokenCount(chunk.Usage.PromptTokens),
				OutputTokens: models.NewTokenCount(chunk.Usage.CompletionTokens),
			}
		}

		for _, choice := range chunk.Choices {
			if choice.Delta != nil && choice.Delta.Content != "" {
				out <- StreamFragment{Content: choice.Delta.Content, Usage: usage}
			}
		}
		if usage != nil && len(chunk.Choices) == 0 {
			out <- StreamFragment{Usage: usage}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- StreamFragment{Err: gatewayerr.Transient("", fmt.Errorf("error reading SSE stream: %w", err))}
	}
}
