// Package providers defines the ProviderAdapter contract (spec.md
// §4.C): what the orchestration core expects from a single "chat
// completion provider". Real provider wire protocols (OpenAI,
// Anthropic, ...) are out of scope; this package carries the interface
// plus one generic HTTP-based reference implementation (http_adapter.go)
// that exercises the Configuration surface's transport knobs.
package providers

import (
	"context"

	"github.com/tributary-ai-services/llm-gateway/models"
)

// CompletionRequest is everything a single attempt needs: the full
// message list, the model to call, and the two AttemptLoop defaults
// (temperature 0.7, max_tokens 2000) already resolved by the caller.
type CompletionRequest struct {
	Messages    []models.ChatMessage
	Model       models.ModelId
	Temperature float64
	MaxTokens   int
}

// CompletionResult is the unary result. If the upstream does not report
// usage, Adapter implementations MAY return zero for InputTokens and
// OutputTokens; the core then falls back to its own estimates
// (spec.md §4.C).
type CompletionResult struct {
	Content      string
	InputTokens  models.TokenCount
	OutputTokens models.TokenCount
}

// Usage is the optional final usage record a streaming fragment may
// carry.
type Usage struct {
	InputTokens  models.TokenCount
	OutputTokens models.TokenCount
}

// StreamFragment is one element of the lazy sequence complete_stream
// yields. The final fragment of a clean stream carries Usage where the
// upstream reports it; Err is set instead of Content/Usage when the
// stream terminates abnormally, and no further fragments follow it.
type StreamFragment struct {
	Content string
	Usage   *Usage
	Err     error
}

// Adapter is the ProviderAdapter interface (spec.md §4.C). A single
// Adapter is bound to one upstream "chat completion provider"; the
// AttemptLoop calls it once per attempt, always through a
// ResiliencePolicy.
type Adapter interface {
	// Complete performs one unary call. cancel is honored for the
	// duration of the network I/O (spec.md §5).
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)

	// CompleteStream performs one streaming call. The returned channel
	// is closed after its final fragment; it is never restarted or
	// reused by the core.
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan StreamFragment, error)
}
