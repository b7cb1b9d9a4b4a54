package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
	"github.com/tributary-ai-services/llm-gateway/providers"
)

// ResilienceSettings configures every ResiliencePolicy the AttemptLoop
// lazily creates, one per provider name (spec.md §4.D: breaker counters
// are per-provider, process-wide).
type ResilienceSettings struct {
	MaxRetries       int
	FailureThreshold int
	Cooldown         time.Duration
}

// AttemptLoop drives up to MaxAttempts attempts over a fallback chain
// (spec.md §4.B). It is sequential per request — no parallel fan-out
// across providers — but is itself safe to call concurrently from many
// requests, since its only shared mutable state is the per-provider
// ResiliencePolicy registry.
type AttemptLoop struct {
	adapter     providers.Adapter
	fallback    *FallbackChain
	maxAttempts int
	settings    ResilienceSettings

	mu         sync.Mutex
	resilience map[string]*ResiliencePolicy
}

func NewAttemptLoop(adapter providers.Adapter, fallback *FallbackChain, maxAttempts int, settings ResilienceSettings) *AttemptLoop {
	return &AttemptLoop{
		adapter:     adapter,
		fallback:    fallback,
		maxAttempts: maxAttempts,
		settings:    settings,
		resilience:  make(map[string]*ResiliencePolicy),
	}
}

// ResiliencePolicyFor exposes the per-provider registry so other core
// components (StreamingAssembler) share the same breaker state per
// provider rather than keeping their own — spec.md §4.D requires
// breaker counters to be "process-wide, shared by all concurrent
// requests", not merely all requests through one component.
func (l *AttemptLoop) ResiliencePolicyFor(provider string) *ResiliencePolicy {
	return l.resiliencePolicyFor(provider)
}

func (l *AttemptLoop) resiliencePolicyFor(provider string) *ResiliencePolicy {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.resilience[provider]; ok {
		return p
	}
	p := NewResiliencePolicy(provider, l.settings.MaxRetries, l.settings.FailureThreshold, l.settings.Cooldown)
	l.resilience[provider] = p
	return p
}

// Execute runs the attempt protocol from spec.md §4.B: up to
// l.maxAttempts attempts, each routed through the ResiliencePolicy for
// the attempted model's provider, rolling to FallbackChain.Next on
// transient failure. estimatedInputTokens is the Router's token
// estimate, used as the input-token fallback when the adapter reports
// no usage.
func (l *AttemptLoop) Execute(ctx context.Context, messages []models.ChatMessage, initialModel models.ModelId, temperature float64, maxTokens int, estimatedInputTokens models.TokenCount) models.AttemptOutcome {
	var attempted []models.ModelId
	currentModel := initialModel
	attemptsMade := 0
	var lastErr error

	for {
		attempted = append(attempted, currentModel)
		attemptsMade++

		policy := l.resiliencePolicyFor(currentModel.Provider())
		result, err := Execute(policy, ctx, func(ctx context.Context) (providers.CompletionResult, error) {
			return l.adapter.Complete(ctx, providers.CompletionRequest{
				Messages:    messages,
				Model:       currentModel,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
		})

		if err == nil {
			if result.Content == "" {
				// Success with an empty result list is treated as a
				// transient failure of this attempt (spec.md §4.B rule 4).
				err = gatewayerr.Transient(currentModel.String(), fmt.Errorf("provider returned empty content"))
			} else {
				inputTokens := result.InputTokens
				if inputTokens == 0 {
					inputTokens = estimatedInputTokens
				}
				outputTokens := result.OutputTokens
				if outputTokens == 0 {
					outputTokens = models.NewTokenCount(len(result.Content) / 4)
				}
				return models.SuccessOutcome(models.AttemptSuccess{
					Content:      result.Content,
					InputTokens:  inputTokens,
					OutputTokens: outputTokens,
					ModelUsed:    currentModel,
					Attempts:     attemptsMade,
				})
			}
		}

		lastErr = err

		if gatewayerr.KindOf(err) == gatewayerr.KindClientCancel {
			return models.TerminalOutcome(err)
		}

		if gatewayerr.IsTransient(err) && attemptsMade < l.maxAttempts {
			next, ferr := l.fallback.Next(currentModel, attempted)
			if ferr != nil {
				// Any error raised by the FallbackChain itself is terminal.
				lastErr = ferr
				break
			}
			currentModel = next
			continue
		}

		// Otherwise, terminal: break.
		break
	}

	attemptedStrs := make([]string, len(attempted))
	for i, a := range attempted {
		attemptedStrs[i] = a.String()
	}
	return models.TerminalOutcome(gatewayerr.AllProvidersFailed(attemptedStrs, lastErr))
}
