package core

import (
	"context"
	"fmt"
	"time"

	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/models"
	"github.com/tributary-ai-services/llm-gateway/providers"
)

// StreamingAssembler runs the streaming variant of the orchestration
// pipeline (spec.md §4.G). It shares the Router, FallbackChain and
// per-provider ResiliencePolicy registry machinery with AttemptLoop but
// cannot simply call AttemptLoop.Execute, because success here is
// "a live sequence of chunks", not one returned value.
//
// Open question #1 in spec.md §9 is resolved here exactly as the source
// behavior: output token accounting counts emitted chunks, never the
// upstream's own usage record, even when the adapter reports one on the
// final fragment.
type StreamingAssembler struct {
	router      *Router
	fallback    *FallbackChain
	adapter     providers.Adapter
	accountant  *Accountant
	maxAttempts int

	resilienceFor func(provider string) *ResiliencePolicy
}

func NewStreamingAssembler(router *Router, fallback *FallbackChain, adapter providers.Adapter, accountant *Accountant, maxAttempts int, resilienceFor func(provider string) *ResiliencePolicy) *StreamingAssembler {
	return &StreamingAssembler{
		router:        router,
		fallback:      fallback,
		adapter:       adapter,
		accountant:    accountant,
		maxAttempts:   maxAttempts,
		resilienceFor: resilienceFor,
	}
}

// openResult is the outcome of blocking until either the first non-empty
// content fragment of a live stream arrives, or every model in the
// fallback chain has been exhausted without emitting anything.
type openResult struct {
	model        models.ModelId
	attempts     int
	firstContent string
	fragments    <-chan providers.StreamFragment
	policy       *ResiliencePolicy
}

// Run validates the request, routes it, and blocks until the first
// content chunk is available from some model (trying fallbacks on
// transient failure, exactly like AttemptLoop) or until every model has
// failed. On success it returns a channel the caller should range over
// until it closes; the first chunk is replayed onto that channel before
// streaming continues live. On failure before any chunk it returns a
// synchronous error, allowing the caller to reply with RFC-7807
// ProblemDetails rather than committing to a 200 streaming response.
func (s *StreamingAssembler) Run(ctx context.Context, req models.ChatRequest) (<-chan models.StreamFrame, error) {
	if errs := req.Validate(); errs.HasErrors() {
		return nil, gatewayerr.Validation(errs)
	}

	estimatedInputTokens := models.EstimateTokens(req.Messages)
	initialModel, err := s.router.Select(estimatedInputTokens, req.RequestedModel())
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	opened, err := s.openStream(ctx, req, initialModel)
	if err != nil {
		return nil, err
	}

	out := make(chan models.StreamFrame, 16)
	go s.pump(ctx, opened, estimatedInputTokens, startTime, out)
	return out, nil
}

// openStream is the streaming analog of AttemptLoop's per-attempt loop,
// stopping as soon as one model yields a non-empty first fragment.
func (s *StreamingAssembler) openStream(ctx context.Context, req models.ChatRequest, initialModel models.ModelId) (openResult, error) {
	var attempted []models.ModelId
	currentModel := initialModel
	attemptsMade := 0
	var lastErr error

	temperature := req.EffectiveTemperature()
	maxTokens := req.EffectiveMaxTokens()

	for {
		attempted = append(attempted, currentModel)
		attemptsMade++

		policy := s.resilienceFor(currentModel.Provider())
		fragments, err := Execute(policy, ctx, func(ctx context.Context) (<-chan providers.StreamFragment, error) {
			return s.adapter.CompleteStream(ctx, providers.CompletionRequest{
				Messages:    req.Messages,
				Model:       currentModel,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
		})

		if err == nil {
			first, ok := s.readUntilFirstContent(ctx, fragments)
			if ok {
				return openResult{
					model:        currentModel,
					attempts:     attemptsMade,
					firstContent: first.content,
					fragments:    first.rest,
					policy:       policy,
				}, nil
			}
			err = first.err
			if err == nil {
				err = gatewayerr.Transient(currentModel.String(), fmt.Errorf("stream closed with no content"))
			}
			policy.NotifyStreamResult(false)
		}

		lastErr = err

		if gatewayerr.KindOf(err) == gatewayerr.KindClientCancel {
			return openResult{}, err
		}

		if gatewayerr.IsTransient(err) && attemptsMade < s.maxAttempts {
			next, ferr := s.fallback.Next(currentModel, attempted)
			if ferr != nil {
				lastErr = ferr
				break
			}
			currentModel = next
			continue
		}

		break
	}

	attemptedStrs := make([]string, len(attempted))
	for i, a := range attempted {
		attemptedStrs[i] = a.String()
	}
	return openResult{}, gatewayerr.AllProvidersFailed(attemptedStrs, lastErr)
}

type firstFragment struct {
	content string
	err     error
	rest    <-chan providers.StreamFragment
}

// readUntilFirstContent drains leading empty/usage-only fragments until
// it finds one with non-empty content, an error, or the channel closes.
// The remaining (unread) channel is handed back so the caller can keep
// consuming it.
func (s *StreamingAssembler) readUntilFirstContent(ctx context.Context, fragments <-chan providers.StreamFragment) (firstFragment, bool) {
	for {
		select {
		case <-ctx.Done():
			return firstFragment{err: gatewayerr.ClientCancel()}, false
		case frag, open := <-fragments:
			if !open {
				return firstFragment{}, false
			}
			if frag.Err != nil {
				return firstFragment{err: frag.Err}, false
			}
			if frag.Content != "" {
				return firstFragment{content: frag.Content, rest: fragments}, true
			}
			// empty/usage-only fragment; keep draining
		}
	}
}

// pump is the goroutine that relays the remainder of a successfully
// opened stream to out, in order, then appends exactly one Complete
// frame (or none, on a mid-stream failure).
func (s *StreamingAssembler) pump(ctx context.Context, opened openResult, estimatedInputTokens models.TokenCount, startTime time.Time, out chan<- models.StreamFrame) {
	defer close(out)

	outputTokensEst := 0

	emit := func(content string) {
		outputTokensEst++
		select {
		case out <- models.ChunkFrame(content):
		case <-ctx.Done():
		}
	}

	emit(opened.firstContent)

	streamFailed := false
	for {
		select {
		case <-ctx.Done():
			// Caller-initiated cancellation: terminal, no further
			// chunks, accounting skipped (spec.md §5).
			opened.policy.NotifyStreamResult(false)
			return
		case frag, open := <-opened.fragments:
			if !open {
				goto done
			}
			if frag.Err != nil {
				streamFailed = true
				goto done
			}
			if frag.Content != "" {
				emit(frag.Content)
			}
			// Upstream usage records on later fragments are
			// deliberately ignored for output-token accounting; only
			// the emitted-chunk count feeds the Accountant, per the
			// resolved Open Question #1.
		}
	}

done:
	if streamFailed {
		opened.policy.NotifyStreamResult(false)
		// No fallback mid-stream once a chunk has been emitted; the
		// stream simply ends without a Complete frame.
		return
	}
	opened.policy.NotifyStreamResult(true)

	responseTime := time.Since(startTime)
	providerName := opened.model.Provider()
	wasFallback := opened.attempts > 1
	outputTokens := models.NewTokenCount(outputTokensEst)

	cost := s.accountant.Track(ctx, opened.model, estimatedInputTokens, outputTokens, providerName, responseTime, wasFallback)

	responseMs := responseTime.Milliseconds()
	if responseMs < 1 {
		responseMs = 1
	}
	avgTokensPerSecond := float64(outputTokensEst) * 1000 / float64(responseMs)

	out <- models.CompleteFrame(models.StreamCompleteMetadata{
		Model:              opened.model.String(),
		TotalTokens:        outputTokensEst,
		ResponseTimeMs:     responseTime.Milliseconds(),
		AvgTokensPerSecond: avgTokensPerSecond,
		EstimatedCostUsd:   cost,
		Provider:           providerName,
	})
}
