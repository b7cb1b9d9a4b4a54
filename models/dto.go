package models

import (
	"fmt"
	"time"
)

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ChatMessage is one turn of the inbound conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

func (m ChatMessage) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("message role %q is not one of system|user|assistant", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("message content must not be empty")
	}
	return nil
}

// ChatRequest is the inbound request body for both /v1/chat/completions
// and /v1/chat/completions/stream.
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       *string       `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"maxTokens,omitempty"`
}

// Validate enforces the Validation error kind (§7 of the gateway spec):
// non-empty messages with non-empty content, temperature in [0,2],
// positive max_tokens. It returns a ValidationErrors aggregate so a
// caller can report every violation at once, not just the first.
func (r ChatRequest) Validate() ValidationErrors {
	var errs ValidationErrors

	if len(r.Messages) == 0 {
		errs = append(errs, ValidationError{Field: "messages", Message: "must contain at least one message"})
	}
	for i, m := range r.Messages {
		if err := m.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("messages[%d]", i), Message: err.Error()})
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		errs = append(errs, ValidationError{Field: "temperature", Message: "must be between 0 and 2"})
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		errs = append(errs, ValidationError{Field: "maxTokens", Message: "must be a positive integer"})
	}

	return errs
}

// EffectiveTemperature applies the AttemptLoop's documented default (0.7).
func (r ChatRequest) EffectiveTemperature() float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return 0.7
}

// EffectiveMaxTokens applies the AttemptLoop's documented default (2000).
func (r ChatRequest) EffectiveMaxTokens() int {
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	return 2000
}

// RequestedModel returns the user-specified model, if any non-blank
// value was supplied.
func (r ChatRequest) RequestedModel() *ModelId {
	if r.Model == nil || *r.Model == "" {
		return nil
	}
	id := ModelId(*r.Model)
	return &id
}

// ValidationError names one malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every violation found on one request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors: ", len(e))
	for i, v := range e {
		if i > 0 {
			msg += "; "
		}
		msg += v.Error()
	}
	return msg
}

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// AttemptOutcomeKind discriminates the AttemptOutcome sum type.
type AttemptOutcomeKind string

const (
	OutcomeSuccess         AttemptOutcomeKind = "success"
	OutcomeTerminalFailure AttemptOutcomeKind = "terminal_failure"
)

// AttemptSuccess carries everything the Accountant and the transport
// layer need once the AttemptLoop produces a successful attempt.
type AttemptSuccess struct {
	Content      string
	InputTokens  TokenCount
	OutputTokens TokenCount
	ModelUsed    ModelId
	Attempts     int
}

// WasFallback is true iff the successful attempt was not the first one
// tried (spec.md §3 invariant on RequestLog.was_fallback).
func (s AttemptSuccess) WasFallback() bool {
	return s.Attempts > 1
}

// AttemptOutcome is the terminal result of core.AttemptLoop.Execute: a
// Result-style outcome rather than an error the caller must catch, per
// the "exception for control flow" design note.
type AttemptOutcome struct {
	Kind            AttemptOutcomeKind
	Success         *AttemptSuccess
	TerminalFailure error
}

func SuccessOutcome(s AttemptSuccess) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeSuccess, Success: &s}
}

func TerminalOutcome(err error) AttemptOutcome {
	return AttemptOutcome{Kind: OutcomeTerminalFailure, TerminalFailure: err}
}

func (o AttemptOutcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// ChatResponse is the 200 response body for /v1/chat/completions.
type ChatResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	TokensUsed       int           `json:"tokensUsed"`
	EstimatedCostUsd CostAmount    `json:"estimatedCostUsd"`
	ResponseTime     time.Duration `json:"-"`
}

// ResponseTimeString renders ResponseTime as "hh:mm:ss.fff", the format
// named in §6 of the external interfaces.
func (r ChatResponse) ResponseTimeString() string {
	return formatDuration(r.ResponseTime)
}

func formatDuration(d time.Duration) string {
	total := d.Milliseconds()
	ms := total % 1000
	totalSeconds := total / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// StreamFrameType discriminates the StreamFrame sum type.
type StreamFrameType string

const (
	FrameChunk    StreamFrameType = "chunk"
	FrameComplete StreamFrameType = "complete"
)

// StreamCompleteMetadata is the payload of the terminal Complete frame.
type StreamCompleteMetadata struct {
	Model              string     `json:"model"`
	TotalTokens        int        `json:"totalTokens"`
	ResponseTimeMs     int64      `json:"responseTimeMs"`
	AvgTokensPerSecond float64    `json:"avgTokensPerSecond"`
	EstimatedCostUsd   CostAmount `json:"estimatedCostUsd"`
	Provider           string     `json:"provider"`
}

// StreamFrame is one element of the Server-Sent-Events sequence emitted
// by the streaming endpoint.
type StreamFrame struct {
	Type     StreamFrameType         `json:"type"`
	Content  string                  `json:"content,omitempty"`
	Metadata *StreamCompleteMetadata `json:"metadata,omitempty"`
}

func ChunkFrame(content string) StreamFrame {
	return StreamFrame{Type: FrameChunk, Content: content}
}

func CompleteFrame(meta StreamCompleteMetadata) StreamFrame {
	return StreamFrame{Type: FrameComplete, Metadata: &meta}
}
