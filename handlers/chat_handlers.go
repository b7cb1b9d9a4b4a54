// Package handlers is the thin HTTP transport collaborator spec.md §1
// deliberately excludes from the orchestration core: JSON binding,
// status-code mapping, and SSE framing around core.Router,
// core.AttemptLoop, core.Accountant and core.StreamingAssembler.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tributary-ai-services/llm-gateway/core"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
	"github.com/tributary-ai-services/llm-gateway/internal/logging"
	"github.com/tributary-ai-services/llm-gateway/models"
	"github.com/tributary-ai-services/llm-gateway/store"
)

// ChatHandler wires the two external interfaces of spec.md §6
// (`/v1/chat/completions`, `/v1/chat/completions/stream`) plus the
// supplemented usage-stats endpoint from SPEC_FULL.md §12.1 onto the
// orchestration core. The §12.2 health endpoint is the free function
// GetHealthz below.
type ChatHandler struct {
	router      *core.Router
	attemptLoop *core.AttemptLoop
	accountant  *core.Accountant
	streaming   *core.StreamingAssembler
	usage       *store.RequestLogStore
	logger      *logging.Logger
}

func NewChatHandler(router *core.Router, attemptLoop *core.AttemptLoop, accountant *core.Accountant, streaming *core.StreamingAssembler, usage *store.RequestLogStore, logger *logging.Logger) *ChatHandler {
	return &ChatHandler{
		router:      router,
		attemptLoop: attemptLoop,
		accountant:  accountant,
		streaming:   streaming,
		usage:       usage,
		logger:      logger,
	}
}

type chatResponseWire struct {
	Content          string            `json:"content"`
	Model            string            `json:"model"`
	TokensUsed       int               `json:"tokensUsed"`
	EstimatedCostUsd models.CostAmount `json:"estimatedCostUsd"`
	ResponseTime     string            `json:"responseTime"`
}

// PostChatCompletions implements POST /v1/chat/completions.
func (h *ChatHandler) PostChatCompletions(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, gatewayerr.Validation(fmt.Errorf("malformed request body: %w", err)))
		return
	}
	if errs := req.Validate(); errs.HasErrors() {
		WriteProblem(c, gatewayerr.Validation(errs))
		return
	}

	ctx := c.Request.Context()
	estimatedInputTokens := models.EstimateTokens(req.Messages)

	initialModel, err := h.router.Select(estimatedInputTokens, req.RequestedModel())
	if err != nil {
		WriteProblem(c, err)
		return
	}

	start := time.Now()
	outcome := h.attemptLoop.Execute(ctx, req.Messages, initialModel, req.EffectiveTemperature(), req.EffectiveMaxTokens(), estimatedInputTokens)
	if !outcome.IsSuccess() {
		WriteProblem(c, outcome.TerminalFailure)
		return
	}

	success := *outcome.Success
	responseTime := time.Since(start)
	cost := h.accountant.Track(ctx, success.ModelUsed, success.InputTokens, success.OutputTokens, success.ModelUsed.Provider(), responseTime, success.WasFallback())

	resp := models.ChatResponse{ResponseTime: responseTime}
	c.JSON(http.StatusOK, chatResponseWire{
		Content:          success.Content,
		Model:            success.ModelUsed.String(),
		TokensUsed:       success.InputTokens.Int() + success.OutputTokens.Int(),
		EstimatedCostUsd: cost,
		ResponseTime:     resp.ResponseTimeString(),
	})
}

// PostChatCompletionsStream implements POST /v1/chat/completions/stream.
func (h *ChatHandler) PostChatCompletionsStream(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteProblem(c, gatewayerr.Validation(fmt.Errorf("malformed request body: %w", err)))
		return
	}

	frames, err := h.streaming.Run(c.Request.Context(), req)
	if err != nil {
		WriteProblem(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		frame, open := <-frames
		if !open {
			return false
		}
		data, err := json.Marshal(frame)
		if err != nil {
			h.logger.Errorf("failed to marshal stream frame: %v", err)
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		return frame.Type != models.FrameComplete
	})
}

// GetUsageStats implements GET /v1/usage/stats (SPEC_FULL.md §12.1).
func (h *ChatHandler) GetUsageStats(c *gin.Context) {
	summary, err := h.usage.Summarize(c.Request.Context())
	if err != nil {
		WriteProblem(c, gatewayerr.AccountingFailure(err))
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetHealthz implements GET /healthz (SPEC_FULL.md §12.2). It reports
// process liveness only — per the resolved Open Question #4, provider
// health-check logic never feeds into routing decisions here.
func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
