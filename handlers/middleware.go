package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationIDContextKey = "correlationId"

// CorrelationMiddleware reads X-Correlation-ID if present, else generates
// a fresh one, stashes it on the gin context, and echoes it on the
// response — spec.md §6's header-propagation rule, applied to every
// route (including the ones that never reach a ProblemDetails body).
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationIDContextKey, id)
		c.Writer.Header().Set("X-Correlation-ID", id)
		c.Next()
	}
}

// CorrelationID reads back the id CorrelationMiddleware attached to c.
func CorrelationID(c *gin.Context) string {
	if v, ok := c.Get(correlationIDContextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
