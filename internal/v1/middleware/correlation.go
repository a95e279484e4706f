// Package middleware holds small gin middlewares shared by the admin
// HTTP surface.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/logging"
)

// HeaderXCorrelationID is the header carrying the correlation id, echoed
// back on the response and threaded into the request context so
// logging.Error/Warn/Info calls along the request's path tag it.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID stamps every admin HTTP request with a correlation id,
// reusing one supplied by the caller if present.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Header(HeaderXCorrelationID, correlationID)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
