package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal-auth/backend/internal/audit"
	"portal-auth/backend/internal/logger"
)

const maxRequestIDLen = 128

// RequestID injects a correlation identifier and the client IP into the request
// context so service logs, audit rows and auth events share them.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDKey, reqID)
		c.Writer.Header().Set(RequestIDHeader, reqID)

		ctx := logger.WithRequestID(c.Request.Context(), reqID)
		ctx = audit.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
