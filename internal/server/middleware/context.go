// Package middleware holds the gin middleware of the HTTP surface.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-auth/backend/internal/logger"
)

const (
	// RequestIDHeader carries the correlation id in requests and responses.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for the correlation id.
	RequestIDKey = "request_id"
	// PrincipalKey is the gin context key for the verified session principal.
	PrincipalKey = "principal"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse builds an ErrorResponse carrying the request id of c.
func NewErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{Error: msg, RequestID: GetRequestID(c)}
}

// AbortWithError aborts c with status and an ErrorResponse.
func AbortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(c, msg))
}

// GetRequestID returns the request id assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	if c.Request != nil {
		return logger.RequestID(c.Request.Context())
	}
	return ""
}

// NotFound answers unknown routes with an ErrorResponse.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		AbortWithError(c, http.StatusNotFound, "not found")
	}
}
