// Package handler serves the development mailbox (GET /dev/otp).
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-auth/backend/internal/devotp"
	"portal-auth/backend/internal/server/middleware"
)

const devOTPNote = "DEV MODE ONLY"

// Handler reads captured messages. Only registered when dev OTP is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler that reads from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

type mailboxResponse struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Note     string `json:"note"`
}

// Get returns the last message sent to ?email=. 404 if missing or expired.
func (h *Handler) Get(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, "email is required")
		return
	}
	m, ok := h.store.Get(c.Request.Context(), email)
	if !ok {
		middleware.AbortWithError(c, http.StatusNotFound, "no message found or expired")
		return
	}
	c.JSON(http.StatusOK, mailboxResponse{
		To:       email,
		Template: m.Template,
		Subject:  m.Subject,
		Body:     m.Body,
		Note:     devOTPNote,
	})
}
