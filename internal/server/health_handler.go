package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portal-auth/backend/internal/health"
)

// HealthHandler exposes liveness and readiness.
type HealthHandler struct {
	checker   *health.Checker
	startedAt time.Time
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker, startedAt: time.Now().UTC()}
}

type healthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", StartedAt: h.startedAt})
}

// Ready handles GET /readyz; 503 when any dependency is down.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks, err := h.checker.Check(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable", StartedAt: h.startedAt, Checks: checks})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ready", StartedAt: h.startedAt, Checks: checks})
}
