package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tenacademy/onboarding-api/pkg/response"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	env     string
	started time.Time
}

// NewHealthHandler constructs handler.
func NewHealthHandler(env string) *HealthHandler {
	return &HealthHandler{env: env, started: time.Now()}
}

// Health returns liveness information.
func (h *HealthHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, "ok", gin.H{
		"status": "healthy",
		"env":    h.env,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
