package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadyCheck probes one backend dependency.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness/readiness plus the service banner; each
// service passes in checks for the backends it actually uses.
type HealthHandler struct {
	serviceName string
	checks      []ReadyCheck
}

func NewHealthHandler(serviceName string, checks ...ReadyCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, checks: checks}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": h.serviceName, "status": "running"})
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	status := gin.H{"status": "ok"}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", check.Name: "unavailable"})
			return
		}
		status[check.Name] = "connected"
	}

	c.JSON(http.StatusOK, status)
}
