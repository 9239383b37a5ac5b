package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	accounts *account.Manager
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(accounts *account.Manager) *HealthHandler {
	return &HealthHandler{accounts: accounts}
}

// Health reports liveness and a pool summary. The server is degraded when no
// account can currently serve requests.
func (h *HealthHandler) Health(c *gin.Context) {
	total := h.accounts.Count()
	available := h.accounts.AvailableCount("")

	status := "ok"
	if total == 0 || available == 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"accounts":           total,
		"accounts_available": available,
	})
}
