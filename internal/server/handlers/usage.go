package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/modules"
)

// UsageHandler serves GET /usage.
type UsageHandler struct {
	stats *modules.UsageStats
}

// NewUsageHandler creates a UsageHandler.
func NewUsageHandler(stats *modules.UsageStats) *UsageHandler {
	return &UsageHandler{stats: stats}
}

// Usage returns the hourly request counters, newest first. The days query
// parameter bounds the window (default 7, max 30).
func (h *UsageHandler) Usage(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 30 {
			days = n
		}
	}
	history, err := h.stats.History(c.Request.Context(), days)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "api_error", "Reading usage stats: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "hours": history})
}
