// Package handlers provides the HTTP request handlers of the proxy server.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/cloudcode"
	"github.com/poemonsense/antigravity-openai-proxy/internal/errors"
	"github.com/poemonsense/antigravity-openai-proxy/internal/modules"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	client *cloudcode.Client
	stats  *modules.UsageStats
}

// NewChatHandler creates a ChatHandler. stats may be nil.
func NewChatHandler(client *cloudcode.Client, stats *modules.UsageStats) *ChatHandler {
	return &ChatHandler{client: client, stats: stats}
}

// ChatCompletions handles one chat completion request.
func (h *ChatHandler) ChatCompletions(c *gin.Context) {
	var req openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		sendError(c, http.StatusBadRequest, "invalid_request_error", "messages is required and must be a non-empty array")
		return
	}
	if req.Stream {
		sendError(c, http.StatusBadRequest, "invalid_request_error", "streaming is not supported, set stream to false")
		return
	}

	utils.Info("chat completion for model %s (%d messages)", req.Model, len(req.Messages))

	resp, err := h.client.CreateChatCompletion(c.Request.Context(), &req)
	if err != nil {
		status := errors.HTTPStatusFromError(err)
		if status >= 500 {
			utils.Error("chat completion failed: %v", err)
		}
		c.JSON(status, errors.FormatAPIError(err))
		return
	}

	if h.stats != nil {
		h.stats.RecordRequest(c.Request.Context(), resp.Model)
	}
	c.JSON(http.StatusOK, resp)
}

func sendError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"type":    errType,
			"message": message,
		},
	})
}
