package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/poemonsense/antigravity-openai-proxy/internal/cloudcode"
)

// ModelsHandler serves GET /v1/models.
type ModelsHandler struct {
	client *cloudcode.Client
}

// NewModelsHandler creates a ModelsHandler.
func NewModelsHandler(client *cloudcode.Client) *ModelsHandler {
	return &ModelsHandler{client: client}
}

// ListModels returns the supported model table.
func (h *ModelsHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.ListModels())
}
