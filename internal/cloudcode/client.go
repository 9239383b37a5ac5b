package cloudcode

import (
	"context"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

// Client is the facade the server talks to.
type Client struct {
	handler *Handler
}

// NewClient creates a Client over the account pool.
func NewClient(accounts *account.Manager, cfg *config.Config) *Client {
	return &Client{handler: NewHandler(accounts, cfg)}
}

// CreateChatCompletion serves one chat completion.
func (c *Client) CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	return c.handler.CreateChatCompletion(ctx, req)
}

// ListModels returns the supported model table in OpenAI list form.
func (c *Client) ListModels() *openai.ModelList {
	created := time.Now().Unix()
	list := &openai.ModelList{Object: "list"}
	for _, id := range config.AntigravityModels {
		list.Data = append(list.Data, openai.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "antigravity",
		})
	}
	return list
}
