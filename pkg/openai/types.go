// Package openai defines the OpenAI chat-completion wire types accepted and
// produced by the proxy.
package openai

import (
	"encoding/json"
	"fmt"
)

// ChatCompletionRequest is a request to POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string      `json:"model"`
	Messages    []Message   `json:"messages"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	TopP        *float64    `json:"top_p,omitempty"`
	Stop        interface{} `json:"stop,omitempty"` // string or []string
	Stream      bool        `json:"stream,omitempty"`
	Tools       []Tool      `json:"tools,omitempty"`
	ToolChoice  interface{} `json:"tool_choice,omitempty"`
	Thinking    *Thinking   `json:"thinking,omitempty"`
}

// Thinking configures extended-thinking output.
type Thinking struct {
	Type         string `json:"type,omitempty"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Message is one chat message. Content is either a plain string or a list
// of content blocks; use BlocksFromContent to normalize.
type Message struct {
	Role       string      `json:"role"`
	Content    interface{} `json:"content,omitempty"`
	Name       string      `json:"name,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// ToolCall is an assistant tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function half of a Tool.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ContentBlock is one element of a block-list message content. The union is
// flattened with omitempty, one variant per Type.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image_url (OpenAI style)
	ImageURL *ImageURL `json:"image_url,omitempty"`

	// image (Anthropic style, accepted for compatibility)
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result
	ToolUseID string      `json:"tool_use_id,omitempty"`
	Content   interface{} `json:"content,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Gemini signature carried on tool_use blocks
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

// ImageURL is the image_url payload; URL may be a data: URL.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ImageSource is an Anthropic-style image source.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// BlocksFromContent normalizes message content. A string becomes a single
// text block. A block list round-trips through JSON into typed blocks.
// Anything else is stringified into a text block, so unknown shapes degrade
// instead of failing.
func BlocksFromContent(content interface{}) []ContentBlock {
	switch c := content.(type) {
	case nil:
		return nil
	case string:
		return []ContentBlock{{Type: "text", Text: c}}
	case []ContentBlock:
		return c
	}
	raw, err := json.Marshal(content)
	if err == nil {
		var blocks []ContentBlock
		if err := json.Unmarshal(raw, &blocks); err == nil {
			return blocks
		}
	}
	return []ContentBlock{{Type: "text", Text: fmt.Sprintf("%v", content)}}
}

// ContentText flattens message content to plain text: strings pass through,
// block lists concatenate their text blocks.
func ContentText(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	text := ""
	for _, block := range BlocksFromContent(content) {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text
}

// ChatCompletionResponse is the non-streaming completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion choice.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the assistant turn in a response. Content is null when
// the model produced only tool calls.
type AssistantMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model is one entry of the GET /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
