package format

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

// ParseGenerateContentResponse decodes an upstream response body, accepting
// both the enveloped and the bare shape.
func ParseGenerateContentResponse(body []byte) (*GenerateContentResult, error) {
	var wire generateContentWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding upstream response: %w", err)
	}
	if wire.Response != nil {
		return wire.Response, nil
	}
	return &wire.GenerateContentResult, nil
}

// ConvertResponse maps an upstream result to an OpenAI chat completion.
// Thought parts count toward classification but only plain text reaches the
// message content; functionCall parts become tool calls.
func ConvertResponse(result *GenerateContentResult, model string) *openai.ChatCompletionResponse {
	text := ""
	sawText := false
	var toolCalls []openai.ToolCall
	finishReason := "stop"

	if len(result.Candidates) > 0 {
		candidate := result.Candidates[0]
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.FunctionCall != nil:
					id := part.FunctionCall.ID
					if id == "" {
						id = "call_" + randomHex(12)
					}
					args := "{}"
					if part.FunctionCall.Args != nil {
						if raw, err := json.Marshal(part.FunctionCall.Args); err == nil {
							args = string(raw)
						}
					}
					toolCalls = append(toolCalls, openai.ToolCall{
						ID:   id,
						Type: "function",
						Function: openai.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: args,
						},
					})
				case part.Thought:
					// thinking output is not replayed to the caller
				default:
					text += part.Text
					sawText = true
				}
			}
		}
		// STOP and MAX_TOKENS take precedence; only other finish reasons
		// report tool_calls when functionCall parts are present.
		switch candidate.FinishReason {
		case "STOP":
			finishReason = "stop"
		case "MAX_TOKENS":
			finishReason = "length"
		default:
			if len(toolCalls) > 0 {
				finishReason = "tool_calls"
			}
		}
	}

	message := openai.AssistantMessage{Role: "assistant", ToolCalls: toolCalls}
	if sawText {
		message.Content = &text
	}

	resp := &openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + randomHex(16),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.Choice{{
			Index:        0,
			Message:      message,
			FinishReason: finishReason,
		}},
	}

	// usage is always present on the wire, zeroed when the upstream omits it
	resp.Usage = &openai.Usage{}
	if u := result.UsageMetadata; u != nil {
		prompt := u.PromptTokenCount - u.CachedContentTokenCount
		if prompt < 0 {
			prompt = 0
		}
		completion := u.CandidatesTokenCount
		total := u.TotalTokenCount
		if total == 0 {
			total = prompt + completion
		}
		resp.Usage.PromptTokens = prompt
		resp.Usage.CompletionTokens = completion
		resp.Usage.TotalTokens = total
	}
	return resp
}
