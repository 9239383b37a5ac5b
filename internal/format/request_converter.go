package format

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

// ConvertRole maps an OpenAI role to a Google role. Anything that is not an
// assistant turn becomes "user".
func ConvertRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

// ConvertContentToParts converts message content into Google parts.
// Blank text blocks are dropped (they trip upstream validation), unsigned
// or short-signed thinking blocks are dropped, and unknown content shapes
// degrade to stringified text.
func ConvertContentToParts(content interface{}, model string) []GooglePart {
	family := config.GetModelFamily(model)
	isClaude := family == "claude"
	isGemini := family == "gemini"

	parts := make([]GooglePart, 0)
	for _, block := range openai.BlocksFromContent(content) {
		switch block.Type {
		case "text":
			if strings.TrimSpace(block.Text) != "" {
				parts = append(parts, GooglePart{Text: block.Text})
			}

		case "image", "document":
			if block.Source == nil {
				continue
			}
			switch block.Source.Type {
			case "base64":
				parts = append(parts, GooglePart{InlineData: &InlineData{
					MimeType: block.Source.MediaType,
					Data:     block.Source.Data,
				}})
			case "url":
				mimeType := block.Source.MediaType
				if mimeType == "" {
					mimeType = "image/jpeg"
				}
				parts = append(parts, GooglePart{FileData: &FileData{
					MimeType: mimeType,
					FileURI:  block.Source.URL,
				}})
			}

		case "image_url":
			if block.ImageURL == nil {
				continue
			}
			if inline, ok := splitDataURL(block.ImageURL.URL); ok {
				parts = append(parts, GooglePart{InlineData: inline})
			} else {
				parts = append(parts, GooglePart{FileData: &FileData{
					MimeType: "image/jpeg",
					FileURI:  block.ImageURL.URL,
				}})
			}

		case "tool_use":
			fc := &FunctionCall{Name: block.Name, Args: block.Input}
			if isClaude && block.ID != "" {
				fc.ID = block.ID
			}
			part := GooglePart{FunctionCall: fc}
			if isGemini && block.ThoughtSignature != "" {
				part.ThoughtSignature = block.ThoughtSignature
			}
			parts = append(parts, part)

		case "tool_result":
			name := block.ToolUseID
			if name == "" {
				name = "unknown"
			}
			fr := &FunctionResponse{
				Name:     name,
				Response: map[string]interface{}{"result": toolResultText(block.Content)},
			}
			if isClaude && block.ToolUseID != "" {
				fr.ID = block.ToolUseID
			}
			parts = append(parts, GooglePart{FunctionResponse: fr})

		case "thinking":
			if len(block.Signature) >= config.MinSignatureLength {
				parts = append(parts, GooglePart{
					Text:             block.Thinking,
					Thought:          true,
					ThoughtSignature: block.Signature,
				})
			}
		}
	}
	return parts
}

// splitDataURL parses a data: URL into inline data.
func splitDataURL(url string) (*InlineData, bool) {
	if !strings.HasPrefix(url, "data:") {
		return nil, false
	}
	rest := strings.TrimPrefix(url, "data:")
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return nil, false
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &InlineData{MimeType: mimeType, Data: data}, true
}

// toolResultText flattens a tool result payload to a single string.
func toolResultText(content interface{}) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	}
	texts := []string{}
	for _, block := range openai.BlocksFromContent(content) {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) > 0 {
		return strings.Join(texts, "\n")
	}
	if raw, err := json.Marshal(content); err == nil {
		return string(raw)
	}
	return ""
}

// ConvertMessages converts the OpenAI message list into Google contents plus
// an optional system instruction. System turns collapse into one instruction;
// tool turns become functionResponse parts; assistant tool_calls become
// functionCall parts alongside any content.
func ConvertMessages(messages []openai.Message, model string) ([]GoogleContent, *GoogleContent) {
	family := config.GetModelFamily(model)
	isClaude := family == "claude"

	var systemTexts []string
	contents := make([]GoogleContent, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case "system", "developer":
			if text := openai.ContentText(msg.Content); strings.TrimSpace(text) != "" {
				systemTexts = append(systemTexts, text)
			}

		case "tool":
			name := msg.ToolCallID
			if name == "" {
				name = "unknown"
			}
			fr := &FunctionResponse{
				Name:     name,
				Response: map[string]interface{}{"result": toolResultText(msg.Content)},
			}
			if isClaude && msg.ToolCallID != "" {
				fr.ID = msg.ToolCallID
			}
			contents = append(contents, GoogleContent{
				Role:  "user",
				Parts: []GooglePart{{FunctionResponse: fr}},
			})

		default:
			parts := ConvertContentToParts(msg.Content, model)
			for _, tc := range msg.ToolCalls {
				args := map[string]interface{}{}
				if tc.Function.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				}
				fc := &FunctionCall{Name: tc.Function.Name, Args: args}
				if isClaude && tc.ID != "" {
					fc.ID = tc.ID
				}
				parts = append(parts, GooglePart{FunctionCall: fc})
			}
			if len(parts) == 0 {
				// Upstream rejects empty turns.
				parts = []GooglePart{{Text: "."}}
			}
			contents = append(contents, GoogleContent{
				Role:  ConvertRole(msg.Role),
				Parts: parts,
			})
		}
	}

	var system *GoogleContent
	if len(systemTexts) > 0 {
		system = &GoogleContent{
			Role:  "user",
			Parts: []GooglePart{{Text: strings.Join(systemTexts, "\n\n")}},
		}
	}
	return contents, system
}

// buildGenerationConfig maps sampling and thinking parameters, applying the
// per-family rules: the Gemini output cap, the Gemini default thinking
// budget, and the Claude headroom raise when max_tokens would not clear the
// thinking budget.
func buildGenerationConfig(req *openai.ChatCompletionRequest, model string) *GenerationConfig {
	family := config.GetModelFamily(model)
	thinking := config.IsThinkingModel(model)

	gc := &GenerationConfig{
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		MaxOutputTokens: req.MaxTokens,
		StopSequences:   stopSequences(req.Stop),
	}

	budget := 0
	if req.Thinking != nil {
		budget = req.Thinking.BudgetTokens
	}

	if thinking {
		switch family {
		case "claude":
			tc := &ThinkingConfig{IncludeThoughtsClaude: true}
			if budget > 0 {
				tc.ThinkingBudgetClaude = budget
				if gc.MaxOutputTokens > 0 && gc.MaxOutputTokens <= budget {
					gc.MaxOutputTokens = budget + config.ClaudeOutputHeadroom
				}
			}
			gc.ThinkingConfig = tc
		case "gemini":
			tc := &ThinkingConfig{IncludeThoughtsGemini: true}
			if budget > 0 {
				tc.ThinkingBudgetGemini = budget
			} else {
				tc.ThinkingBudgetGemini = config.DefaultThinkingBudget
			}
			gc.ThinkingConfig = tc
		}
	}

	if family == "gemini" && gc.MaxOutputTokens > config.GeminiMaxOutputTokens {
		gc.MaxOutputTokens = config.GeminiMaxOutputTokens
	}
	return gc
}

// stopSequences normalizes the stop parameter (scalar or list).
func stopSequences(stop interface{}) []string {
	switch s := stop.(type) {
	case nil:
		return nil
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, v := range s {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// convertTools sanitizes tool schemas and wraps them as declarations.
func convertTools(tools []openai.Tool) []GoogleTool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  SanitizeSchema(tool.Function.Parameters),
		})
	}
	return []GoogleTool{{FunctionDeclarations: decls}}
}

// SessionID derives a stable session ID from the first user message, so
// retries of the same conversation land on the same upstream session. With
// no user text it falls back to a random ID.
func SessionID(messages []openai.Message) string {
	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		text := openai.ContentText(msg.Content)
		if text == "" {
			continue
		}
		if len(text) > 500 {
			text = text[:500]
		}
		sum := sha256.Sum256([]byte(text))
		return hex.EncodeToString(sum[:])[:16]
	}
	return randomHex(8)
}

// BuildEnvelope assembles the Cloud Code request body for a chat completion.
// model may differ from req.Model after a quota fallback; the per-family
// rules follow the model actually dispatched.
func BuildEnvelope(req *openai.ChatCompletionRequest, model, projectID string) *GenerateContentEnvelope {
	contents, system := ConvertMessages(req.Messages, model)
	inner := &GoogleRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig:  buildGenerationConfig(req, model),
		Tools:             convertTools(req.Tools),
		SessionID:         SessionID(req.Messages),
	}
	return &GenerateContentEnvelope{
		Project:   projectID,
		Model:     model,
		Request:   inner,
		UserAgent: config.ProxyUserAgent,
		RequestID: "agent-" + randomHex(16),
	}
}

// randomHex returns n random bytes hex encoded.
func randomHex(n int) string {
	raw := make([]byte, n)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}
