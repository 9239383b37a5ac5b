package format

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

func floatPtr(v float64) *float64 { return &v }

func TestConvertRole(t *testing.T) {
	assert.Equal(t, "model", ConvertRole("assistant"))
	assert.Equal(t, "user", ConvertRole("user"))
	assert.Equal(t, "user", ConvertRole("function"))
}

func TestConvertMessagesSystemCollapse(t *testing.T) {
	contents, system := ConvertMessages([]openai.Message{
		{Role: "system", Content: "first rule"},
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "second rule"},
	}, "gemini-2.5-pro")

	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "first rule\n\nsecond rule", system.Parts[0].Text)

	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "hello", contents[0].Parts[0].Text)
}

func TestConvertMessagesToolTurn(t *testing.T) {
	contents, _ := ConvertMessages([]openai.Message{
		{Role: "tool", ToolCallID: "call_abc", Content: "42 degrees"},
	}, "claude-sonnet-4.5")

	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 1)
	fr := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "call_abc", fr.Name)
	assert.Equal(t, map[string]interface{}{"result": "42 degrees"}, fr.Response)
}

func TestConvertMessagesAssistantToolCalls(t *testing.T) {
	contents, _ := ConvertMessages([]openai.Message{
		{
			Role:    "assistant",
			Content: "let me check",
			ToolCalls: []openai.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: openai.FunctionCall{
					Name:      "get_weather",
					Arguments: `{"city":"Oslo"}`,
				},
			}},
		},
	}, "claude-sonnet-4.5")

	require.Len(t, contents, 1)
	assert.Equal(t, "model", contents[0].Role)
	require.Len(t, contents[0].Parts, 2, "content parts and functionCall parts coexist")
	assert.Equal(t, "let me check", contents[0].Parts[0].Text)
	fc := contents[0].Parts[1].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "get_weather", fc.Name)
	assert.Equal(t, "Oslo", fc.Args["city"])
	assert.Equal(t, "call_1", fc.ID)
}

func TestConvertMessagesEmptyTurnEmitsDot(t *testing.T) {
	contents, _ := ConvertMessages([]openai.Message{
		{Role: "user", Content: ""},
	}, "gemini-2.5-pro")

	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, ".", contents[0].Parts[0].Text)
}

func TestConvertContentToPartsImages(t *testing.T) {
	t.Run("base64 source", func(t *testing.T) {
		parts := ConvertContentToParts([]openai.ContentBlock{{
			Type:   "image",
			Source: &openai.ImageSource{Type: "base64", MediaType: "image/png", Data: "AAAA"},
		}}, "gemini-2.5-pro")
		require.Len(t, parts, 1)
		require.NotNil(t, parts[0].InlineData)
		assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
		assert.Equal(t, "AAAA", parts[0].InlineData.Data)
	})

	t.Run("data url", func(t *testing.T) {
		parts := ConvertContentToParts([]openai.ContentBlock{{
			Type:     "image_url",
			ImageURL: &openai.ImageURL{URL: "data:image/jpeg;base64,BBBB"},
		}}, "gemini-2.5-pro")
		require.Len(t, parts, 1)
		require.NotNil(t, parts[0].InlineData)
		assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
		assert.Equal(t, "BBBB", parts[0].InlineData.Data)
	})

	t.Run("http url", func(t *testing.T) {
		parts := ConvertContentToParts([]openai.ContentBlock{{
			Type:     "image_url",
			ImageURL: &openai.ImageURL{URL: "https://example.com/cat.jpg"},
		}}, "gemini-2.5-pro")
		require.Len(t, parts, 1)
		require.NotNil(t, parts[0].FileData)
		assert.Equal(t, "https://example.com/cat.jpg", parts[0].FileData.FileURI)
	})
}

func TestConvertContentToPartsThinkingSignatureGate(t *testing.T) {
	long := strings.Repeat("s", 50)
	short := strings.Repeat("s", 49)

	parts := ConvertContentToParts([]openai.ContentBlock{
		{Type: "thinking", Thinking: "kept", Signature: long},
		{Type: "thinking", Thinking: "dropped", Signature: short},
		{Type: "thinking", Thinking: "dropped too"},
	}, "claude-sonnet-4.5-thinking")

	require.Len(t, parts, 1)
	assert.Equal(t, "kept", parts[0].Text)
	assert.True(t, parts[0].Thought)
	assert.Equal(t, long, parts[0].ThoughtSignature)
}

func TestBuildGenerationConfig(t *testing.T) {
	t.Run("gemini output cap", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{MaxTokens: 32000}, "gemini-2.5-pro")
		assert.Equal(t, 16384, gc.MaxOutputTokens)
	})

	t.Run("claude not capped", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{MaxTokens: 32000}, "claude-sonnet-4.5")
		assert.Equal(t, 32000, gc.MaxOutputTokens)
	})

	t.Run("gemini thinking default budget", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{}, "gemini-3-flash")
		require.NotNil(t, gc.ThinkingConfig)
		assert.True(t, gc.ThinkingConfig.IncludeThoughtsGemini)
		assert.Equal(t, 16000, gc.ThinkingConfig.ThinkingBudgetGemini)
	})

	t.Run("claude thinking headroom", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{
			MaxTokens: 4096,
			Thinking:  &openai.Thinking{Type: "enabled", BudgetTokens: 10000},
		}, "claude-opus-4.5-thinking")
		require.NotNil(t, gc.ThinkingConfig)
		assert.True(t, gc.ThinkingConfig.IncludeThoughtsClaude)
		assert.Equal(t, 10000, gc.ThinkingConfig.ThinkingBudgetClaude)
		assert.Equal(t, 18192, gc.MaxOutputTokens, "budget + headroom when max_tokens would not clear it")
	})

	t.Run("no thinking for base models", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{}, "claude-sonnet-4.5")
		assert.Nil(t, gc.ThinkingConfig)
	})

	t.Run("sampling passthrough", func(t *testing.T) {
		gc := buildGenerationConfig(&openai.ChatCompletionRequest{
			Temperature: floatPtr(0.4),
			TopP:        floatPtr(0.9),
			Stop:        "END",
		}, "claude-sonnet-4.5")
		assert.Equal(t, 0.4, *gc.Temperature)
		assert.Equal(t, 0.9, *gc.TopP)
		assert.Equal(t, []string{"END"}, gc.StopSequences, "scalar stop wraps into a list")
	})
}

func TestStopSequences(t *testing.T) {
	assert.Nil(t, stopSequences(nil))
	assert.Equal(t, []string{"a"}, stopSequences("a"))
	assert.Equal(t, []string{"a", "b"}, stopSequences([]interface{}{"a", "b"}))
	assert.Nil(t, stopSequences(""))
}

func TestSessionIDStable(t *testing.T) {
	messages := []openai.Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "hello world"},
	}
	first := SessionID(messages)
	second := SessionID(messages)
	assert.Equal(t, first, second, "same conversation lands on the same session")
	assert.Len(t, first, 16)

	other := SessionID([]openai.Message{{Role: "user", Content: "different"}})
	assert.NotEqual(t, first, other)
}

func TestSessionIDRandomWithoutUserText(t *testing.T) {
	id := SessionID([]openai.Message{{Role: "system", Content: "rules"}})
	assert.Len(t, id, 16)
}

func TestBuildEnvelope(t *testing.T) {
	req := &openai.ChatCompletionRequest{
		Model:    "gemini-2.5-flash",
		Messages: []openai.Message{{Role: "user", Content: "hi"}},
		Tools: []openai.Tool{{
			Type: "function",
			Function: openai.ToolFunction{
				Name: "lookup",
				Parameters: map[string]interface{}{
					"$schema":    "http://json-schema.org/draft-07/schema#",
					"type":       "object",
					"properties": map[string]interface{}{"q": map[string]interface{}{"type": "string"}},
				},
			},
		}},
	}

	env := BuildEnvelope(req, "gemini-2.5-flash", "my-project")

	assert.Equal(t, "my-project", env.Project)
	assert.Equal(t, "gemini-2.5-flash", env.Model)
	assert.Equal(t, "antigravity-litellm", env.UserAgent)
	assert.True(t, strings.HasPrefix(env.RequestID, "agent-"))
	assert.Len(t, strings.TrimPrefix(env.RequestID, "agent-"), 32)
	assert.NotEmpty(t, env.Request.SessionID)

	require.Len(t, env.Request.Tools, 1)
	require.Len(t, env.Request.Tools[0].FunctionDeclarations, 1)
	decl := env.Request.Tools[0].FunctionDeclarations[0]
	assert.NotContains(t, decl.Parameters, "$schema")
}

// openai -> google -> openai keeps text and tool-call names/arguments intact.
func TestRoundTripTextAndToolCalls(t *testing.T) {
	req := &openai.ChatCompletionRequest{
		Model: "claude-sonnet-4.5",
		Messages: []openai.Message{
			{Role: "user", Content: "what's the weather"},
		},
	}
	env := BuildEnvelope(req, "claude-sonnet-4.5", "p")
	require.Len(t, env.Request.Contents, 1)
	assert.Equal(t, "what's the weather", env.Request.Contents[0].Parts[0].Text)

	upstream := &GenerateContentResult{
		Candidates: []GoogleCandidate{{
			Content: &GoogleContent{
				Role: "model",
				Parts: []GooglePart{
					{Text: "Checking now."},
					{FunctionCall: &FunctionCall{
						Name: "get_weather",
						Args: map[string]interface{}{"city": "Oslo"},
					}},
				},
			},
			FinishReason: "STOP",
		}},
	}
	resp := ConvertResponse(upstream, "claude-sonnet-4.5")

	require.Len(t, resp.Choices, 1)
	msg := resp.Choices[0].Message
	require.NotNil(t, msg.Content)
	assert.Equal(t, "Checking now.", *msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Function.Name)

	var args map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.ToolCalls[0].Function.Arguments), &args))
	assert.Equal(t, "Oslo", args["city"])
}
