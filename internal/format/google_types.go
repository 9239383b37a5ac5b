// Package format converts between the OpenAI chat schema and the Google
// Content schema spoken by the Cloud Code API.
package format

// GoogleContent is one turn in Google format.
type GoogleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GooglePart `json:"parts"`
}

// GooglePart is one part of a turn. One variant per part; Thought marks
// thinking text.
type GooglePart struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	ThoughtSignature string            `json:"thoughtSignature,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FileData         *FileData         `json:"fileData,omitempty"`
}

// FunctionCall is a model-issued tool invocation.
type FunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
	ID   string                 `json:"id,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response,omitempty"`
	ID       string                 `json:"id,omitempty"`
}

// InlineData is base64 media.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileData is URL-referenced media.
type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// ThinkingConfig carries thinking options. Claude expects snake_case keys
// and Gemini camelCase, so the struct holds both and the builder populates
// exactly one pair.
type ThinkingConfig struct {
	IncludeThoughtsClaude bool `json:"include_thoughts,omitempty"`
	ThinkingBudgetClaude  int  `json:"thinking_budget,omitempty"`
	IncludeThoughtsGemini bool `json:"includeThoughts,omitempty"`
	ThinkingBudgetGemini  int  `json:"thinkingBudget,omitempty"`
}

// GenerationConfig mirrors the Google generationConfig block.
type GenerationConfig struct {
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// GoogleTool wraps function declarations.
type GoogleTool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// FunctionDeclaration is one declared function.
type FunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// GoogleRequest is the inner request of the Cloud Code envelope.
type GoogleRequest struct {
	Contents          []GoogleContent   `json:"contents"`
	SystemInstruction *GoogleContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []GoogleTool      `json:"tools,omitempty"`
	SessionID         string            `json:"sessionId,omitempty"`
}

// GenerateContentEnvelope is the body POSTed to /v1internal:generateContent.
type GenerateContentEnvelope struct {
	Project   string         `json:"project"`
	Model     string         `json:"model"`
	Request   *GoogleRequest `json:"request"`
	UserAgent string         `json:"userAgent"`
	RequestID string         `json:"requestId"`
}

// GoogleCandidate is one response candidate.
type GoogleCandidate struct {
	Content      *GoogleContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
}

// GoogleUsage is the upstream token accounting block.
type GoogleUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
}

// GenerateContentResult is the upstream response payload.
type GenerateContentResult struct {
	Candidates    []GoogleCandidate `json:"candidates"`
	UsageMetadata *GoogleUsage      `json:"usageMetadata"`
}

// generateContentWire decodes both the wrapped ({"response": {...}}) and the
// bare response shape the API produces.
type generateContentWire struct {
	Response *GenerateContentResult `json:"response"`
	GenerateContentResult
}
