package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelFamily(t *testing.T) {
	assert.Equal(t, "claude", GetModelFamily("claude-sonnet-4.5"))
	assert.Equal(t, "claude", GetModelFamily("CLAUDE-OPUS-4.5-THINKING"))
	assert.Equal(t, "gemini", GetModelFamily("gemini-3-flash"))
	assert.Equal(t, "unknown", GetModelFamily("gpt-4o"))
	assert.Equal(t, "unknown", GetModelFamily(""))
}

func TestIsThinkingModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"claude-sonnet-4.5-thinking", true},
		{"claude-opus-4.5-thinking", true},
		{"claude-sonnet-4.5", false},
		{"gemini-2.5-flash-thinking", true},
		{"gemini-2.5-flash", false},
		{"gemini-2.5-pro", false},
		{"gemini-3-flash", true}, // generation 3+ thinks by default
		{"gemini-3-pro-high", true},
		{"gemini-4-experimental", true},
		{"gpt-4o", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsThinkingModel(tt.model), "model %s", tt.model)
	}
}

func TestModelFallbackChainCrossesFamilies(t *testing.T) {
	for model, fallback := range ModelFallbackMap {
		assert.NotEqual(t, GetModelFamily(model), GetModelFamily(fallback),
			"%s must fall back to the other family", model)
		assert.True(t, IsSupportedModel(fallback), "fallback %s must be a supported model", fallback)
	}
	// Every supported model has a fallback.
	for _, model := range AntigravityModels {
		_, ok := GetFallbackModel(model)
		assert.True(t, ok, "model %s has no fallback", model)
	}
}

func TestGetFallbackModelUnknown(t *testing.T) {
	_, ok := GetFallbackModel("gpt-4o")
	assert.False(t, ok)
}

func TestEndpointFallbackOrder(t *testing.T) {
	endpoints := AntigravityEndpointFallbacks()
	require.Len(t, endpoints, 2)
	assert.Equal(t, "https://daily-cloudcode-pa.sandbox.googleapis.com", endpoints[0])
	assert.Equal(t, "https://cloudcode-pa.googleapis.com", endpoints[1])
}

func TestOAuthRedirectURI(t *testing.T) {
	assert.Equal(t, "http://localhost:51121/oauth-callback", OAuthRedirectURI())
}

func TestAntigravityHeaders(t *testing.T) {
	headers := AntigravityHeaders()
	assert.Contains(t, headers["User-Agent"], "antigravity/"+AntigravityVersion)
	assert.Equal(t, "google-cloud-sdk vscode_cloudshelleditor/0.1", headers["X-Goog-Api-Client"])
	assert.JSONEq(t,
		`{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
		headers["Client-Metadata"])
}
