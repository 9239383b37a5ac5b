package cloudcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHeaders(t *testing.T) {
	headers := BuildHeaders("tok-123", "gemini-2.5-pro")

	assert.Equal(t, "Bearer tok-123", headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(headers.Get("User-Agent"), "antigravity/"))
	assert.Equal(t, "google-cloud-sdk vscode_cloudshelleditor/0.1", headers.Get("X-Goog-Api-Client"))
	assert.Contains(t, headers.Get("Client-Metadata"), `"pluginType":"GEMINI"`)
	assert.Empty(t, headers.Get("anthropic-beta"))
}

func TestBuildHeadersInterleavedThinking(t *testing.T) {
	headers := BuildHeaders("tok", "claude-opus-4.5-thinking")
	assert.Equal(t, "interleaved-thinking-2025-05-14", headers.Get("anthropic-beta"))

	// Plain Claude and Gemini thinking models do not get the beta flag.
	assert.Empty(t, BuildHeaders("tok", "claude-sonnet-4.5").Get("anthropic-beta"))
	assert.Empty(t, BuildHeaders("tok", "gemini-3-pro-high").Get("anthropic-beta"))
}
