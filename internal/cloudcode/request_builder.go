package cloudcode

import (
	"net/http"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
)

// generateContentPath is the Cloud Code completion RPC.
const generateContentPath = "/v1internal:generateContent"

// BuildHeaders assembles the upstream request headers for one call: the
// Antigravity client identity, the bearer token, and the interleaved
// thinking beta flag for Claude thinking models.
func BuildHeaders(accessToken, model string) http.Header {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+accessToken)
	headers.Set("Content-Type", "application/json")
	for k, v := range config.AntigravityHeaders() {
		headers.Set(k, v)
	}
	if config.GetModelFamily(model) == "claude" && config.IsThinkingModel(model) {
		headers.Set("anthropic-beta", config.InterleavedThinkingBeta)
	}
	return headers
}
