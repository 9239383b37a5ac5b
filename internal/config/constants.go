// Package config holds the constants and runtime configuration for the
// Antigravity OpenAI proxy.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// AntigravityVersion is the client version reported to the upstream API.
const AntigravityVersion = "1.11.5"

// Upstream Cloud Code endpoints, tried in order.
const (
	AntigravityEndpointDaily = "https://daily-cloudcode-pa.sandbox.googleapis.com"
	AntigravityEndpointProd  = "https://cloudcode-pa.googleapis.com"
)

// AntigravityEndpointFallbacks returns the default endpoint fallback order.
func AntigravityEndpointFallbacks() []string {
	return []string{AntigravityEndpointDaily, AntigravityEndpointProd}
}

// DefaultProjectID is used when project discovery fails on every endpoint.
const DefaultProjectID = "rising-fact-p41fc"

// Timing and retry limits.
const (
	DefaultCooldownMs    = 60000  // cooldown when a 429 carries no reset hint
	MaxRetries           = 5      // account rotation attempts per request
	MaxWaitBeforeErrorMs = 120000 // longest rate-limit wait worth sleeping through
	MaxAccounts          = 10
)

// Model parameters.
const (
	GeminiMaxOutputTokens = 16384 // hard cap for the Gemini family
	DefaultThinkingBudget = 16000 // Gemini thinking budget when unspecified
	MinSignatureLength    = 50    // shortest accepted thought signature
	ClaudeOutputHeadroom  = 8192  // added above the thinking budget for Claude
)

// InterleavedThinkingBeta is sent for Claude thinking models.
const InterleavedThinkingBeta = "interleaved-thinking-2025-05-14"

// ProxyUserAgent identifies this gateway in the request envelope.
const ProxyUserAgent = "antigravity-litellm"

// OAuthConfigType describes the Google installed-app OAuth client.
type OAuthConfigType struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	CallbackPort int
	Scopes       []string
}

// OAuthConfig is the Antigravity installed-application OAuth client. The
// credentials below are the application's public installed-app identity and
// are embedded by every Antigravity distribution.
var OAuthConfig = OAuthConfigType{
	ClientID:     "1071006060591-tmhssin2h21lcre235vtolojh4g403ep.apps.googleusercontent.com",
	ClientSecret: "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",
	AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:     "https://oauth2.googleapis.com/token",
	UserInfoURL:  "https://www.googleapis.com/oauth2/v1/userinfo",
	CallbackPort: 51121,
	Scopes: []string{
		"https://www.googleapis.com/auth/cloud-platform",
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
		"https://www.googleapis.com/auth/cclog",
		"https://www.googleapis.com/auth/experimentsandconfigs",
	},
}

// OAuthRedirectURI returns the loopback redirect for the callback server.
func OAuthRedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/oauth-callback", OAuthConfig.CallbackPort)
}

// AntigravityModels lists the models this gateway accepts.
var AntigravityModels = []string{
	"claude-sonnet-4.5",
	"claude-sonnet-4.5-thinking",
	"claude-opus-4.5-thinking",
	"gemini-3-flash",
	"gemini-3-pro-low",
	"gemini-3-pro-high",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

// ModelFallbackMap pairs each model with the model tried when its quota is
// exhausted. The map is intentionally cyclic between the families.
var ModelFallbackMap = map[string]string{
	"gemini-3-pro-high":          "claude-opus-4.5-thinking",
	"gemini-3-pro-low":           "claude-sonnet-4.5",
	"gemini-3-flash":             "claude-sonnet-4.5-thinking",
	"gemini-2.5-flash":           "claude-sonnet-4.5",
	"gemini-2.5-pro":             "claude-opus-4.5-thinking",
	"claude-opus-4.5-thinking":   "gemini-3-pro-high",
	"claude-sonnet-4.5-thinking": "gemini-3-flash",
	"claude-sonnet-4.5":          "gemini-2.5-flash",
}

// GetFallbackModel returns the fallback for a model, if any.
func GetFallbackModel(model string) (string, bool) {
	fallback, ok := ModelFallbackMap[model]
	return fallback, ok
}

// IsSupportedModel reports whether the model is in the accepted set.
func IsSupportedModel(model string) bool {
	for _, m := range AntigravityModels {
		if m == model {
			return true
		}
	}
	return false
}

// GetModelFamily classifies a model ID as "claude", "gemini" or "unknown"
// by substring, so unlisted variants still route correctly.
func GetModelFamily(model string) string {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "claude") {
		return "claude"
	}
	if strings.Contains(lower, "gemini") {
		return "gemini"
	}
	return "unknown"
}

var geminiGenerationPattern = regexp.MustCompile(`gemini[.-]?(\d+)`)

// IsThinkingModel reports whether thinking output should be requested.
// Claude models opt in with a "-thinking" suffix. Gemini models opt in with
// the suffix or, from generation 3 on, by default.
func IsThinkingModel(model string) bool {
	lower := strings.ToLower(model)
	switch GetModelFamily(lower) {
	case "claude":
		return strings.Contains(lower, "thinking")
	case "gemini":
		if strings.Contains(lower, "thinking") {
			return true
		}
		if m := geminiGenerationPattern.FindStringSubmatch(lower); m != nil {
			if gen, err := strconv.Atoi(m[1]); err == nil {
				return gen >= 3
			}
		}
	}
	return false
}

// AntigravityHeaders returns the headers identifying this client to the
// Cloud Code API.
func AntigravityHeaders() map[string]string {
	return map[string]string{
		"User-Agent":        fmt.Sprintf("antigravity/%s %s/%s", AntigravityVersion, runtime.GOOS, runtime.GOARCH),
		"X-Goog-Api-Client": "google-cloud-sdk vscode_cloudshelleditor/0.1",
		"Client-Metadata":   `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
	}
}
