// Package auth implements the Google OAuth credential lifecycle for
// Antigravity accounts: PKCE authorization, token exchange and refresh,
// project discovery and the on-disk account store.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/errors"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// PKCEPair holds a PKCE verifier and its S256 challenge.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE creates a PKCE pair: a 32-byte random verifier and the
// base64url-encoded SHA-256 challenge, both unpadded.
func GeneratePKCE() (*PKCEPair, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating PKCE verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	return &PKCEPair{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// GenerateState creates a 16-byte hex CSRF state token.
func GenerateState() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// GetAuthorizationURL builds the browser authorization URL for the given
// PKCE challenge and state.
func GetAuthorizationURL(challenge, state string) string {
	params := url.Values{}
	params.Set("client_id", config.OAuthConfig.ClientID)
	params.Set("redirect_uri", config.OAuthRedirectURI())
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(config.OAuthConfig.Scopes, " "))
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("state", state)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return config.OAuthConfig.AuthURL + "?" + params.Encode()
}

// TokenResponse is the token endpoint response for exchange and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// ExchangeCode redeems an authorization code for tokens.
func ExchangeCode(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", config.OAuthConfig.ClientID)
	form.Set("client_secret", config.OAuthConfig.ClientSecret)
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", config.OAuthRedirectURI())

	body, status, err := postForm(ctx, config.OAuthConfig.TokenURL, form)
	if err != nil {
		return nil, errors.NewAuthError(fmt.Sprintf("token exchange failed: %v", err), "")
	}
	if status < 200 || status >= 300 {
		return nil, errors.NewAuthError(fmt.Sprintf("token exchange failed: status %d: %s", status, body), "")
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, errors.NewAuthError(fmt.Sprintf("token exchange failed: malformed response: %v", err), "")
	}
	if tokens.RefreshToken == "" {
		return nil, errors.NewAuthError("token exchange returned no refresh token (revoke prior grants and retry)", "")
	}
	return &tokens, nil
}

// RefreshAccessToken redeems a refresh token for a fresh access token.
// A non-2xx response means the refresh token was rejected and the account
// needs re-authorization.
func RefreshAccessToken(ctx context.Context, email, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", config.OAuthConfig.ClientID)
	form.Set("client_secret", config.OAuthConfig.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	body, status, err := postForm(ctx, config.OAuthConfig.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("token refresh for %s: %w", email, err)
	}
	if status < 200 || status >= 300 {
		return nil, errors.NewInvalidCredentialsError(email, fmt.Sprintf("status %d: %s", status, body))
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("token refresh for %s: malformed response: %w", email, err)
	}
	if tokens.AccessToken == "" {
		return nil, errors.NewInvalidCredentialsError(email, "response carried no access token")
	}
	return &tokens, nil
}

// GetUserEmail looks up the account email for an access token.
func GetUserEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.OAuthConfig.UserInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo request: status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("userinfo request: malformed response: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("userinfo request: response carried no email")
	}
	return info.Email, nil
}

func postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// FlowResult is the outcome of a completed OAuth flow.
type FlowResult struct {
	Email        string
	RefreshToken string
	AccessToken  string
	ExpiresIn    int
	ProjectID    string
}

// CompleteOAuthFlow exchanges an authorization code and resolves the
// account's email and Cloud Code project.
func CompleteOAuthFlow(ctx context.Context, code, verifier string) (*FlowResult, error) {
	tokens, err := ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	email, err := GetUserEmail(ctx, tokens.AccessToken)
	if err != nil {
		return nil, errors.NewAuthError(fmt.Sprintf("resolving account email: %v", err), "")
	}
	projectID := DiscoverProjectID(ctx, tokens.AccessToken, config.AntigravityEndpointFallbacks())
	return &FlowResult{
		Email:        email,
		RefreshToken: tokens.RefreshToken,
		AccessToken:  tokens.AccessToken,
		ExpiresIn:    tokens.ExpiresIn,
		ProjectID:    projectID,
	}, nil
}

// ExtractCodeFromInput accepts either a bare authorization code or a pasted
// callback URL and returns the code.
func ExtractCodeFromInput(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if strings.Contains(input, "://") || strings.HasPrefix(input, "/oauth") {
		if u, err := url.Parse(input); err == nil {
			if code := u.Query().Get("code"); code != "" {
				return code
			}
		}
	}
	return input
}
