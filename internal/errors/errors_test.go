package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedClassification(t *testing.T) {
	resetMs := int64(30000)

	assert.True(t, IsRateLimitError(NewRateLimitError("a@x", "gemini-3-flash", &resetMs)))
	assert.True(t, IsRateLimitError(NewQuotaExhaustedError("gemini-3-flash", 600000)))
	assert.False(t, IsRateLimitError(NewAuthError("nope", "a@x")))

	assert.True(t, IsAuthError(NewAuthError("nope", "a@x")))
	assert.True(t, IsAuthError(NewInvalidCredentialsError("a@x", "invalid_grant")))
	assert.False(t, IsAuthError(NewNoAccountsError("")))

	assert.False(t, IsRateLimitError(nil))
	assert.False(t, IsAuthError(nil))
}

func TestTypedClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("dispatching: %w", NewAuthError("token rejected", "a@x"))
	assert.True(t, IsAuthError(err))
}

// Errors that crossed a boundary as plain text still classify by substring.
func TestSubstringFallbackClassification(t *testing.T) {
	rate := []string{
		"got 429 from upstream",
		"RESOURCE_EXHAUSTED: try later",
		"quota_exhausted for account",
		"hit the rate limit",
	}
	for _, msg := range rate {
		assert.True(t, IsRateLimitError(stderrors.New(msg)), "message %q", msg)
	}

	auth := []string{
		"status 401 from endpoint",
		"UNAUTHENTICATED request",
		"authentication required",
		"oauth error: invalid_grant",
	}
	for _, msg := range auth {
		assert.True(t, IsAuthError(stderrors.New(msg)), "message %q", msg)
	}

	assert.False(t, IsRateLimitError(stderrors.New("connection refused")))
	assert.False(t, IsAuthError(stderrors.New("connection refused")))
}

func TestHTTPStatusFromError(t *testing.T) {
	resetMs := int64(1000)
	tests := []struct {
		err  error
		want int
	}{
		{NewRateLimitError("a@x", "m", &resetMs), http.StatusTooManyRequests},
		{NewQuotaExhaustedError("m", 600000), http.StatusTooManyRequests},
		{NewAuthError("nope", ""), http.StatusUnauthorized},
		{NewInvalidCredentialsError("a@x", "bad"), http.StatusUnauthorized},
		{NewNoAccountsError(""), http.StatusServiceUnavailable},
		{NewUpstreamError(http.StatusBadRequest, "bad body"), http.StatusBadRequest},
		{NewMaxRetriesError(3, stderrors.New("boom")), http.StatusInternalServerError},
		{New(http.StatusBadGateway, "boom"), http.StatusBadGateway},
		{stderrors.New("plain 429 text"), http.StatusTooManyRequests},
		{stderrors.New("something else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusFromError(tt.err), "error %v", tt.err)
	}
}

func TestMaxRetriesErrorWrapsLast(t *testing.T) {
	resetMs := int64(1000)
	last := NewRateLimitError("a@x", "m", &resetMs)
	err := NewMaxRetriesError(5, last)

	assert.Contains(t, err.Error(), "5 attempts")
	var rl *RateLimitError
	assert.True(t, stderrors.As(err, &rl), "the last failure stays reachable")
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromError(err),
		"exhausting the attempt budget is a server failure regardless of the last error")
}

func TestFormatAPIError(t *testing.T) {
	resetMs := int64(1000)
	body := FormatAPIError(NewRateLimitError("a@x", "gemini-3-flash", &resetMs))
	assert.Equal(t, "rate_limit_error", body.Error.Type)
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)
	assert.Contains(t, body.Error.Message, "a@x")

	body = FormatAPIError(stderrors.New("boom"))
	assert.Equal(t, "api_error", body.Error.Type)
	assert.Equal(t, "internal_error", body.Error.Code)
}

func TestRateLimitErrorMessageCarriesReset(t *testing.T) {
	resetMs := int64(30000)
	err := NewRateLimitError("a@x", "gemini-3-flash", &resetMs)
	require.Contains(t, err.Error(), "reset_in=30000ms")

	err = NewRateLimitError("a@x", "gemini-3-flash", nil)
	assert.NotContains(t, err.Error(), "reset_in")
}
