// Package errors defines the typed error taxonomy of the proxy and the
// classification helpers used by the dispatcher.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AntigravityError is the base error carried by every typed error in this
// package. StatusCode is the HTTP status the error maps to on the API
// surface; Retryable tells the dispatcher whether rotating accounts can help.
type AntigravityError struct {
	Message    string
	Code       string
	StatusCode int
	Retryable  bool
}

func (e *AntigravityError) Error() string {
	return e.Message
}

// New creates a generic AntigravityError with the given status code.
func New(statusCode int, message string) *AntigravityError {
	return &AntigravityError{
		Message:    message,
		Code:       "antigravity_error",
		StatusCode: statusCode,
	}
}

// RateLimitError reports an upstream 429 for one account/model pair.
type RateLimitError struct {
	*AntigravityError
	AccountEmail string
	Model        string
	ResetMs      *int64 // reset hint parsed from the upstream body, if any
}

// NewRateLimitError creates a RateLimitError.
func NewRateLimitError(email, model string, resetMs *int64) *RateLimitError {
	msg := fmt.Sprintf("rate limited: account=%s model=%s", email, model)
	if resetMs != nil {
		msg = fmt.Sprintf("%s reset_in=%dms", msg, *resetMs)
	}
	return &RateLimitError{
		AntigravityError: &AntigravityError{
			Message:    msg,
			Code:       "rate_limit_exceeded",
			StatusCode: http.StatusTooManyRequests,
			Retryable:  true,
		},
		AccountEmail: email,
		Model:        model,
		ResetMs:      resetMs,
	}
}

func (e *RateLimitError) Unwrap() error { return e.AntigravityError }

// AuthError reports an authentication failure against the upstream or the
// OAuth endpoints.
type AuthError struct {
	*AntigravityError
	AccountEmail string
}

// NewAuthError creates an AuthError.
func NewAuthError(message, email string) *AuthError {
	return &AuthError{
		AntigravityError: &AntigravityError{
			Message:    message,
			Code:       "authentication_error",
			StatusCode: http.StatusUnauthorized,
			Retryable:  true,
		},
		AccountEmail: email,
	}
}

func (e *AuthError) Unwrap() error { return e.AntigravityError }

// InvalidCredentialsError means an account's refresh token was rejected.
// The account is unusable until re-authorized.
type InvalidCredentialsError struct {
	*AntigravityError
	AccountEmail string
}

// NewInvalidCredentialsError creates an InvalidCredentialsError.
func NewInvalidCredentialsError(email, detail string) *InvalidCredentialsError {
	return &InvalidCredentialsError{
		AntigravityError: &AntigravityError{
			Message:    fmt.Sprintf("invalid credentials for %s: %s", email, detail),
			Code:       "invalid_credentials",
			StatusCode: http.StatusUnauthorized,
		},
		AccountEmail: email,
	}
}

func (e *InvalidCredentialsError) Unwrap() error { return e.AntigravityError }

// QuotaExhaustedError means every account is rate limited for longer than
// the proxy is willing to wait.
type QuotaExhaustedError struct {
	*AntigravityError
	Model  string
	WaitMs int64
}

// NewQuotaExhaustedError creates a QuotaExhaustedError.
func NewQuotaExhaustedError(model string, waitMs int64) *QuotaExhaustedError {
	return &QuotaExhaustedError{
		AntigravityError: &AntigravityError{
			Message:    fmt.Sprintf("all accounts rate limited for %s, earliest reset in %dms", model, waitMs),
			Code:       "quota_exhausted",
			StatusCode: http.StatusTooManyRequests,
		},
		Model:  model,
		WaitMs: waitMs,
	}
}

func (e *QuotaExhaustedError) Unwrap() error { return e.AntigravityError }

// NoAccountsError means the pool has no usable account for the request.
type NoAccountsError struct {
	*AntigravityError
}

// NewNoAccountsError creates a NoAccountsError.
func NewNoAccountsError(detail string) *NoAccountsError {
	msg := "no accounts available"
	if detail != "" {
		msg = msg + ": " + detail
	}
	return &NoAccountsError{
		AntigravityError: &AntigravityError{
			Message:    msg,
			Code:       "no_accounts",
			StatusCode: http.StatusServiceUnavailable,
		},
	}
}

func (e *NoAccountsError) Unwrap() error { return e.AntigravityError }

// MaxRetriesError means the dispatcher ran out of rotation attempts.
type MaxRetriesError struct {
	*AntigravityError
	Attempts int
	LastErr  error
}

// NewMaxRetriesError creates a MaxRetriesError wrapping the last failure.
func NewMaxRetriesError(attempts int, lastErr error) *MaxRetriesError {
	msg := fmt.Sprintf("request failed after %d attempts", attempts)
	if lastErr != nil {
		msg = fmt.Sprintf("%s: %v", msg, lastErr)
	}
	return &MaxRetriesError{
		AntigravityError: &AntigravityError{
			Message:    msg,
			Code:       "max_retries_exceeded",
			StatusCode: http.StatusInternalServerError,
		},
		Attempts: attempts,
		LastErr:  lastErr,
	}
}

func (e *MaxRetriesError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{e.AntigravityError}
	}
	return []error{e.AntigravityError, e.LastErr}
}

// NewUpstreamError wraps a non-retryable upstream response, preserving its
// HTTP status code.
func NewUpstreamError(statusCode int, body string) *AntigravityError {
	return &AntigravityError{
		Message:    fmt.Sprintf("upstream error %d: %s", statusCode, body),
		Code:       "upstream_error",
		StatusCode: statusCode,
	}
}

var rateLimitMarkers = []string{"429", "resource_exhausted", "quota_exhausted", "rate limit"}

var authMarkers = []string{"401", "unauthenticated", "authentication", "invalid_grant"}

// IsRateLimitError reports whether err looks like a rate limit. Typed errors
// are checked first; the substring scan is only a fallback for errors that
// lost their type crossing a boundary.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	var qe *QuotaExhaustedError
	if errors.As(err, &rl) || errors.As(err, &qe) {
		return true
	}
	return containsAnyFold(err.Error(), rateLimitMarkers)
}

// IsAuthError reports whether err looks like an authentication failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuthError
	var ic *InvalidCredentialsError
	if errors.As(err, &ae) || errors.As(err, &ic) {
		return true
	}
	return containsAnyFold(err.Error(), authMarkers)
}

func containsAnyFold(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// HTTPStatusFromError maps an error to the status code the API returns.
func HTTPStatusFromError(err error) int {
	var ag *AntigravityError
	if errors.As(err, &ag) && ag.StatusCode != 0 {
		return ag.StatusCode
	}
	if IsRateLimitError(err) {
		return http.StatusTooManyRequests
	}
	if IsAuthError(err) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// APIError is the OpenAI-style error body.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail carries the error fields of an APIError.
type APIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// FormatAPIError renders an error as an OpenAI-compatible error body.
func FormatAPIError(err error) *APIError {
	code := "internal_error"
	var ag *AntigravityError
	if errors.As(err, &ag) && ag.Code != "" {
		code = ag.Code
	}
	errType := "api_error"
	switch HTTPStatusFromError(err) {
	case http.StatusTooManyRequests:
		errType = "rate_limit_error"
	case http.StatusUnauthorized:
		errType = "authentication_error"
	case http.StatusBadRequest:
		errType = "invalid_request_error"
	case http.StatusServiceUnavailable:
		errType = "overloaded_error"
	}
	return &APIError{Error: APIErrorDetail{
		Message: err.Error(),
		Type:    errType,
		Code:    code,
	}}
}
