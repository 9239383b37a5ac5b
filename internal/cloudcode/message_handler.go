package cloudcode

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/errors"
	"github.com/poemonsense/antigravity-openai-proxy/internal/format"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

// Handler dispatches chat completions to the Cloud Code upstream, rotating
// accounts, falling through endpoints and switching to fallback models when
// quota runs out.
type Handler struct {
	accounts *account.Manager
	cfg      *config.Config
	client   *http.Client
}

// NewHandler creates a dispatcher over the account pool.
func NewHandler(accounts *account.Manager, cfg *config.Config) *Handler {
	return &Handler{
		accounts: accounts,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// CreateChatCompletion serves one completion. When no account can serve the
// requested model (every one cooling down beyond the wait ceiling, or none
// usable at all) the request restarts on the fallback model. The fallback
// chain is cyclic, so each model is visited at most once.
func (h *Handler) CreateChatCompletion(ctx context.Context, req *openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, errors.New(http.StatusBadRequest, "model is required")
	}
	tried := map[string]bool{model: true}
	for {
		resp, err := h.completeWithModel(ctx, req, model)
		if err == nil {
			return resp, nil
		}
		var quota *errors.QuotaExhaustedError
		var noAccounts *errors.NoAccountsError
		if !stderrors.As(err, &quota) && !stderrors.As(err, &noAccounts) {
			return nil, err
		}
		next, ok := config.GetFallbackModel(model)
		if !ok || tried[next] {
			return nil, err
		}
		utils.Warn("quota exhausted for %s, retrying with fallback model %s", model, next)
		tried[next] = true
		model = next
	}
}

// completeWithModel runs the rotation loop for one model. The attempt budget
// grows with the pool so every account gets at least one shot.
func (h *Handler) completeWithModel(ctx context.Context, req *openai.ChatCompletionRequest, model string) (*openai.ChatCompletionResponse, error) {
	maxAttempts := config.MaxRetries
	if n := h.accounts.Count() + 1; n > maxAttempts {
		maxAttempts = n
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.accounts.ClearExpiredLimits()

		acct, waitMs := h.accounts.PickSticky(model)
		if acct == nil && waitMs > 0 {
			utils.Info("sticky account cooling down, waiting %s", utils.FormatDuration(waitMs))
			if err := utils.Sleep(ctx, waitMs); err != nil {
				return nil, err
			}
			h.accounts.ClearExpiredLimits()
			acct = h.accounts.CurrentSticky(model)
		}
		if acct == nil {
			if h.accounts.Count() == 0 {
				return nil, h.accounts.ErrNoUsableAccounts()
			}
			if h.accounts.IsAllRateLimited(model) {
				allWait := h.accounts.MinWaitTimeMs(model)
				if allWait > config.MaxWaitBeforeErrorMs {
					return nil, errors.NewQuotaExhaustedError(model, allWait)
				}
				utils.Info("all accounts cooling down for %s, waiting %s", model, utils.FormatDuration(allWait))
				if err := utils.Sleep(ctx, allWait); err != nil {
					return nil, err
				}
				h.accounts.ClearExpiredLimits()
				acct = h.accounts.PickNext(model)
			}
		}
		if acct == nil {
			return nil, h.accounts.ErrNoUsableAccounts()
		}

		token, err := h.accounts.Token(ctx, acct)
		if err != nil {
			lastErr = err
			if errors.IsAuthError(err) {
				h.accounts.MarkInvalid(acct.Email, err.Error())
			}
			continue
		}
		project := h.accounts.Project(ctx, acct, token)

		envelope := format.BuildEnvelope(req, model, project)
		resp, err := h.tryEndpoints(ctx, envelope, acct, model, token)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		switch {
		case errors.IsRateLimitError(err):
			// ledger already updated; the next attempt rotates or waits
			continue
		case errors.IsAuthError(err):
			h.accounts.ClearCredentials(acct.Email)
			continue
		case isServerError(err):
			h.accounts.PickNext(model)
			continue
		default:
			return nil, err
		}
	}
	return nil, errors.NewMaxRetriesError(maxAttempts, lastErr)
}

// tryEndpoints walks the endpoint fallback chain for one account. A 429 on
// every endpoint marks the ledger; a 200 on any endpoint wins.
func (h *Handler) tryEndpoints(ctx context.Context, envelope *format.GenerateContentEnvelope, acct *auth.Account, model, token string) (*openai.ChatCompletionResponse, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}
	headers := BuildHeaders(token, model)

	var lastErr error
	rateLimited := false
	var resetMs *int64

	for _, endpoint := range h.cfg.EndpointFallbacks() {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+generateContentPath, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		httpReq.Header = headers.Clone()

		httpResp, err := h.client.Do(httpReq)
		if err != nil {
			utils.Debug("endpoint %s: %v", endpoint, err)
			lastErr = err
			continue
		}
		respBody, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case httpResp.StatusCode == http.StatusOK:
			result, err := format.ParseGenerateContentResponse(respBody)
			if err != nil {
				lastErr = err
				continue
			}
			return format.ConvertResponse(result, model), nil

		case httpResp.StatusCode == http.StatusUnauthorized:
			utils.Warn("endpoint %s rejected the token for %s", endpoint, acct.Email)
			h.accounts.ClearCredentials(acct.Email)
			lastErr = errors.NewAuthError(fmt.Sprintf("upstream 401: %s", utils.TruncateString(string(respBody), 200)), acct.Email)

		case httpResp.StatusCode == http.StatusTooManyRequests:
			rateLimited = true
			if hint := ParseResetTime(string(respBody)); hint != nil {
				resetMs = hint
			}
			lastErr = errors.NewUpstreamError(httpResp.StatusCode, utils.TruncateString(string(respBody), 200))

		case httpResp.StatusCode >= 500:
			utils.Warn("endpoint %s answered %d, trying next", endpoint, httpResp.StatusCode)
			lastErr = errors.NewUpstreamError(httpResp.StatusCode, utils.TruncateString(string(respBody), 200))
			if err := utils.Sleep(ctx, 1000); err != nil {
				return nil, err
			}

		default:
			lastErr = errors.NewUpstreamError(httpResp.StatusCode, utils.TruncateString(string(respBody), 500))
		}
	}

	if rateLimited {
		h.accounts.MarkRateLimited(acct.Email, resetMs, model)
		return nil, errors.NewRateLimitError(acct.Email, model, resetMs)
	}
	if lastErr == nil {
		lastErr = errors.New(http.StatusBadGateway, "no upstream endpoint answered")
	}
	return nil, lastErr
}

// isServerError reports whether the error is an upstream 5xx or a transport
// failure, both worth rotating accounts for.
func isServerError(err error) bool {
	var ag *errors.AntigravityError
	if stderrors.As(err, &ag) && ag.StatusCode >= 500 {
		return true
	}
	return utils.IsNetworkError(err)
}
