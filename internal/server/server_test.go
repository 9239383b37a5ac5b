package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poemonsense/antigravity-openai-proxy/internal/account"
	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/cloudcode"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/modules"
	"github.com/poemonsense/antigravity-openai-proxy/pkg/openai"
)

func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"response": map[string]interface{}{
				"candidates": []map[string]interface{}{{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []map[string]string{{"text": "pong"}},
					},
					"finishReason": "STOP",
				}},
			},
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, apiKey string, emails ...string) *Server {
	t.Helper()
	upstream := fakeUpstream(t)
	cfg := &config.Config{
		Host:           "127.0.0.1",
		Port:           0,
		APIKey:         apiKey,
		Endpoints:      []string{upstream.URL},
		RequestTimeout: 10 * time.Second,
	}
	store := auth.NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	mgr := account.NewManager(store, cfg.EndpointFallbacks())
	for _, email := range emails {
		require.NoError(t, store.AddOrUpdate(email, "refresh-"+email, "project-"+email))
		mgr.PrimeToken(email, "tok-"+email, 3600)
	}
	client := cloudcode.NewClient(mgr, cfg)
	return New(cfg, mgr, client, modules.NewUsageStats(nil))
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("with accounts", func(t *testing.T) {
		s := newTestServer(t, "", "a@x")
		w := doRequest(s, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.EqualValues(t, 1, body["accounts"])
	})

	t.Run("degraded without accounts", func(t *testing.T) {
		s := newTestServer(t, "")
		w := doRequest(s, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "degraded")
	})
}

func TestModelsEndpoint(t *testing.T) {
	s := newTestServer(t, "", "a@x")
	w := doRequest(s, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list openai.ModelList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	assert.Len(t, list.Data, len(config.AntigravityModels))
}

func TestChatCompletionsEndpoint(t *testing.T) {
	s := newTestServer(t, "", "a@x")
	body := `{"model":"gemini-2.5-pro","messages":[{"role":"user","content":"ping"}]}`
	w := doRequest(s, http.MethodPost, "/v1/chat/completions", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp openai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "chat.completion", resp.Object)
	require.Len(t, resp.Choices, 1)
	require.NotNil(t, resp.Choices[0].Message.Content)
	assert.Equal(t, "pong", *resp.Choices[0].Message.Content)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestChatCompletionsValidation(t *testing.T) {
	s := newTestServer(t, "", "a@x")

	t.Run("malformed body", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/v1/chat/completions", "{not json", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing messages", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/v1/chat/completions", `{"model":"gemini-2.5-pro"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("streaming rejected", func(t *testing.T) {
		body := `{"model":"gemini-2.5-pro","stream":true,"messages":[{"role":"user","content":"x"}]}`
		w := doRequest(s, http.MethodPost, "/v1/chat/completions", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "streaming is not supported")
	})
}

func TestChatCompletionsNoAccounts(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"model":"gemini-2.5-pro","messages":[{"role":"user","content":"ping"}]}`
	w := doRequest(s, http.MethodPost, "/v1/chat/completions", body, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no accounts")
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, "sekret", "a@x")

	t.Run("missing key", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/v1/models", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/v1/models", "", map[string]string{"Authorization": "Bearer nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer key", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/v1/models", "", map[string]string{"Authorization": "Bearer sekret"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("x-api-key header", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/v1/models", "", map[string]string{"X-API-Key": "sekret"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAccountsEndpoints(t *testing.T) {
	s := newTestServer(t, "", "a@x", "b@x")

	t.Run("status", func(t *testing.T) {
		w := doRequest(s, http.MethodGet, "/accounts", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var st account.Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
		assert.Equal(t, 2, st.Total)
	})

	t.Run("remove", func(t *testing.T) {
		w := doRequest(s, http.MethodDelete, "/accounts/b@x", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doRequest(s, http.MethodDelete, "/accounts/b@x", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("reset limits", func(t *testing.T) {
		w := doRequest(s, http.MethodPost, "/accounts/reset-limits", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUsageEndpoint(t *testing.T) {
	s := newTestServer(t, "", "a@x")

	// Serve one request so a counter exists.
	body := `{"model":"gemini-2.5-pro","messages":[{"role":"user","content":"ping"}]}`
	w := doRequest(s, http.MethodPost, "/v1/chat/completions", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(s, http.MethodGet, "/usage", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var usage struct {
		Days  int `json:"days"`
		Hours []struct {
			Total int64 `json:"total"`
		} `json:"hours"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &usage))
	assert.Equal(t, 7, usage.Days)
	require.Len(t, usage.Hours, 1)
	assert.EqualValues(t, 1, usage.Hours[0].Total)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, "")
	w := doRequest(s, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found_error")
}
