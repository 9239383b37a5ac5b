package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
	"github.com/poemonsense/antigravity-openai-proxy/internal/utils"
)

// DiscoverProjectID asks each Cloud Code endpoint in order for the
// account's companion project. It never fails hard: when every endpoint is
// unreachable or answers without a project, the fixed default project is
// returned.
func DiscoverProjectID(ctx context.Context, accessToken string, endpoints []string) string {
	for _, endpoint := range endpoints {
		projectID, err := tryDiscoverProject(ctx, endpoint, accessToken)
		if err != nil {
			utils.Debug("project discovery via %s: %v", endpoint, err)
			continue
		}
		if projectID != "" {
			return projectID
		}
	}
	utils.Debug("project discovery exhausted, using default project %s", config.DefaultProjectID)
	return config.DefaultProjectID
}

func tryDiscoverProject(ctx context.Context, endpoint, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"metadata": map[string]interface{}{
			"ideType":    "IDE_UNSPECIFIED",
			"platform":   "PLATFORM_UNSPECIFIED",
			"pluginType": "GEMINI",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1internal:loadCodeAssist", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range config.AntigravityHeaders() {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	// cloudaicompanionProject arrives either as a plain string or as an
	// object with an id field.
	var parsed struct {
		CloudAICompanionProject json.RawMessage `json:"cloudaicompanionProject"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.CloudAICompanionProject) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(parsed.CloudAICompanionProject, &asString); err == nil {
		return asString, nil
	}
	var asObject struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(parsed.CloudAICompanionProject, &asObject); err == nil {
		return asObject.ID, nil
	}
	return "", nil
}
