package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// AIActorConfig holds generative model endpoint settings.
type AIActorConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AIActor performs ai_agent activities against a Gemini-style
// generateContent endpoint. The system prompt is composed from the role,
// the activity and its declared controls; inputs ride along as JSON user
// content.
type AIActor struct {
	cfg    AIActorConfig
	http   *HTTPClient
	roles  map[string]*workflow.Role
	logger Logger
}

// NewAIActor creates the adapter. roles maps role id to declaration.
func NewAIActor(cfg AIActorConfig, httpClient *HTTPClient, roles map[string]*workflow.Role, logger Logger) *AIActor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	return &AIActor{cfg: cfg, http: httpClient, roles: roles, logger: logger}
}

// Execute dispatches the activity to the model.
func (a *AIActor) Execute(ctx context.Context, activity *workflow.Activity, inputs map[string]interface{}) (map[string]interface{}, error) {
	if a.cfg.APIKey == "" {
		return nil, flowerr.New(flowerr.KindIntegration,
			"no model credential configured for AI actor (set GEMINI_API_KEY)")
	}

	role := a.roles[activity.RoleID]
	model := a.cfg.DefaultModel
	var temperature float64 = 0.7
	maxTokens := 2048
	systemPrompt := a.composeSystemPrompt(activity, role)

	if role != nil && role.AIConfig != nil {
		if role.AIConfig.Model != "" {
			model = role.AIConfig.Model
		}
		if role.AIConfig.Temperature > 0 {
			temperature = role.AIConfig.Temperature
		}
		if role.AIConfig.MaxTokens > 0 {
			maxTokens = role.AIConfig.MaxTokens
		}
		if role.AIConfig.SystemPrompt != "" {
			systemPrompt = role.AIConfig.SystemPrompt
		}
	}

	inputJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindValidation, "activity inputs are not JSON-shaped", err)
	}

	body := map[string]interface{}{
		"system_instruction": map[string]interface{}{
			"parts": []map[string]string{{"text": systemPrompt}},
		},
		"contents": []map[string]interface{}{{
			"role":  "user",
			"parts": []map[string]string{{"text": string(inputJSON)}},
		}},
		"generationConfig": map[string]interface{}{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.BaseURL, model)
	headers := map[string]string{"x-goog-api-key": a.cfg.APIKey}

	a.logger.Info("dispatching AI activity",
		"activity_id", activity.ID,
		"model", model)

	resp, err := a.http.DoJSON(ctx, http.MethodPost, url, headers, body)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindIntegration,
			fmt.Sprintf("model call failed for activity %s", activity.ID), err)
	}

	text := extractText(resp)
	return parseModelOutput(text), nil
}

func (a *AIActor) composeSystemPrompt(activity *workflow.Activity, role *workflow.Role) string {
	var sb strings.Builder

	if role != nil {
		fmt.Fprintf(&sb, "You are %s.", role.Name)
		if role.Description != "" {
			fmt.Fprintf(&sb, " %s", role.Description)
		}
		if len(role.Capabilities) > 0 {
			fmt.Fprintf(&sb, "\nCapabilities: %s.", strings.Join(role.Capabilities, ", "))
		}
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Perform the activity %q.", activity.Name)
	if activity.Description != "" {
		fmt.Fprintf(&sb, " %s", activity.Description)
	}

	if len(activity.Controls) > 0 {
		sb.WriteString("\n\nControls in effect:")
		for _, c := range activity.Controls {
			enforcement := c.Enforcement
			if enforcement == "" {
				enforcement = "advisory"
			}
			fmt.Fprintf(&sb, "\n- %s (%s)", c.Name, enforcement)
		}
	}

	sb.WriteString("\n\nRespond with a single JSON object when possible.")
	return sb.String()
}

// extractText pulls candidates[0].content.parts[*].text from a
// generateContent response.
func extractText(resp map[string]interface{}) string {
	candidates, _ := resp["candidates"].([]interface{})
	if len(candidates) == 0 {
		return ""
	}
	first, _ := candidates[0].(map[string]interface{})
	content, _ := first["content"].(map[string]interface{})
	parts, _ := content["parts"].([]interface{})

	var sb strings.Builder
	for _, p := range parts {
		if pm, ok := p.(map[string]interface{}); ok {
			if text, ok := pm["text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}

// parseModelOutput returns the response as-is when it is a single JSON
// object, otherwise wraps the text.
func parseModelOutput(text string) map[string]interface{} {
	trimmed := strings.TrimSpace(text)

	// Models love fencing JSON in markdown blocks.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return obj
		}
	}

	return map[string]interface{}{
		"output": text,
		"status": "complex_completed",
	}
}

var _ Actor = (*AIActor)(nil)
