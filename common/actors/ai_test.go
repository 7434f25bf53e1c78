package actors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/logger"
	"github.com/lyzr/agentflow/common/workflow"
)

func geminiResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{
						map[string]interface{}{"text": text},
					},
				},
			},
		},
	}
}

func TestAIActorMissingCredential(t *testing.T) {
	actor := NewAIActor(AIActorConfig{}, NewHTTPClient(nil, logger.Nop()), nil, logger.Nop())

	_, err := actor.Execute(context.Background(),
		&workflow.Activity{ID: "a", Name: "classify", ActorType: workflow.ActorAIAgent}, nil)

	require.Error(t, err)
	assert.True(t, flowerr.IsKind(err, flowerr.KindIntegration))
}

func TestAIActorJSONResponse(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(geminiResponse(`{"category": "billing", "confidence": 0.9}`))
	}))
	defer srv.Close()

	roles := map[string]*workflow.Role{
		"r-triage": {
			ID:           "r-triage",
			Name:         "Ticket triager",
			Capabilities: []string{"classification"},
			AIConfig:     &workflow.AIConfig{Model: "gemini-2.0-pro", Temperature: 0.2},
		},
	}
	actor := NewAIActor(AIActorConfig{APIKey: "k-123", BaseURL: srv.URL},
		NewHTTPClient(srv.Client(), logger.Nop()), roles, logger.Nop())

	out, err := actor.Execute(context.Background(), &workflow.Activity{
		ID:        "a",
		Name:      "classify ticket",
		RoleID:    "r-triage",
		ActorType: workflow.ActorAIAgent,
	}, map[string]interface{}{"subject": "invoice is wrong"})
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-2.0-pro:generateContent", gotPath)
	assert.Equal(t, "k-123", gotKey)

	genCfg, ok := gotBody["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.2, genCfg["temperature"])

	assert.Equal(t, "billing", out["category"])
	assert.Equal(t, 0.9, out["confidence"])
}

func TestAIActorPlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse("I looked at the ticket and it seems fine."))
	}))
	defer srv.Close()

	actor := NewAIActor(AIActorConfig{APIKey: "k", BaseURL: srv.URL},
		NewHTTPClient(srv.Client(), logger.Nop()), nil, logger.Nop())

	out, err := actor.Execute(context.Background(),
		&workflow.Activity{ID: "a", Name: "review", ActorType: workflow.ActorAIAgent}, nil)
	require.NoError(t, err)

	assert.Equal(t, "complex_completed", out["status"])
	assert.Contains(t, out["output"], "seems fine")
}

func TestAIActorUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	actor := NewAIActor(AIActorConfig{APIKey: "k", BaseURL: srv.URL},
		NewHTTPClient(srv.Client(), logger.Nop()), nil, logger.Nop())

	_, err := actor.Execute(context.Background(),
		&workflow.Activity{ID: "a", Name: "review", ActorType: workflow.ActorAIAgent}, nil)

	require.Error(t, err)
	assert.True(t, flowerr.IsKind(err, flowerr.KindIntegration))
}

func TestParseModelOutputFencedJSON(t *testing.T) {
	out := parseModelOutput("```json\n{\"ok\": true}\n```")
	assert.Equal(t, true, out["ok"])
}

func TestComposeSystemPromptIncludesControls(t *testing.T) {
	actor := NewAIActor(AIActorConfig{APIKey: "k"}, NewHTTPClient(nil, logger.Nop()), nil, logger.Nop())

	prompt := actor.composeSystemPrompt(&workflow.Activity{
		Name: "approve spend",
		Controls: []*workflow.Control{
			{Name: "four-eyes", Enforcement: "mandatory"},
			{Name: "spend-cap"},
		},
	}, &workflow.Role{Name: "Finance bot", Capabilities: []string{"budgeting"}})

	assert.Contains(t, prompt, "Finance bot")
	assert.Contains(t, prompt, "budgeting")
	assert.Contains(t, prompt, "four-eyes (mandatory)")
	assert.Contains(t, prompt, "spend-cap (advisory)")
}
