package actors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// ProgramKindRESTEndpoint marks a declarative HTTP program on an activity.
const ProgramKindRESTEndpoint = "rest_endpoint"

// SoftwareActor performs application activities. Activities carrying a
// rest_endpoint program are synthesized into HTTP calls; everything else is
// a pass-through success.
type SoftwareActor struct {
	http   *HTTPClient
	logger Logger
}

// NewSoftwareActor creates the adapter.
func NewSoftwareActor(httpClient *HTTPClient, logger Logger) *SoftwareActor {
	return &SoftwareActor{http: httpClient, logger: logger}
}

// Execute runs the activity's program, or passes through.
func (a *SoftwareActor) Execute(ctx context.Context, activity *workflow.Activity, inputs map[string]interface{}) (map[string]interface{}, error) {
	if prog := restProgram(activity); prog != nil {
		return a.executeREST(ctx, activity, prog, inputs)
	}

	a.logger.Debug("software activity pass-through", "activity_id", activity.ID)

	out := map[string]interface{}{
		"status":  "success",
		"message": fmt.Sprintf("activity %s completed", activity.Name),
	}
	for k, v := range inputs {
		out[k] = v
	}
	return out, nil
}

func restProgram(activity *workflow.Activity) *workflow.Program {
	for _, p := range activity.Programs {
		if p.Kind == ProgramKindRESTEndpoint {
			return p
		}
	}
	return nil
}

func (a *SoftwareActor) executeREST(ctx context.Context, activity *workflow.Activity, prog *workflow.Program, inputs map[string]interface{}) (map[string]interface{}, error) {
	method := strings.ToUpper(prog.Method)
	if method == "" {
		method = http.MethodPost
	}
	if prog.URL == "" {
		return nil, flowerr.Newf(flowerr.KindValidation,
			"activity %s rest_endpoint program has no url", activity.ID)
	}

	// Request body from declared parameters, with runtime inputs layered on
	// top so declared defaults do not shadow live data.
	body := make(map[string]interface{}, len(prog.Parameters)+len(inputs))
	for k, v := range prog.Parameters {
		body[k] = v
	}
	for k, v := range inputs {
		body[k] = v
	}
	if method == http.MethodGet {
		body = nil
	}

	a.logger.Info("executing rest_endpoint program",
		"activity_id", activity.ID,
		"method", method,
		"url", prog.URL)

	data, err := a.http.DoJSON(ctx, method, prog.URL, prog.Headers, body)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindIntegration,
			fmt.Sprintf("rest_endpoint call failed for activity %s", activity.ID), err)
	}

	out := map[string]interface{}{
		"status": "success",
		"data":   data,
	}
	for k, v := range inputs {
		out[k] = v
	}
	return out, nil
}

var _ Actor = (*SoftwareActor)(nil)
