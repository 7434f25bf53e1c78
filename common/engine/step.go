package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lyzr/agentflow/common/actors"
	"github.com/lyzr/agentflow/common/decision"
	"github.com/lyzr/agentflow/common/duration"
	"github.com/lyzr/agentflow/common/events"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/retry"
	"github.com/lyzr/agentflow/common/tasks"
	"github.com/lyzr/agentflow/common/token"
	"github.com/lyzr/agentflow/common/workflow"
)

// RunStep processes every token observed as active at the start of the
// step. Tokens created mid-step wait for the next one.
func (e *Engine) RunStep(ctx context.Context) error {
	e.mu.Lock()
	if e.status != StatusRunning {
		status := e.status
		e.mu.Unlock()
		return flowerr.Newf(flowerr.KindValidation, "run_step requires a running engine (status %s)", status)
	}
	active := make([]*token.Token, 0, len(e.tokens))
	for _, t := range e.tokens {
		if t.Status() == token.StatusActive {
			active = append(active, t)
		}
	}
	e.mu.Unlock()

	for _, tok := range active {
		if err := ctx.Err(); err != nil {
			return flowerr.Wrap(flowerr.KindCancelled, "run_step cancelled", err)
		}
		e.processToken(ctx, tok)
	}

	e.settle()
	return nil
}

// settle recomputes the engine status from the token set.
func (e *Engine) settle() {
	e.mu.Lock()

	anyActive, anyWaiting, anyFailed := false, false, false
	for _, t := range e.tokens {
		switch t.Status() {
		case token.StatusActive:
			anyActive = true
		case token.StatusWaiting:
			anyWaiting = true
		case token.StatusFailed:
			anyFailed = true
		}
	}

	var done Status
	switch {
	case anyActive:
		e.mu.Unlock()
		return
	case anyWaiting:
		if e.status == StatusRunning {
			e.status = StatusWaitingHuman
		}
		e.mu.Unlock()
		return
	case anyFailed:
		done = StatusFailed
	default:
		done = StatusCompleted
	}
	e.status = done
	e.mu.Unlock()

	e.contexts.ClearTransient()

	evType := events.TypeWorkflowCompleted
	if done == StatusFailed {
		evType = events.TypeWorkflowFailed
	}
	e.log.Info("workflow finished", "status", done)
	e.publish(events.Event{Type: evType, WorkflowID: e.wf.ID})
}

func (e *Engine) processToken(ctx context.Context, tok *token.Token) {
	nodeID := tok.CurrentNodeID()

	if node, ok := e.decisions[nodeID]; ok {
		e.processDecision(tok, node)
		return
	}
	if activity, ok := e.activities[nodeID]; ok {
		e.processActivity(ctx, tok, activity)
		return
	}

	e.failToken(tok, nodeID, flowerr.Newf(flowerr.KindNotFound,
		"token %s points at unknown node %s", tok.ID(), nodeID), nil)
}

func (e *Engine) processDecision(tok *token.Token, node *workflow.DecisionNode) {
	result, err := decision.Evaluate(node, tok.ContextData())
	if err != nil {
		e.failToken(tok, node.ID, err, nil)
		return
	}

	tok.MergeData(map[string]interface{}{
		keyDecisionNodeID:  node.ID,
		keyDecisionMatched: result.Matched,
		keyDecisionOutputs: result.Outputs,
	})

	e.publish(events.Event{Type: events.TypeDecisionEvaluated, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: node.ID,
		Payload: map[string]interface{}{"matched": result.Matched, "outputs": result.Outputs}})

	// A matched rule without an output edge routes through the table's
	// default, the same fallback a no-match result takes.
	edgeID := result.OutputEdgeID
	if edgeID == "" {
		edgeID = node.DefaultOutputEdgeID
	}
	if edgeID == "" {
		if result.Matched {
			e.failToken(tok, node.ID, flowerr.Newf(flowerr.KindNoMatchingRule,
				"decision node %s matched a rule without an output edge and declares no default edge", node.ID), nil)
			return
		}
		e.failToken(tok, node.ID, flowerr.Newf(flowerr.KindNoMatchingRule,
			"decision node %s matched no rule and declares no default edge", node.ID), nil)
		return
	}

	edge := e.edgeByID(edgeID)
	if edge == nil {
		e.failToken(tok, node.ID, flowerr.Newf(flowerr.KindValidation,
			"decision node %s routes to unknown edge %s", node.ID, edgeID), nil)
		return
	}

	e.log.Debug("decision routed", "node_id", node.ID, "edge_id", edge.ID, "target", edge.TargetID)
	tok.Move(edge.TargetID, nil)
	e.publish(events.Event{Type: events.TypeTokenMoved, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: edge.TargetID})
}

func (e *Engine) edgeByID(id string) *workflow.Edge {
	for _, edge := range e.wf.Edges {
		if edge.ID == id {
			return edge
		}
	}
	return nil
}

func (e *Engine) processActivity(ctx context.Context, tok *token.Token, activity *workflow.Activity) {
	actor, err := e.registry.ForType(activity.ActorType)
	if err != nil {
		e.failToken(tok, activity.ID, err, nil)
		return
	}

	// A resumed token still sits on its human activity; its task is done,
	// so advance instead of enqueueing a duplicate. The marker is cleared
	// so a later human activity on the same path starts fresh.
	if e.opts.WaitForHumanTasks && activity.ActorType == workflow.ActorHuman && e.humanTaskDone(tok) {
		tok.SetData(actors.OutputHumanTaskID, "")
		valueAdded := activity.ValueAddedOrDefault()
		e.advance(tok, activity.ID, &token.Analytics{ValueAdded: &valueAdded})
		return
	}

	inputs := e.activityInputs(tok, activity)
	watch := duration.NewStopwatch()

	e.publish(events.Event{Type: events.TypeActivityStarted, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: activity.ID})

	output, state, err := retry.WithRetry(ctx, e.retryCfg, e.log, func(ctx context.Context) (map[string]interface{}, error) {
		return actor.Execute(ctx, activity, inputs)
	})
	if err != nil {
		e.failToken(tok, activity.ID, err, state)
		return
	}

	if truthy(output[actors.OutputRequiresHumanInput]) && e.opts.WaitForHumanTasks {
		e.parkToken(ctx, tok, activity, output)
		return
	}

	elapsed := watch.ElapsedISO8601()
	valueAdded := activity.ValueAddedOrDefault()

	tok.MergeData(output)
	e.writeBoundContexts(activity, output)

	e.publish(events.Event{Type: events.TypeActivityCompleted, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: activity.ID})

	e.advance(tok, activity.ID, &token.Analytics{
		ProcessTime: elapsed,
		LeadTime:    elapsed,
		CycleTime:   elapsed,
		ValueAdded:  &valueAdded,
	})
}

// activityInputs layers reserved keys and readable context bindings over
// the token's context data.
func (e *Engine) activityInputs(tok *token.Token, activity *workflow.Activity) map[string]interface{} {
	inputs := tok.ContextData()

	for _, binding := range activity.ContextBindings {
		if binding.AccessMode == workflow.AccessWrite {
			continue
		}
		value, err := e.contexts.Get(binding.ContextID)
		if err != nil {
			continue
		}
		if m, ok := value.(map[string]interface{}); ok {
			for k, v := range m {
				if _, exists := inputs[k]; !exists {
					inputs[k] = v
				}
			}
		}
	}

	inputs[actors.InputTokenID] = tok.ID()
	inputs[actors.InputWorkflowID] = e.wf.ID
	inputs[actors.InputActivityID] = activity.ID
	inputs[actors.InputActivityName] = activity.Name
	return inputs
}

// writeBoundContexts propagates activity output into writable context
// slots.
func (e *Engine) writeBoundContexts(activity *workflow.Activity, output map[string]interface{}) {
	for _, binding := range activity.ContextBindings {
		if binding.AccessMode == workflow.AccessRead {
			continue
		}
		if err := e.contexts.Update(binding.ContextID, output); err != nil {
			e.log.Warn("context binding update failed",
				"context_id", binding.ContextID, "activity_id", activity.ID, "error", err)
		}
	}
}

// humanTaskDone reports whether the token's recorded human task has been
// completed.
func (e *Engine) humanTaskDone(tok *token.Token) bool {
	raw, ok := tok.GetData(actors.OutputHumanTaskID)
	if !ok {
		return false
	}
	id, _ := raw.(string)
	if id == "" {
		return false
	}
	task, err := e.queue.Get(id)
	return err == nil && task.Status == tasks.StatusCompleted
}

// parkToken puts a token into waiting for a deferred human task and arms
// the auto-resume watcher.
func (e *Engine) parkToken(ctx context.Context, tok *token.Token, activity *workflow.Activity, output map[string]interface{}) {
	merged := make(map[string]interface{}, len(output)+1)
	for k, v := range output {
		merged[k] = v
	}
	merged[keyWaitingSince] = time.Now().UTC().Format(time.RFC3339Nano)
	tok.MergeData(merged)

	tok.UpdateStatus(token.StatusWaiting, &token.Analytics{
		WasteCategories: []token.WasteCategory{token.WasteWaiting},
	})

	e.log.Info("token waiting on human task", "token_id", tok.ID(), "activity_id", activity.ID)
	e.publish(events.Event{Type: events.TypeTokenWaiting, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: activity.ID})

	if taskID, ok := output[actors.OutputHumanTaskID].(string); ok && taskID != "" {
		e.watchTask(ctx, tok.ID(), taskID)
	}
}

// watchTask resumes the token when its human task reaches a terminal
// status. Rejection fails the token.
func (e *Engine) watchTask(ctx context.Context, tokenID, taskID string) {
	done := e.queue.WaitForCompletion(taskID)

	go func() {
		var task *tasks.HumanTask
		select {
		case <-ctx.Done():
			return
		case task = <-done:
		}
		if task == nil {
			return
		}

		if task.Status == tasks.StatusCompleted {
			if _, err := e.ResumeToken(tokenID, task.Outputs); err != nil {
				e.log.Error("auto-resume failed", "token_id", tokenID, "task_id", taskID, "error", err)
			}
			return
		}

		tok, err := e.Token(tokenID)
		if err != nil {
			return
		}
		e.failToken(tok, tok.CurrentNodeID(), flowerr.Newf(flowerr.KindRejectedByHuman,
			"task %s was %s: %s", taskID, task.Status, task.RejectReason), nil)
		e.settle()
		e.notifyResume()
	}()
}

// advance moves the token along the first satisfied edge, falling back to
// the declared default, then the first edge. No outgoing edges completes
// the token.
func (e *Engine) advance(tok *token.Token, nodeID string, analytics *token.Analytics) {
	edges := e.outgoing[nodeID]
	if len(edges) == 0 {
		tok.Complete(analytics)
		e.log.Info("token completed", "token_id", tok.ID(), "node_id", nodeID)
		return
	}

	var chosen *workflow.Edge
	var fallback *workflow.Edge
	data := tok.ContextData()
	for _, edge := range edges {
		if edge.Condition != "" && e.guards.Evaluate(edge.Condition, data) {
			chosen = edge
			break
		}
		if edge.IsDefault && fallback == nil {
			fallback = edge
		}
	}
	if chosen == nil {
		chosen = fallback
	}
	if chosen == nil {
		chosen = edges[0]
	}

	tok.Move(chosen.TargetID, analytics)
	e.log.Debug("token advanced", "token_id", tok.ID(), "from", nodeID, "to", chosen.TargetID, "edge_id", chosen.ID)
	e.publish(events.Event{Type: events.TypeTokenMoved, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: chosen.TargetID})
}

// failToken transitions a token to failed with defect analytics and
// quarantines it in the dead-letter queue.
func (e *Engine) failToken(tok *token.Token, nodeID string, cause error, state *retry.State) {
	errRate := 1.0
	tok.MergeData(map[string]interface{}{
		keyError: cause.Error(),
		keyStack: string(debug.Stack()),
	})
	tok.UpdateStatus(token.StatusFailed, &token.Analytics{
		WasteCategories: []token.WasteCategory{token.WasteDefects},
		ErrorRate:       &errRate,
	})

	e.dlq.Add(&retry.DeadLetterEntry{
		Token:      tok.Serialize(),
		WorkflowID: e.wf.ID,
		ActivityID: nodeID,
		Error: retry.DeadLetterError{
			Message: cause.Error(),
			Kind:    flowerr.KindOf(cause),
			Stack:   string(debug.Stack()),
		},
		RetryState: state,
	})

	e.log.Error("token failed", "token_id", tok.ID(), "node_id", nodeID, "error", cause)
	e.publish(events.Event{Type: events.TypeTokenFailed, WorkflowID: e.wf.ID,
		TokenID: tok.ID(), NodeID: nodeID,
		Payload: map[string]interface{}{"error": cause.Error()}})
}

// truthy mirrors guard-evaluation truthiness for output flags.
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return fmt.Sprint(x) != ""
	}
}
