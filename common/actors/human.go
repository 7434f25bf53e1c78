package actors

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/agentflow/common/duration"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/tasks"
	"github.com/lyzr/agentflow/common/workflow"
)

// Output keys the human actor produces.
const (
	OutputHumanTaskID        = "_human_task_id"
	OutputHumanTaskStatus    = "_human_task_status"
	OutputRequiresHumanInput = "_requires_human_action"
)

// HumanActor materializes human activities as queue tasks. With WaitInline
// it blocks on the completion waiter; otherwise it defers and lets the
// engine park the token.
type HumanActor struct {
	queue      *tasks.Queue
	waitInline bool
	logger     Logger
}

// NewHumanActor creates the adapter over a task queue.
func NewHumanActor(queue *tasks.Queue, waitInline bool, logger Logger) *HumanActor {
	return &HumanActor{queue: queue, waitInline: waitInline, logger: logger}
}

// Execute enqueues the task and either waits or defers.
func (a *HumanActor) Execute(ctx context.Context, activity *workflow.Activity, inputs map[string]interface{}) (map[string]interface{}, error) {
	task := a.buildTask(activity, inputs)
	if err := a.queue.Enqueue(task); err != nil {
		return nil, err
	}

	a.logger.Info("human task enqueued",
		"task_id", task.ID,
		"activity_id", activity.ID,
		"role_id", task.RoleID,
		"priority", task.Priority,
		"wait_inline", a.waitInline)

	if !a.waitInline {
		return map[string]interface{}{
			OutputHumanTaskID:        task.ID,
			OutputHumanTaskStatus:    string(tasks.StatusPending),
			OutputRequiresHumanInput: true,
		}, nil
	}

	select {
	case <-ctx.Done():
		return nil, flowerr.Wrap(flowerr.KindCancelled,
			fmt.Sprintf("cancelled while waiting for task %s", task.ID), ctx.Err())
	case done := <-a.queue.WaitForCompletion(task.ID):
		if done == nil {
			return nil, flowerr.Newf(flowerr.KindNotFound, "task %s disappeared from queue", task.ID)
		}
		if done.Status != tasks.StatusCompleted {
			return nil, flowerr.Newf(flowerr.KindRejectedByHuman,
				"task %s was %s: %s", task.ID, done.Status, done.RejectReason)
		}

		out := make(map[string]interface{}, len(inputs)+len(done.Outputs)+2)
		for k, v := range inputs {
			out[k] = v
		}
		for k, v := range done.Outputs {
			out[k] = v
		}
		out[OutputHumanTaskID] = task.ID
		out[OutputHumanTaskStatus] = string(tasks.StatusCompleted)
		return out, nil
	}
}

func (a *HumanActor) buildTask(activity *workflow.Activity, inputs map[string]interface{}) *tasks.HumanTask {
	priority := tasks.PriorityNormal
	if activity.HasEscalation() {
		priority = tasks.PriorityHigh
	}

	tokenID, _ := inputs[InputTokenID].(string)
	workflowID, _ := inputs[InputWorkflowID].(string)

	task := &tasks.HumanTask{
		ID:           uuid.New().String(),
		ActivityID:   activity.ID,
		ActivityName: activity.Name,
		WorkflowID:   workflowID,
		TokenID:      tokenID,
		RoleID:       activity.RoleID,
		Priority:     priority,
		Status:       tasks.StatusPending,
		Inputs:       inputs,
	}

	if due := dueDate(activity); due != nil {
		task.DueAt = due
	}
	return task
}

// dueDate computes the due date from the SLA max-time hint. Unparseable
// durations yield no due date.
func dueDate(activity *workflow.Activity) *time.Time {
	if activity.SLA == nil || activity.SLA.MaxTime == "" {
		return nil
	}
	d, err := duration.ParseISO8601(activity.SLA.MaxTime)
	if err != nil || d <= 0 {
		return nil
	}
	due := time.Now().Add(d)
	return &due
}

var _ Actor = (*HumanActor)(nil)
