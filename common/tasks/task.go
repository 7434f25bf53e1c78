package tasks

import (
	"time"
)

// Priority orders pending tasks. Lower rank is served first.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority (critical < high < normal < low).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Status is the lifecycle state of a human task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

// IsTerminal reports whether the task will not change state again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusExpired
}

// HumanTask is a materialized pending side-effect of a human activity.
type HumanTask struct {
	ID           string                 `json:"id"`
	ActivityID   string                 `json:"activity_id"`
	ActivityName string                 `json:"activity_name,omitempty"`
	WorkflowID   string                 `json:"workflow_id,omitempty"`
	TokenID      string                 `json:"token_id"`
	RoleID       string                 `json:"role_id"`
	Priority     Priority               `json:"priority"`
	Status       Status                 `json:"status"`
	AssigneeID   string                 `json:"assignee_id,omitempty"`
	Inputs       map[string]interface{} `json:"inputs,omitempty"`
	Outputs      map[string]interface{} `json:"outputs,omitempty"`
	RejectReason string                 `json:"reject_reason,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	DueAt        *time.Time             `json:"due_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
}

// Clone returns a shallow copy so callers cannot mutate queue-owned state.
func (t *HumanTask) Clone() *HumanTask {
	cp := *t
	return &cp
}
