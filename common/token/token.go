package token

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a token.
type Status string

const (
	StatusActive    Status = "active"
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Action labels a history entry.
const (
	ActionCreated      = "created"
	ActionEntered      = "entered"
	ActionExited       = "exited"
	ActionStatusPrefix = "status_change:"
)

// WasteCategory is a DOWNTIME label attached to analytics entries.
type WasteCategory string

const (
	WasteDefects           WasteCategory = "defects"
	WasteOverproduction    WasteCategory = "overproduction"
	WasteWaiting           WasteCategory = "waiting"
	WasteNonUtilizedTalent WasteCategory = "non_utilized_talent"
	WasteTransport         WasteCategory = "transport"
	WasteInventory         WasteCategory = "inventory"
	WasteMotion            WasteCategory = "motion"
	WasteExtraProcessing   WasteCategory = "extra_processing"
)

// Analytics is the value-stream payload a history entry may carry.
// Durations are ISO-8601 strings (PT1.5S).
type Analytics struct {
	ProcessTime     string          `json:"process_time,omitempty"`
	WaitTime        string          `json:"wait_time,omitempty"`
	LeadTime        string          `json:"lead_time,omitempty"`
	CycleTime       string          `json:"cycle_time,omitempty"`
	ValueAdded      *bool           `json:"value_added,omitempty"`
	WasteCategories []WasteCategory `json:"waste_categories,omitempty"`
	ErrorRate       *float64        `json:"error_rate,omitempty"`
}

// HistoryEntry is one event in a token's append-only trail.
type HistoryEntry struct {
	NodeID    string     `json:"node_id"`
	Action    string     `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
	Analytics *Analytics `json:"analytics,omitempty"`
}

// Token is one thread of execution through the workflow graph. All mutation
// goes through methods holding the token's own lock; status transitions are
// synchronous under that lock (no suspension point is held across them).
type Token struct {
	mu sync.Mutex

	id            string
	workflowID    string
	currentNodeID string
	status        Status
	contextData   map[string]interface{}
	history       []HistoryEntry
	createdAt     time.Time
	updatedAt     time.Time
}

// New creates an active token at node_id with a deep-ish copy of the seed
// data, appending the single created entry.
func New(nodeID string, initialData map[string]interface{}, workflowID string) *Token {
	now := time.Now()
	data := make(map[string]interface{}, len(initialData))
	for k, v := range initialData {
		data[k] = v
	}

	return &Token{
		id:            uuid.New().String(),
		workflowID:    workflowID,
		currentNodeID: nodeID,
		status:        StatusActive,
		contextData:   data,
		history: []HistoryEntry{{
			NodeID:    nodeID,
			Action:    ActionCreated,
			Timestamp: now,
		}},
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the stable token identity.
func (t *Token) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// WorkflowID returns the owning workflow id.
func (t *Token) WorkflowID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workflowID
}

// CurrentNodeID returns the node the token is entering or in.
func (t *Token) CurrentNodeID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentNodeID
}

// Status returns the current lifecycle state.
func (t *Token) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CreatedAt returns the creation timestamp.
func (t *Token) CreatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdAt
}

// UpdatedAt returns the last mutation timestamp.
func (t *Token) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// Move transitions the token to the next node, appending the matched
// exited/entered pair. The optional analytics ride on the exited entry.
func (t *Token) Move(nextNodeID string, analytics *Analytics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}

	now := time.Now()
	t.history = append(t.history,
		HistoryEntry{NodeID: t.currentNodeID, Action: ActionExited, Timestamp: now, Analytics: analytics},
		HistoryEntry{NodeID: nextNodeID, Action: ActionEntered, Timestamp: now},
	)
	t.currentNodeID = nextNodeID
	t.updatedAt = now
}

// Complete ends the token's walk at the current node, appending the final
// exited entry and the completed status change together. The analytics ride
// on the exited entry, keeping every visited node's exited/entered pairing
// intact through the end of the trail.
func (t *Token) Complete(analytics *Analytics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}

	now := time.Now()
	t.status = StatusCompleted
	t.history = append(t.history,
		HistoryEntry{NodeID: t.currentNodeID, Action: ActionExited, Timestamp: now, Analytics: analytics},
		HistoryEntry{NodeID: t.currentNodeID, Action: ActionStatusPrefix + string(StatusCompleted), Timestamp: now},
	)
	t.updatedAt = now
}

// Resume reactivates a waiting token, merging output and appending the
// status change under a single lock acquisition. Exactly one of any
// concurrent callers wins; the rest get false.
func (t *Token) Resume(output map[string]interface{}, analytics *Analytics) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusWaiting {
		return false
	}

	for k, v := range output {
		t.contextData[k] = v
	}
	now := time.Now()
	t.status = StatusActive
	t.history = append(t.history, HistoryEntry{
		NodeID:    t.currentNodeID,
		Action:    ActionStatusPrefix + string(StatusActive),
		Timestamp: now,
		Analytics: analytics,
	})
	t.updatedAt = now
	return true
}

// UpdateStatus appends a status_change entry. Terminal tokens ignore further
// transitions silently.
func (t *Token) UpdateStatus(newStatus Status, analytics *Analytics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}

	now := time.Now()
	t.status = newStatus
	t.history = append(t.history, HistoryEntry{
		NodeID:    t.currentNodeID,
		Action:    ActionStatusPrefix + string(newStatus),
		Timestamp: now,
		Analytics: analytics,
	})
	t.updatedAt = now
}

// MergeData performs a top-level, last-write-wins merge. Nested maps are
// replaced wholesale, never merged.
func (t *Token) MergeData(data map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}

	for k, v := range data {
		t.contextData[k] = v
	}
	t.updatedAt = time.Now()
}

// GetData reads a single context key.
func (t *Token) GetData(key string) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.contextData[key]
	return v, ok
}

// SetData writes a single context key.
func (t *Token) SetData(key string, value interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return
	}
	t.contextData[key] = value
	t.updatedAt = time.Now()
}

// ContextData returns a shallow copy of the token's data.
func (t *Token) ContextData() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]interface{}, len(t.contextData))
	for k, v := range t.contextData {
		out[k] = v
	}
	return out
}

// History returns a copy of the append-only event trail.
func (t *Token) History() []HistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]HistoryEntry, len(t.history))
	copy(out, t.history)
	return out
}

// Serialized is the wire form of a token used by checkpoints.
type Serialized struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	ActivityID  string                 `json:"activity_id"`
	Status      Status                 `json:"status"`
	ContextData map[string]interface{} `json:"context_data"`
	History     []HistoryEntry         `json:"history"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Serialize snapshots the token.
func (t *Token) Serialize() *Serialized {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := make(map[string]interface{}, len(t.contextData))
	for k, v := range t.contextData {
		data[k] = v
	}
	history := make([]HistoryEntry, len(t.history))
	copy(history, t.history)

	return &Serialized{
		ID:          t.id,
		WorkflowID:  t.workflowID,
		ActivityID:  t.currentNodeID,
		Status:      t.status,
		ContextData: data,
		History:     history,
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
	}
}

// Restore reconstitutes a token from its serialized form, overriding the
// generated id with the persisted one. Restore is the one path allowed to
// set a terminal status directly.
func Restore(s *Serialized) *Token {
	data := make(map[string]interface{}, len(s.ContextData))
	for k, v := range s.ContextData {
		data[k] = v
	}
	history := make([]HistoryEntry, len(s.History))
	copy(history, s.History)

	return &Token{
		id:            s.ID,
		workflowID:    s.WorkflowID,
		currentNodeID: s.ActivityID,
		status:        s.Status,
		contextData:   data,
		history:       history,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
}

// MarshalJSON serializes through the checkpoint wire form.
func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Serialize())
}
