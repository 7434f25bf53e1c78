package retry

import (
	"sync"
	"time"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/token"
)

// DeadLetterEntry quarantines a terminally failed token together with the
// failure and its retry state.
type DeadLetterEntry struct {
	Token      *token.Serialized      `json:"token"`
	WorkflowID string                 `json:"workflow_id"`
	ActivityID string                 `json:"activity_id"`
	Error      DeadLetterError        `json:"error"`
	RetryState *State                 `json:"retry_state,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// DeadLetterError captures what went wrong.
type DeadLetterError struct {
	Message string       `json:"message"`
	Kind    flowerr.Kind `json:"kind"`
	Stack   string       `json:"stack,omitempty"`
}

// DeadLetterQueue is a keyed store of failed tokens with a per-workflow
// index. Entries are keyed by token id; re-adding replaces.
type DeadLetterQueue struct {
	mu         sync.Mutex
	entries    map[string]*DeadLetterEntry
	byWorkflow map[string][]string
}

// NewDeadLetterQueue creates an empty queue.
func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{
		entries:    make(map[string]*DeadLetterEntry),
		byWorkflow: make(map[string][]string),
	}
}

// Add quarantines an entry.
func (q *DeadLetterQueue) Add(entry *DeadLetterEntry) {
	if entry == nil || entry.Token == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := entry.Token.ID
	if _, exists := q.entries[id]; !exists {
		q.byWorkflow[entry.WorkflowID] = append(q.byWorkflow[entry.WorkflowID], id)
	}
	q.entries[id] = entry
}

// Get returns the entry for a token id.
func (q *DeadLetterQueue) Get(tokenID string) (*DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[tokenID]
	return e, ok
}

// List returns all entries.
func (q *DeadLetterQueue) List() []*DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*DeadLetterEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	return out
}

// ListByWorkflow returns entries for one workflow in insertion order.
func (q *DeadLetterQueue) ListByWorkflow(workflowID string) []*DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := q.byWorkflow[workflowID]
	out := make([]*DeadLetterEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := q.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Remove drops one entry.
func (q *DeadLetterQueue) Remove(tokenID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[tokenID]
	if !ok {
		return false
	}
	delete(q.entries, tokenID)

	ids := q.byWorkflow[e.WorkflowID]
	for i, id := range ids {
		if id == tokenID {
			q.byWorkflow[e.WorkflowID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true
}

// Clear drops everything.
func (q *DeadLetterQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[string]*DeadLetterEntry)
	q.byWorkflow = make(map[string][]string)
}

// Stats returns totals overall and per workflow.
func (q *DeadLetterQueue) Stats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	byWorkflow := make(map[string]int, len(q.byWorkflow))
	for wf, ids := range q.byWorkflow {
		if len(ids) > 0 {
			byWorkflow[wf] = len(ids)
		}
	}
	return map[string]interface{}{
		"total":       len(q.entries),
		"by_workflow": byWorkflow,
	}
}
