package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lyzr/agentflow/common/flowerr"
)

// Queue is the in-memory human task queue. Pending order is strict
// (priority rank, created_at); ties never resolve by assignment time.
// The queue is a swappable collaborator: the engine takes one at
// construction, and Default() provides a process-wide singleton for CLI use.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*HumanTask
	waiters map[string][]chan *HumanTask

	mirror    Store
	mirrorLog MirrorLogger
}

// MirrorLogger is the minimal logging surface the write-through mirror needs.
type MirrorLogger interface {
	Warn(msg string, keysAndValues ...interface{})
}

var (
	defaultQueue     *Queue
	defaultQueueOnce sync.Once
)

// Default returns the process-wide queue singleton.
func Default() *Queue {
	defaultQueueOnce.Do(func() {
		defaultQueue = NewQueue()
	})
	return defaultQueue
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:   make(map[string]*HumanTask),
		waiters: make(map[string][]chan *HumanTask),
	}
}

// Enqueue adds a pending task.
func (q *Queue) Enqueue(task *HumanTask) error {
	if task == nil || task.ID == "" {
		return flowerr.New(flowerr.KindValidation, "task requires an id")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	t := task.Clone()
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	q.tasks[t.ID] = t
	q.writeThrough(t.Clone())
	return nil
}

// Mirror attaches a persistence store. Every enqueue and transition is
// written through asynchronously; the in-memory queue stays authoritative.
// Attach before serving traffic.
func (q *Queue) Mirror(store Store, log MirrorLogger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mirror = store
	q.mirrorLog = log
}

func (q *Queue) writeThrough(t *HumanTask) {
	if q.mirror == nil {
		return
	}
	store, log := q.mirror, q.mirrorLog
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Upsert(ctx, t); err != nil && log != nil {
			log.Warn("task mirror upsert failed", "task_id", t.ID, "error", err)
		}
	}()
}

// Get returns a task by id.
func (q *Queue) Get(id string) (*HumanTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return nil, flowerr.Newf(flowerr.KindNotFound, "task not found: %s", id)
	}
	return t.Clone(), nil
}

// GetByToken returns all tasks created for a token, newest first.
func (q *Queue) GetByToken(tokenID string) []*HumanTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*HumanTask
	for _, t := range q.tasks {
		if t.TokenID == tokenID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// GetPendingByRole returns pending and assigned tasks for a role in strict
// (priority rank, created_at) order. Empty role matches everything.
func (q *Queue) GetPendingByRole(roleID string) []*HumanTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*HumanTask
	for _, t := range q.tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if roleID != "" && t.RoleID != roleID {
			continue
		}
		out = append(out, t.Clone())
	}
	sortPending(out)
	return out
}

// GetByStatus returns tasks with the given status in pending order.
func (q *Queue) GetByStatus(status Status) []*HumanTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*HumanTask
	for _, t := range q.tasks {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	sortPending(out)
	return out
}

// List returns every task the queue knows about, in pending order.
func (q *Queue) List() []*HumanTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*HumanTask, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Clone())
	}
	sortPending(out)
	return out
}

func sortPending(tasks []*HumanTask) {
	sort.Slice(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Priority.Rank(), tasks[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// Assign assigns a pending task to a user.
func (q *Queue) Assign(id, userID string) (*HumanTask, error) {
	return q.transition(id, func(t *HumanTask) error {
		if t.Status.IsTerminal() {
			return flowerr.Newf(flowerr.KindValidation, "task %s is already %s", id, t.Status)
		}
		t.AssigneeID = userID
		t.Status = StatusAssigned
		return nil
	})
}

// Start marks a task in progress.
func (q *Queue) Start(id string) (*HumanTask, error) {
	return q.transition(id, func(t *HumanTask) error {
		if t.Status.IsTerminal() {
			return flowerr.Newf(flowerr.KindValidation, "task %s is already %s", id, t.Status)
		}
		t.Status = StatusInProgress
		return nil
	})
}

// Complete finishes a task with outputs and resolves completion waiters.
func (q *Queue) Complete(id string, outputs map[string]interface{}) (*HumanTask, error) {
	return q.transition(id, func(t *HumanTask) error {
		if t.Status.IsTerminal() {
			return flowerr.Newf(flowerr.KindValidation, "task %s is already %s", id, t.Status)
		}
		now := time.Now()
		t.Status = StatusCompleted
		t.Outputs = outputs
		t.CompletedAt = &now
		return nil
	})
}

// Reject terminates a task with a reason and resolves completion waiters.
func (q *Queue) Reject(id, reason string) (*HumanTask, error) {
	return q.transition(id, func(t *HumanTask) error {
		if t.Status.IsTerminal() {
			return flowerr.Newf(flowerr.KindValidation, "task %s is already %s", id, t.Status)
		}
		now := time.Now()
		t.Status = StatusRejected
		t.RejectReason = reason
		t.CompletedAt = &now
		return nil
	})
}

// Expire marks an overdue task expired and resolves completion waiters.
func (q *Queue) Expire(id string) (*HumanTask, error) {
	return q.transition(id, func(t *HumanTask) error {
		if t.Status.IsTerminal() {
			return flowerr.Newf(flowerr.KindValidation, "task %s is already %s", id, t.Status)
		}
		now := time.Now()
		t.Status = StatusExpired
		t.CompletedAt = &now
		return nil
	})
}

func (q *Queue) transition(id string, mutate func(*HumanTask) error) (*HumanTask, error) {
	q.mu.Lock()

	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return nil, flowerr.Newf(flowerr.KindNotFound, "task not found: %s", id)
	}
	if err := mutate(t); err != nil {
		q.mu.Unlock()
		return nil, err
	}
	t.UpdatedAt = time.Now()

	var resolved []chan *HumanTask
	if t.Status.IsTerminal() {
		resolved = q.waiters[id]
		delete(q.waiters, id)
	}
	result := t.Clone()
	q.mu.Unlock()

	q.writeThrough(result)
	for _, ch := range resolved {
		ch <- result
	}
	return result, nil
}

// WaitForCompletion returns a channel that receives the task once it reaches
// a terminal status. Already-terminal tasks resolve immediately. An unknown
// id resolves with nil.
func (q *Queue) WaitForCompletion(id string) <-chan *HumanTask {
	ch := make(chan *HumanTask, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		ch <- nil
		return ch
	}
	if t.Status.IsTerminal() {
		ch <- t.Clone()
		return ch
	}
	q.waiters[id] = append(q.waiters[id], ch)
	return ch
}

// ClearCompleted drops terminal tasks and returns how many were removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, t := range q.tasks {
		if t.Status.IsTerminal() {
			delete(q.tasks, id)
			removed++
		}
	}
	return removed
}

// Stats returns task counts by status.
func (q *Queue) Stats() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := map[string]int{"total": len(q.tasks)}
	for _, t := range q.tasks {
		stats[string(t.Status)]++
	}
	return stats
}
