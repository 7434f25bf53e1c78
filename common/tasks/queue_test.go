package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
)

func newTask(id, roleID string, priority Priority) *HumanTask {
	return &HumanTask{ID: id, RoleID: roleID, TokenID: "tok-" + id, Priority: priority}
}

func TestEnqueueDefaults(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(&HumanTask{ID: "t1", RoleID: "r1", TokenID: "tok"}))

	task, err := q.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, PriorityNormal, task.Priority)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestGetUnknownTask(t *testing.T) {
	q := NewQueue()
	_, err := q.Get("nope")
	assert.True(t, flowerr.IsKind(err, flowerr.KindNotFound))
}

// Lower priority rank wins; equal ranks resolve by creation time.
func TestGetPendingByRoleOrdering(t *testing.T) {
	q := NewQueue()

	older := newTask("older-normal", "r1", PriorityNormal)
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, q.Enqueue(older))

	newer := newTask("newer-normal", "r1", PriorityNormal)
	require.NoError(t, q.Enqueue(newer))

	critical := newTask("critical", "r1", PriorityCritical)
	require.NoError(t, q.Enqueue(critical))

	low := newTask("low", "r1", PriorityLow)
	require.NoError(t, q.Enqueue(low))

	require.NoError(t, q.Enqueue(newTask("other-role", "r2", PriorityCritical)))

	pending := q.GetPendingByRole("r1")
	require.Len(t, pending, 4)
	assert.Equal(t, "critical", pending[0].ID)
	assert.Equal(t, "older-normal", pending[1].ID)
	assert.Equal(t, "newer-normal", pending[2].ID)
	assert.Equal(t, "low", pending[3].ID)
}

func TestAssignStartCompleteLifecycle(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("t1", "r1", PriorityNormal)))

	task, err := q.Assign("t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, task.Status)
	assert.Equal(t, "alice", task.AssigneeID)

	task, err = q.Start("t1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, task.Status)

	task, err = q.Complete("t1", map[string]interface{}{"approved": true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, true, task.Outputs["approved"])
	assert.NotNil(t, task.CompletedAt)
}

func TestCompleteTerminalTaskFails(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("t1", "r1", PriorityNormal)))
	_, err := q.Complete("t1", nil)
	require.NoError(t, err)

	_, err = q.Complete("t1", nil)
	assert.Error(t, err)
}

func TestRejectResolvesWaiter(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("t1", "r1", PriorityNormal)))

	done := q.WaitForCompletion("t1")
	require.NotNil(t, done)

	_, err := q.Reject("t1", "not my job")
	require.NoError(t, err)

	select {
	case task := <-done:
		require.NotNil(t, task)
		assert.Equal(t, StatusRejected, task.Status)
		assert.Equal(t, "not my job", task.RejectReason)
	case <-time.After(time.Second):
		t.Fatal("waiter was not resolved on reject")
	}
}

func TestWaitForCompletionResolvesImmediatelyOnTerminal(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("t1", "r1", PriorityNormal)))
	_, err := q.Complete("t1", map[string]interface{}{"ok": true})
	require.NoError(t, err)

	select {
	case task := <-q.WaitForCompletion("t1"):
		require.NotNil(t, task)
		assert.Equal(t, StatusCompleted, task.Status)
	case <-time.After(time.Second):
		t.Fatal("waiter did not resolve immediately")
	}
}

func TestWaitForCompletionUnknownTask(t *testing.T) {
	q := NewQueue()

	select {
	case task := <-q.WaitForCompletion("nope"):
		assert.Nil(t, task)
	case <-time.After(time.Second):
		t.Fatal("unknown task waiter did not resolve")
	}
}

func TestGetByTokenNewestFirst(t *testing.T) {
	q := NewQueue()

	first := &HumanTask{ID: "t1", RoleID: "r1", TokenID: "tok"}
	first.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, q.Enqueue(first))
	require.NoError(t, q.Enqueue(&HumanTask{ID: "t2", RoleID: "r1", TokenID: "tok"}))

	byToken := q.GetByToken("tok")
	require.Len(t, byToken, 2)
	assert.Equal(t, "t2", byToken[0].ID)
}

func TestClearCompletedAndStats(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("t1", "r1", PriorityNormal)))
	require.NoError(t, q.Enqueue(newTask("t2", "r1", PriorityNormal)))
	_, err := q.Complete("t1", nil)
	require.NoError(t, err)

	stats := q.Stats()
	assert.Equal(t, 2, stats["total"])
	assert.Equal(t, 1, stats["pending"])
	assert.Equal(t, 1, stats["completed"])

	removed := q.ClearCompleted()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, q.Stats()["total"])
}
