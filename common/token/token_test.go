package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeedsHistory(t *testing.T) {
	tok := New("node-a", map[string]interface{}{"x": 1}, "wf-1")

	assert.NotEmpty(t, tok.ID())
	assert.Equal(t, "wf-1", tok.WorkflowID())
	assert.Equal(t, "node-a", tok.CurrentNodeID())
	assert.Equal(t, StatusActive, tok.Status())

	history := tok.History()
	require.Len(t, history, 1)
	assert.Equal(t, ActionCreated, history[0].Action)
	assert.Equal(t, "node-a", history[0].NodeID)
}

func TestMoveAppendsExitedEnteredPair(t *testing.T) {
	tok := New("a", nil, "wf")
	tok.Move("b", &Analytics{ProcessTime: "PT1S"})

	history := tok.History()
	require.Len(t, history, 3)
	assert.Equal(t, ActionExited, history[1].Action)
	assert.Equal(t, "a", history[1].NodeID)
	require.NotNil(t, history[1].Analytics)
	assert.Equal(t, "PT1S", history[1].Analytics.ProcessTime)
	assert.Equal(t, ActionEntered, history[2].Action)
	assert.Equal(t, "b", history[2].NodeID)
	assert.Equal(t, "b", tok.CurrentNodeID())
}

// Every node change appends an exited entry on the prior node immediately
// before the entered entry on the next.
func TestHistoryPairingInvariant(t *testing.T) {
	tok := New("a", nil, "wf")
	tok.Move("b", nil)
	tok.Move("c", nil)
	tok.UpdateStatus(StatusCompleted, nil)

	history := tok.History()
	for i, entry := range history {
		if entry.Action == ActionEntered {
			require.Greater(t, i, 0)
			prev := history[i-1]
			assert.Equal(t, ActionExited, prev.Action, "entered at %d must follow exited", i)
			assert.NotEqual(t, prev.NodeID, entry.NodeID)
		}
	}
}

// Completing at the final node closes its exited/entered pairing before
// the terminal status change.
func TestCompleteAppendsFinalExitedEntry(t *testing.T) {
	tok := New("a", nil, "wf")
	tok.Move("b", nil)
	tok.Complete(&Analytics{ProcessTime: "PT1S"})

	assert.Equal(t, StatusCompleted, tok.Status())
	history := tok.History()
	require.Len(t, history, 5)

	exited := history[3]
	assert.Equal(t, ActionExited, exited.Action)
	assert.Equal(t, "b", exited.NodeID)
	require.NotNil(t, exited.Analytics)
	assert.Equal(t, "PT1S", exited.Analytics.ProcessTime)

	last := history[4]
	assert.Equal(t, ActionStatusPrefix+string(StatusCompleted), last.Action)
	assert.Equal(t, "b", last.NodeID)
}

func TestResumeOnlyFromWaiting(t *testing.T) {
	tok := New("a", nil, "wf")
	assert.False(t, tok.Resume(nil, nil), "active token must not resume")

	tok.UpdateStatus(StatusWaiting, nil)
	assert.True(t, tok.Resume(map[string]interface{}{"approved": true}, nil))
	assert.Equal(t, StatusActive, tok.Status())

	approved, ok := tok.GetData("approved")
	require.True(t, ok)
	assert.Equal(t, true, approved)

	assert.False(t, tok.Resume(nil, nil), "second resume must lose")
}

func TestUpdateStatusRecordsChange(t *testing.T) {
	tok := New("a", nil, "wf")
	tok.UpdateStatus(StatusWaiting, &Analytics{WasteCategories: []WasteCategory{WasteWaiting}})

	assert.Equal(t, StatusWaiting, tok.Status())
	history := tok.History()
	last := history[len(history)-1]
	assert.Equal(t, ActionStatusPrefix+string(StatusWaiting), last.Action)
	require.NotNil(t, last.Analytics)
	assert.Equal(t, []WasteCategory{WasteWaiting}, last.Analytics.WasteCategories)
}

func TestUpdateStatusIgnoredOnTerminalToken(t *testing.T) {
	tok := New("a", nil, "wf")
	tok.UpdateStatus(StatusCompleted, nil)
	before := len(tok.History())

	tok.UpdateStatus(StatusActive, nil)

	assert.Equal(t, StatusCompleted, tok.Status())
	assert.Len(t, tok.History(), before)
}

func TestMergeDataLastWriteWins(t *testing.T) {
	tok := New("a", map[string]interface{}{"x": 1, "y": "keep"}, "wf")
	tok.MergeData(map[string]interface{}{"x": 2, "z": true})

	data := tok.ContextData()
	assert.Equal(t, 2, data["x"])
	assert.Equal(t, "keep", data["y"])
	assert.Equal(t, true, data["z"])
}

func TestContextDataIsACopy(t *testing.T) {
	tok := New("a", map[string]interface{}{"x": 1}, "wf")
	data := tok.ContextData()
	data["x"] = 99

	fresh, ok := tok.GetData("x")
	require.True(t, ok)
	assert.Equal(t, 1, fresh)
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	tok := New("a", map[string]interface{}{"x": 1.0}, "wf")
	tok.Move("b", &Analytics{ProcessTime: "PT2S"})
	tok.UpdateStatus(StatusWaiting, nil)

	s := tok.Serialize()
	restored := Restore(s)

	assert.Equal(t, tok.ID(), restored.ID())
	assert.Equal(t, tok.WorkflowID(), restored.WorkflowID())
	assert.Equal(t, tok.CurrentNodeID(), restored.CurrentNodeID())
	assert.Equal(t, tok.Status(), restored.Status())
	assert.Equal(t, tok.ContextData(), restored.ContextData())
	assert.Equal(t, tok.History(), restored.History())
	assert.WithinDuration(t, tok.CreatedAt(), restored.CreatedAt(), time.Millisecond)
}
