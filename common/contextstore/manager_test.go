package contextstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

func persistentCtx(id string, initial interface{}) *workflow.Context {
	return &workflow.Context{ID: id, Name: id, Lifecycle: workflow.LifecyclePersistent, InitialValue: initial}
}

func TestRegisterAndGet(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("order", map[string]interface{}{"total": 10.0})))

	value, err := m.Get("order")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"total": 10.0}, value)
}

func TestRegisterDeepCopiesInitialValue(t *testing.T) {
	initial := map[string]interface{}{"total": 10.0}
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("order", initial)))

	initial["total"] = 99.0

	value, err := m.Get("order")
	require.NoError(t, err)
	assert.Equal(t, 10.0, value.(map[string]interface{})["total"])
}

func TestGetUnknownContext(t *testing.T) {
	m := NewManager()
	_, err := m.Get("missing")
	assert.True(t, flowerr.IsKind(err, flowerr.KindNotFound))
}

func TestUpdateMergesTopLevel(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("order", map[string]interface{}{"a": 1.0, "b": 2.0})))

	require.NoError(t, m.Update("order", map[string]interface{}{"b": 3.0, "c": 4.0}))

	value, err := m.Get("order")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1.0, "b": 3.0, "c": 4.0}, value)
}

func TestUpdateReplacesNonMapValue(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("counter", 1.0)))

	require.NoError(t, m.Update("counter", map[string]interface{}{"n": 2.0}))

	value, err := m.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"n": 2.0}, value)
}

func TestClearTransient(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("keep", "v")))
	require.NoError(t, m.Register(&workflow.Context{
		ID: "scratch", Lifecycle: workflow.LifecycleTransient, InitialValue: "tmp",
	}))

	m.ClearTransient()

	_, err := m.Get("keep")
	assert.NoError(t, err)
	value, err := m.Get("scratch")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSnapshotExcludesTransient(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("keep", "v")))
	require.NoError(t, m.Register(&workflow.Context{
		ID: "scratch", Lifecycle: workflow.LifecycleTransient, InitialValue: "tmp",
	}))

	snap := m.Snapshot()
	assert.Contains(t, snap, "keep")
	assert.NotContains(t, snap, "scratch")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(persistentCtx("order", map[string]interface{}{"total": 10.0})))
	require.NoError(t, m.Set("order", map[string]interface{}{"total": 25.0}))

	snap := m.Snapshot()

	fresh := NewManager()
	require.NoError(t, fresh.Register(persistentCtx("order", nil)))
	fresh.RestoreSnapshot(snap)

	value, err := fresh.Get("order")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"total": 25.0}, value)
}
