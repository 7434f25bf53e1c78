package checkpoint

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}

type countingSnapshotter struct {
	calls int32
	ok    bool
	cp    *Checkpoint
}

func (s *countingSnapshotter) Snapshot() (*Checkpoint, bool) {
	atomic.AddInt32(&s.calls, 1)
	return s.cp, s.ok
}

func TestManagerSaveStampsEnvelope(t *testing.T) {
	m := NewManager(NewMemoryStore(), nopLogger{})
	cp := sampleCheckpoint("wf-1")
	cp.Version = ""
	cp.CheckpointAt = time.Time{}

	require.NoError(t, m.Save(context.Background(), cp))

	loaded, err := m.Load(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, loaded.Version)
	assert.False(t, loaded.CheckpointAt.IsZero())
}

func TestManagerAutoCheckpoint(t *testing.T) {
	m := NewManager(NewMemoryStore(), nopLogger{})
	src := &countingSnapshotter{ok: true, cp: sampleCheckpoint("wf-auto")}

	cancel := m.StartAuto(context.Background(), src, 10*time.Millisecond)
	defer cancel()

	require.Eventually(t, func() bool {
		_, err := m.Load(context.Background(), "wf-auto")
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestManagerAutoSkipsWhenNothingToSnapshot(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, nopLogger{})
	src := &countingSnapshotter{ok: false}

	cancel := m.StartAuto(context.Background(), src, 5*time.Millisecond)
	defer cancel()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&src.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManagerAutoCancel(t *testing.T) {
	m := NewManager(NewMemoryStore(), nopLogger{})
	src := &countingSnapshotter{ok: false}

	cancel := m.StartAuto(context.Background(), src, time.Millisecond)
	cancel()

	time.Sleep(10 * time.Millisecond)
	calls := atomic.LoadInt32(&src.calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&src.calls))
}
