package checkpoint

import (
	"context"
	"time"
)

// Logger is the minimal logging surface the manager needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Snapshotter produces a checkpoint on demand, or reports that the engine
// is not in a checkpointable state (auto-save only fires while the engine
// is running or waiting on humans).
type Snapshotter interface {
	Snapshot() (*Checkpoint, bool)
}

// Manager drives snapshot persistence through a Store.
type Manager struct {
	store  Store
	logger Logger
}

// NewManager creates a manager over a store.
func NewManager(store Store, logger Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Save persists a checkpoint under its workflow id.
func (m *Manager) Save(ctx context.Context, cp *Checkpoint) error {
	cp.Version = EnvelopeVersion
	if cp.CheckpointAt.IsZero() {
		cp.CheckpointAt = time.Now()
	}
	if err := m.store.Save(ctx, cp.WorkflowID, cp); err != nil {
		return err
	}
	m.logger.Debug("checkpoint saved",
		"workflow_id", cp.WorkflowID,
		"engine_status", cp.EngineStatus,
		"tokens", len(cp.Tokens))
	return nil
}

// Load retrieves the checkpoint for a workflow id. Returns
// (nil, ErrNotFound) when none exists.
func (m *Manager) Load(ctx context.Context, workflowID string) (*Checkpoint, error) {
	return m.store.Load(ctx, workflowID)
}

// Delete removes a stored checkpoint.
func (m *Manager) Delete(ctx context.Context, workflowID string) error {
	return m.store.Delete(ctx, workflowID)
}

// List returns workflow ids with stored checkpoints.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// StartAuto begins periodic checkpointing of the snapshotter. The returned
// cancel function stops the ticker; it is safe to call more than once.
func (m *Manager) StartAuto(ctx context.Context, src Snapshotter, interval time.Duration) (cancel func()) {
	tickCtx, stop := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				cp, ok := src.Snapshot()
				if !ok {
					continue
				}
				if err := m.Save(tickCtx, cp); err != nil {
					m.logger.Error("auto-checkpoint failed",
						"workflow_id", cp.WorkflowID,
						"error", err)
				}
			}
		}
	}()

	return stop
}
