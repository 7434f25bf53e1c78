package engine

import (
	"context"

	"github.com/lyzr/agentflow/common/actors"
	"github.com/lyzr/agentflow/common/checkpoint"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/token"
)

// Snapshot captures the engine for checkpointing. ok is false while the
// engine is idle or already terminal, which lets the auto-checkpoint
// ticker skip useless writes.
func (e *Engine) Snapshot() (*checkpoint.Checkpoint, bool) {
	e.mu.Lock()
	status := e.status
	serialized := make([]*token.Serialized, len(e.tokens))
	for i, t := range e.tokens {
		serialized[i] = t.Serialize()
	}
	e.mu.Unlock()

	if status == StatusIdle || status.IsTerminal() {
		return nil, false
	}

	return &checkpoint.Checkpoint{
		WorkflowID:      e.wf.ID,
		WorkflowName:    e.wf.Name,
		WorkflowVersion: e.wf.Version,
		EngineStatus:    string(status),
		Tokens:          serialized,
		Contexts:        e.contexts.Snapshot(),
	}, true
}

// SaveCheckpoint persists the current snapshot through the wired
// checkpoint manager.
func (e *Engine) SaveCheckpoint(ctx context.Context) error {
	if e.ckpt == nil {
		return flowerr.New(flowerr.KindConfig, "no checkpoint manager wired")
	}
	cp, ok := e.Snapshot()
	if !ok {
		return flowerr.Newf(flowerr.KindValidation, "engine status %s has nothing to checkpoint", e.Status())
	}
	return e.ckpt.Save(ctx, cp)
}

// RestoreFromCheckpoint replaces the engine's tokens, contexts and status
// with the checkpointed state. The engine must still be idle and the
// checkpoint must belong to the same workflow. Waiting tokens re-arm
// their auto-resume watchers when their task is still queued.
func (e *Engine) RestoreFromCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return flowerr.New(flowerr.KindValidation, "checkpoint is nil")
	}
	if cp.Version != checkpoint.EnvelopeVersion {
		return flowerr.Newf(flowerr.KindValidation, "unsupported checkpoint version %q", cp.Version)
	}
	if cp.WorkflowID != e.wf.ID {
		return flowerr.Newf(flowerr.KindValidation,
			"checkpoint belongs to workflow %s, engine runs %s", cp.WorkflowID, e.wf.ID)
	}

	restored := make([]*token.Token, len(cp.Tokens))
	for i, s := range cp.Tokens {
		restored[i] = token.Restore(s)
	}

	e.mu.Lock()
	if e.status != StatusIdle {
		status := e.status
		e.mu.Unlock()
		return flowerr.Newf(flowerr.KindValidation, "cannot restore into a %s engine", status)
	}
	e.tokens = restored
	e.status = parseStatus(cp.EngineStatus)
	e.mu.Unlock()

	e.contexts.RestoreSnapshot(cp.Contexts)

	for _, t := range restored {
		if t.Status() != token.StatusWaiting {
			continue
		}
		taskID, ok := t.GetData(actors.OutputHumanTaskID)
		if id, isStr := taskID.(string); ok && isStr && id != "" {
			e.watchTask(ctx, t.ID(), id)
		}
	}

	e.log.Info("restored from checkpoint",
		"engine_status", cp.EngineStatus,
		"tokens", len(restored),
		"checkpoint_at", cp.CheckpointAt)
	return nil
}

func parseStatus(s string) Status {
	switch Status(s) {
	case StatusRunning, StatusWaitingHuman, StatusPaused, StatusCompleted, StatusFailed:
		return Status(s)
	default:
		return StatusRunning
	}
}
