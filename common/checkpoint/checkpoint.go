// Package checkpoint snapshots engine state to a versioned envelope and
// persists it through a pluggable store (memory, file-per-workflow, Redis).
package checkpoint

import (
	"time"

	"github.com/lyzr/agentflow/common/token"
)

// EnvelopeVersion is the persisted state layout version.
const EnvelopeVersion = "1.0"

// Checkpoint is the persisted snapshot of an engine and its token set.
type Checkpoint struct {
	Version         string                 `json:"version"`
	WorkflowID      string                 `json:"workflow_id"`
	WorkflowName    string                 `json:"workflow_name"`
	WorkflowVersion string                 `json:"workflow_version"`
	EngineStatus    string                 `json:"engine_status"`
	Tokens          []*token.Serialized    `json:"tokens"`
	Contexts        map[string]interface{} `json:"contexts"`
	CheckpointAt    time.Time              `json:"checkpoint_at"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}
