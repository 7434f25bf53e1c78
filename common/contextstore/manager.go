package contextstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// Manager owns the workflow-scoped shared-state slots. Access is serialized
// per manager; the engine is the single owner.
type Manager struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	decl  *workflow.Context
	value interface{}
}

// NewManager creates an empty context manager.
func NewManager() *Manager {
	return &Manager{
		slots: make(map[string]*slot),
	}
}

// Register declares a slot and seeds it with a deep copy of the declared
// initial value. Re-registering replaces the slot.
func (m *Manager) Register(decl *workflow.Context) error {
	if decl == nil || decl.ID == "" {
		return flowerr.New(flowerr.KindValidation, "context declaration requires an id")
	}

	value, err := deepCopy(decl.InitialValue)
	if err != nil {
		return flowerr.Wrap(flowerr.KindValidation,
			fmt.Sprintf("context %s initial value is not JSON-shaped", decl.ID), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[decl.ID] = &slot{decl: decl, value: value}
	return nil
}

// Get reads a slot value.
func (m *Manager) Get(contextID string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[contextID]
	if !ok {
		return nil, flowerr.Newf(flowerr.KindNotFound, "context not found: %s", contextID)
	}
	return s.value, nil
}

// Set replaces a slot value.
func (m *Manager) Set(contextID string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[contextID]
	if !ok {
		return flowerr.Newf(flowerr.KindNotFound, "context not found: %s", contextID)
	}
	s.value = value
	return nil
}

// Update merges a map into a map-valued slot at the top level. Non-map slot
// values are replaced.
func (m *Manager) Update(contextID string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[contextID]
	if !ok {
		return flowerr.Newf(flowerr.KindNotFound, "context not found: %s", contextID)
	}

	current, ok := s.value.(map[string]interface{})
	if !ok {
		merged := make(map[string]interface{}, len(updates))
		for k, v := range updates {
			merged[k] = v
		}
		s.value = merged
		return nil
	}

	for k, v := range updates {
		current[k] = v
	}
	return nil
}

// Delete removes a slot. Deleting an unknown slot is a no-op.
func (m *Manager) Delete(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, contextID)
}

// ClearTransient drops values of transient slots. Called when the engine
// completes.
func (m *Manager) ClearTransient() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.decl.Lifecycle == workflow.LifecycleTransient {
			s.value = nil
		}
	}
}

// Snapshot returns all persistent slot values keyed by context id.
// Transient slots are excluded: they do not survive checkpoints.
func (m *Manager) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]interface{}, len(m.slots))
	for id, s := range m.slots {
		if s.decl.Lifecycle == workflow.LifecycleTransient {
			continue
		}
		out[id] = s.value
	}
	return out
}

// RestoreSnapshot writes checkpointed values back into registered slots.
// Values for unregistered ids are ignored.
func (m *Manager) RestoreSnapshot(values map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, v := range values {
		if s, ok := m.slots[id]; ok {
			s.value = v
		}
	}
}

// IDs returns the registered slot ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.slots))
	for id := range m.slots {
		out = append(out, id)
	}
	return out
}

func deepCopy(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
