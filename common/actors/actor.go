// Package actors provides the uniform effect interface the engine uses to
// perform activities. One Actor variant exists per actor kind; selection is
// a tag dispatch on the activity's actor_type.
package actors

import (
	"context"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// Actor performs an activity. One request in, one result map out; streaming
// is out of scope.
type Actor interface {
	Execute(ctx context.Context, activity *workflow.Activity, inputs map[string]interface{}) (map[string]interface{}, error)
}

// Logger is the minimal logging surface actors need.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Registry routes actor types to their adapters.
type Registry struct {
	actors map[workflow.ActorType]Actor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actors: make(map[workflow.ActorType]Actor)}
}

// Register binds an actor type to an adapter.
func (r *Registry) Register(kind workflow.ActorType, actor Actor) {
	r.actors[kind] = actor
}

// ForType returns the adapter for an actor type.
func (r *Registry) ForType(kind workflow.ActorType) (Actor, error) {
	actor, ok := r.actors[kind]
	if !ok {
		return nil, flowerr.Newf(flowerr.KindNotFound, "no actor registered for type %q", kind)
	}
	return actor, nil
}

// Reserved input keys the engine injects before dispatch.
const (
	InputTokenID      = "_token_id"
	InputWorkflowID   = "_workflow_id"
	InputActivityID   = "_activity_id"
	InputActivityName = "_activity_name"
)
