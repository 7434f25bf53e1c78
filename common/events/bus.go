package events

import (
	"context"
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	TypeWorkflowStarted   = "workflow.started"
	TypeWorkflowCompleted = "workflow.completed"
	TypeWorkflowFailed    = "workflow.failed"
	TypeTokenMoved        = "token.moved"
	TypeTokenWaiting      = "token.waiting"
	TypeTokenResumed      = "token.resumed"
	TypeTokenFailed       = "token.failed"
	TypeActivityStarted   = "activity.started"
	TypeActivityCompleted = "activity.completed"
	TypeDecisionEvaluated = "decision.evaluated"
	TypeCheckpointSaved   = "checkpoint.saved"
)

// Event is a lifecycle notification.
type Event struct {
	Type       string                 `json:"type"`
	WorkflowID string                 `json:"workflow_id,omitempty"`
	TokenID    string                 `json:"token_id,omitempty"`
	NodeID     string                 `json:"node_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Handler processes a single event.
type Handler func(ctx context.Context, ev Event)

// Logger is the minimal logging surface the bus needs.
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
}

// Bus is an in-process pub/sub channel for engine lifecycle events.
// Subscribers run on their own goroutine fed by a buffered channel; a slow
// subscriber drops events rather than stalling the engine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	closed bool
	log    Logger
}

const subscriberBuffer = 256

// NewBus creates an event bus.
func NewBus(log Logger) *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
		log:  log,
	}
}

// Publish delivers the event to every subscriber of its type and to
// wildcard ("*") subscribers. Timestamp is stamped if unset.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs[ev.Type] {
		b.send(ch, ev)
	}
	for _, ch := range b.subs["*"] {
		b.send(ch, ev)
	}
}

func (b *Bus) send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
		if b.log != nil {
			b.log.Warn("event subscriber backlogged, dropping event", "type", ev.Type)
		}
	}
}

// Subscribe registers a handler for an event type ("*" for all) and starts
// its delivery goroutine. The goroutine exits when ctx is cancelled or the
// bus is closed.
func (b *Bus) Subscribe(ctx context.Context, eventType string, handler Handler) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				handler(ctx, ev)
			}
		}
	}()
}

// Close tears the bus down. Publish becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan Event)
}
