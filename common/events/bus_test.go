package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu     sync.Mutex
	events []Event
}

func (c *capture) handler(ctx context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capture) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *capture) first() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func TestBusDeliversByType(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var moved, failed capture
	ctx := context.Background()
	bus.Subscribe(ctx, TypeTokenMoved, moved.handler)
	bus.Subscribe(ctx, TypeTokenFailed, failed.handler)

	bus.Publish(Event{Type: TypeTokenMoved, TokenID: "tok-1", NodeID: "b"})

	require.Eventually(t, func() bool { return moved.len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "tok-1", moved.first().TokenID)
	assert.False(t, moved.first().Timestamp.IsZero(), "publish stamps the timestamp")
	assert.Zero(t, failed.len())
}

func TestBusWildcardSeesEverything(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var all capture
	bus.Subscribe(context.Background(), "*", all.handler)

	bus.Publish(Event{Type: TypeWorkflowStarted})
	bus.Publish(Event{Type: TypeTokenMoved})
	bus.Publish(Event{Type: TypeWorkflowCompleted})

	require.Eventually(t, func() bool { return all.len() == 3 }, time.Second, time.Millisecond)
}

func TestBusPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(nil)

	var all capture
	bus.Subscribe(context.Background(), "*", all.handler)
	bus.Close()

	bus.Publish(Event{Type: TypeTokenMoved})

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, all.len())
}

func TestBusSubscriberContextCancelStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var all capture
	bus.Subscribe(ctx, "*", all.handler)
	cancel()

	// The delivery goroutine may still drain an in-flight event, but new
	// publishes after the goroutine exits go nowhere.
	time.Sleep(10 * time.Millisecond)
	bus.Publish(Event{Type: TypeTokenMoved})
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, all.len())
}
