package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/logger"
)

func testClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewClient(rdb, logger.Nop()), mr
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(context.Background(), mr.Addr(), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.GetUnderlying())
}

func TestConnectFailsOnDeadServer(t *testing.T) {
	_, err := Connect(context.Background(), "127.0.0.1:1", logger.Nop())
	assert.Error(t, err)
}

func TestSetGetDelete(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetWithExpiry(ctx, "k", "v", time.Minute))

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorContains(t, err, "key not found")
}

func TestIncrement(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	n, err := c.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPublishEvent(t *testing.T) {
	c, _ := testClient(t)

	sub := c.GetUnderlying().Subscribe(context.Background(), "agentflow:events")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.PublishEvent(context.Background(), "agentflow:events", `{"type":"token.moved"}`))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "token.moved")
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
