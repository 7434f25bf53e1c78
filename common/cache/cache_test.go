package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/logger"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "wf.json", []byte(`{"id":"x"}`), time.Minute))

	val, ok, err := c.Get(ctx, "wf.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"id":"x"}`), val)

	_, ok, err = c.Get(ctx, "missing.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache(logger.Nop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	stats := c.Stats()
	assert.Equal(t, 2, stats["entries"])
	assert.Equal(t, "memory", stats["type"])
}
