package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	result, state, err := WithRetry(context.Background(), fastConfig(3), nil,
		func(ctx context.Context) (map[string]interface{}, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient hiccup")
			}
			return map[string]interface{}{"ok": true}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, state.Attempt)
	assert.Equal(t, true, result["ok"])
}

// f is called at most max_retries+1 times.
func TestWithRetryExhaustion(t *testing.T) {
	calls := 0
	_, state, err := WithRetry(context.Background(), fastConfig(3), nil,
		func(ctx context.Context) (map[string]interface{}, error) {
			calls++
			return nil, errors.New("always failing")
		})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 3, state.Attempt)
	assert.Contains(t, state.LastError, "always failing")
}

func TestWithRetryNonRetryableKindStopsImmediately(t *testing.T) {
	calls := 0
	_, _, err := WithRetry(context.Background(), fastConfig(5), nil,
		func(ctx context.Context) (map[string]interface{}, error) {
			calls++
			return nil, flowerr.New(flowerr.KindValidation, "bad definition")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, flowerr.IsKind(err, flowerr.KindValidation))
}

func TestWithRetryNonRetryableMessagePattern(t *testing.T) {
	calls := 0
	_, _, err := WithRetry(context.Background(), fastConfig(5), nil,
		func(ctx context.Context) (map[string]interface{}, error) {
			calls++
			return nil, errors.New("upstream said: unauthorized")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig(3)
	cfg.InitialDelay = time.Minute

	done := make(chan error, 1)
	go func() {
		_, _, err := WithRetry(ctx, cfg, nil,
			func(ctx context.Context) (map[string]interface{}, error) {
				return nil, errors.New("transient")
			})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, flowerr.IsKind(err, flowerr.KindCancelled))
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

// With jitter off, delays never decrease and cap at max_delay.
func TestDelayMonotonicWithoutJitter(t *testing.T) {
	cfg := Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     80 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}

	prev := time.Duration(0)
	for n := 0; n < 8; n++ {
		d := cfg.Delay(n)
		assert.GreaterOrEqual(t, d, prev, "delay decreased at n=%d", n)
		assert.LessOrEqual(t, d, cfg.MaxDelay)
		prev = d
	}
	assert.Equal(t, cfg.MaxDelay, cfg.Delay(10))
}

func TestDelayJitterStaysWithinBand(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.0,
		Jitter:       true,
	}

	for i := 0; i < 50; i++ {
		d := cfg.Delay(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
