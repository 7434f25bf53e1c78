package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/lyzr/agentflow/common/flowerr"
)

// Config tunes the retry wrapper. Zero values fall back to Default().
type Config struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Multiplier        float64
	Jitter            bool
	NonRetryableKinds []flowerr.Kind
}

// Default returns the stock retry configuration.
func Default() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c Config) nonRetryableKinds() []flowerr.Kind {
	if c.NonRetryableKinds != nil {
		return c.NonRetryableKinds
	}
	return []flowerr.Kind{
		flowerr.KindValidation,
		flowerr.KindAuthentication,
		flowerr.KindPermission,
		flowerr.KindNotFound,
	}
}

// nonRetryablePatterns is the canonical message pattern list. An error whose
// text matches any of these never retries, regardless of kind.
var nonRetryablePatterns = []string{
	"validation",
	"invalid",
	"unauthorized",
	"forbidden",
	"not found",
	"permission",
}

// State records how a retried call went; the dead-letter queue keeps it.
type State struct {
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
	LastError string    `json:"last_error,omitempty"`
}

// Logger is the minimal logging surface the wrapper needs.
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// IsRetryable classifies an error. Non-retryable means either its declared
// kind sits in the configured set or its message matches the canonical
// pattern list.
func (c Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	kind := flowerr.KindOf(err)
	for _, k := range c.nonRetryableKinds() {
		if kind == k {
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	return true
}

// Delay returns the backoff before retry n (0-based):
// min(max_delay, initial_delay * multiplier^n), perturbed by ±25% when
// jitter is on.
func (c Config) Delay(n int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < n; i++ {
		delay *= c.Multiplier
	}
	if max := float64(c.MaxDelay); c.MaxDelay > 0 && delay > max {
		delay = max
	}
	if c.Jitter {
		delay *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}

// WithRetry runs f, retrying retryable failures with exponential backoff.
// f is attempted at most MaxRetries+1 times. The returned State reports how
// many retries were spent and the last error text.
func WithRetry(ctx context.Context, cfg Config, log Logger, f func(context.Context) (map[string]interface{}, error)) (map[string]interface{}, *State, error) {
	state := &State{StartedAt: time.Now()}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		state.Attempt = attempt

		result, err := f(ctx)
		if err == nil {
			return result, state, nil
		}

		lastErr = err
		state.LastError = err.Error()

		if !cfg.IsRetryable(err) {
			if log != nil {
				log.Debug("error is not retryable", "error", err, "kind", flowerr.KindOf(err))
			}
			return nil, state, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.Delay(attempt)
		if log != nil {
			log.Warn("retrying after failure",
				"attempt", attempt+1,
				"max_retries", cfg.MaxRetries,
				"delay", delay,
				"error", err)
		}

		select {
		case <-ctx.Done():
			state.LastError = ctx.Err().Error()
			return nil, state, flowerr.Wrap(flowerr.KindCancelled, "retry cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, state, lastErr
}
