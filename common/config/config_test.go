package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("agentflow")
	require.NoError(t, err)

	assert.Equal(t, "agentflow", cfg.Service.Name)
	assert.Equal(t, 3000, cfg.Service.Port)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.True(t, cfg.Robot.Simulation)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 30*time.Second, cfg.Checkpoint.AutoInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ROBOT_SIMULATION", "false")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")

	cfg, err := Load("agentflow")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.False(t, cfg.Robot.Simulation)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "99999")
	_, err := Load("agentflow")
	assert.Error(t, err)

	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load("agentflow")
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("RETRY_MULTIPLIER", "0.5")
	_, err = Load("agentflow")
	assert.Error(t, err)
}
