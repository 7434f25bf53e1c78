package actors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/logger"
	"github.com/lyzr/agentflow/common/workflow"
)

// The zero-value config simulates; real mode has to be asked for.
func TestRobotActorSimulationClassification(t *testing.T) {
	actor := NewRobotActor(RobotConfig{}, logger.Nop())

	tests := []struct {
		name       string
		wantAction string
	}{
		{"Pick item from shelf", "pick"},
		{"Place component on belt", "place"},
		{"Transport pallet to dock", "move"},
		{"Inspect weld seam", "scan"},
		{"Assemble housing", "assemble"},
		{"Do the thing", "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := actor.Execute(context.Background(),
				&workflow.Activity{ID: "a", Name: tt.name, ActorType: workflow.ActorRobot}, nil)
			require.NoError(t, err)

			assert.Equal(t, "completed", out["status"])
			assert.Equal(t, tt.wantAction, out["action"])
			assert.NotEmpty(t, out["result"])

			ms, ok := out["execution_time_ms"].(int)
			require.True(t, ok)
			assert.GreaterOrEqual(t, ms, 200)
			assert.Less(t, ms, 2000)
		})
	}
}

func TestRobotActorRealModeNotImplemented(t *testing.T) {
	actor := NewRobotActor(RobotConfig{
		RealMode: true,
		Protocol: "grpc",
		Host:     "fleet.local",
		Port:     7070,
	}, logger.Nop())

	_, err := actor.Execute(context.Background(),
		&workflow.Activity{ID: "a", Name: "Pick item"}, nil)

	require.Error(t, err)
	assert.True(t, flowerr.IsKind(err, flowerr.KindNotImplemented))
	assert.Contains(t, err.Error(), "grpc")
	assert.Contains(t, err.Error(), "fleet.local")
}
