package actors

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// RobotConfig holds robot fleet connection settings. The zero value runs
// in simulation mode.
type RobotConfig struct {
	RealMode bool
	Protocol string
	Host     string
	Port     int
}

// RobotActor performs robot activities. Simulation mode (the default)
// classifies the activity against a keyword table and synthesizes a
// plausible result; real mode is not implemented and says so.
type RobotActor struct {
	cfg    RobotConfig
	logger Logger
}

// NewRobotActor creates the adapter.
func NewRobotActor(cfg RobotConfig, logger Logger) *RobotActor {
	return &RobotActor{cfg: cfg, logger: logger}
}

type robotAction struct {
	name     string
	keywords []string
	result   string
}

// Keyword table for simulated classification. First hit wins.
var robotActions = []robotAction{
	{"pick", []string{"pick", "grasp", "grab"}, "item picked from source location"},
	{"place", []string{"place", "put", "drop", "deposit"}, "item placed at target location"},
	{"move", []string{"move", "transport", "navigate", "carry"}, "moved to target position"},
	{"scan", []string{"scan", "inspect", "check", "verify", "read"}, "scan completed, no anomalies"},
	{"assemble", []string{"assemble", "weld", "attach", "fasten", "mount"}, "assembly step completed"},
}

// Execute simulates or refuses, depending on mode.
func (a *RobotActor) Execute(ctx context.Context, activity *workflow.Activity, inputs map[string]interface{}) (map[string]interface{}, error) {
	if a.cfg.RealMode {
		return nil, flowerr.Newf(flowerr.KindNotImplemented,
			"real robot execution is not implemented (protocol=%s host=%s port=%d)",
			a.cfg.Protocol, a.cfg.Host, a.cfg.Port).WithDetails(map[string]interface{}{
			"protocol": a.cfg.Protocol,
			"host":     a.cfg.Host,
			"port":     a.cfg.Port,
		})
	}

	action, result := classify(activity)
	execMS := 200 + rand.Intn(1800)

	a.logger.Info("simulated robot activity",
		"activity_id", activity.ID,
		"action", action,
		"execution_time_ms", execMS)

	return map[string]interface{}{
		"status":            "completed",
		"action":            action,
		"execution_time_ms": execMS,
		"result":            result,
	}, nil
}

func classify(activity *workflow.Activity) (string, string) {
	haystack := strings.ToLower(activity.Name + " " + activity.Description)
	for _, ra := range robotActions {
		for _, kw := range ra.keywords {
			if strings.Contains(haystack, kw) {
				return ra.name, ra.result
			}
		}
	}
	return "generic", fmt.Sprintf("activity %s executed", activity.Name)
}

var _ Actor = (*RobotActor)(nil)
