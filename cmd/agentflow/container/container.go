package container

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/agentflow/common/actors"
	"github.com/lyzr/agentflow/common/cache"
	"github.com/lyzr/agentflow/common/checkpoint"
	"github.com/lyzr/agentflow/common/config"
	"github.com/lyzr/agentflow/common/engine"
	"github.com/lyzr/agentflow/common/events"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/logger"
	"github.com/lyzr/agentflow/common/retry"
	"github.com/lyzr/agentflow/common/tasks"
	"github.com/lyzr/agentflow/common/workflow"
)

// How long a parsed workflow definition file stays hot in the cache.
const definitionTTL = 30 * time.Second

// Run tracks one workflow execution started through the control plane.
type Run struct {
	ID         string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	FilePath   string        `json:"file_path"`
	Status     engine.Status `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`

	engine *engine.Engine
}

// Container holds the singleton collaborators the control plane shares
// across requests. Defs and Checkpoints are optional; serve wires them
// before traffic starts.
type Container struct {
	Config      *config.Config
	Log         *logger.Logger
	Queue       *tasks.Queue
	DLQ         *retry.DeadLetterQueue
	Bus         *events.Bus
	Defs        *cache.MemoryCache
	Checkpoints *checkpoint.Manager

	mu   sync.RWMutex
	runs map[string]*Run
}

// New builds the container.
func New(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		Config: cfg,
		Log:    log,
		Queue:  tasks.Default(),
		DLQ:    retry.NewDeadLetterQueue(),
		Bus:    events.NewBus(log),
		runs:   make(map[string]*Run),
	}
}

// StartRun loads a workflow file, builds an engine on the shared
// collaborators and runs it on its own goroutine. The run outlives the
// request, so it gets its own background context.
func (c *Container) StartRun(filePath, apiKey string) (*Run, error) {
	wf, err := c.loadWorkflow(filePath)
	if err != nil {
		return nil, err
	}

	key := apiKey
	if key == "" {
		key = c.Config.AI.GeminiAPIKey
	}

	eng, err := engine.New(wf, engine.Options{
		GeminiAPIKey: key,
		RobotConfig: actors.RobotConfig{
			RealMode: !c.Config.Robot.Simulation,
			Protocol: c.Config.Robot.Protocol,
			Host:     c.Config.Robot.Host,
			Port:     c.Config.Robot.Port,
		},
		WaitForHumanTasks: true,
		Logger:            c.Log,
		Queue:             c.Queue,
		DLQ:               c.DLQ,
		Bus:               c.Bus,
		Checkpoint:        c.Checkpoints,
	})
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		FilePath:   filePath,
		Status:     engine.StatusRunning,
		StartedAt:  time.Now().UTC(),
		engine:     eng,
	}

	if _, err := eng.Start(nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.runs[run.ID] = run
	c.mu.Unlock()

	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if c.Checkpoints != nil {
			stop := c.Checkpoints.StartAuto(runCtx, eng, c.Config.Checkpoint.AutoInterval)
			defer stop()
		}

		err := eng.Run(runCtx, 0)

		now := time.Now().UTC()
		c.mu.Lock()
		run.Status = eng.Status()
		run.FinishedAt = &now
		if err != nil {
			run.Error = err.Error()
		}
		c.mu.Unlock()

		c.Log.Info("run finished", "run_id", run.ID, "workflow_id", wf.ID, "status", run.Status)
	}()

	return run, nil
}

// loadWorkflow parses a definition file, serving repeat submissions from
// the definition cache when one is wired.
func (c *Container) loadWorkflow(path string) (*workflow.Workflow, error) {
	if c.Defs == nil {
		return workflow.LoadFile(path)
	}

	ctx := context.Background()
	if raw, ok, _ := c.Defs.Get(ctx, path); ok {
		return workflow.Parse(raw)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindNotFound, "failed to read workflow file "+path, err)
	}
	wf, err := workflow.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := c.Defs.Set(ctx, path, raw, definitionTTL); err != nil {
		c.Log.Warn("definition cache write failed", "path", path, "error", err)
	}
	return wf, nil
}

// GetRun looks a run up by id.
func (c *Container) GetRun(id string) (*Run, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[id]
	if !ok {
		return nil, flowerr.Newf(flowerr.KindNotFound, "run %s not found", id)
	}
	snapshot := *run
	snapshot.Status = run.engine.Status()
	return &snapshot, nil
}

// ListRuns returns all known runs with live statuses.
func (c *Container) ListRuns() []*Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Run, 0, len(c.runs))
	for _, run := range c.runs {
		snapshot := *run
		snapshot.Status = run.engine.Status()
		out = append(out, &snapshot)
	}
	return out
}
