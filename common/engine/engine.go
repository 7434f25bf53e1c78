package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lyzr/agentflow/common/actors"
	"github.com/lyzr/agentflow/common/checkpoint"
	"github.com/lyzr/agentflow/common/condition"
	"github.com/lyzr/agentflow/common/contextstore"
	"github.com/lyzr/agentflow/common/duration"
	"github.com/lyzr/agentflow/common/events"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/logger"
	"github.com/lyzr/agentflow/common/retry"
	"github.com/lyzr/agentflow/common/tasks"
	"github.com/lyzr/agentflow/common/token"
	"github.com/lyzr/agentflow/common/workflow"
)

// Status is the engine-level lifecycle state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusRunning      Status = "running"
	StatusWaitingHuman Status = "waiting_human"
	StatusPaused       Status = "paused"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether no further steps can run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultMaxSteps bounds Run against runaway cycles.
const DefaultMaxSteps = 1000

// Data keys the engine seeds or merges into tokens.
const (
	keyWorkflowID      = "_workflow_id"
	keyWorkflowName    = "_workflow_name"
	keyStartedAt       = "_started_at"
	keyWaitingSince    = "_waiting_since"
	keyError           = "_error"
	keyStack           = "_stack"
	keyDecisionNodeID  = "_decision_node_id"
	keyDecisionMatched = "_decision_matched"
	keyDecisionOutputs = "_decision_outputs"
)

// Options configures engine construction. Zero-value collaborators fall
// back to process-wide defaults so CLI use stays a one-liner.
type Options struct {
	GeminiAPIKey      string
	GeminiBaseURL     string
	Roles             []*workflow.Role
	RobotConfig       actors.RobotConfig
	WaitForHumanTasks bool
	Verbose           bool

	Logger     *logger.Logger
	Queue      *tasks.Queue
	DLQ        *retry.DeadLetterQueue
	Retry      *retry.Config
	Checkpoint *checkpoint.Manager
	Bus        *events.Bus
	HTTPClient *http.Client
}

// Engine schedules tokens through a workflow definition.
type Engine struct {
	wf   *workflow.Workflow
	opts Options

	activities map[string]*workflow.Activity
	decisions  map[string]*workflow.DecisionNode
	outgoing   map[string][]*workflow.Edge
	roles      map[string]*workflow.Role

	registry *actors.Registry
	guards   *condition.Evaluator
	contexts *contextstore.Manager
	queue    *tasks.Queue
	dlq      *retry.DeadLetterQueue
	retryCfg retry.Config
	ckpt     *checkpoint.Manager
	bus      *events.Bus
	log      *logger.Logger

	mu       sync.Mutex
	status   Status
	tokens   []*token.Token
	resumeCh chan struct{}
}

// New validates the definition, builds node indices and wires the actor
// registry. Structural problems refuse construction.
func New(wf *workflow.Workflow, opts Options) (*Engine, error) {
	if wf == nil {
		return nil, flowerr.New(flowerr.KindValidation, "workflow definition is nil")
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		level := "info"
		if opts.Verbose {
			level = "debug"
		}
		log = logger.New(level, "")
	}
	log = log.WithWorkflowID(wf.ID)

	queue := opts.Queue
	if queue == nil {
		queue = tasks.Default()
	}
	dlq := opts.DLQ
	if dlq == nil {
		dlq = retry.NewDeadLetterQueue()
	}
	retryCfg := retry.Default()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}

	guards, err := condition.NewEvaluator()
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindConfig, "failed to build guard evaluator", err)
	}

	e := &Engine{
		wf:         wf,
		opts:       opts,
		activities: make(map[string]*workflow.Activity, len(wf.Activities)),
		decisions:  make(map[string]*workflow.DecisionNode, len(wf.DecisionNodes)),
		outgoing:   make(map[string][]*workflow.Edge),
		roles:      make(map[string]*workflow.Role),
		guards:     guards,
		contexts:   contextstore.NewManager(),
		queue:      queue,
		dlq:        dlq,
		retryCfg:   retryCfg,
		ckpt:       opts.Checkpoint,
		bus:        opts.Bus,
		log:        log,
		status:     StatusIdle,
		resumeCh:   make(chan struct{}, 1),
	}

	for _, a := range wf.Activities {
		e.activities[a.ID] = a
	}
	for _, d := range wf.DecisionNodes {
		e.decisions[d.ID] = d
	}
	for _, edge := range wf.Edges {
		e.outgoing[edge.SourceID] = append(e.outgoing[edge.SourceID], edge)
	}
	for _, r := range wf.Roles {
		e.roles[r.ID] = r
	}
	for _, r := range opts.Roles {
		e.roles[r.ID] = r
	}

	for _, c := range wf.Contexts {
		if err := e.contexts.Register(c); err != nil {
			return nil, err
		}
	}

	e.registerActors()
	return e, nil
}

func (e *Engine) registerActors() {
	httpClient := actors.NewHTTPClient(e.opts.HTTPClient, e.log)

	e.registry = actors.NewRegistry()
	e.registry.Register(workflow.ActorApplication, actors.NewSoftwareActor(httpClient, e.log))
	e.registry.Register(workflow.ActorAIAgent, actors.NewAIActor(actors.AIActorConfig{
		APIKey:  e.opts.GeminiAPIKey,
		BaseURL: e.opts.GeminiBaseURL,
	}, httpClient, e.roles, e.log))
	e.registry.Register(workflow.ActorRobot, actors.NewRobotActor(e.opts.RobotConfig, e.log))
	// With kernel-managed waits disabled the human actor blocks inline on
	// the completion waiter instead of parking the token.
	e.registry.Register(workflow.ActorHuman, actors.NewHumanActor(e.queue, !e.opts.WaitForHumanTasks, e.log))
}

// Status returns the engine lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Tokens returns the current token set.
func (e *Engine) Tokens() []*token.Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*token.Token, len(e.tokens))
	copy(out, e.tokens)
	return out
}

// Token finds a token by id.
func (e *Engine) Token(id string) (*token.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.tokens {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, flowerr.Newf(flowerr.KindNotFound, "token %s not found", id)
}

// Contexts exposes the workflow context manager.
func (e *Engine) Contexts() *contextstore.Manager {
	return e.contexts
}

// DeadLetters exposes the dead-letter queue.
func (e *Engine) DeadLetters() *retry.DeadLetterQueue {
	return e.dlq
}

// Start seeds the entry token and moves the engine to running. Calling
// Start twice is a validation error.
func (e *Engine) Start(initialData map[string]interface{}) (*token.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusIdle {
		return nil, flowerr.Newf(flowerr.KindValidation, "engine already started (status %s)", e.status)
	}

	entry := e.entryNode()
	if entry == "" {
		return nil, flowerr.New(flowerr.KindValidation, "workflow has no activities")
	}

	seed := make(map[string]interface{}, len(initialData)+3)
	for k, v := range initialData {
		seed[k] = v
	}
	seed[keyWorkflowID] = e.wf.ID
	seed[keyWorkflowName] = e.wf.Name
	seed[keyStartedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	tok := token.New(entry, seed, e.wf.ID)
	e.tokens = append(e.tokens, tok)
	e.status = StatusRunning

	e.log.Info("workflow started", "entry_node", entry, "token_id", tok.ID())
	e.publish(events.Event{Type: events.TypeWorkflowStarted, WorkflowID: e.wf.ID, TokenID: tok.ID(), NodeID: entry})
	return tok, nil
}

// entryNode picks the first activity with no incoming edges, falling back
// to the first declared activity for pure cycles.
func (e *Engine) entryNode() string {
	if len(e.wf.Activities) == 0 {
		return ""
	}
	incoming := make(map[string]bool)
	for _, edge := range e.wf.Edges {
		incoming[edge.TargetID] = true
	}
	for _, a := range e.wf.Activities {
		if !incoming[a.ID] {
			return a.ID
		}
	}
	return e.wf.Activities[0].ID
}

// Pause stops the Run loop after the in-flight step.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning && e.status != StatusWaitingHuman {
		return flowerr.Newf(flowerr.KindValidation, "cannot pause engine in status %s", e.status)
	}
	e.status = StatusPaused
	return nil
}

// Unpause returns a paused engine to running.
func (e *Engine) Unpause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPaused {
		return flowerr.Newf(flowerr.KindValidation, "cannot unpause engine in status %s", e.status)
	}
	e.status = StatusRunning
	return nil
}

// ResumeToken merges output into a waiting token and reactivates it. A
// token in any other status is a no-op (resumed=false, nil error), which
// makes repeated resume calls harmless.
func (e *Engine) ResumeToken(id string, output map[string]interface{}) (bool, error) {
	tok, err := e.Token(id)
	if err != nil {
		return false, err
	}

	waitTime := ""
	if raw, ok := tok.GetData(keyWaitingSince); ok {
		if since, err := time.Parse(time.RFC3339Nano, fmt.Sprint(raw)); err == nil {
			waitTime = duration.FormatISO8601(time.Since(since))
		}
	}

	// The waiting check and the activation happen under one token lock, so
	// the auto-resume watcher and an explicit call cannot both win.
	ok := tok.Resume(output, &token.Analytics{
		WaitTime:        waitTime,
		WasteCategories: []token.WasteCategory{token.WasteWaiting},
	})
	if !ok {
		e.log.Debug("resume no-op, token not waiting", "token_id", id, "status", tok.Status())
		return false, nil
	}

	e.mu.Lock()
	if e.status == StatusWaitingHuman {
		e.status = StatusRunning
	}
	e.mu.Unlock()
	e.notifyResume()

	e.log.Info("token resumed", "token_id", id, "wait_time", waitTime)
	e.publish(events.Event{Type: events.TypeTokenResumed, WorkflowID: e.wf.ID, TokenID: id,
		Payload: map[string]interface{}{"wait_time": waitTime}})
	return true, nil
}

func (e *Engine) notifyResume() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// Run steps the engine to a terminal status, bounded by maxSteps (0 means
// DefaultMaxSteps). While waiting_human it blocks until a resume or ctx
// cancellation.
func (e *Engine) Run(ctx context.Context, maxSteps int) error {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	for step := 0; step < maxSteps; step++ {
		switch e.Status() {
		case StatusRunning:
			if err := e.RunStep(ctx); err != nil {
				return err
			}
		case StatusWaitingHuman:
			select {
			case <-ctx.Done():
				return flowerr.Wrap(flowerr.KindCancelled, "run cancelled while waiting for human tasks", ctx.Err())
			case <-e.resumeCh:
			}
		default:
			return e.finish()
		}
	}

	e.log.Warn("run stopped at step bound", "max_steps", maxSteps, "status", e.Status())
	return e.finish()
}

func (e *Engine) finish() error {
	st := e.Status()
	if st == StatusFailed {
		return flowerr.Newf(flowerr.KindUnknown, "workflow %s failed", e.wf.ID)
	}
	return nil
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
