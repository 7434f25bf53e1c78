package workflow

import "time"

// ActorType identifies which effector performs an activity.
type ActorType string

const (
	ActorHuman       ActorType = "human"
	ActorAIAgent     ActorType = "ai_agent"
	ActorRobot       ActorType = "robot"
	ActorApplication ActorType = "application"
)

// Workflow is the immutable definition the engine executes: a named,
// versioned directed graph of activities, decision nodes and events.
type Workflow struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Version        string                 `json:"version"`
	Description    string                 `json:"description,omitempty"`
	OwnerID        string                 `json:"owner_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Activities     []*Activity            `json:"activities"`
	Edges          []*Edge                `json:"edges"`
	Events         []*Event               `json:"events,omitempty"`
	DecisionNodes  []*DecisionNode        `json:"decision_nodes,omitempty"`
	Contexts       []*Context             `json:"contexts,omitempty"`
	Roles          []*Role                `json:"roles,omitempty"`
	SLA            *SLA                   `json:"sla,omitempty"`
	Analytics      *Analytics             `json:"analytics,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      *time.Time             `json:"created_at,omitempty"`
	UpdatedAt      *time.Time             `json:"updated_at,omitempty"`
}

// Activity is a graph node performed by exactly one actor.
type Activity struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	RoleID              string            `json:"role_id"`
	ActorType           ActorType         `json:"actor_type"`
	Description         string            `json:"description,omitempty"`
	Inputs              []*DataObject     `json:"inputs"`
	Outputs             []*DataObject     `json:"outputs"`
	ContextBindings     []*ContextBinding `json:"context_bindings,omitempty"`
	AccessRights        []string          `json:"access_rights,omitempty"`
	Programs            []*Program        `json:"programs,omitempty"`
	Controls            []*Control        `json:"controls,omitempty"`
	SLA                 *SLA              `json:"sla,omitempty"`
	Analytics           *Analytics        `json:"analytics,omitempty"`
	IsExpandable        bool              `json:"is_expandable,omitempty"`
	ExpansionWorkflowID string            `json:"expansion_workflow_id,omitempty"`
}

// DataObject describes a declared input or output slot.
type DataObject struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Edge joins two nodes; an optional condition guards traversal.
type Edge struct {
	ID         string `json:"id"`
	SourceID   string `json:"source_id"`
	TargetID   string `json:"target_id"`
	SourceType string `json:"source_type,omitempty"`
	TargetType string `json:"target_type,omitempty"`
	Condition  string `json:"condition,omitempty"`
	Label      string `json:"label,omitempty"`
	IsDefault  bool   `json:"is_default,omitempty"`
}

// Event is a named graph event node. The kernel treats events as
// pass-through markers.
type Event struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	EventType string `json:"event_type,omitempty"`
}

// DecisionNode routes its outgoing edge by DMN-style table evaluation.
type DecisionNode struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	DecisionTable       *DecisionTable `json:"decision_table"`
	DefaultOutputEdgeID string         `json:"default_output_edge_id,omitempty"`
}

// DecisionTable declares ordered input/output columns, a hit policy and
// ordered rules.
type DecisionTable struct {
	HitPolicy string            `json:"hit_policy"`
	Inputs    []*DecisionColumn `json:"inputs"`
	Outputs   []*DecisionColumn `json:"outputs"`
	Rules     []*DecisionRule   `json:"rules"`
}

// DecisionColumn names one input or output column.
type DecisionColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// DecisionRule lists one input-entry expression per input column and one
// output value per output column.
type DecisionRule struct {
	InputEntries  []string      `json:"input_entries"`
	OutputEntries []interface{} `json:"output_entries"`
	OutputEdgeID  string        `json:"output_edge_id,omitempty"`
}

// ContextLifecycle governs how long a context slot's value lives.
type ContextLifecycle string

const (
	LifecycleTransient  ContextLifecycle = "transient"
	LifecyclePersistent ContextLifecycle = "persistent"
	LifecycleCached     ContextLifecycle = "cached"
)

// Context declares a workflow-scoped shared data slot.
type Context struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         string           `json:"type,omitempty"`
	SyncPattern  string           `json:"sync_pattern,omitempty"`
	Visibility   string           `json:"visibility,omitempty"`
	Lifecycle    ContextLifecycle `json:"lifecycle,omitempty"`
	InitialValue interface{}      `json:"initial_value,omitempty"`
}

// AccessMode binds an activity to a context slot.
type AccessMode string

const (
	AccessRead      AccessMode = "read"
	AccessWrite     AccessMode = "write"
	AccessReadWrite AccessMode = "read_write"
	AccessSubscribe AccessMode = "subscribe"
	AccessPublish   AccessMode = "publish"
)

// ContextBinding wires an activity to a context slot with an access mode.
type ContextBinding struct {
	ContextID  string     `json:"context_id"`
	AccessMode AccessMode `json:"access_mode"`
}

// Role describes who (or what) performs activities.
type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	AIConfig     *AIConfig `json:"ai_config,omitempty"`
}

// AIConfig holds per-role generative model parameters.
type AIConfig struct {
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// Program is a declarative executable attached to a software activity.
type Program struct {
	Kind       string                 `json:"kind"` // rest_endpoint, ...
	Method     string                 `json:"method,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Headers    map[string]string      `json:"headers,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Control is a policy annotation surfaced to the actor.
type Control struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enforcement string `json:"enforcement,omitempty"` // mandatory, advisory
}

// SLA carries timing hints. Durations use the ISO-8601 grammar.
type SLA struct {
	TargetTime string `json:"target_time,omitempty"`
	MaxTime    string `json:"max_time,omitempty"`
	Escalation string `json:"escalation,omitempty"`
}

// Analytics carries value-stream hints declared on an activity or workflow.
type Analytics struct {
	ValueAdded *bool  `json:"value_added,omitempty"`
	Category   string `json:"category,omitempty"`
}

// ValueAddedOrDefault reports the declared value_added hint, defaulting true.
func (a *Activity) ValueAddedOrDefault() bool {
	if a.Analytics != nil && a.Analytics.ValueAdded != nil {
		return *a.Analytics.ValueAdded
	}
	return true
}

// HasEscalation reports whether the activity declares an SLA escalation
// policy. Human tasks for such activities enqueue at high priority.
func (a *Activity) HasEscalation() bool {
	return a.SLA != nil && a.SLA.Escalation != ""
}
