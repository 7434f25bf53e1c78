package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lyzr/agentflow/common/flowerr"
)

var semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Validate checks the structural integrity of a workflow definition: node and
// edge identity, edge endpoint resolution, role references and decision
// tables. The engine refuses construction on any failure here.
func (w *Workflow) Validate() error {
	var problems []string

	if w.ID == "" {
		problems = append(problems, "workflow id is required")
	} else if _, err := uuid.Parse(w.ID); err != nil {
		problems = append(problems, fmt.Sprintf("workflow id %q is not a valid UUID", w.ID))
	}
	if w.Name == "" {
		problems = append(problems, "workflow name is required")
	}
	if w.Version != "" && !semverRe.MatchString(w.Version) {
		problems = append(problems, fmt.Sprintf("workflow version %q is not a semantic version", w.Version))
	}
	if len(w.Activities) == 0 {
		problems = append(problems, "workflow declares no activities")
	}

	nodeIDs := make(map[string]bool)
	roleIDs := make(map[string]bool)
	for _, r := range w.Roles {
		roleIDs[r.ID] = true
	}

	for i, a := range w.Activities {
		if a.ID == "" {
			problems = append(problems, fmt.Sprintf("activity[%d] missing id", i))
			continue
		}
		if nodeIDs[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %s", a.ID))
		}
		nodeIDs[a.ID] = true

		switch a.ActorType {
		case ActorHuman, ActorAIAgent, ActorRobot, ActorApplication:
		default:
			problems = append(problems, fmt.Sprintf("activity %s has unknown actor_type %q", a.ID, a.ActorType))
		}

		if a.RoleID != "" && len(w.Roles) > 0 && !roleIDs[a.RoleID] {
			problems = append(problems, fmt.Sprintf("activity %s references missing role %s", a.ID, a.RoleID))
		}
	}

	for _, d := range w.DecisionNodes {
		if d.ID == "" {
			problems = append(problems, "decision node missing id")
			continue
		}
		if nodeIDs[d.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %s", d.ID))
		}
		nodeIDs[d.ID] = true

		if d.DecisionTable == nil {
			problems = append(problems, fmt.Sprintf("decision node %s missing decision_table", d.ID))
			continue
		}
		for ri, rule := range d.DecisionTable.Rules {
			if len(rule.InputEntries) != len(d.DecisionTable.Inputs) {
				problems = append(problems, fmt.Sprintf(
					"decision node %s rule[%d] has %d input entries, table declares %d input columns",
					d.ID, ri, len(rule.InputEntries), len(d.DecisionTable.Inputs)))
			}
			if len(rule.OutputEntries) != len(d.DecisionTable.Outputs) {
				problems = append(problems, fmt.Sprintf(
					"decision node %s rule[%d] has %d output entries, table declares %d output columns",
					d.ID, ri, len(rule.OutputEntries), len(d.DecisionTable.Outputs)))
			}
		}
	}

	for _, e := range w.Events {
		if e.ID != "" {
			nodeIDs[e.ID] = true
		}
	}

	edgeIDs := make(map[string]bool)
	for i, e := range w.Edges {
		if e.ID == "" {
			problems = append(problems, fmt.Sprintf("edge[%d] missing id", i))
		} else {
			edgeIDs[e.ID] = true
		}
		if !nodeIDs[e.SourceID] {
			problems = append(problems, fmt.Sprintf("edge %s source %s does not exist", e.ID, e.SourceID))
		}
		if !nodeIDs[e.TargetID] {
			problems = append(problems, fmt.Sprintf("edge %s target %s does not exist", e.ID, e.TargetID))
		}
	}

	for _, d := range w.DecisionNodes {
		if d.DefaultOutputEdgeID != "" && !edgeIDs[d.DefaultOutputEdgeID] {
			problems = append(problems, fmt.Sprintf(
				"decision node %s default_output_edge_id %s does not exist", d.ID, d.DefaultOutputEdgeID))
		}
	}

	if len(problems) > 0 {
		return flowerr.New(flowerr.KindValidation,
			fmt.Sprintf("invalid workflow definition: %s", strings.Join(problems, "; ")))
	}
	return nil
}
