// Package decision evaluates DMN-style decision tables against a context
// map. Input entries use the FEEL subset of feel.go; rule combination
// follows the table's hit policy.
package decision

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

// Hit policies.
const (
	HitPolicyUnique    = "unique"
	HitPolicyFirst     = "first"
	HitPolicyPriority  = "priority"
	HitPolicyAny       = "any"
	HitPolicyCollect   = "collect"
	HitPolicyRuleOrder = "rule_order"
)

// Result is the outcome of evaluating a decision table.
type Result struct {
	Matched      bool                   `json:"matched"`
	Outputs      map[string]interface{} `json:"outputs"`
	OutputEdgeID string                 `json:"output_edge_id,omitempty"`
	MatchedRules []int                  `json:"matched_rules,omitempty"`
}

// Evaluate runs a decision node's table against the context map. The
// default output edge applies when no rule matches.
func Evaluate(node *workflow.DecisionNode, context map[string]interface{}) (*Result, error) {
	table := node.DecisionTable
	if table == nil {
		return nil, flowerr.Newf(flowerr.KindValidation, "decision node %s has no table", node.ID)
	}

	switch table.HitPolicy {
	case HitPolicyUnique, HitPolicyFirst, HitPolicyPriority, "":
		return evaluateFirstMatch(node, context)
	case HitPolicyAny:
		return evaluateAny(node, context)
	case HitPolicyCollect, HitPolicyRuleOrder:
		return evaluateCollect(node, context)
	default:
		return nil, flowerr.Newf(flowerr.KindValidation,
			"decision node %s has unknown hit policy %q", node.ID, table.HitPolicy)
	}
}

// ruleMatches reports whether every input entry of the rule matches the
// corresponding context value. Entry order is conjunctive; missing columns
// match.
func ruleMatches(table *workflow.DecisionTable, rule *workflow.DecisionRule, context map[string]interface{}) bool {
	for i, col := range table.Inputs {
		if i >= len(rule.InputEntries) {
			continue
		}
		if !EvaluateEntry(rule.InputEntries[i], context[col.Name]) {
			return false
		}
	}
	return true
}

func ruleOutputs(table *workflow.DecisionTable, rule *workflow.DecisionRule) map[string]interface{} {
	outputs := make(map[string]interface{}, len(table.Outputs))
	for i, col := range table.Outputs {
		if i < len(rule.OutputEntries) {
			outputs[col.Name] = rule.OutputEntries[i]
		}
	}
	return outputs
}

func noMatch(node *workflow.DecisionNode) *Result {
	return &Result{
		Matched:      false,
		Outputs:      map[string]interface{}{},
		OutputEdgeID: node.DefaultOutputEdgeID,
	}
}

func evaluateFirstMatch(node *workflow.DecisionNode, context map[string]interface{}) (*Result, error) {
	table := node.DecisionTable
	for i, rule := range table.Rules {
		if !ruleMatches(table, rule, context) {
			continue
		}
		return &Result{
			Matched:      true,
			Outputs:      ruleOutputs(table, rule),
			OutputEdgeID: rule.OutputEdgeID,
			MatchedRules: []int{i},
		}, nil
	}
	return noMatch(node), nil
}

func evaluateAny(node *workflow.DecisionNode, context map[string]interface{}) (*Result, error) {
	table := node.DecisionTable

	var first *Result
	var firstJSON []byte
	for i, rule := range table.Rules {
		if !ruleMatches(table, rule, context) {
			continue
		}

		outputs := ruleOutputs(table, rule)
		outJSON, err := json.Marshal(outputs)
		if err != nil {
			return nil, flowerr.Wrap(flowerr.KindValidation, "decision outputs are not JSON-shaped", err)
		}

		if first == nil {
			first = &Result{
				Matched:      true,
				Outputs:      outputs,
				OutputEdgeID: rule.OutputEdgeID,
				MatchedRules: []int{i},
			}
			firstJSON = outJSON
			continue
		}

		// The any policy requires all matched rules to agree on outputs.
		if !jsonpatch.Equal(firstJSON, outJSON) {
			return nil, flowerr.Newf(flowerr.KindValidation,
				"decision node %s: hit policy 'any' matched rules with conflicting outputs", node.ID)
		}
		first.MatchedRules = append(first.MatchedRules, i)
	}

	if first == nil {
		return noMatch(node), nil
	}
	return first, nil
}

func evaluateCollect(node *workflow.DecisionNode, context map[string]interface{}) (*Result, error) {
	table := node.DecisionTable

	collected := make(map[string][]interface{}, len(table.Outputs))
	for _, col := range table.Outputs {
		collected[col.Name] = []interface{}{}
	}

	var matchedRules []int
	edgeID := ""
	for i, rule := range table.Rules {
		if !ruleMatches(table, rule, context) {
			continue
		}
		matchedRules = append(matchedRules, i)
		if len(matchedRules) == 1 {
			edgeID = rule.OutputEdgeID
		}
		for ci, col := range table.Outputs {
			if ci < len(rule.OutputEntries) {
				collected[col.Name] = append(collected[col.Name], rule.OutputEntries[ci])
			}
		}
	}

	if len(matchedRules) == 0 {
		return noMatch(node), nil
	}

	outputs := make(map[string]interface{}, len(collected))
	for name, values := range collected {
		outputs[name] = values
	}
	return &Result{
		Matched:      true,
		Outputs:      outputs,
		OutputEdgeID: edgeID,
		MatchedRules: matchedRules,
	}, nil
}
