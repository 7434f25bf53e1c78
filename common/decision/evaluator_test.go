package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/agentflow/common/flowerr"
	"github.com/lyzr/agentflow/common/workflow"
)

func scoreNode(hitPolicy string, rules []*workflow.DecisionRule) *workflow.DecisionNode {
	return &workflow.DecisionNode{
		ID:   "d1",
		Name: "route by score",
		DecisionTable: &workflow.DecisionTable{
			HitPolicy: hitPolicy,
			Inputs:    []*workflow.DecisionColumn{{Name: "score", Type: "number"}},
			Outputs:   []*workflow.DecisionColumn{{Name: "result", Type: "string"}},
			Rules:     rules,
		},
	}
}

func TestEvaluateFirstStopsAtFirstMatch(t *testing.T) {
	node := scoreNode(HitPolicyFirst, []*workflow.DecisionRule{
		{InputEntries: []string{">= 80"}, OutputEntries: []interface{}{"A"}, OutputEdgeID: "e-a"},
		{InputEntries: []string{"[50..79]"}, OutputEntries: []interface{}{"B"}, OutputEdgeID: "e-b"},
		{InputEntries: []string{"-"}, OutputEntries: []interface{}{"C"}, OutputEdgeID: "e-c"},
	})

	result, err := Evaluate(node, map[string]interface{}{"score": 75.0})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.Equal(t, map[string]interface{}{"result": "B"}, result.Outputs)
	assert.Equal(t, "e-b", result.OutputEdgeID)
	// first and unique return at most one matched rule
	assert.LessOrEqual(t, len(result.MatchedRules), 1)
}

func TestEvaluateUniqueSingleMatch(t *testing.T) {
	node := scoreNode(HitPolicyUnique, []*workflow.DecisionRule{
		{InputEntries: []string{"< 50"}, OutputEntries: []interface{}{"low"}, OutputEdgeID: "e-low"},
		{InputEntries: []string{">= 50"}, OutputEntries: []interface{}{"high"}, OutputEdgeID: "e-high"},
	})

	result, err := Evaluate(node, map[string]interface{}{"score": 10.0})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "e-low", result.OutputEdgeID)
	assert.LessOrEqual(t, len(result.MatchedRules), 1)
}

func TestEvaluateNoMatchUsesDefaultEdge(t *testing.T) {
	node := scoreNode(HitPolicyFirst, []*workflow.DecisionRule{
		{InputEntries: []string{">= 80"}, OutputEntries: []interface{}{"A"}, OutputEdgeID: "e-a"},
	})
	node.DefaultOutputEdgeID = "e-default"

	result, err := Evaluate(node, map[string]interface{}{"score": 10.0})
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Empty(t, result.Outputs)
	assert.Equal(t, "e-default", result.OutputEdgeID)
}

func TestEvaluateAnyAgreeingRules(t *testing.T) {
	node := scoreNode(HitPolicyAny, []*workflow.DecisionRule{
		{InputEntries: []string{">= 50"}, OutputEntries: []interface{}{"ok"}, OutputEdgeID: "e-ok"},
		{InputEntries: []string{"> 0"}, OutputEntries: []interface{}{"ok"}, OutputEdgeID: "e-ok"},
	})

	result, err := Evaluate(node, map[string]interface{}{"score": 60.0})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, map[string]interface{}{"result": "ok"}, result.Outputs)
	assert.Equal(t, "e-ok", result.OutputEdgeID)
}

func TestEvaluateAnyConflictingRules(t *testing.T) {
	node := scoreNode(HitPolicyAny, []*workflow.DecisionRule{
		{InputEntries: []string{">= 50"}, OutputEntries: []interface{}{"ok"}},
		{InputEntries: []string{"> 0"}, OutputEntries: []interface{}{"different"}},
	})

	_, err := Evaluate(node, map[string]interface{}{"score": 60.0})
	require.Error(t, err)
	assert.True(t, flowerr.IsKind(err, flowerr.KindValidation))
}

func TestEvaluateCollectGathersAllMatches(t *testing.T) {
	node := scoreNode(HitPolicyCollect, []*workflow.DecisionRule{
		{InputEntries: []string{">= 50"}, OutputEntries: []interface{}{"a"}, OutputEdgeID: "e-first"},
		{InputEntries: []string{"< 50"}, OutputEntries: []interface{}{"skip"}},
		{InputEntries: []string{"> 0"}, OutputEntries: []interface{}{"b"}, OutputEdgeID: "e-later"},
	})

	result, err := Evaluate(node, map[string]interface{}{"score": 60.0})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	// One list entry per matched rule, per output column.
	assert.Equal(t, []interface{}{"a", "b"}, result.Outputs["result"])
	assert.Len(t, result.MatchedRules, 2)
	// The edge comes from the first matched rule.
	assert.Equal(t, "e-first", result.OutputEdgeID)
}

func TestEvaluateUnknownHitPolicy(t *testing.T) {
	node := scoreNode("bogus", nil)
	_, err := Evaluate(node, map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, flowerr.IsKind(err, flowerr.KindValidation))
}

func TestEvaluateMissingTable(t *testing.T) {
	_, err := Evaluate(&workflow.DecisionNode{ID: "d"}, nil)
	require.Error(t, err)
}
