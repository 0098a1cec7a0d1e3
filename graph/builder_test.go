package graph_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
)

func TestBuild_Basic(t *testing.T) {
	files := []model.FileRecord{
		{Path: "apps/etl/workflow.xml", DetectedType: "oozie_workflow_xml"},
		{Path: "scripts/load.hql", DetectedType: "hql"},
	}
	workflows := []model.WorkflowRecord{
		{
			ID:         "etl",
			SourceFile: "apps/etl/workflow.xml",
			Actions: []model.ActionRecord{
				{Name: "load", Type: "hive", Params: map[string]string{
					"script":       "scripts/load.hql",
					"source_table": "raw.events",
					"target_table": "mart.events",
				}},
			},
		},
	}
	coordinators := []model.CoordinatorRecord{
		{ID: "etl-daily", SourceFile: "apps/etl/coordinator.xml", References: []string{"etl"}},
	}
	bundles := []model.BundleRecord{
		{ID: "nightly", SourceFile: "apps/bundle.xml", References: []string{"etl-daily"}},
	}

	var diags model.Diagnostics
	g := graph.Build(files, workflows, coordinators, bundles, &diags)

	assert.Empty(t, diags)
	assert.NotNil(t, g.Lookup(graph.NodeWorkflow, "etl"))
	assert.NotNil(t, g.Lookup(graph.NodeAction, "etl/load"))
	assert.NotNil(t, g.Lookup(graph.NodeTable, "raw.events"))
	assert.NotNil(t, g.Lookup(graph.NodeTable, "mart.events"))
	assert.NotNil(t, g.Lookup(graph.NodeScript, "scripts/load.hql"))
	assert.NotNil(t, g.Lookup(graph.NodeCoordinator, "etl-daily"))
	assert.NotNil(t, g.Lookup(graph.NodeBundle, "nightly"))

	var kinds []graph.EdgeKind
	for _, e := range g.OutEdges(graph.Key{Type: graph.NodeAction, ID: "etl/load"}) {
		kinds = append(kinds, e.Kind)
	}
	// Params iterate in sorted key order: script, source_table, target_table.
	assert.Equal(t, []graph.EdgeKind{graph.EdgeCalls, graph.EdgeReads, graph.EdgeWrites}, kinds)

	coordEdges := g.OutEdges(graph.Key{Type: graph.NodeCoordinator, ID: "etl-daily"})
	if assert.Len(t, coordEdges, 1) {
		assert.Equal(t, graph.EdgeTriggers, coordEdges[0].Kind)
		assert.Equal(t, graph.Key{Type: graph.NodeWorkflow, ID: "etl"}, coordEdges[0].To)
	}
}

// Edge endpoints must always exist as nodes.
func TestBuild_EdgeEndpointsExist(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "a", Actions: []model.ActionRecord{{Name: "x", Type: "shell", Params: map[string]string{"exec": "run.sh"}}}, References: []string{"b"}},
	}
	coordinators := []model.CoordinatorRecord{{ID: "c", References: []string{"missing-wf"}}}

	var diags model.Diagnostics
	g := graph.Build(nil, workflows, coordinators, nil, &diags)

	for _, e := range g.Edges() {
		assert.NotNil(t, g.Lookup(e.From.Type, e.From.ID), "dangling from endpoint %v", e.From)
		assert.NotNil(t, g.Lookup(e.To.Type, e.To.ID), "dangling to endpoint %v", e.To)
	}
}

func TestBuild_DedupesSharedTable(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf1", Actions: []model.ActionRecord{{Name: "a", Type: "hive", Params: map[string]string{"table": "shared.t"}}}},
		{ID: "wf2", Actions: []model.ActionRecord{{Name: "b", Type: "hive", Params: map[string]string{"table": "shared.t"}}}},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	assert.Len(t, g.ByType(graph.NodeTable), 1)
	assert.Equal(t, 2, g.Degree(graph.Key{Type: graph.NodeTable, ID: "shared.t"}, true))
}

// Two workflows triggering each other circularly: both nodes flagged, both
// edges present, no failure.
func TestBuild_MutualTriggerCycle(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf1", References: []string{"wf2"}},
		{ID: "wf2", References: []string{"wf1"}},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	wf1 := g.Lookup(graph.NodeWorkflow, "wf1")
	wf2 := g.Lookup(graph.NodeWorkflow, "wf2")
	assert.True(t, wf1.InCycle)
	assert.True(t, wf2.InCycle)
	assert.Len(t, g.Edges(), 2)
}

func TestBuild_AcyclicNodesNotFlagged(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf1", References: []string{"wf2"}},
		{ID: "wf2"},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	assert.False(t, g.Lookup(graph.NodeWorkflow, "wf1").InCycle)
	assert.False(t, g.Lookup(graph.NodeWorkflow, "wf2").InCycle)
}

func TestBuild_MalformedActionPartial(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf", Actions: []model.ActionRecord{{Name: "", Type: ""}}},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	action := g.Lookup(graph.NodeAction, "wf/action-0")
	if assert.NotNil(t, action) {
		assert.True(t, action.Partial)
	}
	assert.Equal(t, 1, diags.Counts()[model.DiagPartialNode])
	// The workflow itself is kept whole.
	assert.NotNil(t, g.Lookup(graph.NodeWorkflow, "wf"))
}

func TestBuild_DanglingReferenceDiagnostic(t *testing.T) {
	coordinators := []model.CoordinatorRecord{{ID: "c1", References: []string{"ghost"}}}
	var diags model.Diagnostics
	g := graph.Build(nil, nil, coordinators, nil, &diags)

	ghost := g.Lookup(graph.NodeWorkflow, "ghost")
	if assert.NotNil(t, ghost) {
		assert.True(t, ghost.Partial)
	}
	assert.Equal(t, 1, diags.Counts()[model.DiagDanglingReference])
}

func TestBuild_Deterministic(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf", Actions: []model.ActionRecord{
			{Name: "a", Type: "hive", Params: map[string]string{
				"zeta_table": "z", "alpha_table": "a", "script": "s.sql", "path": "/data/in",
			}},
		}},
	}
	build := func() ([]graph.Key, []graph.Edge) {
		var diags model.Diagnostics
		g := graph.Build(nil, workflows, nil, nil, &diags)
		var keys []graph.Key
		for _, n := range g.Nodes() {
			keys = append(keys, n.Key())
		}
		return keys, g.Edges()
	}
	keys1, edges1 := build()
	keys2, edges2 := build()
	assert.True(t, reflect.DeepEqual(keys1, keys2))
	assert.True(t, reflect.DeepEqual(edges1, edges2))
}

func TestGraph_Reachability(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "root", References: []string{"mid"}},
		{ID: "mid", References: []string{"leaf"}},
		{ID: "leaf"},
		{ID: "island"},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	rootKey := graph.Key{Type: graph.NodeWorkflow, ID: "root"}
	assert.True(t, g.Reaches(rootKey, graph.Key{Type: graph.NodeWorkflow, ID: "leaf"}))
	assert.False(t, g.Reaches(rootKey, graph.Key{Type: graph.NodeWorkflow, ID: "island"}))
	assert.Equal(t, 2, g.LongestChain(rootKey, graph.EdgeTriggers))
}

func TestGraph_LongestChainTerminatesOnCycle(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "wf1", References: []string{"wf2"}},
		{ID: "wf2", References: []string{"wf1"}},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	depth := g.LongestChain(graph.Key{Type: graph.NodeWorkflow, ID: "wf1"}, graph.EdgeTriggers)
	assert.Equal(t, 1, depth)
}
