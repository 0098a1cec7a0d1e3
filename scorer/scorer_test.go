package scorer_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/resolver"
	"github.com/datashift/migrascope/rubric"
	"github.com/datashift/migrascope/scorer"
)

func fixtureInput(t *testing.T) scorer.Input {
	t.Helper()

	files := []model.FileRecord{
		{Path: "apps/etl/workflow.xml", DetectedType: "oozie_workflow_xml"},
		{Path: "scripts/load.hql", DetectedType: "hive_sql", HasDynamicSQL: true},
	}
	workflows := []model.WorkflowRecord{
		{
			ID:         "etl-wf",
			SourceFile: "apps/etl/workflow.xml",
			Actions: []model.ActionRecord{
				{Name: "stage", Type: "hive", Params: map[string]string{"script": "scripts/load.hql", "target_table": "dw.orders"}},
				{Name: "load", Type: "hive", Params: map[string]string{"source_table": "raw.orders"}},
			},
			HasForkJoin: true,
		},
		{
			ID:         "report-wf",
			SourceFile: "apps/report/workflow.xml",
			Actions:    []model.ActionRecord{{Name: "render", Type: "shell"}},
		},
	}
	coordinators := []model.CoordinatorRecord{
		{ID: "etl-coord", SourceFile: "apps/etl/coordinator.xml", Frequency: "15", References: []string{"etl-wf"}},
	}

	var diags model.Diagnostics
	g := graph.Build(files, workflows, coordinators, nil, &diags)
	require.Empty(t, diags.Filter(model.DiagDanglingReference))

	resolution := &resolver.Result{
		Resolved: []resolver.Resolution{
			{Occurrence: resolver.Occurrence{SourceFile: "apps/etl/workflow.xml", Location: "workflow:etl-wf/action:stage/param:target_table", RawToken: "${dw}"}, Tier: resolver.TierResolved},
		},
		Unresolved: []resolver.Resolution{
			{Occurrence: resolver.Occurrence{SourceFile: "apps/etl/workflow.xml", Location: "workflow:etl-wf/action:load/param:source_table", RawToken: "${raw.db}"}, Tier: resolver.TierUnresolved},
		},
		Complete: true,
	}

	return scorer.Input{
		Files:        files,
		Workflows:    workflows,
		Coordinators: coordinators,
		Findings:     &model.Findings{KafkaEndpoints: []model.PatternMatch{{Value: "broker:9092", SourceFile: "scripts/load.hql"}}},
		Database:     &model.DatabaseContext{Databases: []string{"raw", "dw"}, Summary: model.DatabaseSummary{TotalDatabases: 2, TotalSourceTableRefs: 10, TotalTargetTableRefs: 4}},
		SQLSummary:   &model.SQLComplexitySummary{QueriesAnalyzed: 10, Distribution: model.ComplexityDistribution{Simple: 4, Moderate: 2, Complex: 3, VeryComplex: 1}},
		Graph:        g,
		Resolution:   resolution,
	}
}

func TestScore_AllSignalsAvailable(t *testing.T) {
	in := fixtureInput(t)
	result, err := scorer.NewEngine().Score(context.Background(), in, rubric.Default())
	require.NoError(t, err)

	assert.True(t, result.Complete)
	assert.Empty(t, result.UnavailableSignals)
	assert.Empty(t, result.Diagnostics)
	require.Len(t, result.PerEntity, 3)

	for _, score := range result.PerEntity {
		assert.Len(t, score.SubScores, 7, score.EntityID)
		for name, sub := range score.SubScores {
			assert.GreaterOrEqual(t, sub, 0.0, "%s/%s", score.EntityID, name)
			assert.LessOrEqual(t, sub, 1.0, "%s/%s", score.EntityID, name)
		}
		assert.InDelta(t, 5.0, score.TheoreticalMax, 1e-9)
		assert.LessOrEqual(t, score.Composite, score.TheoreticalMax)
	}

	byID := make(map[string]scorer.EntityScore)
	for _, score := range result.PerEntity {
		byID[score.EntityID] = score
	}

	etl := byID["workflow:etl-wf"]
	assert.InDelta(t, 0.4, etl.RawScores["sql_complexity"], 1e-9)
	assert.InDelta(t, 0.5, etl.RawScores["unresolved_ratio"], 1e-9, "one of two occurrences unresolved")
	assert.InDelta(t, 1.0, etl.RawScores["streaming"], 1e-9)
	assert.Contains(t, etl.RiskFlags, "control_flow")
	assert.Contains(t, etl.RiskFlags, "unresolved_variables")

	report := byID["workflow:report-wf"]
	assert.Zero(t, report.RawScores["unresolved_ratio"])
	assert.Greater(t, etl.Composite, report.Composite)

	coord := byID["coordinator:etl-coord"]
	assert.Contains(t, coord.RiskFlags, "high_frequency_schedule")

	assert.Equal(t, "repository", result.Aggregate.EntityID)
	assert.Contains(t, result.Aggregate.RiskFlags, "streaming")
	assert.Contains(t, result.Aggregate.RiskFlags, "dynamic_sql")
	assert.Contains(t, result.Aggregate.RiskFlags, "unresolved_variables")
}

// A missing upstream artifact excludes its signal and redistributes the
// weight instead of scoring the signal as zero.
func TestScore_UnavailableSignalRedistributes(t *testing.T) {
	in := fixtureInput(t)
	in.Findings = nil
	in.Files = nil
	in.SQLSummary = nil
	in.Database = nil

	result, err := scorer.NewEngine().Score(context.Background(), in, rubric.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"database_footprint", "dynamic_sql", "sql_complexity", "streaming"}, result.UnavailableSignals)
	assert.Equal(t, 4, result.Diagnostics.Counts()[model.DiagSignalUnavailable])
	assert.Equal(t, "signal unavailable: streaming", result.Diagnostics.Filter(model.DiagSignalUnavailable)[3].Message)

	for _, score := range result.PerEntity {
		assert.NotContains(t, score.SubScores, "streaming")
		// workflow_structure 1.0 + table_fanout 0.8 + unresolved_ratio 0.7
		assert.InDelta(t, 2.5, score.TheoreticalMax, 1e-9)
	}
	assert.InDelta(t, 2.5, result.Aggregate.TheoreticalMax, 1e-9)
}

func TestScore_InvalidRubricAborts(t *testing.T) {
	r := rubric.Default()
	r.Aggregation = "median"

	result, err := scorer.NewEngine().Score(context.Background(), fixtureInput(t), r)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, rubric.ErrInvalid)
}

func TestScore_Banding(t *testing.T) {
	r := &rubric.Rubric{
		Signals: map[string]rubric.Signal{
			"streaming": {Weight: 1, Band: rubric.Band{Low: 0, High: 1}},
		},
		CutPoints:   rubric.CutPoints{Simple: 0.25, Moderate: 0.5, Complex: 0.75},
		Aggregation: rubric.AggregateMean,
	}

	in := scorer.Input{
		Files:     []model.FileRecord{{Path: "job.py", HasStreaming: true}},
		Workflows: []model.WorkflowRecord{{ID: "wf", SourceFile: "workflow.xml"}},
	}
	result, err := scorer.NewEngine().Score(context.Background(), in, r)
	require.NoError(t, err)
	assert.Equal(t, scorer.BandVeryComplex, result.PerEntity[0].Band)

	in.Files[0].HasStreaming = false
	result, err = scorer.NewEngine().Score(context.Background(), in, r)
	require.NoError(t, err)
	assert.Equal(t, scorer.BandSimple, result.PerEntity[0].Band)
}

func TestScore_Aggregations(t *testing.T) {
	// Two workflows with different composites: one streaming-heavy file
	// set cannot split per entity, so drive the difference through
	// unresolved_ratio.
	resolution := &resolver.Result{
		Unresolved: []resolver.Resolution{
			{Occurrence: resolver.Occurrence{SourceFile: "a.xml", Location: "workflow:a/action:x/param:p", RawToken: "${p}"}, Tier: resolver.TierUnresolved},
		},
		Complete: true,
	}
	in := scorer.Input{
		Workflows: []model.WorkflowRecord{
			{ID: "a", SourceFile: "a.xml", Actions: []model.ActionRecord{{Name: "x", Type: "hive"}, {Name: "y", Type: "hive"}, {Name: "z", Type: "hive"}}},
			{ID: "b", SourceFile: "b.xml", Actions: []model.ActionRecord{{Name: "x", Type: "hive"}}},
		},
		Resolution: resolution,
	}
	r := &rubric.Rubric{
		Signals: map[string]rubric.Signal{
			"unresolved_ratio": {Weight: 1, Band: rubric.Band{Low: 0, High: 1}},
		},
		CutPoints:   rubric.CutPoints{Simple: 0.25, Moderate: 0.5, Complex: 0.75},
		Aggregation: rubric.AggregateMax,
	}

	score := func(aggregation string) float64 {
		r.Aggregation = aggregation
		result, err := scorer.NewEngine().Score(context.Background(), in, r)
		require.NoError(t, err)
		return result.Aggregate.Composite
	}

	assert.InDelta(t, 1.0, score(rubric.AggregateMax), 1e-9)
	assert.InDelta(t, 0.5, score(rubric.AggregateMean), 1e-9)
	// size weights: workflow a has 3 actions, b has 1.
	assert.InDelta(t, 0.75, score(rubric.AggregateSizeWeightedMean), 1e-9)
}

func TestScore_CycleRiskFlag(t *testing.T) {
	workflows := []model.WorkflowRecord{
		{ID: "a", SourceFile: "a.xml", References: []string{"b"}},
		{ID: "b", SourceFile: "b.xml", References: []string{"a"}},
	}
	var diags model.Diagnostics
	g := graph.Build(nil, workflows, nil, nil, &diags)

	in := scorer.Input{Workflows: workflows, Graph: g}
	result, err := scorer.NewEngine().Score(context.Background(), in, rubric.Default())
	require.NoError(t, err)

	for _, score := range result.PerEntity {
		assert.Contains(t, score.RiskFlags, "dependency_cycle", score.EntityID)
	}
	assert.Contains(t, result.Aggregate.RiskFlags, "dependency_cycle")
}

func TestScore_Deterministic(t *testing.T) {
	in := fixtureInput(t)
	first, err := scorer.NewEngine(scorer.WithWorkers(1)).Score(context.Background(), in, rubric.Default())
	require.NoError(t, err)
	second, err := scorer.NewEngine(scorer.WithWorkers(8)).Score(context.Background(), in, rubric.Default())
	require.NoError(t, err)

	assert.True(t, reflect.DeepEqual(first.PerEntity, second.PerEntity))
	assert.True(t, reflect.DeepEqual(first.Aggregate, second.Aggregate))
}

func TestScore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := scorer.NewEngine().Score(ctx, fixtureInput(t), rubric.Default())
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Empty(t, result.PerEntity)
}
