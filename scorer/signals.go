package scorer

import (
	"strings"

	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/resolver"
)

// Input carries everything the scorer reads. Graph and Resolution come from
// the builder and the resolution engine; the rest are the raw upstream
// artifacts. Nil members mark their signals unavailable rather than scoring
// them as zero.
type Input struct {
	Files        []model.FileRecord
	Workflows    []model.WorkflowRecord
	Coordinators []model.CoordinatorRecord
	Findings     *model.Findings
	Lineage      []model.LineageRecord
	Database     *model.DatabaseContext
	SQLSummary   *model.SQLComplexitySummary
	Graph        *graph.Graph
	Resolution   *resolver.Result
}

// entity is one scoring unit: a workflow or a coordinator. size is the
// action count (floored at one) used by size-weighted aggregation.
type entity struct {
	id         string
	key        graph.Key
	sourceFile string
	size       int
	workflow   *model.WorkflowRecord
	coord      *model.CoordinatorRecord
}

// collectEntities lists the scoring units in input order, workflows first.
func collectEntities(in Input) []entity {
	var out []entity
	for i := range in.Workflows {
		wf := &in.Workflows[i]
		size := len(wf.Actions)
		if size < 1 {
			size = 1
		}
		out = append(out, entity{
			id:         "workflow:" + wf.ID,
			key:        graph.Key{Type: graph.NodeWorkflow, ID: wf.ID},
			sourceFile: wf.SourceFile,
			size:       size,
			workflow:   wf,
		})
	}
	for i := range in.Coordinators {
		c := &in.Coordinators[i]
		out = append(out, entity{
			id:         "coordinator:" + c.ID,
			key:        graph.Key{Type: graph.NodeCoordinator, ID: c.ID},
			sourceFile: c.SourceFile,
			size:       1,
			coord:      c,
		})
	}
	return out
}

// availability decides which signals can be computed from this input. A
// missing artifact makes its signal unavailable; it never scores as zero.
func (e *Engine) availability(in Input) map[string]bool {
	return map[string]bool{
		"workflow_structure": true,
		"table_fanout":       in.Graph != nil,
		"sql_complexity":     in.SQLSummary != nil && in.SQLSummary.QueriesAnalyzed > 0,
		"dynamic_sql":        len(in.Files) > 0,
		"streaming":          in.Findings != nil || len(in.Files) > 0,
		"unresolved_ratio":   in.Resolution != nil,
		"database_footprint": in.Database != nil,
	}
}

// signalRegistry maps rubric signal names to their raw computations.
// Repository-scoped signals return the same raw value for every entity;
// entity-scoped ones read only the entity's own records.
var signalRegistry = map[string]func(ent entity, in Input) float64{
	"workflow_structure": rawWorkflowStructure,
	"sql_complexity":     rawSQLComplexity,
	"table_fanout":       rawTableFanout,
	"dynamic_sql":        rawDynamicSQL,
	"streaming":          rawStreaming,
	"unresolved_ratio":   rawUnresolvedRatio,
	"database_footprint": rawDatabaseFootprint,
}

// rawWorkflowStructure scores the structural size of a workflow: actions,
// control-flow constructs, sub-workflow references and trigger-chain
// nesting. Coordinators score on scheduling pressure instead.
func rawWorkflowStructure(ent entity, in Input) float64 {
	if ent.workflow != nil {
		wf := ent.workflow
		raw := float64(len(wf.Actions)) * 2
		if wf.HasForkJoin {
			raw += 8
		}
		if wf.HasDecision {
			raw += 8
		}
		raw += float64(len(wf.References)) * 6
		if in.Graph != nil {
			raw += float64(in.Graph.LongestChain(ent.key, graph.EdgeTriggers)) * 4
		}
		return raw
	}

	c := ent.coord
	raw := float64(len(c.References)) * 4
	if highFrequency(c.Frequency) {
		raw += 12
	}
	return raw
}

// highFrequency reports sub-hourly coordinator schedules. Frequencies come
// either as cron-style minute counts or as EL frequency expressions.
func highFrequency(frequency string) bool {
	f := strings.TrimSpace(strings.ToLower(frequency))
	if f == "" {
		return false
	}
	if strings.Contains(f, "minute") {
		return true
	}
	switch f {
	case "5", "10", "15", "20", "30":
		return true
	}
	return false
}

// rawSQLComplexity is the fraction of analyzed queries in the complex or
// very_complex bands. Repository-scoped.
func rawSQLComplexity(_ entity, in Input) float64 {
	s := in.SQLSummary
	return float64(s.Distribution.Complex+s.Distribution.VeryComplex) / float64(s.QueriesAnalyzed)
}

// rawTableFanout is the highest combined degree among table nodes reachable
// from the entity, the widest fan-in/fan-out the entity touches.
func rawTableFanout(ent entity, in Input) float64 {
	best := 0
	for key := range in.Graph.Reachable(ent.key) {
		if key.Type != graph.NodeTable {
			continue
		}
		degree := in.Graph.Degree(key, true) + in.Graph.Degree(key, false)
		if degree > best {
			best = degree
		}
	}
	return float64(best)
}

// rawDynamicSQL reports whether any inventoried file constructs SQL text at
// runtime. Repository-scoped.
func rawDynamicSQL(_ entity, in Input) float64 {
	for _, f := range in.Files {
		if f.HasDynamicSQL {
			return 1
		}
	}
	return 0
}

// rawStreaming reports streaming infrastructure: Kafka endpoints in the
// findings or streaming constructs in source files. Repository-scoped.
func rawStreaming(_ entity, in Input) float64 {
	if in.Findings != nil && len(in.Findings.KafkaEndpoints) > 0 {
		return 1
	}
	for _, f := range in.Files {
		if f.HasStreaming {
			return 1
		}
	}
	return 0
}

// rawUnresolvedRatio is the unresolved fraction among the occurrences whose
// source file belongs to the entity. Entities without occurrences score 0.
func rawUnresolvedRatio(ent entity, in Input) float64 {
	total, unresolved := 0, 0
	for _, res := range in.Resolution.All() {
		if res.SourceFile != ent.sourceFile {
			continue
		}
		total++
		if res.Tier == resolver.TierUnresolved {
			unresolved++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(unresolved) / float64(total)
}

// rawDatabaseFootprint weighs how much database surface the repository
// touches. Repository-scoped.
func rawDatabaseFootprint(_ entity, in Input) float64 {
	s := in.Database.Summary
	return float64(s.TotalDatabases)*10 +
		float64(s.TotalSourceTableRefs)/5 +
		float64(s.TotalTargetTableRefs)/2
}

// entityRiskFlags lists categorical migration risks for one entity, in a
// fixed order.
func entityRiskFlags(ent entity, in Input, score EntityScore) []string {
	var flags []string
	if in.Graph != nil {
		if node := in.Graph.Lookup(ent.key.Type, ent.key.ID); node != nil && node.InCycle {
			flags = append(flags, "dependency_cycle")
		}
	}
	if ent.workflow != nil && (ent.workflow.HasForkJoin || ent.workflow.HasDecision) {
		flags = append(flags, "control_flow")
	}
	if ent.coord != nil && highFrequency(ent.coord.Frequency) {
		flags = append(flags, "high_frequency_schedule")
	}
	if score.RawScores["unresolved_ratio"] > 0 {
		flags = append(flags, "unresolved_variables")
	}
	return flags
}

// repositoryRiskFlags lists repository-wide risks attached to the aggregate
// score.
func repositoryRiskFlags(in Input, availability map[string]bool) []string {
	var flags []string
	if in.Graph != nil {
		for _, node := range in.Graph.Nodes() {
			if node.InCycle {
				flags = append(flags, "dependency_cycle")
				break
			}
		}
	}
	if availability["streaming"] && rawStreaming(entity{}, in) > 0 {
		flags = append(flags, "streaming")
	}
	if availability["dynamic_sql"] && rawDynamicSQL(entity{}, in) > 0 {
		flags = append(flags, "dynamic_sql")
	}
	if in.Resolution != nil && len(in.Resolution.Unresolved) > 0 {
		flags = append(flags, "unresolved_variables")
	}
	return flags
}
