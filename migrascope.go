// Package migrascope assesses legacy Hadoop/Oozie repositories for
// migration difficulty. It wires three components in strict sequence: the
// dependency-graph builder, the variable-resolution engine and the
// rubric-driven complexity scorer, then assembles the downstream assessment
// report. Recoverable issues degrade output and surface as diagnostics; only
// an invalid rubric aborts a run.
package migrascope

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/afs"

	"github.com/datashift/migrascope/artifact"
	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/resolver"
	"github.com/datashift/migrascope/rubric"
	"github.com/datashift/migrascope/scorer"
)

// Input bundles the upstream artifacts an assessment consumes: the file
// inventory, parsed Oozie records, pattern findings, SQL lineage and the
// database/SQL-complexity summaries. Nil members are tolerated; signals
// depending on them are reported unavailable.
type Input struct {
	Files        []model.FileRecord
	Workflows    []model.WorkflowRecord
	Coordinators []model.CoordinatorRecord
	Bundles      []model.BundleRecord
	Findings     *model.Findings
	Lineage      []model.LineageRecord
	Database     *model.DatabaseContext
	SQLSummary   *model.SQLComplexitySummary
}

// Analyzer runs repository assessments.
type Analyzer struct {
	fs       afs.Service
	logger   *slog.Logger
	rubric   *rubric.Rubric
	workers  int
	maxDepth int
	budget   time.Duration
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the structured logger; the default discards nothing and
// writes through slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRubric overrides the built-in scoring rubric.
func WithRubric(r *rubric.Rubric) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.rubric = r
		}
	}
}

// WithWorkers bounds the resolver and scorer worker pools.
func WithWorkers(workers int) Option {
	return func(a *Analyzer) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

// WithMaxDepth overrides the resolver substitution depth guard.
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// WithFS overrides the file service used by the definitions pass, e.g. to
// read from an object store instead of the local filesystem.
func WithFS(fs afs.Service) Option {
	return func(a *Analyzer) {
		if fs != nil {
			a.fs = fs
		}
	}
}

// WithTimeBudget bounds a whole assessment. On expiry in-flight units finish,
// remaining work is skipped and the report is marked degraded.
func WithTimeBudget(budget time.Duration) Option {
	return func(a *Analyzer) {
		if budget > 0 {
			a.budget = budget
		}
	}
}

// New creates an Analyzer.
func New(options ...Option) *Analyzer {
	a := &Analyzer{
		fs:       afs.New(),
		logger:   slog.Default(),
		rubric:   rubric.Default(),
		workers:  resolver.DefaultWorkers,
		maxDepth: resolver.DefaultMaxDepth,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Assess runs the full pipeline over the supplied artifacts. rootURL points
// at the repository root for the definitions pass; empty skips external
// definition loading. The only fatal failure is a structurally invalid
// rubric, reported before any output is produced.
func (a *Analyzer) Assess(ctx context.Context, rootURL string, in Input) (*artifact.Report, error) {
	if err := a.rubric.Validate(scorer.KnownSignals()); err != nil {
		return nil, fmt.Errorf("assessment aborted: %w", err)
	}
	if a.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.budget)
		defer cancel()
	}

	started := time.Now()
	var diags model.Diagnostics

	g := graph.Build(in.Files, in.Workflows, in.Coordinators, in.Bundles, &diags)
	a.logger.InfoContext(ctx, "dependency graph built",
		"nodes", len(g.Nodes()), "edges", len(g.Edges()))

	var definitions []resolver.Candidate
	if rootURL != "" {
		definitions = resolver.LoadDefinitions(ctx, a.fs, rootURL, in.Files, &diags)
		a.logger.DebugContext(ctx, "definition candidates loaded",
			"root", rootURL, "candidates", len(definitions))
	}
	idx := resolver.BuildIndex(in.Workflows, in.Coordinators, definitions, g)

	arts := resolver.Artifacts{
		Findings:     in.Findings,
		Workflows:    in.Workflows,
		Coordinators: in.Coordinators,
		Lineage:      in.Lineage,
	}
	engine := resolver.NewEngine(
		resolver.WithMaxDepth(a.maxDepth),
		resolver.WithWorkers(a.workers),
	)
	resolution := engine.Resolve(ctx, arts, idx)
	diags = append(diags, resolution.Diagnostics...)
	a.logger.InfoContext(ctx, "occurrences classified",
		"resolved", len(resolution.Resolved),
		"partiallyResolved", len(resolution.PartiallyResolved),
		"unresolved", len(resolution.Unresolved),
		"complete", resolution.Complete)

	scores, err := scorer.NewEngine(scorer.WithWorkers(a.workers)).Score(ctx, scorer.Input{
		Files:        in.Files,
		Workflows:    in.Workflows,
		Coordinators: in.Coordinators,
		Findings:     in.Findings,
		Lineage:      in.Lineage,
		Database:     in.Database,
		SQLSummary:   in.SQLSummary,
		Graph:        g,
		Resolution:   resolution,
	}, a.rubric)
	if err != nil {
		return nil, err
	}
	diags = append(diags, scores.Diagnostics...)
	a.logger.InfoContext(ctx, "complexity scored",
		"entities", len(scores.PerEntity),
		"band", scores.Aggregate.Band,
		"unavailableSignals", len(scores.UnavailableSignals))

	occurrences := len(resolution.Resolved) + len(resolution.PartiallyResolved) + len(resolution.Unresolved)
	report := &artifact.Report{
		Summary: artifact.RunSummary{
			GeneratedAt:       started,
			RepositoryRoot:    rootURL,
			FilesInventoried:  len(in.Files),
			WorkflowsParsed:   len(in.Workflows),
			CoordinatorsFound: len(in.Coordinators),
			BundlesFound:      len(in.Bundles),
			OccurrencesSeen:   occurrences,
			Elapsed:           time.Since(started).String(),
		},
		Degraded:        !resolution.Complete || !scores.Complete,
		DependencyGraph: artifact.ExportGraph(g),
		Resolution:      artifact.ExportResolution(resolution),

		FindingsResolved:     resolution.Mirrors.Findings,
		WorkflowsResolved:    resolution.Mirrors.Workflows,
		CoordinatorsResolved: resolution.Mirrors.Coordinators,
		LineageResolved:      resolution.Mirrors.Lineage,

		Complexity: artifact.ComplexityExport{
			PerEntity: scores.PerEntity,
			Aggregate: scores.Aggregate,
		},

		Diagnostics:      diags,
		DiagnosticCounts: diags.Counts(),
	}
	if err := report.Seal(); err != nil {
		return nil, err
	}
	if report.Degraded {
		a.logger.WarnContext(ctx, "assessment degraded", "diagnostics", len(diags))
	}
	return report, nil
}
