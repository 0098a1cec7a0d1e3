// Package scorer computes migration-complexity scores for repository
// entities from the dependency graph, the resolved artifacts and the
// upstream database and SQL-complexity summaries, driven entirely by the
// supplied rubric. Given identical inputs and rubric the output is
// bit-identical across runs.
package scorer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/rubric"
)

const component = "scorer"

// BandName is the categorical complexity band, consistent with the bands
// used by the upstream SQL-complexity analyzer.
type BandName string

const (
	BandSimple      BandName = "simple"
	BandModerate    BandName = "moderate"
	BandComplex     BandName = "complex"
	BandVeryComplex BandName = "very_complex"
)

// EntityScore carries the raw and normalized sub-scores, the weighted
// composite with its theoretical maximum, and the categorical band for one
// entity.
type EntityScore struct {
	EntityID       string             `json:"entityId"`
	RawScores      map[string]float64 `json:"rawScores,omitempty"`
	SubScores      map[string]float64 `json:"subScores,omitempty"`
	Composite      float64            `json:"composite"`
	TheoreticalMax float64            `json:"theoreticalMax"`
	Band           BandName           `json:"band"`
	RiskFlags      []string           `json:"riskFlags,omitempty"`
}

// Result is the scorer output. Complete is false when the run was cancelled
// before every entity was scored; already-computed entity scores are kept.
type Result struct {
	PerEntity          []EntityScore     `json:"perEntity"`
	Aggregate          EntityScore       `json:"aggregate"`
	UnavailableSignals []string          `json:"unavailableSignals,omitempty"`
	Diagnostics        model.Diagnostics `json:"-"`
	Complete           bool              `json:"complete"`
}

// Engine scores entities under a fixed rubric.
type Engine struct {
	workers int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithWorkers overrides the per-entity scoring worker-pool size.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// NewEngine creates a scoring engine.
func NewEngine(options ...Option) *Engine {
	e := &Engine{workers: 4}
	for _, option := range options {
		option(e)
	}
	return e
}

// Score validates the rubric, computes per-entity scores across a bounded
// worker pool, then reduces them into the repository aggregate using the
// rubric-declared aggregation. Signals whose input artifact is missing are
// excluded with their weight redistributed, and reported in diagnostics as
// unavailable. A structurally invalid rubric aborts before any output.
func (e *Engine) Score(ctx context.Context, in Input, r *rubric.Rubric) (*Result, error) {
	if r == nil {
		r = rubric.Default()
	}
	if err := r.Validate(KnownSignals()); err != nil {
		return nil, fmt.Errorf("scoring aborted: %w", err)
	}

	result := &Result{Complete: true}

	availability := e.availability(in)
	for _, name := range r.SignalNames() {
		if !availability[name] {
			result.UnavailableSignals = append(result.UnavailableSignals, name)
			result.Diagnostics.Add(component, model.DiagSignalUnavailable, name, "signal unavailable: %s", name)
		}
	}

	entities := collectEntities(in)
	slots := make([]EntityScore, len(entities))
	scored := make([]bool, len(entities))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = e.scoreEntity(entities[i], in, r, availability)
				scored[i] = true
			}
		}()
	}
feed:
	for i := range entities {
		if ctx.Err() != nil {
			result.Complete = false
			break
		}
		select {
		case <-ctx.Done():
			result.Complete = false
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	sizes := make([]int, 0, len(entities))
	for i := range entities {
		if scored[i] {
			result.PerEntity = append(result.PerEntity, slots[i])
			sizes = append(sizes, entities[i].size)
		}
	}

	result.Aggregate = e.aggregate(result.PerEntity, sizes, in, r, availability)
	return result, nil
}

// scoreEntity computes the normalized sub-scores and composite for one
// entity. Unavailable signals are skipped; the theoretical maximum shrinks
// accordingly so the band stays meaningful under redistribution.
func (e *Engine) scoreEntity(ent entity, in Input, r *rubric.Rubric, availability map[string]bool) EntityScore {
	score := EntityScore{
		EntityID:  ent.id,
		RawScores: make(map[string]float64),
		SubScores: make(map[string]float64),
	}

	for _, name := range r.SignalNames() {
		if !availability[name] {
			continue
		}
		signal := r.Signals[name]
		raw := signalRegistry[name](ent, in)
		normalized := signal.Band.Normalize(raw)
		score.RawScores[name] = raw
		score.SubScores[name] = normalized
		score.Composite += signal.Weight * normalized
		score.TheoreticalMax += signal.Weight
	}

	score.Band = e.band(score.Composite, score.TheoreticalMax, r)
	score.RiskFlags = entityRiskFlags(ent, in, score)
	return score
}

// band classifies the composite against the rubric cut points, on the
// composite-to-maximum fraction so redistributed weights keep the cut
// points comparable.
func (e *Engine) band(composite, max float64, r *rubric.Rubric) BandName {
	if max <= 0 {
		return BandSimple
	}
	fraction := composite / max
	switch {
	case fraction <= r.CutPoints.Simple:
		return BandSimple
	case fraction <= r.CutPoints.Moderate:
		return BandModerate
	case fraction <= r.CutPoints.Complex:
		return BandComplex
	default:
		return BandVeryComplex
	}
}

// aggregate reduces per-entity composites into the repository-level score
// using the rubric-declared aggregation function.
func (e *Engine) aggregate(perEntity []EntityScore, sizes []int, in Input, r *rubric.Rubric, availability map[string]bool) EntityScore {
	agg := EntityScore{EntityID: "repository"}

	var max float64
	for _, name := range r.SignalNames() {
		if availability[name] {
			max += r.Signals[name].Weight
		}
	}
	agg.TheoreticalMax = max

	if len(perEntity) == 0 {
		agg.Band = e.band(0, max, r)
		return agg
	}

	switch r.Aggregation {
	case rubric.AggregateMax:
		for _, score := range perEntity {
			if score.Composite > agg.Composite {
				agg.Composite = score.Composite
			}
		}
	case rubric.AggregateMean:
		var sum float64
		for _, score := range perEntity {
			sum += score.Composite
		}
		agg.Composite = sum / float64(len(perEntity))
	case rubric.AggregateSizeWeightedMean:
		var sum, weight float64
		for i, score := range perEntity {
			w := float64(sizes[i])
			if w < 1 {
				w = 1
			}
			sum += w * score.Composite
			weight += w
		}
		agg.Composite = sum / weight
	}

	agg.Band = e.band(agg.Composite, max, r)
	agg.RiskFlags = repositoryRiskFlags(in, availability)
	return agg
}

// KnownSignals returns the set of signal names this scorer can compute,
// used to validate rubric configurations.
func KnownSignals() map[string]bool {
	known := make(map[string]bool, len(signalRegistry))
	for name := range signalRegistry {
		known[name] = true
	}
	return known
}

// SignalNames returns the computable signal names in lexical order.
func SignalNames() []string {
	names := make([]string, 0, len(signalRegistry))
	for name := range signalRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
