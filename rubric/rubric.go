// Package rubric loads and validates the scoring configuration: per-signal
// weights and threshold bands, categorical cut points and the repository
// aggregation function. A structurally invalid rubric is fatal (every score
// computed from it would be meaningless), so validation runs before any
// scoring output is produced.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a structurally invalid rubric configuration.
var ErrInvalid = errors.New("invalid rubric")

// Aggregation function names accepted for the repository-level roll-up.
const (
	AggregateMax              = "max"
	AggregateMean             = "mean"
	AggregateSizeWeightedMean = "size_weighted_mean"
)

// Band maps a raw sub-score into [0,1]: raw values at or below Low normalize
// to 0, at or above High to 1, linearly in between.
type Band struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Normalize clamps and scales a raw value into [0,1].
func (b Band) Normalize(raw float64) float64 {
	if raw <= b.Low {
		return 0
	}
	if raw >= b.High {
		return 1
	}
	return (raw - b.Low) / (b.High - b.Low)
}

// Signal is one weighted scoring signal.
type Signal struct {
	Weight float64 `yaml:"weight" json:"weight"`
	Band   Band    `yaml:"band" json:"band"`
}

// CutPoints are the upper bounds of the simple, moderate and complex bands
// on the composite-to-maximum fraction; anything above Complex is
// very_complex.
type CutPoints struct {
	Simple   float64 `yaml:"simple" json:"simple"`
	Moderate float64 `yaml:"moderate" json:"moderate"`
	Complex  float64 `yaml:"complex" json:"complex"`
}

// Rubric is the externally supplied scoring configuration. The engine never
// mutates it.
type Rubric struct {
	Signals     map[string]Signal `yaml:"signals" json:"signals"`
	CutPoints   CutPoints         `yaml:"cutPoints" json:"cutPoints"`
	Aggregation string            `yaml:"aggregation" json:"aggregation"`
}

// Load parses a YAML rubric document. Structural validation is left to
// Validate, which needs the scorer's signal registry.
func Load(data []byte) (*Rubric, error) {
	r := &Rubric{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return r, nil
}

// Validate checks the rubric against the set of signals the scorer can
// compute. Unknown signal names, non-finite or negative weights, inverted
// bands, non-ascending cut points and unknown aggregation functions are all
// fatal.
func (r *Rubric) Validate(known map[string]bool) error {
	if len(r.Signals) == 0 {
		return fmt.Errorf("%w: no signals declared", ErrInvalid)
	}
	for _, name := range r.SignalNames() {
		signal := r.Signals[name]
		if !known[name] {
			return fmt.Errorf("%w: unknown signal %q", ErrInvalid, name)
		}
		if math.IsNaN(signal.Weight) || math.IsInf(signal.Weight, 0) {
			return fmt.Errorf("%w: non-finite weight for signal %q", ErrInvalid, name)
		}
		if signal.Weight < 0 {
			return fmt.Errorf("%w: negative weight for signal %q", ErrInvalid, name)
		}
		if signal.Band.High <= signal.Band.Low {
			return fmt.Errorf("%w: signal %q band high must exceed low", ErrInvalid, name)
		}
	}
	c := r.CutPoints
	if !(c.Simple > 0 && c.Simple < c.Moderate && c.Moderate < c.Complex && c.Complex <= 1) {
		return fmt.Errorf("%w: cut points must satisfy 0 < simple < moderate < complex <= 1", ErrInvalid)
	}
	switch r.Aggregation {
	case AggregateMax, AggregateMean, AggregateSizeWeightedMean:
	default:
		return fmt.Errorf("%w: unknown aggregation %q", ErrInvalid, r.Aggregation)
	}
	return nil
}

// SignalNames returns the declared signal names in lexical order, keeping
// every weight-dependent computation order-independent of map iteration.
func (r *Rubric) SignalNames() []string {
	names := make([]string, 0, len(r.Signals))
	for name := range r.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the built-in rubric used when no configuration is
// supplied.
func Default() *Rubric {
	return &Rubric{
		Signals: map[string]Signal{
			"workflow_structure": {Weight: 1.0, Band: Band{Low: 0, High: 60}},
			"sql_complexity":     {Weight: 1.0, Band: Band{Low: 0, High: 0.6}},
			"table_fanout":       {Weight: 0.8, Band: Band{Low: 1, High: 12}},
			"dynamic_sql":        {Weight: 0.5, Band: Band{Low: 0, High: 1}},
			"streaming":          {Weight: 0.5, Band: Band{Low: 0, High: 1}},
			"unresolved_ratio":   {Weight: 0.7, Band: Band{Low: 0, High: 0.5}},
			"database_footprint": {Weight: 0.5, Band: Band{Low: 0, High: 80}},
		},
		CutPoints:   CutPoints{Simple: 0.25, Moderate: 0.5, Complex: 0.75},
		Aggregation: AggregateSizeWeightedMean,
	}
}
