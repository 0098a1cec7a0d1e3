package resolver

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/datashift/migrascope/model"
)

const component = "resolver"

// DefaultMaxDepth bounds transitive substitution; chains longer than this
// are reported unresolved rather than retried.
const DefaultMaxDepth = 10

// DefaultWorkers bounds the classification worker pool.
const DefaultWorkers = 4

const defaultCacheSize = 1024

type reason int

const (
	reasonNone reason = iota
	reasonNoCandidate
	reasonDepth
	reasonCycle
)

// Result is the resolver output: the three tier partitions, the mirrored
// artifacts and the accumulated diagnostics. Complete is false when the run
// was cancelled before every occurrence was classified; in that case the
// mirrors carry the original raw values.
type Result struct {
	Resolved          []Resolution      `json:"resolved"`
	PartiallyResolved []Resolution      `json:"partiallyResolved"`
	Unresolved        []Resolution      `json:"unresolved"`
	Mirrors           Artifacts         `json:"mirrors"`
	Diagnostics       model.Diagnostics `json:"-"`
	Complete          bool              `json:"complete"`
}

// All returns every classified resolution, tier partitions concatenated.
func (r *Result) All() []Resolution {
	out := make([]Resolution, 0, len(r.Resolved)+len(r.PartiallyResolved)+len(r.Unresolved))
	out = append(out, r.Resolved...)
	out = append(out, r.PartiallyResolved...)
	out = append(out, r.Unresolved...)
	return out
}

// Engine resolves placeholder occurrences against a candidate index.
type Engine struct {
	maxDepth  int
	workers   int
	cacheSize int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMaxDepth overrides the substitution depth guard.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithWorkers overrides the classification worker-pool size.
func WithWorkers(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.workers = workers
		}
	}
}

// WithCacheSize overrides the shared-token memo cache capacity.
func WithCacheSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.cacheSize = size
		}
	}
}

// NewEngine creates a resolution engine.
func NewEngine(options ...Option) *Engine {
	e := &Engine{
		maxDepth:  DefaultMaxDepth,
		workers:   DefaultWorkers,
		cacheSize: defaultCacheSize,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Resolve classifies every occurrence in the raw artifacts and produces the
// mirrored copies. Classification runs across a bounded worker pool over the
// read-only index (which carries the graph's trigger relations); each worker
// writes a disjoint result slot. The mirror substitution pass waits for full
// classification. Inputs are never mutated.
func (e *Engine) Resolve(ctx context.Context, arts Artifacts, idx *Index) *Result {
	occurrences := CollectOccurrences(arts)
	result := &Result{Complete: true}

	// Memo for occurrences sharing a raw token in the same workflow context.
	// Expansion is pure, so cache hits cannot change the outcome.
	memo, _ := lru.New[string, Resolution](e.cacheSize)

	slots := make([]Resolution, len(occurrences))
	classified := make([]bool, len(occurrences))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = e.classify(occurrences[i], idx, memo)
				classified[i] = true
			}
		}()
	}

feed:
	for i := range occurrences {
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

	for i, res := range slots {
		if !classified[i] {
			continue
		}
		switch res.Tier {
		case TierResolved:
			result.Resolved = append(result.Resolved, res)
		case TierPartiallyResolved:
			result.PartiallyResolved = append(result.PartiallyResolved, res)
		case TierUnresolved:
			result.Unresolved = append(result.Unresolved, res)
			switch res.reason {
			case reasonDepth:
				result.Diagnostics.Add(component, model.DiagDepthGuardExceeded, res.RawToken,
					"substitution chain for %s exceeded depth %d", res.RawToken, e.maxDepth)
			case reasonCycle:
				result.Diagnostics.Add(component, model.DiagCycleDetected, res.RawToken,
					"%s resolves back to itself", res.RawToken)
			default:
				result.Diagnostics.Add(component, model.DiagUnresolvedOccurrence, res.RawToken,
					"no definition candidate for %s (%s %s)", res.RawToken, res.SourceFile, res.Location)
			}
		}
	}

	if !result.Complete {
		// Cancelled mid-classification: return raw mirrors, never a
		// half-substituted artifact.
		result.Mirrors = walkArtifacts(arts, func(_, _, value string) string { return value })
		return result
	}

	result.Mirrors = e.mirror(arts, result)
	return result
}

// classify resolves a single occurrence into its tier, final value and
// resolution chain.
func (e *Engine) classify(occ Occurrence, idx *Index, memo *lru.Cache[string, Resolution]) Resolution {
	workflowID := idx.WorkflowFor(occ.SourceFile)
	memoKey := occ.Key() + "\x1f" + workflowID
	if cached, ok := memo.Get(memoKey); ok {
		cached.Occurrence = occ
		return cached
	}

	res := Resolution{Occurrence: occ}
	key := occ.Key()
	if key == "" {
		res.Tier = TierUnresolved
		res.reason = reasonNoCandidate
		return res
	}
	res.Definitions = idx.AllCandidates(key, workflowID)

	value, chain, flags := e.expand(key, workflowID, idx, map[string]bool{}, 0)
	switch {
	case flags.noCandidate:
		res.Tier = TierUnresolved
		res.reason = reasonNoCandidate
	case flags.cycle:
		res.Tier = TierUnresolved
		res.reason = reasonCycle
	case flags.depthExceeded:
		res.Tier = TierUnresolved
		res.reason = reasonDepth
	case flags.missing:
		res.Tier = TierPartiallyResolved
		res.ResolvedValue = value
		res.Chain = chain
	default:
		res.Tier = TierResolved
		res.ResolvedValue = value
		res.Chain = chain
	}

	memo.Add(memoKey, res)
	return res
}

type expandFlags struct {
	// noCandidate: the top-level key has no definition in any scope.
	noCandidate bool
	// missing: a nested key had no definition, leaving its placeholder raw.
	missing bool
	cycle         bool
	depthExceeded bool
}

func (f *expandFlags) merge(other expandFlags) {
	f.missing = f.missing || other.missing || other.noCandidate
	f.cycle = f.cycle || other.cycle
	f.depthExceeded = f.depthExceeded || other.depthExceeded
}

// expand substitutes a key transitively. path holds the keys on the current
// expansion branch: meeting one again means the placeholder resolves back to
// itself. Recursion depth is the indirection chain length guarded by
// maxDepth. Promotion is monotonic: the tier derived from the returned flags
// is computed once per occurrence and never downgraded afterwards.
func (e *Engine) expand(key, workflowID string, idx *Index, path map[string]bool, depth int) (string, []Scope, expandFlags) {
	var flags expandFlags
	if depth > e.maxDepth {
		flags.depthExceeded = true
		return "${" + key + "}", nil, flags
	}
	if path[key] {
		flags.cycle = true
		return "${" + key + "}", nil, flags
	}
	cand, ok := idx.Lookup(key, workflowID)
	if !ok {
		flags.noCandidate = true
		return "${" + key + "}", nil, flags
	}

	path[key] = true
	defer delete(path, key)

	chain := []Scope{cand.Scope}
	value := placeholderRE.ReplaceAllStringFunc(cand.Value, func(token string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(token, "${"), "}")
		nestedValue, nestedChain, nestedFlags := e.expand(inner, workflowID, idx, path, depth+1)
		chain = append(chain, nestedChain...)
		flags.merge(nestedFlags)
		return nestedValue
	})
	return value, chain, flags
}

// mirror produces resolved copies of the raw artifacts: resolved and
// partially resolved occurrences are substituted, unresolved ones keep their
// original raw token.
func (e *Engine) mirror(arts Artifacts, result *Result) Artifacts {
	byOccurrence := make(map[Occurrence]Resolution)
	for _, res := range result.All() {
		byOccurrence[res.Occurrence] = res
	}

	return walkArtifacts(arts, func(sourceFile, location, value string) string {
		return placeholderRE.ReplaceAllStringFunc(value, func(token string) string {
			occ := Occurrence{SourceFile: sourceFile, Location: location, RawToken: token}
			res, ok := byOccurrence[occ]
			if !ok || res.Tier == TierUnresolved {
				return token
			}
			return res.ResolvedValue
		})
	})
}
