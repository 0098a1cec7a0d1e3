package resolver

import (
	"sort"

	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
)

// Scope identifies where a definition candidate was declared. Lookup order
// is highest priority first: workflow-local, coordinator, properties-file,
// environment-default.
type Scope string

const (
	ScopeWorkflowLocal      Scope = "workflow-local"
	ScopeCoordinator        Scope = "coordinator"
	ScopePropertiesFile     Scope = "properties-file"
	ScopeEnvironmentDefault Scope = "environment-default"
)

// priority returns the tie-break rank of a scope; higher wins.
func (s Scope) priority() int {
	switch s {
	case ScopeWorkflowLocal:
		return 4
	case ScopeCoordinator:
		return 3
	case ScopePropertiesFile:
		return 2
	case ScopeEnvironmentDefault:
		return 1
	}
	return 0
}

// Candidate is one possible definition for a key. OwnerID scopes
// workflow-local and coordinator candidates to their declaring record;
// repository-wide scopes leave it empty. DefinedIn names the declaring file
// or record for reporting.
type Candidate struct {
	Scope     Scope  `json:"scope"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Priority  int    `json:"priority"`
	DefinedIn string `json:"definedIn,omitempty"`
	OwnerID   string `json:"-"`
}

// Index is the read-only definition-candidate snapshot built once before
// classification. It is safe for concurrent lookups.
type Index struct {
	workflowLocal map[string]map[string]Candidate
	coordinator   map[string]map[string]Candidate
	properties    map[string]Candidate
	environment   map[string]Candidate

	// workflowBySource maps a source file to its workflow id so occurrences
	// found in findings or lineage for that file inherit workflow scoping.
	workflowBySource map[string]string
	// triggeredBy lists the coordinators triggering each workflow, resolved
	// through the graph's triggers edges, in graph insertion order.
	triggeredBy map[string][]string
}

// BuildIndex assembles the candidate index from declared workflow and
// coordinator parameters plus externally loaded definitions (properties
// files, environment defaults). The graph supplies coordinator-to-workflow
// trigger relations. Within a scope the first definition of a key wins;
// later duplicates are retained only through AllCandidates.
func BuildIndex(workflows []model.WorkflowRecord, coordinators []model.CoordinatorRecord,
	definitions []Candidate, g *graph.Graph) *Index {

	idx := &Index{
		workflowLocal:    make(map[string]map[string]Candidate),
		coordinator:      make(map[string]map[string]Candidate),
		properties:       make(map[string]Candidate),
		environment:      make(map[string]Candidate),
		workflowBySource: make(map[string]string),
		triggeredBy:      make(map[string][]string),
	}

	for _, wf := range workflows {
		if wf.SourceFile != "" {
			if _, ok := idx.workflowBySource[wf.SourceFile]; !ok {
				idx.workflowBySource[wf.SourceFile] = wf.ID
			}
		}
		if len(wf.DeclaredParams) == 0 {
			continue
		}
		local := make(map[string]Candidate, len(wf.DeclaredParams))
		for _, key := range sortedKeys(wf.DeclaredParams) {
			local[key] = Candidate{
				Scope:     ScopeWorkflowLocal,
				Key:       key,
				Value:     wf.DeclaredParams[key],
				Priority:  ScopeWorkflowLocal.priority(),
				DefinedIn: wf.SourceFile,
				OwnerID:   wf.ID,
			}
		}
		idx.workflowLocal[wf.ID] = local
	}

	for _, c := range coordinators {
		if len(c.DeclaredParams) == 0 {
			continue
		}
		params := make(map[string]Candidate, len(c.DeclaredParams))
		for _, key := range sortedKeys(c.DeclaredParams) {
			params[key] = Candidate{
				Scope:     ScopeCoordinator,
				Key:       key,
				Value:     c.DeclaredParams[key],
				Priority:  ScopeCoordinator.priority(),
				DefinedIn: c.SourceFile,
				OwnerID:   c.ID,
			}
		}
		idx.coordinator[c.ID] = params
	}

	for _, cand := range definitions {
		cand.Priority = cand.Scope.priority()
		switch cand.Scope {
		case ScopePropertiesFile:
			if _, ok := idx.properties[cand.Key]; !ok {
				idx.properties[cand.Key] = cand
			}
		case ScopeEnvironmentDefault:
			if _, ok := idx.environment[cand.Key]; !ok {
				idx.environment[cand.Key] = cand
			}
		}
	}

	if g != nil {
		for _, workflow := range g.ByType(graph.NodeWorkflow) {
			for _, edge := range g.InEdges(workflow.Key()) {
				if edge.Kind == graph.EdgeTriggers && edge.From.Type == graph.NodeCoordinator {
					idx.triggeredBy[workflow.ID] = append(idx.triggeredBy[workflow.ID], edge.From.ID)
				}
			}
		}
	}

	return idx
}

// WorkflowFor returns the id of the workflow parsed from the given source
// file, or empty when the file backs no workflow record.
func (idx *Index) WorkflowFor(sourceFile string) string {
	return idx.workflowBySource[sourceFile]
}

// Lookup returns the highest-priority candidate for the key in the context
// of the given workflow: workflow-local, then the parameters of any
// coordinator triggering that workflow, then properties files, then
// environment defaults.
func (idx *Index) Lookup(key, workflowID string) (Candidate, bool) {
	if workflowID != "" {
		if local, ok := idx.workflowLocal[workflowID]; ok {
			if cand, ok := local[key]; ok {
				return cand, true
			}
		}
		for _, coordID := range idx.triggeredBy[workflowID] {
			if params, ok := idx.coordinator[coordID]; ok {
				if cand, ok := params[key]; ok {
					return cand, true
				}
			}
		}
	}
	if cand, ok := idx.properties[key]; ok {
		return cand, true
	}
	if cand, ok := idx.environment[key]; ok {
		return cand, true
	}
	return Candidate{}, false
}

// AllCandidates returns every candidate defining the key in the workflow's
// lookup context, highest priority first.
func (idx *Index) AllCandidates(key, workflowID string) []Candidate {
	var out []Candidate
	if workflowID != "" {
		if local, ok := idx.workflowLocal[workflowID]; ok {
			if cand, ok := local[key]; ok {
				out = append(out, cand)
			}
		}
		for _, coordID := range idx.triggeredBy[workflowID] {
			if params, ok := idx.coordinator[coordID]; ok {
				if cand, ok := params[key]; ok {
					out = append(out, cand)
				}
			}
		}
	}
	if cand, ok := idx.properties[key]; ok {
		out = append(out, cand)
	}
	if cand, ok := idx.environment[key]; ok {
		out = append(out, cand)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
