// Package artifact assembles the downstream-facing assessment report: the
// exported dependency graph, the three-tier resolution report, the resolved
// artifact mirrors, the complexity scores and the accumulated diagnostics.
// Field names are part of the output contract consumed by report renderers
// and must stay stable.
package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/highwayhash"

	"github.com/datashift/migrascope/graph"
	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/resolver"
	"github.com/datashift/migrascope/scorer"
)

// GraphNode is one exported dependency-graph node. Flags carries the node
// annotations (cycle, partial) as stable strings.
type GraphNode struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	SourceFile string   `json:"source_file,omitempty"`
	Flags      []string `json:"flags,omitempty"`
}

// GraphEdge is one exported typed relation.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// GraphExport is the serialized dependency graph. Node and edge order
// follows graph insertion order, stable for a fixed input.
type GraphExport struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ResolutionEntry is one classified placeholder occurrence.
type ResolutionEntry struct {
	RawToken        string   `json:"raw_token"`
	SourceFile      string   `json:"source_file"`
	Location        string   `json:"location"`
	Tier            string   `json:"tier"`
	ResolvedValue   string   `json:"resolved_value,omitempty"`
	ResolutionChain []string `json:"resolution_chain,omitempty"`
}

// ResolutionExport partitions every occurrence into the three tiers.
type ResolutionExport struct {
	Resolved          []ResolutionEntry `json:"resolved"`
	PartiallyResolved []ResolutionEntry `json:"partially_resolved"`
	Unresolved        []ResolutionEntry `json:"unresolved"`
}

// ComplexityExport carries the per-entity scores and the repository
// aggregate.
type ComplexityExport struct {
	PerEntity []scorer.EntityScore `json:"per_entity"`
	Aggregate scorer.EntityScore   `json:"aggregate"`
}

// RunSummary is the run metadata header of a report.
type RunSummary struct {
	GeneratedAt       time.Time `json:"generated_at"`
	RepositoryRoot    string    `json:"repository_root,omitempty"`
	FilesInventoried  int       `json:"files_inventoried"`
	WorkflowsParsed   int       `json:"workflows_parsed"`
	CoordinatorsFound int       `json:"coordinators_found"`
	BundlesFound      int       `json:"bundles_found"`
	OccurrencesSeen   int       `json:"occurrences_seen"`
	Elapsed           string    `json:"elapsed,omitempty"`
}

// Report is the complete assessment output for one repository.
type Report struct {
	Summary         RunSummary       `json:"summary"`
	Fingerprint     string           `json:"fingerprint,omitempty"`
	Degraded        bool             `json:"degraded,omitempty"`
	DependencyGraph GraphExport      `json:"dependency_graph"`
	Resolution      ResolutionExport `json:"resolution"`

	FindingsResolved     *model.Findings           `json:"findings_resolved,omitempty"`
	WorkflowsResolved    []model.WorkflowRecord    `json:"workflows_resolved,omitempty"`
	CoordinatorsResolved []model.CoordinatorRecord `json:"coordinators_resolved,omitempty"`
	LineageResolved      []model.LineageRecord     `json:"lineage_resolved,omitempty"`

	Complexity ComplexityExport `json:"complexity"`

	Diagnostics      model.Diagnostics              `json:"diagnostics,omitempty"`
	DiagnosticCounts map[model.DiagnosticKind]int   `json:"diagnostic_counts,omitempty"`
}

// ExportGraph flattens the dependency graph into the output contract.
func ExportGraph(g *graph.Graph) GraphExport {
	out := GraphExport{}
	if g == nil {
		return out
	}
	for _, node := range g.Nodes() {
		exported := GraphNode{
			Type:       string(node.Type),
			ID:         node.ID,
			SourceFile: node.SourceFile,
		}
		if node.InCycle {
			exported.Flags = append(exported.Flags, "cycle")
		}
		if node.Partial {
			exported.Flags = append(exported.Flags, "partial")
		}
		out.Nodes = append(out.Nodes, exported)
	}
	for _, edge := range g.Edges() {
		out.Edges = append(out.Edges, GraphEdge{
			From: string(edge.From.Type) + ":" + edge.From.ID,
			To:   string(edge.To.Type) + ":" + edge.To.ID,
			Kind: string(edge.Kind),
		})
	}
	return out
}

// ExportResolution flattens the resolver result into the output contract,
// preserving tier partition and classification order.
func ExportResolution(result *resolver.Result) ResolutionExport {
	out := ResolutionExport{}
	if result == nil {
		return out
	}
	out.Resolved = exportEntries(result.Resolved)
	out.PartiallyResolved = exportEntries(result.PartiallyResolved)
	out.Unresolved = exportEntries(result.Unresolved)
	return out
}

func exportEntries(resolutions []resolver.Resolution) []ResolutionEntry {
	out := make([]ResolutionEntry, 0, len(resolutions))
	for _, res := range resolutions {
		entry := ResolutionEntry{
			RawToken:      res.RawToken,
			SourceFile:    res.SourceFile,
			Location:      res.Location,
			Tier:          string(res.Tier),
			ResolvedValue: res.ResolvedValue,
		}
		for _, scope := range res.Chain {
			entry.ResolutionChain = append(entry.ResolutionChain, string(scope))
		}
		out = append(out, entry)
	}
	return out
}

// Fingerprint computes a stable content hash of a report. Volatile run
// metadata (timestamp, elapsed, fingerprint itself) is zeroed first so two
// runs over identical inputs fingerprint identically.
func Fingerprint(report *Report) (string, error) {
	canonical := *report
	canonical.Fingerprint = ""
	canonical.Summary.GeneratedAt = time.Time{}
	canonical.Summary.Elapsed = ""

	data, err := json.Marshal(&canonical)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint report: %w", err)
	}
	sum, err := hash(data)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint report: %w", err)
	}
	return fmt.Sprintf("%016x", sum), nil
}

// hashKey is the fixed highwayhash key for report fingerprints; changing it
// invalidates every stored fingerprint.
var hashKey = []byte("migrascope.report.fingerprint.v1")

func hash(data []byte) (uint64, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = h.Write(data)
	return h.Sum64(), err
}

// Seal stamps the fingerprint onto the report.
func (r *Report) Seal() error {
	fingerprint, err := Fingerprint(r)
	if err != nil {
		return err
	}
	r.Fingerprint = fingerprint
	return nil
}
