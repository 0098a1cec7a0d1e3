package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datashift/migrascope/model"
)

const component = "graph"

var scriptSuffixes = []string{".sh", ".py", ".hql", ".sql", ".pig", ".scala", ".jar"}

var writeParamHints = []string{"target", "output", "dest", "write", "sink"}

// Build constructs the dependency graph from the file inventory and the
// parsed workflow, coordinator and bundle records. Malformed individual
// records degrade to partial-flagged nodes rather than failing the build;
// such issues are appended to diags. The returned graph is complete,
// cycle-annotated and immutable by convention.
func Build(files []model.FileRecord, workflows []model.WorkflowRecord,
	coordinators []model.CoordinatorRecord, bundles []model.BundleRecord,
	diags *model.Diagnostics) *Graph {

	g := New()

	for _, f := range files {
		node := g.Ensure(NodeFile, normalizePath(f.Path))
		node.SourceFile = normalizePath(f.Path)
	}

	for _, wf := range workflows {
		buildWorkflow(g, wf, diags)
	}
	for _, c := range coordinators {
		buildCoordinator(g, c, diags)
	}
	for _, b := range bundles {
		buildBundle(g, b, diags)
	}

	g.markCycles()
	return g
}

func buildWorkflow(g *Graph, wf model.WorkflowRecord, diags *model.Diagnostics) {
	id := wf.ID
	wfNode := g.Ensure(NodeWorkflow, id)
	wfNode.SourceFile = wf.SourceFile
	if id == "" {
		wfNode.Partial = true
		diags.Add(component, model.DiagPartialNode, wf.SourceFile, "workflow record without id")
	}

	for i, action := range wf.Actions {
		actionID := fmt.Sprintf("%s/%s", id, action.Name)
		partial := false
		if action.Name == "" {
			actionID = fmt.Sprintf("%s/action-%d", id, i)
			partial = true
		}
		if action.Type == "" {
			partial = true
		}
		actionNode := g.Ensure(NodeAction, actionID)
		actionNode.SourceFile = wf.SourceFile
		if partial {
			actionNode.Partial = true
			diags.Add(component, model.DiagPartialNode, actionID, "action missing name or type in workflow %q", id)
		}
		g.AddEdge(wfNode.Key(), actionNode.Key(), EdgeContains)
		linkActionParams(g, actionNode, action)
	}

	// Workflows referencing other workflows (sub-workflow actions) trigger
	// them; the targets may not be parsed records, so ensure nodes exist.
	for _, ref := range wf.References {
		if ref == "" || ref == id {
			continue
		}
		target := g.Ensure(NodeWorkflow, ref)
		g.AddEdge(wfNode.Key(), target.Key(), EdgeTriggers)
	}
}

// linkActionParams derives reads/writes/calls edges from action parameters:
// a parameter naming a table yields a table edge, a script path yields a
// calls edge, any other path-shaped value yields a file read edge.
func linkActionParams(g *Graph, actionNode *Node, action model.ActionRecord) {
	keys := make([]string, 0, len(action.Params))
	for k := range action.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(action.Params[key])
		if value == "" {
			continue
		}
		lowerKey := strings.ToLower(key)
		switch {
		case strings.Contains(lowerKey, "table"):
			table := g.Ensure(NodeTable, value)
			kind := EdgeReads
			if isWriteParam(lowerKey) {
				kind = EdgeWrites
			}
			g.AddEdge(actionNode.Key(), table.Key(), kind)
		case isScriptPath(value):
			script := g.Ensure(NodeScript, normalizePath(value))
			g.AddEdge(actionNode.Key(), script.Key(), EdgeCalls)
		case isPathLike(value):
			file := g.Ensure(NodeFile, normalizePath(value))
			kind := EdgeReads
			if isWriteParam(lowerKey) {
				kind = EdgeWrites
			}
			g.AddEdge(actionNode.Key(), file.Key(), kind)
		}
	}
}

func buildCoordinator(g *Graph, c model.CoordinatorRecord, diags *model.Diagnostics) {
	node := g.Ensure(NodeCoordinator, c.ID)
	node.SourceFile = c.SourceFile
	if c.ID == "" {
		node.Partial = true
		diags.Add(component, model.DiagPartialNode, c.SourceFile, "coordinator record without id")
	}
	for _, ref := range c.References {
		if ref == "" {
			continue
		}
		workflow := g.Lookup(NodeWorkflow, ref)
		if workflow == nil {
			workflow = g.Ensure(NodeWorkflow, ref)
			workflow.Partial = true
			diags.Add(component, model.DiagDanglingReference, ref, "coordinator %q triggers unknown workflow", c.ID)
		}
		g.AddEdge(node.Key(), workflow.Key(), EdgeTriggers)
	}
}

func buildBundle(g *Graph, b model.BundleRecord, diags *model.Diagnostics) {
	node := g.Ensure(NodeBundle, b.ID)
	node.SourceFile = b.SourceFile
	if b.ID == "" {
		node.Partial = true
		diags.Add(component, model.DiagPartialNode, b.SourceFile, "bundle record without id")
	}
	for _, ref := range b.References {
		if ref == "" {
			continue
		}
		coordinator := g.Lookup(NodeCoordinator, ref)
		if coordinator == nil {
			coordinator = g.Ensure(NodeCoordinator, ref)
			coordinator.Partial = true
			diags.Add(component, model.DiagDanglingReference, ref, "bundle %q lists unknown coordinator", b.ID)
		}
		g.AddEdge(node.Key(), coordinator.Key(), EdgeContains)
	}
}

func isWriteParam(lowerKey string) bool {
	for _, hint := range writeParamHints {
		if strings.Contains(lowerKey, hint) {
			return true
		}
	}
	return false
}

func isScriptPath(value string) bool {
	lower := strings.ToLower(value)
	for _, suffix := range scriptSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func isPathLike(value string) bool {
	return strings.HasPrefix(value, "/") ||
		strings.HasPrefix(value, "hdfs://") ||
		strings.HasPrefix(value, "s3://") ||
		strings.HasPrefix(value, "s3a://") ||
		strings.Contains(value, "/")
}

func normalizePath(path string) string {
	return strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
}
