// Package graph builds and queries the typed dependency graph of a legacy
// Hadoop/Oozie repository: files, workflows, coordinators, bundles, actions,
// tables and scripts, connected by contains/triggers/reads/writes/calls
// edges. The graph tolerates cycles; cycles are annotated, not rejected.
package graph

import "sort"

// NodeType identifies the kind of repository entity a node represents.
type NodeType string

const (
	NodeFile        NodeType = "file"
	NodeWorkflow    NodeType = "workflow"
	NodeCoordinator NodeType = "coordinator"
	NodeBundle      NodeType = "bundle"
	NodeAction      NodeType = "action"
	NodeTable       NodeType = "table"
	NodeScript      NodeType = "script"
)

// EdgeKind identifies the relation an edge represents.
type EdgeKind string

const (
	EdgeContains EdgeKind = "contains"
	EdgeTriggers EdgeKind = "triggers"
	EdgeReads    EdgeKind = "reads"
	EdgeWrites   EdgeKind = "writes"
	EdgeCalls    EdgeKind = "calls"
)

// Key is the identity of a node. No two nodes share a Key.
type Key struct {
	Type NodeType `json:"type"`
	ID   string   `json:"id"`
}

// Node is one repository entity. InCycle is set by the cycle pass when the
// node participates in a dependency cycle; Partial marks a node built from a
// malformed record.
type Node struct {
	Type       NodeType `json:"type"`
	ID         string   `json:"id"`
	SourceFile string   `json:"sourceFile,omitempty"`
	InCycle    bool     `json:"inCycle,omitempty"`
	Partial    bool     `json:"partial,omitempty"`
}

// Key returns the node identity.
func (n *Node) Key() Key {
	return Key{Type: n.Type, ID: n.ID}
}

// Edge is a typed relation between two existing nodes.
type Edge struct {
	From Key      `json:"from"`
	To   Key      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph stores nodes in an arena slice addressed through a key index, so
// cyclic structures are represented without nested owning references. Node
// and edge order is insertion order, keeping serialized output stable for a
// fixed input.
type Graph struct {
	nodes []*Node
	index map[Key]int
	edges []Edge
	out   map[Key][]int
	in    map[Key][]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[Key]int),
		out:   make(map[Key][]int),
		in:    make(map[Key][]int),
	}
}

// Ensure returns the node with the given identity, creating it on first
// mention. Repeated mentions dedupe to the same node.
func (g *Graph) Ensure(nodeType NodeType, id string) *Node {
	key := Key{Type: nodeType, ID: id}
	if idx, ok := g.index[key]; ok {
		return g.nodes[idx]
	}
	node := &Node{Type: nodeType, ID: id}
	g.index[key] = len(g.nodes)
	g.nodes = append(g.nodes, node)
	return node
}

// Lookup returns the node with the given identity, or nil.
func (g *Graph) Lookup(nodeType NodeType, id string) *Node {
	if idx, ok := g.index[Key{Type: nodeType, ID: id}]; ok {
		return g.nodes[idx]
	}
	return nil
}

// AddEdge records an edge between two existing nodes. Both endpoints must
// have been created with Ensure beforehand; the builder guarantees this.
func (g *Graph) AddEdge(from, to Key, kind EdgeKind) {
	g.edges = append(g.edges, Edge{From: from, To: to, Kind: kind})
	idx := len(g.edges) - 1
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// ByType returns the nodes of the given type in insertion order.
func (g *Graph) ByType(nodeType NodeType) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out
}

// OutEdges returns the edges leaving the given node in insertion order.
func (g *Graph) OutEdges(key Key) []Edge {
	return g.edgesAt(g.out[key])
}

// InEdges returns the edges entering the given node in insertion order.
func (g *Graph) InEdges(key Key) []Edge {
	return g.edgesAt(g.in[key])
}

func (g *Graph) edgesAt(indexes []int) []Edge {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]Edge, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, g.edges[idx])
	}
	return out
}

// Degree returns the number of edges of the given kinds entering (in=true)
// or leaving the node. With no kinds, all edges count.
func (g *Graph) Degree(key Key, incoming bool, kinds ...EdgeKind) int {
	edges := g.OutEdges(key)
	if incoming {
		edges = g.InEdges(key)
	}
	if len(kinds) == 0 {
		return len(edges)
	}
	count := 0
	for _, e := range edges {
		for _, k := range kinds {
			if e.Kind == k {
				count++
				break
			}
		}
	}
	return count
}

// Reachable returns the set of keys reachable from the start key over
// outgoing edges, excluding the start itself unless it sits on a cycle.
func (g *Graph) Reachable(start Key) map[Key]bool {
	seen := make(map[Key]bool)
	stack := []Key{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, idx := range g.out[current] {
			next := g.edges[idx].To
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return seen
}

// Reaches reports whether target is reachable from start over outgoing edges.
func (g *Graph) Reaches(start, target Key) bool {
	return g.Reachable(start)[target]
}

// LongestChain returns the length of the longest acyclic path from start
// following only edges of the given kinds. Nodes on cycles contribute at most
// one step; the walk never revisits a node.
func (g *Graph) LongestChain(start Key, kinds ...EdgeKind) int {
	visited := map[Key]bool{start: true}
	var walk func(key Key) int
	walk = func(key Key) int {
		best := 0
		for _, idx := range g.out[key] {
			edge := g.edges[idx]
			matched := len(kinds) == 0
			for _, k := range kinds {
				if edge.Kind == k {
					matched = true
					break
				}
			}
			if !matched || visited[edge.To] {
				continue
			}
			visited[edge.To] = true
			if depth := 1 + walk(edge.To); depth > best {
				best = depth
			}
			delete(visited, edge.To)
		}
		return best
	}
	return walk(start)
}

// SortedKeys returns all node keys ordered by type then id, for callers that
// need a lexical rather than insertion ordering.
func (g *Graph) SortedKeys() []Key {
	keys := make([]Key, 0, len(g.nodes))
	for _, n := range g.nodes {
		keys = append(keys, n.Key())
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}
