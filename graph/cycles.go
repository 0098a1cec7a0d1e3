package graph

// markCycles annotates every node that participates in a dependency cycle.
// It runs Tarjan's strongly-connected-components pass over the arena; a node
// is in a cycle when its component has more than one member, or when it
// carries a self-loop. The pass is standalone: storage never rejects cycles.
func (g *Graph) markCycles() {
	n := len(g.nodes)
	indexes := make([]int, n)
	lowLinks := make([]int, n)
	onStack := make([]bool, n)
	for i := range indexes {
		indexes[i] = -1
	}

	var stack []int
	counter := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indexes[v] = counter
		lowLinks[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, edgeIdx := range g.out[g.nodes[v].Key()] {
			w, ok := g.index[g.edges[edgeIdx].To]
			if !ok {
				continue
			}
			if indexes[w] == -1 {
				strongConnect(w)
				if lowLinks[w] < lowLinks[v] {
					lowLinks[v] = lowLinks[w]
				}
			} else if onStack[w] && indexes[w] < lowLinks[v] {
				lowLinks[v] = indexes[w]
			}
		}

		if lowLinks[v] == indexes[v] {
			var component []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) > 1 {
				for _, w := range component {
					g.nodes[w].InCycle = true
				}
			}
		}
	}

	for v := 0; v < n; v++ {
		if indexes[v] == -1 {
			strongConnect(v)
		}
	}

	// A single-node component with a self-loop is still a cycle.
	for _, edge := range g.edges {
		if edge.From == edge.To {
			if idx, ok := g.index[edge.From]; ok {
				g.nodes[idx].InCycle = true
			}
		}
	}
}
