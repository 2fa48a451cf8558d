package graph

import "sort"

// topoSort runs Kahn's algorithm over the precedence relation implied by the
// edges: an edge i → j (i depends on j) means j must appear before i. Ties
// among ready nodes are broken by proposal order so the sequence is
// deterministic. Returns the order as node indexes plus ok=false when a cycle
// prevents a complete order.
func topoSort(n int, dependsOn [][]int, dependedBy [][]int) ([]int, bool) {
	if n == 0 {
		return nil, true
	}

	// In-degree in the precedence orientation = number of dependencies.
	inDegree := make([]int, n)
	for i := 0; i < n; i++ {
		inDegree[i] = len(dependsOn[i])
	}

	var ready []int
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	var sorted []int
	for len(ready) > 0 {
		// Smallest proposal index first for determinism.
		sort.Ints(ready)
		node := ready[0]
		ready = ready[1:]
		sorted = append(sorted, node)

		for _, dependent := range dependedBy[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	return sorted, len(sorted) == n
}

// findCyclePath finds one dependency cycle via tricolor DFS over the
// depends-on adjacency and returns it in forward order.
func findCyclePath(n int, dependsOn [][]int) []int {
	const (
		white = 0 // unvisited
		gray  = 1 // in current path
		black = 2 // finished
	)

	color := make([]int, n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = -1
	}

	var cyclePath []int

	var dfs func(node int) bool
	dfs = func(node int) bool {
		color[node] = gray
		for _, dep := range dependsOn[node] {
			if color[dep] == gray {
				// Found cycle: reconstruct path
				cyclePath = []int{dep}
				current := node
				for current != dep {
					cyclePath = append(cyclePath, current)
					current = parent[current]
				}
				cyclePath = append(cyclePath, dep)
				// Reverse to get forward order
				for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
					cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
				}
				return true
			}
			if color[dep] == white {
				parent[dep] = node
				if dfs(dep) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if dfs(i) {
				return cyclePath
			}
		}
	}

	return nil
}
