package plan

import "github.com/quarrydata/quarry/internal/schema"

// Cycle detection over the column and table dependency graphs.
//
// Both graphs are expected to be DAGs; any strongly connected component of
// size > 1 (or a self-loop) is a fatal configuration error. Tarjan's
// algorithm finds the component, then a short walk inside it reconstructs
// a readable cycle path for the error message.

// findColumnCycle returns a cycle path among a table's columns, or nil.
// Edges run from a column to the columns it references.
func findColumnCycle(cols []*Column) []string {
	graph := make(map[string][]string, len(cols))
	for _, col := range cols {
		graph[col.Schema.Name] = append([]string(nil), col.Refs.Columns...)
	}
	return findCycle(graph)
}

// findTableCycle returns a cycle path among tables, or nil.
// Edges run from a child table to its parents.
func findTableCycle(m *schema.Model, tables map[string]*TablePlan) []string {
	graph := make(map[string][]string, len(m.Tables))
	for _, t := range m.Tables {
		graph[t.Name] = append([]string(nil), tables[t.Name].Parents...)
	}
	return findCycle(graph)
}

// findCycle locates one strongly connected component with a cycle and
// returns its path (first node repeated at the end). Returns nil for DAGs.
func findCycle(graph map[string][]string) []string {
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			return reconstructCyclePath(scc, graph)
		}
	}
	return nil
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// reconstructCyclePath walks edges inside the SCC until it returns to the
// start node, producing e.g. ["orders", "customers", "orders"].
func reconstructCyclePath(scc []string, graph map[string][]string) []string {
	if len(scc) == 0 {
		return nil
	}
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
