package mscan

import (
	"sort"
	"sync"
)

// Graph records the static shape of a session's dataflow: which cells exist,
// which stage reads which cell and which cell each stage owns. Live reader
// registrations are tracked by the cells themselves.
type Graph struct {
	mu sync.RWMutex

	cells []AnyCell
	// downstream maps a node name to the names of nodes fed by it
	// (cell -> reading stage, stage -> owned output cell).
	downstream map[string][]string
	upstream   map[string][]string
}

// NewGraph creates an empty stage graph
func NewGraph() *Graph {
	return &Graph{
		downstream: make(map[string][]string),
		upstream:   make(map[string][]string),
	}
}

func (g *Graph) addCell(c AnyCell) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = append(g.cells, c)
}

// AddStage records that stage reads input and owns output.
func (g *Graph) AddStage(stage string, input, output AnyCell) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if input != nil {
		g.addEdge(input.Name(), stage)
	}
	if output != nil {
		g.addEdge(stage, output.Name())
	}
}

func (g *Graph) addEdge(from, to string) {
	g.downstream[from] = appendUnique(g.downstream[from], to)
	g.upstream[to] = appendUnique(g.upstream[to], from)
}

// Cells returns every cell created in the scope, in creation order.
func (g *Graph) Cells() []AnyCell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AnyCell, len(g.cells))
	copy(out, g.cells)
	return out
}

// FindDependents performs iterative traversal to find every node fed,
// directly or transitively, by start.
func (g *Graph) FindDependents(start string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stack := make([]string, 0, 32)
	stack = append(stack, start)

	dependents := make([]string, 0, 32)
	visited := make(map[string]bool, 32)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != start {
			dependents = append(dependents, current)
		}

		for _, dep := range g.downstream[current] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}

	return dependents
}

// GetDirectDependents returns only direct dependents (no recursion)
func (g *Graph) GetDirectDependents(node string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.downstream[node]
	result := make([]string, len(deps))
	copy(result, deps)
	return result
}

// Roots returns nodes without upstream edges, sorted by name.
func (g *Graph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for node := range g.downstream {
		if len(g.upstream[node]) == 0 {
			roots = append(roots, node)
		}
	}
	sort.Strings(roots)
	return roots
}

// ExportDependencyGraph returns the live reader registrations: each cell
// name mapped to the names of the subscribers that will be invalidated by
// its next change.
func (s *Scope) ExportDependencyGraph() map[string][]string {
	out := make(map[string][]string)
	for _, c := range s.graph.Cells() {
		subs := c.Subscribers()
		names := make([]string, 0, len(subs))
		for _, sub := range subs {
			names = append(names, nameOf(sub))
		}
		out[c.Name()] = names
	}
	return out
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
