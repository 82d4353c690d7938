package dag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Graph holds nodes identified by string IDs and the edges between them.
// It is safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	order []string // IDs in insertion order
}

type node struct {
	id         string
	seq        int              // index in Graph.order
	deps       map[string]*node // predecessors
	dependents map[string]*node // successors
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		seq:        len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.order = append(g.order, id)
}

// Has reports whether the graph contains a node.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Dependencies returns the IDs of the nodes the given node depends on, in
// insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Dependents returns the IDs of the nodes that depend on the given node, in
// insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.dependents), nil
}

func sortedIDs(set map[string]*node) []string {
	nodes := make([]*node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].seq < nodes[j].seq })
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
	}
	return ids
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Use classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil // Already visited and known to be safe.
		}
		if temporary[n.id] {
			// We've hit a node that's already in our recursion stack, so we have a cycle.
			return fmt.Errorf("cycle detected involving node '%s'", n.id)
		}

		temporary[n.id] = true

		for _, id := range sortedIDs(n.dependents) {
			if err := visit(g.nodes[id]); err != nil {
				return err // Propagate the error up.
			}
		}

		// All dependents have been visited, so we can move this node from temporary to permanent.
		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	// Visit every node in insertion order so the reported node is stable.
	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}

	return nil
}

// TopologicalOrder returns every node with dependencies before dependents.
// Among nodes that become ready together, insertion order wins.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	return g.kahn(g.order), nil
}

// Closure returns the given nodes and everything they transitively depend on,
// in topological order.
func (g *Graph) Closure(ids ...string) ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	included := make(map[string]bool)
	var stack []string
	for _, id := range ids {
		if _, ok := g.nodes[id]; !ok {
			g.mutex.RUnlock()
			return nil, fmt.Errorf("node not found: %s", id)
		}
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if included[id] {
			continue
		}
		included[id] = true
		for dep := range g.nodes[id].deps {
			stack = append(stack, dep)
		}
	}
	var subset []string
	for _, id := range g.order {
		if included[id] {
			subset = append(subset, id)
		}
	}
	g.mutex.RUnlock()

	return g.kahn(subset), nil
}

// kahn runs Kahn's algorithm over the subgraph induced by ids. The caller
// has already checked for cycles.
func (g *Graph) kahn(ids []string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	pending := make(map[string]int, len(ids))
	var ready []*node
	for _, id := range ids {
		n := g.nodes[id]
		count := 0
		for dep := range n.deps {
			if in[dep] {
				count++
			}
		}
		pending[id] = count
		if count == 0 {
			ready = append(ready, n)
		}
	}

	out := make([]string, 0, len(ids))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].seq < ready[j].seq })
		n := ready[0]
		ready = ready[1:]
		out = append(out, n.id)
		for id, dependent := range n.dependents {
			if !in[id] {
				continue
			}
			pending[id]--
			if pending[id] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return out
}

// String renders the edges of the graph, one "from -> to" per line.
func (g *Graph) String() string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var b strings.Builder
	for _, id := range g.order {
		for _, dep := range sortedIDs(g.nodes[id].dependents) {
			fmt.Fprintf(&b, "%s -> %s\n", id, dep)
		}
	}
	return b.String()
}
