package sched_go

import (
	"fmt"
	"sort"
	"strings"
)

// graphNode wraps one tracked value. deps keeps insertion order so that path
// searches and sorts are reproducible; depSet answers membership.
type graphNode[T comparable] struct {
	value  T
	index  int
	deps   []*graphNode[T]
	depSet map[*graphNode[T]]struct{}
}

func (n *graphNode[T]) dependsOn(other *graphNode[T]) bool {
	_, ok := n.depSet[other]
	return ok
}

// Graph is a directed acyclic graph over opaque comparable values. An edge
// node -> dependency means node must execute after dependency.
//
// Every mutation keeps the graph acyclic: SetDependency either records the
// edge or fails without touching the graph.
//
// Dependents are found by scanning every node instead of keeping reverse
// adjacency, so the sorts cost O(V·E). Work-unit counts are in the tens, which
// keeps this well below a frame budget.
type Graph[T comparable] struct {
	nodes map[T]*graphNode[T]
	order []*graphNode[T]
	label func(T) string
}

// GraphOption configures a Graph at construction time.
type GraphOption[T comparable] func(*Graph[T])

// WithLabeler sets the function used to name values in cycle traces and
// error messages. The default is fmt.Sprint.
func WithLabeler[T comparable](fn func(T) string) GraphOption[T] {
	return func(g *Graph[T]) {
		if fn != nil {
			g.label = fn
		}
	}
}

// NewGraph returns an empty Graph.
func NewGraph[T comparable](opts ...GraphOption[T]) *Graph[T] {
	g := &Graph[T]{
		nodes: make(map[T]*graphNode[T]),
		label: func(v T) string { return fmt.Sprint(v) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Len returns the number of tracked nodes.
func (g *Graph[T]) Len() int {
	return len(g.order)
}

// Contains reports whether v is tracked.
func (g *Graph[T]) Contains(v T) bool {
	_, ok := g.nodes[v]
	return ok
}

// Nodes returns the tracked values in insertion order.
func (g *Graph[T]) Nodes() []T {
	out := make([]T, len(g.order))
	for i, n := range g.order {
		out[i] = n.value
	}
	return out
}

// DependsOn returns the direct dependencies of v, or nil if v is not tracked.
func (g *Graph[T]) DependsOn(v T) []T {
	n, ok := g.nodes[v]
	if !ok {
		return nil
	}
	out := make([]T, len(n.deps))
	for i, d := range n.deps {
		out[i] = d.value
	}
	return out
}

// InsertNode starts tracking v.
func (g *Graph[T]) InsertNode(v T) error {
	if _, exists := g.nodes[v]; exists {
		return fmt.Errorf("%s: %w", g.label(v), ErrNodeAlreadyExists)
	}
	n := &graphNode[T]{
		value:  v,
		index:  len(g.order),
		depSet: make(map[*graphNode[T]]struct{}),
	}
	g.nodes[v] = n
	g.order = append(g.order, n)
	return nil
}

func (g *Graph[T]) require(v T) (*graphNode[T], error) {
	n, ok := g.nodes[v]
	if !ok {
		return nil, fmt.Errorf("%s: %w", g.label(v), ErrNodeNotFound)
	}
	return n, nil
}

// SetDependency records that node depends on dependency.
//
// Before the edge is added, a depth-first search runs from dependency along
// existing edges. If node is reachable the edge would close a cycle and a
// *CycleError describing it is returned instead.
func (g *Graph[T]) SetDependency(node, dependency T) error {
	n, err := g.require(node)
	if err != nil {
		return err
	}
	d, err := g.require(dependency)
	if err != nil {
		return err
	}
	if n == d {
		return fmt.Errorf("%s: %w", g.label(node), ErrSelfDependency)
	}
	if n.dependsOn(d) {
		return nil
	}

	if path := findPath(d, n); path != nil {
		cycle := make([]T, 0, len(path)+1)
		cycle = append(cycle, node)
		for _, p := range path {
			cycle = append(cycle, p.value)
		}
		return g.cycleError(cycle)
	}

	n.deps = append(n.deps, d)
	n.depSet[d] = struct{}{}
	return nil
}

// reaches reports whether node depends on dependency, directly or through a
// chain of edges.
func (g *Graph[T]) reaches(node, dependency T) bool {
	n, ok := g.nodes[node]
	if !ok {
		return false
	}
	d, ok := g.nodes[dependency]
	if !ok {
		return false
	}
	return findPath(n, d) != nil
}

// findPath returns the dependency chain start -> ... -> target, or nil.
func findPath[T comparable](start, target *graphNode[T]) []*graphNode[T] {
	type frame struct {
		node *graphNode[T]
		path []*graphNode[T]
	}
	stack := []frame{{node: start, path: []*graphNode[T]{start}}}
	visited := make(map[*graphNode[T]]struct{})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node == target {
			return top.path
		}
		if _, seen := visited[top.node]; seen {
			continue
		}
		visited[top.node] = struct{}{}

		// push in reverse so the first declared dependency is explored first
		for i := len(top.node.deps) - 1; i >= 0; i-- {
			dep := top.node.deps[i]
			path := make([]*graphNode[T], len(top.path), len(top.path)+1)
			copy(path, top.path)
			stack = append(stack, frame{node: dep, path: append(path, dep)})
		}
	}
	return nil
}

// cycleError renders the cycle as an arrow-joined line with carets under the
// node that closes it:
//
//	render -> physics -> render
//	^^^^^^               ^^^^^^
func (g *Graph[T]) cycleError(cycle []T) *CycleError {
	const arrow = " -> "

	names := make([]string, len(cycle))
	for i, v := range cycle {
		names[i] = g.label(v)
	}

	var underline strings.Builder
	for i, name := range names {
		mark := " "
		if i == 0 || i == len(names)-1 {
			mark = "^"
		}
		underline.WriteString(strings.Repeat(mark, len(name)))
		if i != len(names)-1 {
			underline.WriteString(strings.Repeat(" ", len(arrow)))
		}
	}

	return &CycleError{
		Path:  names,
		Trace: strings.Join(names, arrow) + "\n" + underline.String(),
	}
}

// inDegrees counts the unresolved prerequisites of every node.
func (g *Graph[T]) inDegrees() map[*graphNode[T]]int {
	inDegree := make(map[*graphNode[T]]int, len(g.order))
	for _, n := range g.order {
		inDegree[n] = len(n.deps)
	}
	return inDegree
}

// TopologicalSort orders all values so that every value comes after its
// dependencies (Kahn's algorithm).
func (g *Graph[T]) TopologicalSort() ([]T, error) {
	inDegree := g.inDegrees()

	queue := make([]*graphNode[T], 0, len(g.order))
	for _, n := range g.order {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	result := make([]T, 0, len(g.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current.value)

		for _, dependent := range g.order {
			if dependent.dependsOn(current) {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					queue = append(queue, dependent)
				}
			}
		}
	}

	if len(result) != len(g.order) {
		return nil, fmt.Errorf("topological sort: sorted %d of %d nodes: %w", len(result), len(g.order), ErrCyclicalDependency)
	}
	return result, nil
}

// ParallelSort groups values into layers. Every value in a layer has all of
// its dependencies in earlier layers, so the members of one layer can run
// concurrently. Order inside a layer follows insertion order but carries no
// meaning.
func (g *Graph[T]) ParallelSort() ([][]T, error) {
	inDegree := g.inDegrees()

	var ready []*graphNode[T]
	for _, n := range g.order {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var layers [][]T
	total := 0
	for len(ready) > 0 {
		layer := make([]T, 0, len(ready))
		var next []*graphNode[T]

		for _, n := range ready {
			layer = append(layer, n.value)
			for _, dependent := range g.order {
				if dependent.dependsOn(n) {
					inDegree[dependent]--
					if inDegree[dependent] == 0 {
						next = append(next, dependent)
					}
				}
			}
		}

		sort.Slice(next, func(i, j int) bool { return next[i].index < next[j].index })
		layers = append(layers, layer)
		total += len(layer)
		ready = next
	}

	if total != len(g.order) {
		return nil, fmt.Errorf("parallel sort: layered %d of %d nodes: %w", total, len(g.order), ErrCyclicalDependency)
	}
	return layers, nil
}
