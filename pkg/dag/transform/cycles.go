package transform

import (
	"strings"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// Complexity grades how tangled the cycles of a graph are.
type Complexity string

const (
	ComplexityNone     Complexity = "none"
	ComplexitySimple   Complexity = "simple"
	ComplexityComplex  Complexity = "complex"
	ComplexityCritical Complexity = "critical"
)

// Cycle is a closed walk through the graph. Nodes are rotated so the
// lexicographically smallest id comes first; Edges[i] runs from Nodes[i] to
// Nodes[i+1], and the last edge closes the walk. A self-loop has one node and
// one edge.
type Cycle struct {
	Nodes    []string     `json:"nodes"`
	Edges    []dag.EdgeID `json:"edges"`
	Impact   float64      `json:"impact"`
	Priority float64      `json:"priority"`
}

// Key returns the canonical identity of the cycle. Node ids cannot contain
// control characters, so NUL is a safe separator.
func (c Cycle) Key() string { return strings.Join(c.Nodes, "\x00") }

// Len returns the number of nodes on the cycle.
func (c Cycle) Len() int { return len(c.Nodes) }

// CycleReport is the output of [DetectCycles].
type CycleReport struct {
	Cycles     []Cycle    `json:"cycles"`
	HasCycles  bool       `json:"has_cycles"`
	Complexity Complexity `json:"complexity"`
}

// DetectCycles enumerates the cycles of g.
//
// # Algorithm
//
// A depth-first search runs from every unvisited node in input order,
// keeping the current path on an explicit stack. When an edge leads to a node
// already on the path, the path segment from that node to the top is a
// cycle. Cycles found twice under different rotations are reported once.
//
// The visited set is shared between roots, so a cycle reachable only through
// an already finished node is not enumerated. [BreakCycles] accounts for this
// by re-running detection on the residual graph.
//
// # Scoring
//
// Each cycle gets an impact (see [CycleImpact]) and a priority: the impact,
// plus 10/len for smaller cycles, plus 20 if the cycle touches a start node.
// Higher priority cycles are broken first.
//
// # Performance
//
// O(V + E) for the traversal plus O(C × L) to canonicalize C cycles of
// length L.
func DetectCycles(g *dag.Graph) *CycleReport {
	cl := newClassifier(g)

	visited := make(map[string]bool, g.NodeCount())
	onPath := make(map[string]int)
	seen := make(map[string]bool)
	var cycles []Cycle

	type frame struct {
		id   string
		next int
	}

	for _, root := range g.NodeIDs() {
		if visited[root] {
			continue
		}
		visited[root] = true
		onPath[root] = 0
		path := []string{root}
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Children(top.id)
			if top.next == len(children) {
				delete(onPath, top.id)
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++

			if pos, ok := onPath[child]; ok {
				c := newCycle(g, cl, path[pos:])
				if key := c.Key(); !seen[key] {
					seen[key] = true
					cycles = append(cycles, c)
				}
				continue
			}
			if !visited[child] {
				visited[child] = true
				onPath[child] = len(path)
				path = append(path, child)
				stack = append(stack, frame{id: child})
			}
		}
	}

	return &CycleReport{
		Cycles:     cycles,
		HasCycles:  len(cycles) > 0,
		Complexity: classifyComplexity(cycles),
	}
}

func newCycle(g *dag.Graph, cl classifier, walk []string) Cycle {
	nodes := rotateToMin(walk)
	edges := make([]dag.EdgeID, len(nodes))
	for i, from := range nodes {
		edges[i] = dag.EdgeID{From: from, To: nodes[(i+1)%len(nodes)]}
	}
	c := Cycle{Nodes: nodes, Edges: edges}
	c.Impact = cl.impact(g, c)

	c.Priority = c.Impact + 10/float64(len(nodes))
	for _, id := range nodes {
		if cl.start[id] {
			c.Priority += 20
			break
		}
	}
	return c
}

// rotateToMin returns a copy of walk starting at its smallest id.
func rotateToMin(walk []string) []string {
	minIdx := 0
	for i, id := range walk {
		if id < walk[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, 0, len(walk))
	out = append(out, walk[minIdx:]...)
	return append(out, walk[:minIdx]...)
}

// CycleImpact scores how disruptive a cycle is: its node count times the
// mean node criticality, plus a tenth of its summed edge weights. Start and
// end nodes weigh 3, action nodes 2, anything else 1.
func CycleImpact(g *dag.Graph, c Cycle) float64 {
	return newClassifier(g).impact(g, c)
}

func (cl classifier) impact(g *dag.Graph, c Cycle) float64 {
	if len(c.Nodes) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range c.Nodes {
		total += cl.criticality(g, id)
	}
	mean := total / float64(len(c.Nodes))

	weights := 0
	for _, id := range c.Edges {
		if e, ok := g.Edge(id); ok {
			weights += e.Weight
		}
	}
	return float64(len(c.Nodes))*mean + 0.1*float64(weights)
}

func classifyComplexity(cycles []Cycle) Complexity {
	switch {
	case len(cycles) == 0:
		return ComplexityNone
	case len(cycles) == 1 && cycles[0].Len() <= 3:
		return ComplexitySimple
	case len(cycles) <= 3:
		for _, c := range cycles {
			if c.Len() > 5 {
				return ComplexityCritical
			}
		}
		return ComplexityComplex
	default:
		return ComplexityCritical
	}
}

// classifier caches start/end membership for a graph.
type classifier struct {
	start map[string]bool
	end   map[string]bool
}

func newClassifier(g *dag.Graph) classifier {
	cl := classifier{start: make(map[string]bool), end: make(map[string]bool)}
	for _, id := range g.Starts() {
		cl.start[id] = true
	}
	for _, id := range g.Ends() {
		cl.end[id] = true
	}
	return cl
}

func (cl classifier) criticality(g *dag.Graph, id string) float64 {
	if cl.start[id] || cl.end[id] {
		return 3
	}
	if n, ok := g.Node(id); ok && n.Type == workflow.TypeAction {
		return 2
	}
	return 1
}

// BackEdges returns the edges that close a cycle during a depth-first search
// started from the start nodes and then from every remaining node in input
// order. Removing them always leaves a DAG, but they are chosen by traversal
// order alone, not by meaning.
func BackEdges(g *dag.Graph) *dag.EdgeSet {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, g.NodeCount())
	back := dag.NewEdgeSet()
	type frame struct {
		id   string
		next int
	}

	visit := func(root string) {
		color[root] = gray
		stack := []frame{{id: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Children(top.id)
			if top.next == len(children) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch color[child] {
			case white:
				color[child] = gray
				stack = append(stack, frame{id: child})
			case gray:
				back.Add(dag.EdgeID{From: top.id, To: child})
			}
		}
	}

	for _, id := range g.Starts() {
		if color[id] == white {
			visit(id)
		}
	}
	for _, id := range g.NodeIDs() {
		if color[id] == white {
			visit(id)
		}
	}
	return back
}
