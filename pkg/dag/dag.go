package dag

import (
	"cmp"
	"errors"
	"slices"

	"github.com/matzehuels/flowlayout/pkg/workflow"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist. [Build] checks targets before adding edges and records
	// a missing target as an [Issue] instead.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Node is a vertex of the dependency graph. It carries the parts of a
// [workflow.Node] the layout stages need.
type Node struct {
	ID        string
	Type      workflow.NodeType
	Annotated bool // taller box when rendered
}

// EdgeID identifies a directed edge by its endpoints. Node ids may contain
// any printable character, so edges are never keyed by a joined string.
type EdgeID struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the edge for logs and messages.
func (id EdgeID) String() string { return id.From + " -> " + id.To }

// Compare orders edge ids by source, then target.
func (id EdgeID) Compare(other EdgeID) int {
	if c := cmp.Compare(id.From, other.From); c != 0 {
		return c
	}
	return cmp.Compare(id.To, other.To)
}

// Edge is a transition that survived graph construction.
type Edge struct {
	From        string
	To          string
	Condition   string
	Description string
	// Weight is the transition's ordinal within its source node plus one.
	// Later transitions weigh more and are costlier to break.
	Weight int
}

// ID returns the edge's typed identity.
func (e Edge) ID() EdgeID { return EdgeID{From: e.From, To: e.To} }

// Metadata summarizes a graph.
type Metadata struct {
	NodeCount int  `json:"node_count"`
	EdgeCount int  `json:"edge_count"`
	HasCycles bool `json:"has_cycles"`
	MaxDepth  int  `json:"max_depth"`
}

// Graph is the dependency graph of a workflow. Nodes keep their input order,
// which every traversal in this module follows so results are deterministic.
//
// Parallel transitions between the same pair of nodes appear once in the
// adjacency lists and once per transition in [Graph.Edges]. They share an
// [EdgeID], so feedback sets treat them as one edge.
//
// A Graph is built once per layout run and then only read. The zero value is
// not usable; use [New]. Graph is not safe for concurrent mutation.
type Graph struct {
	nodes    []Node
	index    map[string]int
	edges    []Edge
	byID     map[EdgeID]int
	outgoing map[string][]string
	incoming map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index:    make(map[string]int),
		byID:     make(map[EdgeID]int),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode appends a node. Returns ErrInvalidNodeID if the ID is empty or
// ErrDuplicateNodeID if it is already present.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.index[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Returns
// ErrUnknownSourceNode or ErrUnknownTargetNode if an endpoint is missing.
// Self-loops are allowed.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.index[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.index[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	id := e.ID()
	if _, dup := g.byID[id]; !dup {
		g.byID[id] = len(g.edges)
		g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
		g.incoming[e.To] = append(g.incoming[e.To], e.From)
	}
	g.edges = append(g.edges, e)
	return nil
}

// Without returns a new graph with the same nodes and every edge whose ID is
// in the set removed. The receiver is not modified.
func (g *Graph) Without(set *EdgeSet) *Graph {
	out := New()
	for _, n := range g.nodes {
		_ = out.AddNode(n)
	}
	for _, e := range g.edges {
		if set.Has(e.ID()) {
			continue
		}
		_ = out.AddEdge(e)
	}
	return out
}

// Nodes returns a copy of all nodes in input order.
func (g *Graph) Nodes() []Node { return slices.Clone(g.nodes) }

// NodeIDs returns all node ids in input order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Node returns the node with the given ID and true, or the zero Node and
// false if not found.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Index returns the input position of a node, or -1.
func (g *Graph) Index(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Edge returns the first edge with the given ID.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	i, ok := g.byID[id]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// HasEdge reports whether an edge with the given ID exists.
func (g *Graph) HasEdge(id EdgeID) bool {
	_, ok := g.byID[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, counting parallel transitions.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the distinct successors of a node in edge order. The
// returned slice must not be modified.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the distinct predecessors of a node in edge order. The
// returned slice must not be modified.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// OutDegree returns the number of distinct successors.
func (g *Graph) OutDegree(id string) int { return len(g.outgoing[id]) }

// InDegree returns the number of distinct predecessors.
func (g *Graph) InDegree(id string) int { return len(g.incoming[id]) }

// Starts returns the entry nodes in input order: every node typed start,
// or, when no node is typed start, every node without incoming edges.
func (g *Graph) Starts() []string {
	if typed := g.ofType(workflow.TypeStart); len(typed) > 0 {
		return typed
	}
	var out []string
	for _, n := range g.nodes {
		if len(g.incoming[n.ID]) == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}

// Ends returns the exit nodes in input order: every node typed end, or,
// when no node is typed end, every node without outgoing edges.
func (g *Graph) Ends() []string {
	if typed := g.ofType(workflow.TypeEnd); len(typed) > 0 {
		return typed
	}
	var out []string
	for _, n := range g.nodes {
		if len(g.outgoing[n.ID]) == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}

// Orphans returns nodes with neither incoming nor outgoing edges.
func (g *Graph) Orphans() []string {
	var out []string
	for _, n := range g.nodes {
		if len(g.incoming[n.ID]) == 0 && len(g.outgoing[n.ID]) == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}

func (g *Graph) ofType(t workflow.NodeType) []string {
	var out []string
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n.ID)
		}
	}
	return out
}

// HasCycle reports whether the graph contains a directed cycle, including
// self-loops. It runs an iterative white/gray/black depth-first search, so
// deep graphs cannot exhaust the call stack.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	type frame struct {
		id   string
		next int
	}

	for _, root := range g.nodes {
		if color[root.ID] != white {
			continue
		}
		color[root.ID] = gray
		stack := []frame{{id: root.ID}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.outgoing[top.id]
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
				return true
			}
		}
	}
	return false
}

// Reachable returns the set of nodes reachable from the given roots,
// including the roots themselves.
func (g *Graph) Reachable(roots []string) map[string]bool {
	seen := make(map[string]bool, len(g.nodes))
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		if _, ok := g.index[r]; ok && !seen[r] {
			seen[r] = true
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range g.outgoing[curr] {
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	return seen
}

// PosMap creates a position lookup map from a slice of node IDs.
// The returned map maps each ID to its index in the slice.
func PosMap(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}
