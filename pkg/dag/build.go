package dag

import (
	"fmt"

	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// Severity grades an issue or a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueKind names a structural problem in otherwise well-formed input.
type IssueKind string

const (
	IssueMissingTarget IssueKind = "missing_target"
	IssueUnreachable   IssueKind = "unreachable"
	IssueOrphan        IssueKind = "orphan"
)

// Issue is a non-fatal problem found while building the graph. The run
// continues; the offending transition or node is simply excluded from, or
// flagged in, later stages.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Node     string    `json:"node"`
	Target   string    `json:"target,omitempty"`
	Message  string    `json:"message"`
}

// BuildResult is the output of [Build].
type BuildResult struct {
	Graph *Graph
	// LongestPaths holds each node's longest-path length computed on the
	// graph as built, cycles included. On cyclic input the values are
	// approximate and only feed Metadata.MaxDepth; layering recomputes them
	// on the feedback-free graph.
	LongestPaths map[string]int
	Issues       []Issue
	Metadata     Metadata
}

// Build constructs the dependency graph for nodes in a single pass.
//
// Transitions whose target is not among nodes are skipped and reported as
// [IssueMissingTarget]. After construction every node that is not reachable
// from a start node is reported as [IssueUnreachable], unless it has no edges
// at all, in which case it is reported as [IssueOrphan].
//
// Build only fails on malformed ids, which the caller is expected to have
// rejected already with [workflow.Validate].
func Build(nodes []workflow.Node) (*BuildResult, error) {
	g := New()
	for _, n := range nodes {
		if err := g.AddNode(Node{ID: n.ID, Type: n.Type, Annotated: n.Annotated()}); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}

	var issues []Issue
	for _, n := range nodes {
		for i, t := range n.Transitions {
			if _, ok := g.index[t.Target]; !ok {
				issues = append(issues, Issue{
					Kind:     IssueMissingTarget,
					Severity: SeverityError,
					Node:     n.ID,
					Target:   t.Target,
					Message:  fmt.Sprintf("transition %q from %q targets unknown node %q", t.Condition, n.ID, t.Target),
				})
				continue
			}
			e := Edge{
				From:        n.ID,
				To:          t.Target,
				Condition:   t.Condition,
				Description: t.Description,
				Weight:      i + 1,
			}
			if err := g.AddEdge(e); err != nil {
				return nil, fmt.Errorf("edge %s: %w", e.ID(), err)
			}
		}
	}

	issues = append(issues, connectivityIssues(g)...)

	paths := LongestPaths(g)
	maxDepth := 0
	for _, d := range paths {
		maxDepth = max(maxDepth, d)
	}

	return &BuildResult{
		Graph:        g,
		LongestPaths: paths,
		Issues:       issues,
		Metadata: Metadata{
			NodeCount: g.NodeCount(),
			EdgeCount: g.EdgeCount(),
			HasCycles: g.HasCycle(),
			MaxDepth:  maxDepth,
		},
	}, nil
}

func connectivityIssues(g *Graph) []Issue {
	orphans := make(map[string]bool)
	for _, id := range g.Orphans() {
		orphans[id] = true
	}
	reached := g.Reachable(g.Starts())

	var issues []Issue
	for _, n := range g.nodes {
		switch {
		case orphans[n.ID]:
			issues = append(issues, Issue{
				Kind:     IssueOrphan,
				Severity: SeverityWarning,
				Node:     n.ID,
				Message:  fmt.Sprintf("node %q has no transitions in or out", n.ID),
			})
		case !reached[n.ID]:
			issues = append(issues, Issue{
				Kind:     IssueUnreachable,
				Severity: SeverityError,
				Node:     n.ID,
				Message:  fmt.Sprintf("node %q cannot be reached from any start node", n.ID),
			})
		}
	}
	return issues
}

// LongestPaths returns, for every node, the number of edges on the longest
// path that ends at it. Nodes without predecessors get 0.
//
// The traversal walks predecessors depth-first with an explicit stack and
// memoizes finished nodes. A predecessor met again while it is still being
// computed lies on a cycle; it contributes nothing and the branch keeps the
// length found so far. On a DAG the result is exact.
func LongestPaths(g *Graph) map[string]int {
	const (
		unvisited = iota
		computing
		done
	)

	dist := make(map[string]int, len(g.nodes))
	state := make(map[string]int, len(g.nodes))
	type frame struct {
		id   string
		next int
	}

	for _, root := range g.nodes {
		if state[root.ID] != unvisited {
			continue
		}
		state[root.ID] = computing
		dist[root.ID] = 0
		stack := []frame{{id: root.ID}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			parents := g.incoming[top.id]
			if top.next < len(parents) {
				p := parents[top.next]
				top.next++
				switch state[p] {
				case unvisited:
					state[p] = computing
					dist[p] = 0
					stack = append(stack, frame{id: p})
				case done:
					dist[top.id] = max(dist[top.id], dist[p]+1)
				}
				continue
			}

			state[top.id] = done
			finished := top.id
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				below := stack[len(stack)-1].id
				dist[below] = max(dist[below], dist[finished]+1)
			}
		}
	}
	return dist
}
