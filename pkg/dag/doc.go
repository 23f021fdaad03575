// Package dag provides the dependency graph that every layout stage reads.
//
// # Overview
//
// A workflow is a list of nodes, each with labeled transitions to other
// nodes. [Build] turns that list into a [Graph]: incoming and outgoing
// adjacency, a flat edge list, and the classification of start, end and
// orphan nodes. Structural problems in the input never fail the build.
// They are returned as [Issue] values:
//
//   - [IssueMissingTarget]: a transition names a node that does not exist;
//     the transition is dropped
//   - [IssueUnreachable]: no path leads to the node from a start node
//   - [IssueOrphan]: the node has no transitions at all
//
// # Basic Usage
//
//	res, err := dag.Build(wf.Nodes)
//	if err != nil {
//	    return err
//	}
//	for _, is := range res.Issues {
//	    log.Warn(is.Message, "kind", is.Kind)
//	}
//
// # Edge Identity
//
// Edges are identified by [EdgeID], a pair of node ids. Sets of edges, such
// as the feedback edges chosen by cycle breaking, are held in an [EdgeSet].
// [Graph.Without] returns the residual graph with such a set removed.
//
// # Traversals
//
// [Graph.HasCycle], [LongestPaths] and [Graph.Reachable] use explicit work
// stacks or queues instead of recursion, so graph depth is bounded only by
// memory.
//
// # Edge Crossings
//
// [CountCrossings] and [CountLayerCrossings] use a Fenwick tree to count
// inversions in O(E log V) time. The positioning stage uses them for its
// crossing estimate.
//
// # Related Packages
//
// The [transform] subpackage detects and breaks cycles and assigns layers.
//
// [transform]: github.com/matzehuels/flowlayout/pkg/dag/transform
package dag
