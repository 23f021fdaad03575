// Package transform turns a possibly cyclic dependency graph into layers.
//
// # Overview
//
// Workflows loop: a rejected request goes back to the submitter, a failed
// job is retried. A layered layout needs edges that all point forward, so
// this package runs three steps over a [dag.Graph]:
//
//   - [DetectCycles] enumerates and scores cycles
//   - [BreakCycles] picks feedback edges so the rest is acyclic
//   - [AssignLayers] places every node on a layer of the residual DAG
//
// None of the steps modify the graph. Feedback edges are returned as a
// [dag.EdgeSet] and removed logically with [dag.Graph.Without]; they are
// still drawn, as back edges.
//
// # Cycle Breaking
//
// Each cycle loses its cheapest edge, judged by [BreakingScore]: early
// transitions are cheaper than late ones, and transitions touching start or
// end nodes or handling errors are costlier. Cycles that share an edge are
// usually broken together. Residual passes catch the cycles the detection
// DFS does not enumerate. Edges entering start nodes are always feedback, so
// start nodes sit on layer 0.
//
// [BreakBackEdges] is the cheap alternative used when cycles are only
// highlighted or ignored: it takes the back edges of one depth-first search.
//
// # Layer Assignment
//
// [AssignLayers] uses longest-path layering on the residual graph, orders
// nodes inside each layer, and optionally rebalances layers wider than a
// limit without breaking the forward-edge order.
//
// # Usage
//
//	report := transform.DetectCycles(g)
//	br := transform.BreakCycles(g, report.Cycles)
//	residual := g.Without(br.FeedbackEdges)
//	a := transform.AssignLayers(g, dag.LongestPaths(residual), br, transform.LayerOptions{
//	    MaxLayerWidth:   8,
//	    OptimizeBalance: true,
//	})
package transform
