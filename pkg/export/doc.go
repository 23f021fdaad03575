// Package export writes layout results to files and streams.
//
// # Formats
//
//   - json: the full [pipeline.Result], indented, suitable for re-reading
//     with [ReadJSON] or for consumption by a frontend renderer
//   - dot: a Graphviz graph whose node positions are pinned to the computed
//     layout, so Graphviz only routes edges
//   - svg: the dot output rendered with the embedded Graphviz engine
//
// The layout engine computes coordinates only; this package is the one
// place that turns them into something viewable.
//
// # Coordinates
//
// Layout coordinates are top-left corners in points with Y growing downward.
// Graphviz expects node centers in inches with Y growing upward, so [ToDOT]
// converts both. Feedback edges are drawn dashed so that loops stand out
// from forward transitions.
//
// # Usage
//
//	res, _ := orchestrator.Compute(ctx, wf.Nodes, layout.Options{})
//	if err := export.WriteFile(ctx, "approval.svg", res, export.FormatSVG, export.Options{}); err != nil {
//	    log.Fatal(err)
//	}
package export
