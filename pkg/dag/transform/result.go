package transform

import "github.com/matzehuels/flowlayout/pkg/dag"

// BreakResult describes the feedback edges chosen for a graph.
//
// BreakResult is returned by [BreakCycles] and [BreakBackEdges]. Removing
// FeedbackEdges from the graph always yields a DAG in which no edge enters a
// start node.
type BreakResult struct {
	// FeedbackEdges are logically excluded from layering. They stay in the
	// graph and are drawn as back edges.
	FeedbackEdges *dag.EdgeSet `json:"feedback_edges"`

	// EntryEdges counts the feedback edges that were added only because they
	// enter a start node.
	EntryEdges int `json:"entry_edges"`

	// Pruned counts chosen edges given back because the entry edges already
	// broke their cycles.
	Pruned int `json:"pruned"`

	// CyclesSolved is the number of the given cycles that contain a feedback
	// edge. Zero for [BreakBackEdges], which does not break cycles by choice.
	CyclesSolved int `json:"cycles_solved"`

	// AdditionalCycles counts cycles found on the residual graph after the
	// first pass.
	AdditionalCycles int `json:"additional_cycles"`

	// Passes is the number of detect-and-break rounds it took to reach a DAG.
	Passes int `json:"passes"`

	Impact LayoutImpact `json:"impact"`
}

// LayoutImpact aggregates what breaking cost the layout.
type LayoutImpact struct {
	// AffectedNodes is the number of distinct nodes on any broken cycle.
	AffectedNodes int `json:"affected_nodes"`

	// FeedbackEdges is the size of the feedback set.
	FeedbackEdges int `json:"feedback_edges"`

	// TotalCycleImpact sums [Cycle.Impact] over the broken cycles.
	TotalCycleImpact float64 `json:"total_cycle_impact"`

	// Quality is max(0, 1 - 0.5*affected/total - 0.1*feedback). 1 means
	// nothing had to be broken.
	Quality float64 `json:"quality"`
}

// Assignment maps layers to ordered node ids and back.
//
// Assignment is returned by [AssignLayers]. Layers[i] lists the nodes of
// layer i in their display order; NodeLayer is the inverse.
type Assignment struct {
	Layers    [][]string     `json:"layers"`
	NodeLayer map[string]int `json:"node_layer"`
	Metrics   LayerMetrics   `json:"metrics"`
}

// LayerMetrics summarizes an [Assignment].
type LayerMetrics struct {
	// TotalLayers is len(Layers).
	TotalLayers int `json:"total_layers"`

	// Counts holds the number of nodes per layer.
	Counts []int `json:"counts"`

	// Balance is 1 - variance(Counts)/mean(Counts)^2, clamped to [0,1].
	// Evenly filled layers score 1.
	Balance float64 `json:"balance"`

	// Relocated is the number of nodes moved down by balancing.
	Relocated int `json:"relocated"`
}

// Layer returns the layer of id and whether the node is assigned.
func (a *Assignment) Layer(id string) (int, bool) {
	l, ok := a.NodeLayer[id]
	return l, ok
}
