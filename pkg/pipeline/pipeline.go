// Package pipeline runs the layout stages in order and assembles their
// output into one [Result].
//
// # Architecture
//
// The pipeline consists of five stages:
//
//  1. Graph: build the dependency graph and record structural issues
//  2. Cycles: detect cycles and choose feedback edges
//  3. Layering: assign every node to a layer of the feedback-free graph
//  4. Positioning: turn layers into coordinates
//  5. Validation: check dependency compliance and visual quality
//
// The [Orchestrator] is stateless: each call resolves its own
// [layout.Config] and builds its own intermediate values, so one
// Orchestrator can serve concurrent callers. A stage failure aborts the run
// with a single *errors.Error naming the stage; no partial result is
// returned.
//
// # Usage
//
//	o := pipeline.NewOrchestrator(logger)
//	res, err := o.Compute(ctx, wf.Nodes, layout.Options{
//	    Profile: layout.Ptr(layout.ProfileQuality),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for id, p := range res.Positions {
//	    fmt.Println(id, p.X, p.Y)
//	}
//
// The [Runner] wraps an Orchestrator with a [cache.Cache] for the CLI and
// the HTTP server.
package pipeline

import (
	"time"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// Mode names the kind of run that produced a [Result].
type Mode string

const (
	// ModeLayout is a full run through positioning.
	ModeLayout Mode = "layout"
	// ModeValidate skips positioning and uses a placeholder layout.
	ModeValidate Mode = "validate"
)

// Result is the output of one run.
type Result struct {
	RunID string `json:"run_id"`
	Mode  Mode   `json:"mode"`

	// Positions holds the top-left corner of every node box.
	Positions   map[string]layout.Position `json:"positions"`
	Layers      [][]string                 `json:"layers"`
	BoundingBox layout.BoundingBox         `json:"bounding_box"`

	// Nodes and Edges describe the graph for renderers, in input order.
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	FeedbackEdges *dag.EdgeSet             `json:"feedback_edges"`
	Cycles        []transform.Cycle        `json:"cycles"`
	Issues        []dag.Issue              `json:"issues"`
	Metadata      dag.Metadata             `json:"metadata"`
	Validation    *layout.ValidationResult `json:"validation"`
	Diagnostics   Diagnostics              `json:"diagnostics"`

	// Recommendations are severity-tagged; callers render or log them.
	Recommendations []Recommendation `json:"recommendations"`

	// Config is the configuration the run actually used, after adaptation.
	Config layout.Config `json:"config"`
}

// Node is a laid-out node.
type Node struct {
	ID        string            `json:"id"`
	Type      workflow.NodeType `json:"type,omitempty"`
	Layer     int               `json:"layer"`
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
	Annotated bool              `json:"annotated,omitempty"`
}

// Edge is a drawn transition. Feedback edges point backward or into a
// start node and are drawn as back edges.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
	Feedback  bool   `json:"feedback,omitempty"`
}

// Diagnostics summarizes a run.
type Diagnostics struct {
	CyclesDetected     int                  `json:"cycles_detected"`
	CyclesBroken       int                  `json:"cycles_broken"`
	CycleComplexity    transform.Complexity `json:"cycle_complexity"`
	CycleHandling      layout.CycleHandling `json:"cycle_handling"`
	FeedbackEdges      int                  `json:"feedback_edges"`
	CycleQuality       float64              `json:"cycle_quality"`
	LayerCount         int                  `json:"layer_count"`
	LayerBalance       float64              `json:"layer_balance"`
	Relocated          int                  `json:"relocated"`
	EstimatedCrossings int                  `json:"estimated_crossings"`
	CrossingPasses     int                  `json:"crossing_passes"`
	SpaceUtilization   float64              `json:"space_utilization"`
	LayoutScore        float64              `json:"layout_score"`
	Stages             []StageTiming        `json:"stages"`
	Total              time.Duration        `json:"total_ns"`
}

// StageTiming is the wall time of one stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Timing returns the duration of stage and whether it ran.
func (d Diagnostics) Timing(stage string) (time.Duration, bool) {
	for _, s := range d.Stages {
		if s.Stage == stage {
			return s.Duration, true
		}
	}
	return 0, false
}

// Recommendation codes.
const (
	RecClampMaxLayerWidth  = "clamp_max_layer_width"
	RecRaiseNodeSpacing    = "raise_node_spacing"
	RecLargeGraph          = "disable_crossing_minimization"
	RecCyclesBroken        = "cycles_broken"
	RecCyclesHighlighted   = "cycles_highlighted"
	RecCriticalCycles      = "critical_cycles"
	RecStructuralIssues    = "structural_issues"
	RecValidationSuggested = "validation"
)

// Recommendation is one piece of advice about the input or configuration.
type Recommendation struct {
	Code     string       `json:"code"`
	Severity dag.Severity `json:"severity"`
	Message  string       `json:"message"`
	// Finding is set when the recommendation restates a validator suggestion.
	Finding layout.FindingCode `json:"finding,omitempty"`
}
