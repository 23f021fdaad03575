package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/observability"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// Stage names, in execution order.
const (
	StageGraph       = observability.StageGraph
	StageCycles      = observability.StageCycles
	StageLayering    = observability.StageLayering
	StagePositioning = observability.StagePositioning
	StageValidation  = observability.StageValidation
)

// Orchestrator runs the layout stages. It holds no per-run state and is safe
// for concurrent use.
type Orchestrator struct {
	// Logger receives stage completion at debug level and a run summary at
	// info level.
	Logger *log.Logger

	// Hooks receives stage events. Nil uses the globally registered
	// [observability.Pipeline] hooks.
	Hooks observability.PipelineHooks
}

// NewOrchestrator creates an orchestrator. A nil logger discards output.
func NewOrchestrator(logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Orchestrator{Logger: logger}
}

// Compute lays out nodes.
//
// opts are resolved over the defaults and adapted to the input (see
// [Result.Recommendations]); the resolved value is used by every stage of
// this call only. Structural problems in the input (missing targets, orphan
// and unreachable nodes) are reported in [Result.Issues] and do not fail the
// run. Invalid options fail with [errors.ErrCodeInvalidConfig], duplicate or
// empty node ids with [errors.ErrCodeInvalidInput]. Any other failure is an
// [errors.ErrCodeStageFailed] error naming the stage; a canceled ctx yields
// [errors.ErrCodeCanceled]. ctx is checked between stages.
//
// nodes are not modified.
func (o *Orchestrator) Compute(ctx context.Context, nodes []workflow.Node, opts layout.Options) (*Result, error) {
	return o.run(ctx, nodes, opts, ModeLayout)
}

// ValidateGraph runs every stage but positioning, which is replaced by a
// single-row placeholder. The result's Validation gives a fast dependency
// compliance estimate; its overlap and crossing figures describe the
// placeholder and carry no meaning.
func (o *Orchestrator) ValidateGraph(ctx context.Context, nodes []workflow.Node, opts layout.Options) (*Result, error) {
	return o.run(ctx, nodes, opts, ModeValidate)
}

// Outcome is delivered by [Orchestrator.Go].
type Outcome struct {
	Result *Result
	Err    error
}

// Go runs [Orchestrator.Compute] in a new goroutine. The returned channel
// receives exactly one Outcome and is then closed.
func (o *Orchestrator) Go(ctx context.Context, nodes []workflow.Node, opts layout.Options) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := o.Compute(ctx, nodes, opts)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

func (o *Orchestrator) logger() *log.Logger {
	if o.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return o.Logger
}

func (o *Orchestrator) hooks() observability.PipelineHooks {
	if o.Hooks == nil {
		return observability.Pipeline()
	}
	return o.Hooks
}

// run holds the state of one invocation.
type run struct {
	ctx       context.Context
	logger    *log.Logger
	hooks     observability.PipelineHooks
	nodeCount int
	timings   []StageTiming
}

func (o *Orchestrator) run(ctx context.Context, nodes []workflow.Node, opts layout.Options, mode Mode) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	r := &run{
		ctx:       ctx,
		logger:    o.logger().With("run", runID[:8]),
		hooks:     o.hooks(),
		nodeCount: len(nodes),
	}
	defer func() {
		r.hooks.OnRunComplete(ctx, runID, len(nodes), time.Since(start), err)
	}()

	cfg, err := opts.Resolve()
	if err != nil {
		return nil, err
	}
	cfg, recs := adapt(cfg, opts, len(nodes))
	for _, rec := range recs {
		r.logger.Debug("adjusted configuration", "code", rec.Code, "detail", rec.Message)
	}
	r.logger.Debug("starting layout", "mode", mode, "nodes", len(nodes), "config", cfg)

	var built *dag.BuildResult
	err = r.stage(StageGraph, func() error {
		var err error
		built, err = dag.Build(nodes)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "build dependency graph")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g := built.Graph

	var (
		report *transform.CycleReport
		br     *transform.BreakResult
	)
	err = r.stage(StageCycles, func() error {
		report, br = handleCycles(g, cfg.CycleHandling)
		if g.Without(br.FeedbackEdges).HasCycle() {
			return fmt.Errorf("graph without %d feedback edges is still cyclic", br.FeedbackEdges.Len())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var a *transform.Assignment
	err = r.stage(StageLayering, func() error {
		residual := g.Without(br.FeedbackEdges)
		a = transform.AssignLayers(g, dag.LongestPaths(residual), br, transform.LayerOptions{
			MaxLayerWidth:   cfg.MaxLayerWidth,
			OptimizeBalance: cfg.OptimizeBalance,
		})
		if len(a.NodeLayer) != g.NodeCount() {
			return fmt.Errorf("assigned %d of %d nodes", len(a.NodeLayer), g.NodeCount())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var p *layout.Positioned
	err = r.stage(StagePositioning, func() error {
		if mode == ModeValidate {
			p = layout.Placeholder(a, g, cfg)
		} else {
			p = layout.PositionNodes(a, g, br.FeedbackEdges, cfg)
		}
		if len(p.Positions) != g.NodeCount() {
			return fmt.Errorf("positioned %d of %d nodes", len(p.Positions), g.NodeCount())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var v *layout.ValidationResult
	err = r.stage(StageValidation, func() error {
		v = layout.Validate(g, br.FeedbackEdges, a, p, cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res = assemble(runID, mode, cfg, built, report, br, a, p, v)
	res.Recommendations = append(recs, recommend(cfg, built.Issues, report, br, v)...)
	if res.Recommendations == nil {
		res.Recommendations = []Recommendation{}
	}
	res.Diagnostics.Stages = r.timings
	res.Diagnostics.Total = time.Since(start)

	r.logger.Info("layout complete",
		"mode", mode,
		"nodes", g.NodeCount(),
		"layers", a.Metrics.TotalLayers,
		"feedback", br.FeedbackEdges.Len(),
		"score", fmt.Sprintf("%.2f", v.Score),
		"duration", res.Diagnostics.Total)
	return res, nil
}

// stage runs fn as the named stage: it checks for cancellation first, times
// fn, reports to the hooks, and turns errors and panics into stage-attributed
// errors.
func (r *run) stage(name string, fn func() error) (err error) {
	if cerr := r.ctx.Err(); cerr != nil {
		e := errors.Wrap(errors.ErrCodeCanceled, cerr, "layout canceled before %s", name)
		e.Stage = name
		return e
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = errors.WrapStage(name, fmt.Errorf("panic: %v", p), "%s stage panicked", name)
		}
		d := time.Since(start)
		r.timings = append(r.timings, StageTiming{Stage: name, Duration: d})
		r.hooks.OnStageComplete(r.ctx, name, d, err)
		if err != nil {
			r.logger.Debug("stage failed", "stage", name, "err", err)
			return
		}
		r.logger.Debug("stage complete", "stage", name, "duration", d)
	}()

	r.hooks.OnStageStart(r.ctx, name, r.nodeCount)
	if ferr := fn(); ferr != nil {
		var e *errors.Error
		if stderrors.As(ferr, &e) && e.Stage == "" {
			e.Stage = name
			return e
		}
		return errors.WrapStage(name, ferr, "%s stage failed", name)
	}
	return nil
}

// handleCycles applies the configured cycle handling. Every mode returns a
// feedback set that leaves the graph acyclic.
func handleCycles(g *dag.Graph, mode layout.CycleHandling) (*transform.CycleReport, *transform.BreakResult) {
	switch mode {
	case layout.CycleHighlight:
		return transform.DetectCycles(g), transform.BreakBackEdges(g)
	case layout.CycleIgnore:
		return &transform.CycleReport{Cycles: []transform.Cycle{}, Complexity: transform.ComplexityNone}, transform.BreakBackEdges(g)
	default:
		report := transform.DetectCycles(g)
		return report, transform.BreakCycles(g, report.Cycles)
	}
}

func assemble(
	runID string,
	mode Mode,
	cfg layout.Config,
	built *dag.BuildResult,
	report *transform.CycleReport,
	br *transform.BreakResult,
	a *transform.Assignment,
	p *layout.Positioned,
	v *layout.ValidationResult,
) *Result {
	g := built.Graph
	res := &Result{
		RunID:         runID,
		Mode:          mode,
		Positions:     p.Positions,
		Layers:        p.Layers,
		BoundingBox:   p.BoundingBox,
		FeedbackEdges: br.FeedbackEdges,
		Cycles:        report.Cycles,
		Issues:        built.Issues,
		Metadata:      built.Metadata,
		Validation:    v,
		Config:        cfg,
	}
	if res.Layers == nil {
		res.Layers = [][]string{}
	}
	if res.Cycles == nil {
		res.Cycles = []transform.Cycle{}
	}
	if res.Issues == nil {
		res.Issues = []dag.Issue{}
	}

	res.Nodes = make([]Node, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		w, h := cfg.NodeSize(n.Annotated)
		res.Nodes = append(res.Nodes, Node{
			ID:        n.ID,
			Type:      n.Type,
			Layer:     a.NodeLayer[n.ID],
			Width:     w,
			Height:    h,
			Annotated: n.Annotated,
		})
	}
	res.Edges = make([]Edge, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		res.Edges = append(res.Edges, Edge{
			From:      e.From,
			To:        e.To,
			Condition: e.Condition,
			Feedback:  br.FeedbackEdges.Has(e.ID()),
		})
	}

	broken := 0
	if cfg.CycleHandling == layout.CycleBreak {
		broken = br.CyclesSolved
	}
	res.Diagnostics = Diagnostics{
		CyclesDetected:     len(report.Cycles),
		CyclesBroken:       broken,
		CycleComplexity:    report.Complexity,
		CycleHandling:      cfg.CycleHandling,
		FeedbackEdges:      br.FeedbackEdges.Len(),
		CycleQuality:       br.Impact.Quality,
		LayerCount:         a.Metrics.TotalLayers,
		LayerBalance:       a.Metrics.Balance,
		Relocated:          a.Metrics.Relocated,
		EstimatedCrossings: p.Metrics.EstimatedCrossings,
		CrossingPasses:     p.Metrics.Passes,
		SpaceUtilization:   p.Metrics.SpaceUtilization,
		LayoutScore:        v.Score,
	}
	return res
}
