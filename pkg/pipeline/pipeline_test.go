package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/flowlayout/pkg/cache"
	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/observability"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

func node(id string, typ workflow.NodeType, targets ...string) workflow.Node {
	n := workflow.Node{ID: id, Type: typ, Description: id}
	for _, t := range targets {
		n.Transitions = append(n.Transitions, workflow.Transition{Condition: "to_" + t, Target: t})
	}
	return n
}

// approval has one loop: review -> revise -> review.
func approval() []workflow.Node {
	return []workflow.Node{
		{ID: "submit", Type: workflow.TypeStart, Transitions: []workflow.Transition{
			{Condition: "submitted", Target: "review"},
		}},
		{ID: "review", Type: workflow.TypeWait, Transitions: []workflow.Transition{
			{Condition: "approved", Target: "publish"},
			{Condition: "rejected", Target: "revise"},
		}},
		{ID: "revise", Type: workflow.TypeAction, Transitions: []workflow.Transition{
			{Condition: "resubmit", Target: "review"},
		}},
		{ID: "publish", Type: workflow.TypeEnd},
	}
}

func chain(n int) []workflow.Node {
	nodes := make([]workflow.Node, n)
	for i := range nodes {
		nodes[i] = workflow.Node{ID: fmt.Sprintf("n%03d", i), Type: workflow.TypeAction}
		if i+1 < n {
			nodes[i].Transitions = []workflow.Transition{{Condition: "next", Target: fmt.Sprintf("n%03d", i+1)}}
		}
	}
	nodes[0].Type = workflow.TypeStart
	nodes[n-1].Type = workflow.TypeEnd
	return nodes
}

func hasRec(recs []Recommendation, code string) bool {
	for _, r := range recs {
		if r.Code == code {
			return true
		}
	}
	return false
}

// assertForward checks that every non-feedback edge points to a later layer
// and that start nodes sit on layer 0.
func assertForward(t *testing.T, res *Result) {
	t.Helper()
	layer := make(map[string]int)
	for _, n := range res.Nodes {
		layer[n.ID] = n.Layer
		if n.Type == workflow.TypeStart && n.Layer != 0 {
			t.Errorf("start node %s on layer %d", n.ID, n.Layer)
		}
	}
	for _, e := range res.Edges {
		if e.Feedback {
			continue
		}
		if layer[e.From] >= layer[e.To] {
			t.Errorf("edge %s -> %s goes from layer %d to %d", e.From, e.To, layer[e.From], layer[e.To])
		}
	}
}

func TestCompute_Approval(t *testing.T) {
	res, err := NewOrchestrator(nil).Compute(context.Background(), approval(), layout.Options{})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if res.Mode != ModeLayout || res.RunID == "" {
		t.Errorf("Mode = %q, RunID = %q", res.Mode, res.RunID)
	}
	if len(res.Positions) != 4 {
		t.Fatalf("positioned %d nodes, want 4", len(res.Positions))
	}
	wantX := map[string]float64{"submit": 50, "review": 400, "revise": 750, "publish": 750}
	for id, x := range wantX {
		if got := res.Positions[id].X; got != x {
			t.Errorf("%s.X = %v, want %v", id, got, x)
		}
	}
	if !res.FeedbackEdges.Has(dag.EdgeID{From: "revise", To: "review"}) || res.FeedbackEdges.Len() != 1 {
		t.Errorf("FeedbackEdges = %v, want [revise -> review]", res.FeedbackEdges.Sorted())
	}
	assertForward(t, res)

	d := res.Diagnostics
	if d.CyclesDetected != 1 || d.CyclesBroken != 1 || d.LayerCount != 3 {
		t.Errorf("Diagnostics = %+v", d)
	}
	if len(d.Stages) != 5 {
		t.Fatalf("recorded %d stages, want 5", len(d.Stages))
	}
	for i, stage := range []string{StageGraph, StageCycles, StageLayering, StagePositioning, StageValidation} {
		if d.Stages[i].Stage != stage {
			t.Errorf("Stages[%d] = %s, want %s", i, d.Stages[i].Stage, stage)
		}
	}
	if _, ok := d.Timing(StagePositioning); !ok {
		t.Error("no positioning timing")
	}
	if !res.Validation.Valid || res.Validation.Compliance != 1 {
		t.Errorf("Validation = %+v", res.Validation)
	}
	if !hasRec(res.Recommendations, RecCyclesBroken) {
		t.Errorf("Recommendations = %+v, want %s", res.Recommendations, RecCyclesBroken)
	}
	if len(res.Issues) != 0 {
		t.Errorf("Issues = %+v, want none", res.Issues)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	o := NewOrchestrator(nil)
	var first []byte
	for i := range 5 {
		res, err := o.Compute(context.Background(), approval(), layout.Options{})
		if err != nil {
			t.Fatal(err)
		}
		got, _ := json.Marshal(struct {
			P map[string]layout.Position
			L [][]string
		}{res.Positions, res.Layers})
		if i == 0 {
			first = got
			continue
		}
		if !bytes.Equal(first, got) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, got)
		}
	}
}

func TestCompute_SmallCycles(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []workflow.Node
		feedback dag.EdgeID
		layers   map[string]int
	}{
		{
			name:     "self loop",
			nodes:    []workflow.Node{node("a", workflow.TypeAction, "a")},
			feedback: dag.EdgeID{From: "a", To: "a"},
			layers:   map[string]int{"a": 0},
		},
		{
			name: "mutual",
			nodes: []workflow.Node{
				node("a", workflow.TypeStart, "b"),
				node("b", workflow.TypeAction, "a"),
			},
			feedback: dag.EdgeID{From: "b", To: "a"},
			layers:   map[string]int{"a": 0, "b": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewOrchestrator(nil).Compute(context.Background(), tt.nodes, layout.Options{})
			if err != nil {
				t.Fatal(err)
			}
			if !res.FeedbackEdges.Has(tt.feedback) {
				t.Errorf("FeedbackEdges = %v, want %v", res.FeedbackEdges.Sorted(), tt.feedback)
			}
			for _, n := range res.Nodes {
				if n.Layer != tt.layers[n.ID] {
					t.Errorf("%s on layer %d, want %d", n.ID, n.Layer, tt.layers[n.ID])
				}
			}
		})
	}
}

func TestCompute_Empty(t *testing.T) {
	res, err := NewOrchestrator(nil).Compute(context.Background(), nil, layout.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Positions) != 0 || len(res.Layers) != 0 || res.Diagnostics.CyclesDetected != 0 {
		t.Errorf("empty input produced %+v", res)
	}
	if res.Recommendations == nil {
		t.Error("Recommendations is nil, want empty slice")
	}
}

func TestCompute_StructuralIssues(t *testing.T) {
	nodes := []workflow.Node{
		node("s", workflow.TypeStart, "a", "ghost"),
		node("a", workflow.TypeEnd),
		node("lonely", workflow.TypeAction),
	}
	res, err := NewOrchestrator(nil).Compute(context.Background(), nodes, layout.Options{})
	if err != nil {
		t.Fatalf("issues should not fail the run: %v", err)
	}
	kinds := map[dag.IssueKind]bool{}
	for _, is := range res.Issues {
		kinds[is.Kind] = true
	}
	if !kinds[dag.IssueMissingTarget] || !kinds[dag.IssueOrphan] {
		t.Errorf("Issues = %+v", res.Issues)
	}
	for _, r := range res.Recommendations {
		if r.Code == RecStructuralIssues {
			if r.Severity != dag.SeverityError {
				t.Errorf("structural issue severity = %s, want error", r.Severity)
			}
			if !strings.Contains(r.Message, "1 missing target") || !strings.Contains(r.Message, "1 orphan") {
				t.Errorf("message = %q", r.Message)
			}
			return
		}
	}
	t.Errorf("no %s recommendation in %+v", RecStructuralIssues, res.Recommendations)
}

func TestCompute_Errors(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		nodes []workflow.Node
		opts  layout.Options
		code  errors.Code
		stage string
	}{
		{
			name:  "duplicate id",
			ctx:   context.Background(),
			nodes: []workflow.Node{node("a", workflow.TypeStart), node("a", workflow.TypeEnd)},
			code:  errors.ErrCodeInvalidInput,
			stage: StageGraph,
		},
		{
			name:  "empty id",
			ctx:   context.Background(),
			nodes: []workflow.Node{node("", workflow.TypeStart)},
			code:  errors.ErrCodeInvalidInput,
			stage: StageGraph,
		},
		{
			name:  "bad profile",
			ctx:   context.Background(),
			nodes: approval(),
			opts:  layout.Options{Profile: layout.Ptr(layout.Profile("fastest"))},
			code:  errors.ErrCodeInvalidConfig,
		},
		{
			name:  "negative spacing",
			ctx:   context.Background(),
			nodes: approval(),
			opts:  layout.Options{LayerSpacing: layout.Ptr(-1.0)},
			code:  errors.ErrCodeInvalidConfig,
		},
		{
			name:  "canceled",
			ctx:   canceled,
			nodes: approval(),
			code:  errors.ErrCodeCanceled,
			stage: StageGraph,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewOrchestrator(nil).Compute(tt.ctx, tt.nodes, tt.opts)
			if err == nil {
				t.Fatalf("expected error, got %+v", res)
			}
			if res != nil {
				t.Error("partial result returned with error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %s, want %s (%v)", errors.GetCode(err), tt.code, err)
			}
			if got := errors.StageOf(err); got != tt.stage {
				t.Errorf("stage = %q, want %q", got, tt.stage)
			}
		})
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks

	panicOn string

	mu        sync.Mutex
	started   []string
	completed []string
	runErr    error
	runs      int
}

func (h *recordingHooks) OnStageStart(_ context.Context, stage string, _ int) {
	h.mu.Lock()
	h.started = append(h.started, stage)
	h.mu.Unlock()
	if stage == h.panicOn {
		panic("boom")
	}
}

func (h *recordingHooks) OnStageComplete(_ context.Context, stage string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, stage)
}

func (h *recordingHooks) OnRunComplete(_ context.Context, _ string, _ int, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	h.runErr = err
}

func TestCompute_Hooks(t *testing.T) {
	h := &recordingHooks{}
	o := NewOrchestrator(nil)
	o.Hooks = h

	if _, err := o.Compute(context.Background(), approval(), layout.Options{}); err != nil {
		t.Fatal(err)
	}
	if len(h.started) != 5 || len(h.completed) != 5 {
		t.Errorf("started %v, completed %v", h.started, h.completed)
	}
	if h.runs != 1 || h.runErr != nil {
		t.Errorf("runs = %d, err = %v", h.runs, h.runErr)
	}
}

func TestCompute_StagePanic(t *testing.T) {
	h := &recordingHooks{panicOn: StageLayering}
	o := NewOrchestrator(nil)
	o.Hooks = h

	_, err := o.Compute(context.Background(), approval(), layout.Options{})
	if !errors.Is(err, errors.ErrCodeStageFailed) {
		t.Fatalf("err = %v, want STAGE_FAILED", err)
	}
	if got := errors.StageOf(err); got != StageLayering {
		t.Errorf("stage = %q, want %q", got, StageLayering)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want panic value", err)
	}
	if strings.Join(h.completed, ",") != "graph,cycles,layering" {
		t.Errorf("completed = %v", h.completed)
	}
	if h.runErr == nil {
		t.Error("OnRunComplete did not receive the error")
	}
}

func TestCompute_Adaptation(t *testing.T) {
	tests := []struct {
		name  string
		nodes []workflow.Node
		opts  layout.Options
		code  string
		check func(t *testing.T, cfg layout.Config)
	}{
		{
			name:  "max layer width",
			nodes: approval(),
			opts:  layout.Options{MaxLayerWidth: layout.Ptr(0)},
			code:  RecClampMaxLayerWidth,
			check: func(t *testing.T, cfg layout.Config) {
				if cfg.MaxLayerWidth != 1 {
					t.Errorf("MaxLayerWidth = %d, want 1", cfg.MaxLayerWidth)
				}
			},
		},
		{
			name:  "node spacing",
			nodes: approval(),
			opts:  layout.Options{NodeSpacing: layout.Ptr(100.0)},
			code:  RecRaiseNodeSpacing,
			check: func(t *testing.T, cfg layout.Config) {
				if cfg.NodeSpacing != layout.DefaultAnnotatedNodeHeight {
					t.Errorf("NodeSpacing = %v, want %v", cfg.NodeSpacing, layout.DefaultAnnotatedNodeHeight)
				}
			},
		},
		{
			name:  "large graph",
			nodes: chain(LargeGraphNodes + 1),
			code:  RecLargeGraph,
			check: func(t *testing.T, cfg layout.Config) {
				if cfg.MinimizeEdgeCrossings {
					t.Error("crossing minimization still on")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewOrchestrator(nil).Compute(context.Background(), tt.nodes, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if !hasRec(res.Recommendations, tt.code) {
				t.Errorf("Recommendations = %+v, want %s", res.Recommendations, tt.code)
			}
			tt.check(t, res.Config)
			if res.Validation.Overlaps != 0 {
				t.Errorf("Overlaps = %d after adaptation", res.Validation.Overlaps)
			}
		})
	}
}

func TestCompute_LargeGraphExplicitCrossings(t *testing.T) {
	res, err := NewOrchestrator(nil).Compute(context.Background(), chain(LargeGraphNodes+1), layout.Options{
		MinimizeEdgeCrossings: layout.Ptr(true),
	})
	if err != nil {
		t.Fatal(err)
	}
	if hasRec(res.Recommendations, RecLargeGraph) || !res.Config.MinimizeEdgeCrossings {
		t.Error("explicit minimize_edge_crossings was overridden")
	}
}

func TestCompute_CycleModes(t *testing.T) {
	tests := []struct {
		mode     layout.CycleHandling
		detected int
		broken   int
		rec      string
	}{
		{layout.CycleBreak, 1, 1, RecCyclesBroken},
		{layout.CycleHighlight, 1, 0, RecCyclesHighlighted},
		{layout.CycleIgnore, 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := NewOrchestrator(nil).Compute(context.Background(), approval(), layout.Options{
				CycleHandling: layout.Ptr(tt.mode),
			})
			if err != nil {
				t.Fatal(err)
			}
			d := res.Diagnostics
			if d.CyclesDetected != tt.detected || d.CyclesBroken != tt.broken || d.CycleHandling != tt.mode {
				t.Errorf("Diagnostics = %+v", d)
			}
			if res.FeedbackEdges.Len() == 0 {
				t.Error("no feedback edges for a cyclic workflow")
			}
			if tt.rec != "" && !hasRec(res.Recommendations, tt.rec) {
				t.Errorf("Recommendations = %+v, want %s", res.Recommendations, tt.rec)
			}
			assertForward(t, res)
		})
	}
}

func TestValidateGraph(t *testing.T) {
	res, err := NewOrchestrator(nil).ValidateGraph(context.Background(), approval(), layout.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeValidate {
		t.Errorf("Mode = %q", res.Mode)
	}
	for id, p := range res.Positions {
		if p.Y != layout.DefaultBaseY {
			t.Errorf("%s.Y = %v, want a single row", id, p.Y)
		}
	}
	if !res.Validation.Valid || res.Validation.Compliance != 1 {
		t.Errorf("Validation = %+v", res.Validation)
	}
}

func TestCompute_ConcurrentConfigs(t *testing.T) {
	o := NewOrchestrator(nil)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spacing := 300.0 + float64(i)*10
			res, err := o.Compute(context.Background(), approval(), layout.Options{LayerSpacing: &spacing})
			if err != nil {
				errs <- err
				return
			}
			if got := res.Positions["review"].X; got != layout.DefaultBaseX+spacing {
				errs <- fmt.Errorf("spacing %v: review.X = %v", spacing, got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOrchestrator_Go(t *testing.T) {
	ch := NewOrchestrator(nil).Go(context.Background(), approval(), layout.Options{})
	out, ok := <-ch
	if !ok {
		t.Fatal("channel closed without an outcome")
	}
	if out.Err != nil || out.Result == nil {
		t.Fatalf("Outcome = %+v", out)
	}
	if _, ok := <-ch; ok {
		t.Error("channel delivered a second outcome")
	}
}

func TestRunner_Cache(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	defer r.Close()

	req := Request{Nodes: approval()}
	first, info, err := r.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if info.CacheHit {
		t.Error("first run was a cache hit")
	}
	if !strings.HasPrefix(info.CacheKey, "layout:") {
		t.Errorf("CacheKey = %q", info.CacheKey)
	}

	second, info, err := r.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !info.CacheHit {
		t.Error("second run missed the cache")
	}
	if second.RunID != first.RunID || second.Positions["revise"] != first.Positions["revise"] {
		t.Error("cached result differs from the stored one")
	}
	if !second.FeedbackEdges.Has(dag.EdgeID{From: "revise", To: "review"}) {
		t.Error("feedback edges lost in the cache round trip")
	}

	req.Refresh = true
	third, info, err := r.Layout(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if info.CacheHit || third.RunID == first.RunID {
		t.Error("Refresh served a cached result")
	}
}

func TestRunner_Keys(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	base := Request{Nodes: approval()}

	k1, err := r.key(base, ModeLayout)
	if err != nil {
		t.Fatal(err)
	}
	kv, _ := r.key(base, ModeValidate)
	if k1 == kv {
		t.Error("layout and validation share a key")
	}

	// Options that resolve to the same configuration share a key.
	same := base
	same.Options = layout.Options{Profile: layout.Ptr(layout.ProfileBalanced)}
	if k2, _ := r.key(same, ModeLayout); k2 != k1 {
		t.Error("equivalent options produced a different key")
	}

	other := base
	other.Options = layout.Options{LayerSpacing: layout.Ptr(500.0)}
	if k3, _ := r.key(other, ModeLayout); k3 == k1 {
		t.Error("different options share a key")
	}

	bad := base
	bad.Options = layout.Options{Profile: layout.Ptr(layout.Profile("nope"))}
	if _, err := r.key(bad, ModeLayout); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestRunner_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)

	req := Request{Nodes: approval()}
	key, err := r.key(req, ModeValidate)
	if err != nil {
		t.Fatal(err)
	}
	if err := fc.Set(ctx, key, []byte("{not json"), time.Hour); err != nil {
		t.Fatal(err)
	}

	res, info, err := r.Validate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if info.CacheHit || res.Mode != ModeValidate {
		t.Errorf("info = %+v, mode = %q", info, res.Mode)
	}
	if _, _, err := r.Validate(ctx, req); err != nil {
		t.Fatal(err)
	}
}

func ExampleOrchestrator_Compute() {
	nodes := []workflow.Node{
		{ID: "order", Type: workflow.TypeStart, Transitions: []workflow.Transition{{Condition: "placed", Target: "pay"}}},
		{ID: "pay", Type: workflow.TypeAction, Transitions: []workflow.Transition{
			{Condition: "paid", Target: "ship"},
			{Condition: "declined", Target: "order"},
		}},
		{ID: "ship", Type: workflow.TypeEnd},
	}
	res, err := NewOrchestrator(nil).Compute(context.Background(), nodes, layout.Options{})
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, layer := range res.Layers {
		fmt.Println(layer)
	}
	fmt.Println("feedback:", res.FeedbackEdges.Sorted())
	// Output:
	// [order]
	// [pay]
	// [ship]
	// feedback: [pay -> order]
}
