package layout

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/dag/transform"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// node builds a workflow node whose transitions go to targets in order.
func node(id string, typ workflow.NodeType, targets ...string) workflow.Node {
	n := workflow.Node{ID: id, Type: typ}
	for _, t := range targets {
		n.Transitions = append(n.Transitions, workflow.Transition{Condition: "to_" + t, Target: t})
	}
	return n
}

type fixture struct {
	g        *dag.Graph
	br       *transform.BreakResult
	assigned *transform.Assignment
}

func arrange(t *testing.T, cfg Config, nodes ...workflow.Node) fixture {
	t.Helper()
	res, err := dag.Build(nodes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g := res.Graph
	br := transform.BreakCycles(g, transform.DetectCycles(g).Cycles)
	a := transform.AssignLayers(g, nil, br, transform.LayerOptions{
		MaxLayerWidth:   cfg.MaxLayerWidth,
		OptimizeBalance: cfg.OptimizeBalance,
	})
	return fixture{g: g, br: br, assigned: a}
}

func (f fixture) position(cfg Config) *Positioned {
	return PositionNodes(f.assigned, f.g, f.br.FeedbackEdges, cfg)
}

func TestPositionNodes_LayerSpacing(t *testing.T) {
	cfg := DefaultConfig()
	f := arrange(t, cfg,
		node("s", workflow.TypeStart, "a"),
		node("a", workflow.TypeAction, "e"),
		node("e", workflow.TypeEnd),
	)
	p := f.position(cfg)

	want := map[string]Position{
		"s": {X: 50, Y: 50},
		"a": {X: 400, Y: 50},
		"e": {X: 750, Y: 50},
	}
	if !reflect.DeepEqual(p.Positions, want) {
		t.Errorf("Positions = %v, want %v", p.Positions, want)
	}

	for i := 1; i < len(p.Layers); i++ {
		prev, curr := p.Positions[p.Layers[i-1][0]], p.Positions[p.Layers[i][0]]
		if d := curr.X - prev.X; d != cfg.LayerSpacing {
			t.Errorf("layer %d: X distance = %v, want %v", i, d, cfg.LayerSpacing)
		}
	}

	wantBox := BoundingBox{MinX: 50, MinY: 50, MaxX: 1030, MaxY: 270, Width: 980, Height: 220}
	if p.BoundingBox != wantBox {
		t.Errorf("BoundingBox = %+v, want %+v", p.BoundingBox, wantBox)
	}
}

func TestPositionNodes_CustomBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Base = Point{X: 0, Y: 10}
	cfg.LayerSpacing = 100
	f := arrange(t, cfg,
		node("s", workflow.TypeStart, "e"),
		node("e", workflow.TypeEnd),
	)
	p := f.position(cfg)
	if got := p.Positions["e"]; got != (Position{X: 100, Y: 10}) {
		t.Errorf("Positions[e] = %+v, want {100 10}", got)
	}
}

func TestPositionNodes_Alignment(t *testing.T) {
	nodes := []workflow.Node{
		node("s", workflow.TypeStart, "b1", "b2", "b3"),
		node("b1", workflow.TypeAction, "e"),
		node("b2", workflow.TypeAction, "e"),
		node("b3", workflow.TypeAction, "e"),
		node("e", workflow.TypeEnd),
	}

	tests := []struct {
		align Alignment
		want  map[string]float64
	}{
		{AlignTop, map[string]float64{"s": 50, "b1": 50, "b2": 300, "b3": 550, "e": 50}},
		{AlignCenter, map[string]float64{"s": 300, "b1": 50, "b2": 300, "b3": 550, "e": 300}},
	}

	for _, tt := range tests {
		t.Run(string(tt.align), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Alignment = tt.align
			p := arrange(t, cfg, nodes...).position(cfg)
			for id, y := range tt.want {
				if got := p.Positions[id].Y; got != y {
					t.Errorf("Y(%s) = %v, want %v", id, got, y)
				}
			}
		})
	}
}

func TestPositionNodes_AnnotatedHeight(t *testing.T) {
	cfg := DefaultConfig()
	n := node("s", workflow.TypeStart)
	n.Annotation = "needs sign-off"
	p := arrange(t, cfg, n).position(cfg)

	boxes := p.Boxes()
	if len(boxes) != 1 || boxes[0].Height() != 240 {
		t.Fatalf("Boxes() = %+v, want one box of height 240", boxes)
	}
	if p.BoundingBox.Height != 240 || p.BoundingBox.Width != 280 {
		t.Errorf("BoundingBox = %+v, want 280x240", p.BoundingBox)
	}
	if p.Metrics.SpaceUtilization != 1 {
		t.Errorf("SpaceUtilization = %v, want 1", p.Metrics.SpaceUtilization)
	}
}

// crossed has three parallel chains wired so that the initial id order makes
// every pair of edges between layers 1 and 2 cross.
func crossed() []workflow.Node {
	return []workflow.Node{
		node("s", workflow.TypeStart, "p1", "p2", "p3"),
		node("p1", workflow.TypeAction, "q3"),
		node("p2", workflow.TypeAction, "q2"),
		node("p3", workflow.TypeAction, "q1"),
		node("q1", ""),
		node("q2", ""),
		node("q3", ""),
	}
}

func TestPositionNodes_CrossingReduction(t *testing.T) {
	off := DefaultConfig()
	off.MinimizeEdgeCrossings = false
	p := arrange(t, off, crossed()...).position(off)
	if p.Metrics.EstimatedCrossings != 3 {
		t.Errorf("EstimatedCrossings without minimization = %d, want 3", p.Metrics.EstimatedCrossings)
	}
	if p.Metrics.Passes != 0 {
		t.Errorf("Passes = %d, want 0", p.Metrics.Passes)
	}

	on := DefaultConfig()
	f := arrange(t, on, crossed()...)
	before := [][]string{}
	for _, l := range f.assigned.Layers {
		before = append(before, append([]string(nil), l...))
	}
	p = f.position(on)
	if p.Metrics.EstimatedCrossings != 0 {
		t.Errorf("EstimatedCrossings with minimization = %d, want 0", p.Metrics.EstimatedCrossings)
	}
	if want := []string{"p3", "p2", "p1"}; !reflect.DeepEqual(p.Layers[1], want) {
		t.Errorf("Layers[1] = %v, want %v", p.Layers[1], want)
	}
	if p.Metrics.Passes != 2 {
		t.Errorf("Passes = %d, want 2", p.Metrics.Passes)
	}
	if !reflect.DeepEqual(f.assigned.Layers, before) {
		t.Errorf("PositionNodes modified the assignment: %v", f.assigned.Layers)
	}
	if got := p.Positions["p3"].Y; got != 50 {
		t.Errorf("Y(p3) = %v, want 50", got)
	}
}

func TestPositionNodes_Orphan(t *testing.T) {
	cfg := DefaultConfig()
	f := arrange(t, cfg,
		node("s", workflow.TypeStart, "e"),
		node("e", workflow.TypeEnd),
		node("lonely", workflow.TypeAction),
	)
	p := f.position(cfg)
	if _, ok := p.Positions["lonely"]; !ok {
		t.Fatal("orphan has no position")
	}
	if len(p.Positions) != 3 {
		t.Errorf("len(Positions) = %d, want 3", len(p.Positions))
	}
}

func TestPositionNodes_Empty(t *testing.T) {
	cfg := DefaultConfig()
	p := arrange(t, cfg).position(cfg)
	if len(p.Positions) != 0 || len(p.Layers) != 0 {
		t.Errorf("Positioned = %+v, want empty", p)
	}
	if p.BoundingBox != (BoundingBox{}) {
		t.Errorf("BoundingBox = %+v, want zero", p.BoundingBox)
	}
	if p.Metrics.SpaceUtilization != 0 {
		t.Errorf("SpaceUtilization = %v, want 0", p.Metrics.SpaceUtilization)
	}
}

func TestPositionNodes_Deterministic(t *testing.T) {
	nodes := []workflow.Node{
		node("submit", workflow.TypeStart, "review"),
		node("review", workflow.TypeWait, "approve", "reject", "escalate"),
		node("reject", workflow.TypeAction, "submit"),
		node("escalate", workflow.TypeAction, "review", "approve"),
		node("approve", workflow.TypeAction, "done"),
		node("done", workflow.TypeEnd),
	}

	encode := func() []byte {
		cfg := DefaultConfig()
		cfg.Alignment = AlignCenter
		p := arrange(t, cfg, nodes...).position(cfg)
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return data
	}

	first := encode()
	for range 10 {
		if got := encode(); !bytes.Equal(got, first) {
			t.Fatalf("run differs:\n%s\nvs\n%s", got, first)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	cfg := DefaultConfig()
	f := arrange(t, cfg,
		node("s", workflow.TypeStart, "a", "b"),
		node("a", workflow.TypeAction, "e"),
		node("b", workflow.TypeAction, "e"),
		node("e", workflow.TypeEnd),
	)
	p := Placeholder(f.assigned, f.g, cfg)

	want := map[string]Position{
		"s": {X: 50, Y: 50},
		"a": {X: 400, Y: 50},
		"b": {X: 750, Y: 50},
		"e": {X: 1100, Y: 50},
	}
	if !reflect.DeepEqual(p.Positions, want) {
		t.Errorf("Positions = %v, want %v", p.Positions, want)
	}
	if !reflect.DeepEqual(p.Layers, f.assigned.Layers) {
		t.Errorf("Layers = %v, want %v", p.Layers, f.assigned.Layers)
	}
}
