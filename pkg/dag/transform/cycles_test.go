package transform

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/matzehuels/flowlayout/pkg/dag"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

type nodeDef struct {
	id    string
	typ   workflow.NodeType
	edges []string // "condition:target" or "target"
}

func build(t *testing.T, defs ...nodeDef) *dag.Graph {
	t.Helper()
	nodes := make([]workflow.Node, len(defs))
	for i, s := range defs {
		nodes[i] = workflow.Node{ID: s.id, Type: s.typ}
		for _, e := range s.edges {
			cond, target := "next", e
			for j := range len(e) {
				if e[j] == ':' {
					cond, target = e[:j], e[j+1:]
					break
				}
			}
			nodes[i].Transitions = append(nodes[i].Transitions, workflow.Transition{Condition: cond, Target: target})
		}
	}
	res, err := dag.Build(nodes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return res.Graph
}

func TestDetectCycles_NoCycles(t *testing.T) {
	g := build(t, nodeDef{id: "a", edges: []string{"b"}}, nodeDef{id: "b", edges: []string{"c"}}, nodeDef{id: "c"})

	report := DetectCycles(g)

	if report.HasCycles || len(report.Cycles) != 0 {
		t.Errorf("DetectCycles() = %+v, want no cycles", report)
	}
	if report.Complexity != ComplexityNone {
		t.Errorf("Complexity = %q, want %q", report.Complexity, ComplexityNone)
	}
}

func TestDetectCycles_SelfLoop(t *testing.T) {
	g := build(t, nodeDef{id: "a", edges: []string{"a"}})

	report := DetectCycles(g)

	if len(report.Cycles) != 1 {
		t.Fatalf("len(Cycles) = %d, want 1", len(report.Cycles))
	}
	c := report.Cycles[0]
	if !slices.Equal(c.Nodes, []string{"a"}) {
		t.Errorf("Nodes = %v, want [a]", c.Nodes)
	}
	if !slices.Equal(c.Edges, []dag.EdgeID{{From: "a", To: "a"}}) {
		t.Errorf("Edges = %v, want [a -> a]", c.Edges)
	}
	if report.Complexity != ComplexitySimple {
		t.Errorf("Complexity = %q, want %q", report.Complexity, ComplexitySimple)
	}
}

func TestDetectCycles_Mutual(t *testing.T) {
	g := build(t, nodeDef{id: "a", edges: []string{"b"}}, nodeDef{id: "b", edges: []string{"a"}})

	report := DetectCycles(g)
	if len(report.Cycles) != 1 || report.Cycles[0].Len() != 2 {
		t.Fatalf("Cycles = %+v, want one cycle of size 2", report.Cycles)
	}

	br := BreakCycles(g, report.Cycles)
	if br.FeedbackEdges.Len() != 1 {
		t.Errorf("FeedbackEdges = %v, want exactly one", br.FeedbackEdges.IDs())
	}
	if br.CyclesSolved != 1 {
		t.Errorf("CyclesSolved = %d, want 1", br.CyclesSolved)
	}
	// Equal scores fall back to the closing edge of the rotated cycle.
	if !br.FeedbackEdges.Has(dag.EdgeID{From: "b", To: "a"}) {
		t.Errorf("FeedbackEdges = %v, want [b -> a]", br.FeedbackEdges.IDs())
	}
}

func TestCycleImpactAndPriority(t *testing.T) {
	g := build(t,
		nodeDef{id: "s", typ: workflow.TypeStart, edges: []string{"a"}},
		nodeDef{id: "a", typ: workflow.TypeAction, edges: []string{"s"}},
		nodeDef{id: "w", typ: workflow.TypeWait, edges: []string{"x"}},
		nodeDef{id: "x", edges: []string{"w"}},
	)

	report := DetectCycles(g)
	if len(report.Cycles) != 2 {
		t.Fatalf("len(Cycles) = %d, want 2", len(report.Cycles))
	}

	byKey := map[string]Cycle{}
	for _, c := range report.Cycles {
		byKey[c.Key()] = c
	}
	// start (3) + action (2), plus 0.1 * (1 + 1)
	sa := byKey["a\x00s"]
	if got, want := sa.Impact, 5.2; !approx(got, want) {
		t.Errorf("Impact(a,s) = %v, want %v", got, want)
	}
	if got, want := sa.Priority, 5.2+5+20; !approx(got, want) {
		t.Errorf("Priority(a,s) = %v, want %v", got, want)
	}
	wx := byKey["w\x00x"]
	if got, want := wx.Impact, 2.2; !approx(got, want) {
		t.Errorf("Impact(w,x) = %v, want %v", got, want)
	}
	if report.Complexity != ComplexityComplex {
		t.Errorf("Complexity = %q, want %q", report.Complexity, ComplexityComplex)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestRotateToMin(t *testing.T) {
	tests := []struct {
		walk []string
		want []string
	}{
		{[]string{"c", "a", "b"}, []string{"a", "b", "c"}},
		{[]string{"b", "c", "a"}, []string{"a", "b", "c"}},
		{[]string{"a", "c", "b"}, []string{"a", "c", "b"}},
		{[]string{"x"}, []string{"x"}},
	}
	for _, tt := range tests {
		got := rotateToMin(tt.walk)
		if !slices.Equal(got, tt.want) {
			t.Errorf("rotateToMin(%v) = %v, want %v", tt.walk, got, tt.want)
		}
	}
	a := Cycle{Nodes: rotateToMin([]string{"q", "p", "r"})}
	b := Cycle{Nodes: rotateToMin([]string{"r", "q", "p"})}
	if a.Key() != b.Key() {
		t.Errorf("rotations have different keys: %q vs %q", a.Key(), b.Key())
	}
}

func TestClassifyComplexity(t *testing.T) {
	cyc := func(n int) Cycle { return Cycle{Nodes: make([]string, n)} }
	tests := []struct {
		name   string
		cycles []Cycle
		want   Complexity
	}{
		{"none", nil, ComplexityNone},
		{"one small", []Cycle{cyc(3)}, ComplexitySimple},
		{"one medium", []Cycle{cyc(4)}, ComplexityComplex},
		{"three small", []Cycle{cyc(2), cyc(5), cyc(1)}, ComplexityComplex},
		{"one large", []Cycle{cyc(6)}, ComplexityCritical},
		{"four", []Cycle{cyc(1), cyc(1), cyc(1), cyc(1)}, ComplexityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyComplexity(tt.cycles); got != tt.want {
				t.Errorf("classifyComplexity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBreakingScore(t *testing.T) {
	g := build(t,
		nodeDef{id: "s", typ: workflow.TypeStart, edges: []string{"a"}},
		nodeDef{id: "a", edges: []string{"b", "on_timeout:a", "e"}},
		nodeDef{id: "b"},
		nodeDef{id: "e", typ: workflow.TypeEnd},
	)
	tests := []struct {
		id   dag.EdgeID
		want int
	}{
		{dag.EdgeID{From: "s", To: "a"}, 2 + 5},
		{dag.EdgeID{From: "a", To: "b"}, 2},
		{dag.EdgeID{From: "a", To: "a"}, 4 + 3},
		{dag.EdgeID{From: "a", To: "e"}, 6 + 5},
	}
	for _, tt := range tests {
		e, _ := g.Edge(tt.id)
		if got := BreakingScore(g, e); got != tt.want {
			t.Errorf("BreakingScore(%s) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestBreakCycles_PrefersCheapEdge(t *testing.T) {
	// review -> fix is the second transition and an error path; fix -> review
	// is cheap.
	g := build(t,
		nodeDef{id: "start", typ: workflow.TypeStart, edges: []string{"review"}},
		nodeDef{id: "review", typ: workflow.TypeAction, edges: []string{"ok:done", "failed:fix"}},
		nodeDef{id: "fix", typ: workflow.TypeAction, edges: []string{"retry:review"}},
		nodeDef{id: "done", typ: workflow.TypeEnd},
	)
	br := BreakCycles(g, DetectCycles(g).Cycles)
	if got := br.FeedbackEdges.IDs(); !slices.Equal(got, []dag.EdgeID{{From: "fix", To: "review"}}) {
		t.Errorf("FeedbackEdges = %v, want [fix -> review]", got)
	}
	if br.Impact.AffectedNodes != 2 || br.Impact.FeedbackEdges != 1 {
		t.Errorf("Impact = %+v", br.Impact)
	}
	// 1 - 0.5*(2/4) - 0.1*1
	if !approx(br.Impact.Quality, 0.65) {
		t.Errorf("Quality = %v, want 0.65", br.Impact.Quality)
	}
}

func TestBreakCycles_LoopBackToStart(t *testing.T) {
	g := build(t,
		nodeDef{id: "s", typ: workflow.TypeStart, edges: []string{"a"}},
		nodeDef{id: "a", edges: []string{"b"}},
		nodeDef{id: "b", edges: []string{"rejected:s"}},
	)
	br := BreakCycles(g, DetectCycles(g).Cycles)

	// a -> b scores lowest, but the entry edge b -> s must go anyway and
	// already breaks the cycle, so a -> b is given back.
	if got := br.FeedbackEdges.IDs(); !slices.Equal(got, []dag.EdgeID{{From: "b", To: "s"}}) {
		t.Errorf("FeedbackEdges = %v, want [b -> s]", got)
	}
	if br.EntryEdges != 1 || br.Pruned != 1 {
		t.Errorf("EntryEdges = %d, Pruned = %d, want 1 and 1", br.EntryEdges, br.Pruned)
	}
	if br.CyclesSolved != 1 {
		t.Errorf("CyclesSolved = %d, want 1", br.CyclesSolved)
	}
}

func TestBreakCycles_Acyclic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7^0xdeadbeef))
	for trial := range 50 {
		n := 3 + rng.IntN(15)
		defs := make([]nodeDef, n)
		for i := range defs {
			defs[i].id = fmt.Sprintf("n%02d", i)
			if i == 0 {
				defs[i].typ = workflow.TypeStart
			}
		}
		for range n * 2 {
			from, to := rng.IntN(n), rng.IntN(n)
			defs[from].edges = append(defs[from].edges, fmt.Sprintf("c%d:n%02d", rng.IntN(3), to))
		}
		g := build(t, defs...)

		for _, br := range []*BreakResult{BreakCycles(g, DetectCycles(g).Cycles), BreakBackEdges(g)} {
			residual := g.Without(br.FeedbackEdges)
			if residual.HasCycle() {
				t.Fatalf("trial %d: residual still cyclic, feedback %v", trial, br.FeedbackEdges.IDs())
			}
			if residual.InDegree("n00") != 0 {
				t.Fatalf("trial %d: residual edge enters start node", trial)
			}
		}
	}
}

func TestBackEdges(t *testing.T) {
	g := build(t,
		nodeDef{id: "a", edges: []string{"b"}},
		nodeDef{id: "b", edges: []string{"c"}},
		nodeDef{id: "c", edges: []string{"a"}},
	)
	back := BackEdges(g)
	if got := back.IDs(); !slices.Equal(got, []dag.EdgeID{{From: "c", To: "a"}}) {
		t.Errorf("BackEdges() = %v, want [c -> a]", got)
	}

	br := BreakBackEdges(g)
	if br.CyclesSolved != 0 || br.FeedbackEdges.Len() != 1 {
		t.Errorf("BreakBackEdges() = %+v", br)
	}
}
