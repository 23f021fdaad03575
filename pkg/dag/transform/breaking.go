package transform

import (
	"cmp"
	"regexp"
	"slices"

	"github.com/matzehuels/flowlayout/pkg/dag"
)

// errorPath matches transition conditions that read like failure handling.
var errorPath = regexp.MustCompile(`(?i)error|fail|timeout|reject|cancel|abort|exception|invalid`)

// BreakCycles chooses feedback edges so that g without them is acyclic.
//
// # Algorithm
//
// Cycles are visited by descending priority, ties broken by key. A cycle that
// already contains a chosen edge is neutralized and skipped. Otherwise the
// cycle's edge with the lowest breaking score is chosen:
//
//	score = 2*weight
//	      + 5 if either endpoint is a start node
//	      + 5 if either endpoint is an end node
//	      + 3 if the condition reads like an error path
//
// so the least disruptive transition goes. Equal scores prefer an edge that
// enters a start node, then the cycle's closing edge, then the smaller
// [dag.EdgeID].
//
// Because [DetectCycles] does not enumerate every cycle, the residual graph
// is checked after each pass; remaining cycles are detected on it and broken
// the same way until it is acyclic.
//
// Finally every residual edge that enters a start node is added as an entry
// edge, so start nodes can sit on layer 0 while all other edges point
// forward. Chosen edges made redundant by the entry edges are given back,
// latest first, as long as the residual graph stays acyclic.
//
// # Nil Handling
//
// BreakCycles panics if g is nil. A nil or empty cycles slice still runs the
// residual check, so BreakCycles(g, nil) is a valid way to break everything.
func BreakCycles(g *dag.Graph, cycles []Cycle) *BreakResult {
	cl := newClassifier(g)
	feedback := dag.NewEdgeSet()
	res := &BreakResult{}

	var handled []Cycle
	breakAll := func(cs []Cycle) {
		for _, c := range sortedByPriority(cs) {
			handled = append(handled, c)
			if slices.ContainsFunc(c.Edges, feedback.Has) {
				continue
			}
			if id, ok := cheapestEdge(g, cl, c, feedback); ok {
				feedback.Add(id)
			}
		}
	}

	breakAll(cycles)
	res.Passes = 1

	// Every pass adds at least one edge, so this is bounded by the edge count.
	for residual := g.Without(feedback); residual.HasCycle(); residual = g.Without(feedback) {
		more := DetectCycles(residual).Cycles
		res.AdditionalCycles += len(more)
		breakAll(more)
		res.Passes++
	}

	var entry *dag.EdgeSet
	entry, res.EntryEdges = entryEdges(g, cl, feedback)
	res.Pruned = prune(g, feedback, entry)

	for _, c := range cycles {
		if slices.ContainsFunc(c.Edges, feedback.Has) {
			res.CyclesSolved++
		}
	}

	res.FeedbackEdges = feedback
	res.Impact = layoutImpact(g, handled, feedback)
	return res
}

// BreakBackEdges uses plain depth-first back edges, plus entry edges, as the
// feedback set, pruned the same way as in [BreakCycles]. It makes any graph
// layerable without judging which edges matter, and reports no cycles as
// solved.
func BreakBackEdges(g *dag.Graph) *BreakResult {
	cl := newClassifier(g)
	feedback := BackEdges(g)
	res := &BreakResult{Passes: 1}
	var entry *dag.EdgeSet
	entry, res.EntryEdges = entryEdges(g, cl, feedback)
	res.Pruned = prune(g, feedback, entry)
	res.FeedbackEdges = feedback
	res.Impact = layoutImpact(g, nil, feedback)
	return res
}

// BreakingScore returns the cost of removing e. Lower is cheaper.
func BreakingScore(g *dag.Graph, e dag.Edge) int {
	return newClassifier(g).score(e)
}

func (cl classifier) score(e dag.Edge) int {
	s := e.Weight * 2
	if cl.start[e.From] || cl.start[e.To] {
		s += 5
	}
	if cl.end[e.From] || cl.end[e.To] {
		s += 5
	}
	if errorPath.MatchString(e.Condition) {
		s += 3
	}
	return s
}

func sortedByPriority(cycles []Cycle) []Cycle {
	out := slices.Clone(cycles)
	slices.SortStableFunc(out, func(a, b Cycle) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Key(), b.Key())
	})
	return out
}

type candidate struct {
	id      dag.EdgeID
	score   int
	entry   bool
	closing bool
}

// before reports whether c should be broken in preference to o.
func (c candidate) before(o candidate) bool {
	if c.score != o.score {
		return c.score < o.score
	}
	if c.entry != o.entry {
		return c.entry
	}
	if c.closing != o.closing {
		return c.closing
	}
	return c.id.Compare(o.id) < 0
}

// cheapestEdge picks the edge of c to break.
func cheapestEdge(g *dag.Graph, cl classifier, c Cycle, chosen *dag.EdgeSet) (dag.EdgeID, bool) {
	var best candidate
	found := false
	for i, id := range c.Edges {
		if chosen.Has(id) {
			continue
		}
		e, ok := g.Edge(id)
		if !ok {
			continue
		}
		cand := candidate{
			id:      id,
			score:   cl.score(e),
			entry:   cl.start[id.To],
			closing: i == len(c.Edges)-1,
		}
		if !found || cand.before(best) {
			best, found = cand, true
		}
	}
	return best.id, found
}

// entryEdges makes every edge into a start node feedback. It returns all
// such edges and how many of them were not feedback already.
func entryEdges(g *dag.Graph, cl classifier, feedback *dag.EdgeSet) (*dag.EdgeSet, int) {
	entry := dag.NewEdgeSet()
	added := 0
	for _, e := range g.Edges() {
		if !cl.start[e.To] || !entry.Add(e.ID()) {
			continue
		}
		if feedback.Add(e.ID()) {
			added++
		}
	}
	return entry, added
}

// prune gives back chosen edges, latest first, whose removal is no longer
// needed once entry edges are excluded. Entry edges are kept.
func prune(g *dag.Graph, feedback, entry *dag.EdgeSet) int {
	ids := feedback.IDs()
	pruned := 0
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if entry.Has(id) {
			continue
		}
		feedback.Remove(id)
		if g.Without(feedback).HasCycle() {
			feedback.Add(id)
			continue
		}
		pruned++
	}
	return pruned
}

func layoutImpact(g *dag.Graph, cycles []Cycle, feedback *dag.EdgeSet) LayoutImpact {
	affected := make(map[string]bool)
	total := 0.0
	for _, c := range cycles {
		total += c.Impact
		for _, id := range c.Nodes {
			affected[id] = true
		}
	}

	ratio := 0.0
	if n := g.NodeCount(); n > 0 {
		ratio = float64(len(affected)) / float64(n)
	}
	quality := max(0, 1-0.5*ratio-0.1*float64(feedback.Len()))

	return LayoutImpact{
		AffectedNodes:    len(affected),
		FeedbackEdges:    feedback.Len(),
		TotalCycleImpact: total,
		Quality:          quality,
	}
}
