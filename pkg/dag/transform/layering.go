package transform

import (
	"cmp"
	"slices"

	"github.com/matzehuels/flowlayout/pkg/dag"
)

// LayerOptions controls [AssignLayers].
type LayerOptions struct {
	// MaxLayerWidth is the widest a layer may be before balancing moves
	// nodes out of it. Values below 1 disable balancing.
	MaxLayerWidth int

	// OptimizeBalance enables relocation of nodes from wide layers.
	OptimizeBalance bool
}

// AssignLayers assigns every node of g to a layer.
//
// The residual graph is g without br.FeedbackEdges. Each node starts on
// longestPaths[node], which should be [dag.LongestPaths] of that residual
// graph; a nil map computes it here. Start nodes are then forced to layer 0
// and a forward sweep in topological order pushes every residual edge's
// target below its source, so for every non-feedback edge u→v:
//
//	layer(u) < layer(v)
//
// # Ordering
//
// Within a layer, start nodes come first and end nodes last. The rest are
// ordered by type (action, wait, then unclassified), then by descending
// in-degree, then by id.
//
// # Balancing
//
// With OptimizeBalance set, a layer holding more than MaxLayerWidth nodes
// gives up interior nodes, last in order first, to the next layer. A node
// moves only if every residual successor stays strictly below the new layer.
// Its predecessors are already above it. Start and end nodes never move. A
// layer that cannot shed enough nodes is left wide.
//
// # Performance
//
// O(V + E) for layering plus O(L × W log W) to order L layers of width W.
// Balancing adds O(W × deg) per relocation.
func AssignLayers(g *dag.Graph, longestPaths map[string]int, br *BreakResult, opts LayerOptions) *Assignment {
	var feedback *dag.EdgeSet
	if br != nil {
		feedback = br.FeedbackEdges
	}
	residual := g.Without(feedback)
	if longestPaths == nil {
		longestPaths = dag.LongestPaths(residual)
	}
	cl := newClassifier(g)

	layer := make(map[string]int, g.NodeCount())
	for _, id := range g.NodeIDs() {
		layer[id] = max(0, longestPaths[id])
	}
	for id := range cl.start {
		layer[id] = 0
	}
	for _, id := range topoOrder(residual) {
		for _, child := range residual.Children(id) {
			if l := layer[id] + 1; l > layer[child] {
				layer[child] = l
			}
		}
	}

	layers := compact(g.NodeIDs(), layer)
	less := layerOrder(g, cl)
	for _, l := range layers {
		slices.SortFunc(l, less)
	}

	relocated := 0
	if opts.OptimizeBalance && opts.MaxLayerWidth > 0 {
		layers, relocated = balance(residual, cl, layers, opts.MaxLayerWidth, less)
	}

	a := &Assignment{
		Layers:    layers,
		NodeLayer: make(map[string]int, g.NodeCount()),
	}
	counts := make([]int, len(layers))
	for i, l := range layers {
		counts[i] = len(l)
		for _, id := range l {
			a.NodeLayer[id] = i
		}
	}
	a.Metrics = LayerMetrics{
		TotalLayers: len(layers),
		Counts:      counts,
		Balance:     BalanceScore(counts),
		Relocated:   relocated,
	}
	return a
}

// topoOrder returns the nodes of an acyclic graph in Kahn order, seeded and
// tie-broken by input order. Nodes on a cycle are left out.
func topoOrder(g *dag.Graph) []string {
	ids := g.NodeIDs()
	inDegree := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		inDegree[id] = g.InDegree(id)
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		for _, child := range g.Children(curr) {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return order
}

// compact groups ids by layer and drops empty layers, renumbering as it
// goes. Relative order between layers is preserved.
func compact(ids []string, layer map[string]int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	maxLayer := 0
	for _, id := range ids {
		maxLayer = max(maxLayer, layer[id])
	}
	buckets := make([][]string, maxLayer+1)
	for _, id := range ids {
		buckets[layer[id]] = append(buckets[layer[id]], id)
	}
	return slices.DeleteFunc(buckets, func(b []string) bool { return len(b) == 0 })
}

func layerOrder(g *dag.Graph, cl classifier) func(a, b string) int {
	group := func(id string) int {
		switch {
		case cl.start[id]:
			return 0
		case cl.end[id]:
			return 2
		}
		return 1
	}
	rank := func(id string) int {
		n, _ := g.Node(id)
		return n.Type.Rank()
	}
	return func(a, b string) int {
		if c := cmp.Compare(group(a), group(b)); c != 0 {
			return c
		}
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		if c := cmp.Compare(g.InDegree(b), g.InDegree(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}
}

func balance(residual *dag.Graph, cl classifier, layers [][]string, maxWidth int, less func(a, b string) int) ([][]string, int) {
	where := make(map[string]int)
	for i, l := range layers {
		for _, id := range l {
			where[id] = i
		}
	}

	canMove := func(id string, target int) bool {
		if cl.start[id] || cl.end[id] {
			return false
		}
		for _, s := range residual.Children(id) {
			if where[s] <= target {
				return false
			}
		}
		for _, p := range residual.Parents(id) {
			if where[p] >= target {
				return false
			}
		}
		return true
	}

	moved := 0
	for i := 0; i < len(layers); i++ {
		for len(layers[i]) > maxWidth {
			target := i + 1
			pick := -1
			for j := len(layers[i]) - 1; j >= 0; j-- {
				if canMove(layers[i][j], target) {
					pick = j
					break
				}
			}
			if pick < 0 {
				break
			}
			id := layers[i][pick]
			layers[i] = slices.Delete(layers[i], pick, pick+1)
			if target == len(layers) {
				layers = append(layers, nil)
			}
			layers[target] = append(layers[target], id)
			slices.SortFunc(layers[target], less)
			where[id] = target
			moved++
		}
	}
	return layers, moved
}

// BalanceScore returns 1 - variance/mean² of counts, clamped to [0,1].
// An empty slice scores 1.
func BalanceScore(counts []int) float64 {
	if len(counts) == 0 {
		return 1
	}
	sum := 0.0
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 1
	}
	variance := 0.0
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(counts))
	return min(1, max(0, 1-variance/(mean*mean)))
}
